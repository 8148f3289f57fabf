package game

import (
	"fmt"

	"github.com/feltserver/felt/internal/deck"
	"github.com/feltserver/felt/internal/evaluator"
)

// RITDeciderConvention selects which contender is prompted for
// run-it-twice when the hand locks all-in.
type RITDeciderConvention string

const (
	// DeciderWeakest prompts the player currently holding the weakest
	// hand among contenders.
	DeciderWeakest RITDeciderConvention = "weakest"
	// DeciderStrongest prompts the strongest losing hand instead.
	DeciderStrongest RITDeciderConvention = "strongest"
)

// Config holds the static parameters of a table.
type Config struct {
	ID           string
	Variant      Variant
	Mode         BettingMode
	SmallBlind   int
	BigBlind     int
	MaxSeats     int
	RITUnanimous bool
	RITDecider   RITDeciderConvention
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxSeats <= 0 || out.MaxSeats > 9 {
		out.MaxSeats = 9
	}
	if out.Mode == "" {
		out.Mode = NoLimit
	}
	if out.RITDecider == "" {
		out.RITDecider = DeciderWeakest
	}
	return out
}

// Table is the authoritative state of a single poker table. It is not
// safe for concurrent use; callers serialise access per table.
type Table struct {
	ID           string      `json:"tableId"`
	Variant      Variant     `json:"variant"`
	Mode         BettingMode `json:"bettingMode"`
	SmallBlind   int         `json:"smallBlind"`
	BigBlind     int         `json:"bigBlind"`
	MaxSeats     int         `json:"maxSeats"`
	RITUnanimous bool        `json:"requireRunItTwiceUnanimous"`

	Stage        Stage       `json:"stage"`
	Players      []*Player   `json:"players"` // ordered by seat
	ActivePlayer string      `json:"activePlayer"`
	Pot          int         `json:"pot"` // chips swept from prior rounds
	Community    []deck.Card `json:"communityCards"`
	CurrentBet   int         `json:"currentBet"`
	MinRaise     int         `json:"minRaise"`
	LastRaise    int         `json:"lastRaise"`
	DealerPos    int         `json:"dealerPosition"` // index into Players
	Sequence     uint64      `json:"sequence"`

	HandNum         int         `json:"handNum"`
	HandID          string      `json:"handId"`
	HandResolved    bool        `json:"handResolved"`
	SeedHex         string      `json:"seedHex"` // shuffle seed, for audit
	RabbitPreviewed bool        `json:"rabbitPreviewed"`
	RIT             *RITState   `json:"rit,omitempty"`
	RITPrompt       *RITPrompt  `json:"ritPrompt,omitempty"`
	RITDisabled     bool        `json:"ritDisabledForHand"`
	LastResult      *HandResult `json:"lastResult,omitempty"`

	deck        *deck.Deck
	rng         *deck.RNG
	rules       VariantRules
	decider     RITDeciderConvention
	entropy     deck.EntropySource
	cannotRaise map[string]bool
	removed     []string // leave requests deferred to hand end
}

// NewTable creates an empty table from the given configuration.
func NewTable(cfg Config, entropy deck.EntropySource) (*Table, error) {
	cfg = cfg.withDefaults()
	if cfg.ID == "" {
		return nil, fmt.Errorf("table id required")
	}
	if !cfg.Variant.Valid() {
		return nil, fmt.Errorf("unknown variant %q", cfg.Variant)
	}
	if cfg.SmallBlind <= 0 || cfg.BigBlind < cfg.SmallBlind {
		return nil, fmt.Errorf("invalid blinds %d/%d", cfg.SmallBlind, cfg.BigBlind)
	}
	if entropy == nil {
		entropy = deck.CryptoEntropy{}
	}
	return &Table{
		ID:           cfg.ID,
		Variant:      cfg.Variant,
		Mode:         cfg.Mode,
		SmallBlind:   cfg.SmallBlind,
		BigBlind:     cfg.BigBlind,
		MaxSeats:     cfg.MaxSeats,
		RITUnanimous: cfg.RITUnanimous,
		Stage:        StageWaiting,
		DealerPos:    -1,
		rules:        cfg.Variant.Rules(),
		decider:      cfg.RITDecider,
		entropy:      entropy,
		HandResolved: true,
	}, nil
}

// Player returns the seated player with the given id.
func (t *Table) Player(id string) (*Player, bool) {
	for _, p := range t.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// AddPlayer seats a player between hands. Seat must be free.
func (t *Table) AddPlayer(id, displayName string, seat, stack int) error {
	if _, ok := t.Player(id); ok {
		return fmt.Errorf("player %s already seated", id)
	}
	if seat < 0 || seat >= t.MaxSeats {
		return fmt.Errorf("seat %d out of range", seat)
	}
	if stack <= 0 {
		return fmt.Errorf("stack must be positive")
	}
	for _, p := range t.Players {
		if p.Seat == seat {
			return ErrSeatTaken
		}
	}
	np := &Player{ID: id, DisplayName: displayName, Seat: seat, Stack: stack}
	// Keep the slice ordered by seat
	at := len(t.Players)
	for i, p := range t.Players {
		if p.Seat > seat {
			at = i
			break
		}
	}
	t.Players = append(t.Players, nil)
	copy(t.Players[at+1:], t.Players[at:])
	t.Players[at] = np
	if t.DealerPos >= at {
		t.DealerPos++
	}
	if t.handRunning() {
		// Joined mid-hand: sit this one out
		np.Folded = true
		np.HasActed = true
	}
	return nil
}

// RemovePlayer unseats a player. Mid-hand the player is folded and the
// removal is deferred until the hand resolves.
func (t *Table) RemovePlayer(id string) error {
	p, ok := t.Player(id)
	if !ok {
		return ErrPlayerNotFound
	}
	if t.handRunning() {
		t.removed = append(t.removed, id)
		if p.InHand() {
			p.Folded = true
			p.HasActed = true
			if t.ActivePlayer == id {
				return t.afterAction(p)
			}
		}
		return nil
	}
	t.dropPlayer(id)
	return nil
}

func (t *Table) dropPlayer(id string) {
	for i, p := range t.Players {
		if p.ID != id {
			continue
		}
		t.Players = append(t.Players[:i], t.Players[i+1:]...)
		if t.DealerPos > i {
			t.DealerPos--
		} else if t.DealerPos >= len(t.Players) {
			t.DealerPos = len(t.Players) - 1
		}
		return
	}
}

func (t *Table) handRunning() bool {
	return t.Stage != StageWaiting && !t.HandResolved
}

// StartHand resets per-hand state, rotates the dealer, shuffles, deals
// and posts the forced bets for the first betting round.
func (t *Table) StartHand() error {
	if t.handRunning() {
		return ErrHandInProgress
	}
	for _, id := range t.removed {
		t.dropPlayer(id)
	}
	t.removed = nil

	funded := 0
	for _, p := range t.Players {
		if p.Stack > 0 {
			funded++
		}
	}
	if funded < 2 {
		return ErrNotEnoughPlayers
	}

	t.HandNum++
	t.HandID = fmt.Sprintf("%s#%d", t.ID, t.HandNum)
	t.Pot = 0
	t.Community = nil
	t.CurrentBet = 0
	t.LastRaise = 0
	t.MinRaise = t.BigBlind
	t.RIT = nil
	t.RITPrompt = nil
	t.RITDisabled = false
	t.RabbitPreviewed = false
	t.HandResolved = false
	t.LastResult = nil
	t.cannotRaise = make(map[string]bool)

	for _, p := range t.Players {
		p.resetForHand()
		if p.Stack == 0 {
			// Busted players sit the hand out
			p.Folded = true
			p.HasActed = true
		}
	}

	rng, seedHex, err := deck.NewHandRNG(t.entropy)
	if err != nil {
		return fmt.Errorf("seeding hand rng: %w", err)
	}
	t.rng = rng
	t.SeedHex = seedHex
	t.deck = deck.NewShuffled(rng)

	t.DealerPos = t.nextFunded(t.DealerPos)
	t.Stage = t.rules.Stages[0]

	if err := t.dealInitial(); err != nil {
		return err
	}
	if t.rules.Stud {
		t.postBringIn()
	} else {
		t.postBlinds()
	}
	return nil
}

// dealInitial deals hole cards one at a time starting left of the dealer.
func (t *Table) dealInitial() error {
	if t.rules.Stud {
		for round := 0; round < t.rules.DownAtStart; round++ {
			if err := t.dealEach(func(p *Player, c deck.Card) { p.DownCards = append(p.DownCards, c) }); err != nil {
				return err
			}
		}
		for round := 0; round < t.rules.UpAtStart; round++ {
			if err := t.dealEach(func(p *Player, c deck.Card) { p.UpCards = append(p.UpCards, c) }); err != nil {
				return err
			}
		}
		return nil
	}
	for round := 0; round < t.rules.HoleCount; round++ {
		if err := t.dealEach(func(p *Player, c deck.Card) { p.HoleCards = append(p.HoleCards, c) }); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) dealEach(give func(*Player, deck.Card)) error {
	n := len(t.Players)
	for off := 1; off <= n; off++ {
		p := t.Players[(t.DealerPos+off)%n]
		if !p.InHand() {
			continue
		}
		cards, err := t.deck.Draw(1)
		if err != nil {
			return err
		}
		give(p, cards[0])
	}
	return nil
}

// postBlinds posts SB and BB and sets the preflop actor. Heads-up the
// dealer posts the small blind and acts first.
func (t *Table) postBlinds() {
	var sbIdx int
	if t.inHandCount() == 2 {
		sbIdx = t.DealerPos
		if !t.Players[sbIdx].InHand() {
			sbIdx = t.nextInHand(sbIdx)
		}
	} else {
		sbIdx = t.nextInHand(t.DealerPos)
	}
	bbIdx := t.nextInHand(sbIdx)

	t.Players[sbIdx].commit(t.SmallBlind)
	t.Players[bbIdx].commit(t.BigBlind)
	t.CurrentBet = t.BigBlind

	// First voluntary action is left of the big blind; heads-up that
	// wraps back to the dealer/SB.
	t.setActor(t.nextActorFrom(bbIdx))
}

// postBringIn forces the bring-in from the lowest up-card and gives that
// player the first option, like a blind.
func (t *Table) postBringIn() {
	low := -1
	for i, p := range t.Players {
		if !p.InHand() || len(p.UpCards) == 0 {
			continue
		}
		if low < 0 || upCardLess(p.UpCards[0], t.Players[low].UpCards[0]) {
			low = i
		}
	}
	if low < 0 {
		return
	}
	t.Players[low].commit(t.SmallBlind)
	t.CurrentBet = t.SmallBlind
	t.setActor(t.nextActorFrom(low))
}

// upCardLess orders bring-in candidates: lower rank first, ties broken
// by suit (clubs low, spades high).
func upCardLess(a, b deck.Card) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return suitOrder(a.Suit) < suitOrder(b.Suit)
}

func suitOrder(s deck.Suit) int {
	switch s {
	case deck.Clubs:
		return 0
	case deck.Diamonds:
		return 1
	case deck.Hearts:
		return 2
	default:
		return 3
	}
}

// inHandCount counts players still contesting the pot.
func (t *Table) inHandCount() int {
	n := 0
	for _, p := range t.Players {
		if p.InHand() {
			n++
		}
	}
	return n
}

func (t *Table) canActCount() int {
	n := 0
	for _, p := range t.Players {
		if p.CanAct() {
			n++
		}
	}
	return n
}

func (t *Table) anyAllIn() bool {
	for _, p := range t.Players {
		if p.InHand() && p.AllIn {
			return true
		}
	}
	return false
}

// nextFunded returns the next index clockwise with chips, for dealer
// rotation.
func (t *Table) nextFunded(from int) int {
	n := len(t.Players)
	for off := 1; off <= n; off++ {
		i := ((from+off)%n + n) % n
		if t.Players[i].Stack > 0 {
			return i
		}
	}
	return 0
}

// nextInHand returns the next index clockwise still contesting the pot.
func (t *Table) nextInHand(from int) int {
	n := len(t.Players)
	for off := 1; off <= n; off++ {
		i := (from + off) % n
		if t.Players[i].InHand() {
			return i
		}
	}
	return from
}

// nextActorFrom returns the index of the next player clockwise of from
// who can still take a voluntary action, or -1.
func (t *Table) nextActorFrom(from int) int {
	n := len(t.Players)
	for off := 1; off <= n; off++ {
		i := (from + off) % n
		if t.Players[i].CanAct() {
			return i
		}
	}
	return -1
}

func (t *Table) setActor(idx int) {
	if idx < 0 {
		t.ActivePlayer = ""
		return
	}
	t.ActivePlayer = t.Players[idx].ID
}

func (t *Table) playerIndex(id string) int {
	for i, p := range t.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// FindNextActor returns the id of the next player due to act after the
// given one, skipping folded, all-in and already-matched players.
// Empty when the round is complete.
func (t *Table) FindNextActor(afterID string) string {
	from := t.playerIndex(afterID)
	if from < 0 {
		return ""
	}
	n := len(t.Players)
	for off := 1; off <= n; off++ {
		p := t.Players[(from+off)%n]
		if !p.CanAct() {
			continue
		}
		if p.HasActed && p.CurrentBet == t.CurrentBet {
			continue
		}
		return p.ID
	}
	return ""
}

// RoundComplete reports whether the current betting round is finished.
func (t *Table) RoundComplete() bool {
	for _, p := range t.Players {
		if !p.CanAct() {
			continue
		}
		if !p.HasActed || p.CurrentBet != t.CurrentBet {
			return false
		}
	}
	return true
}

// AllInLocked reports whether no further voluntary action is possible
// while cards remain to be dealt. Once locked, reveals proceed on the
// runout schedule and submitted actions are rejected.
func (t *Table) AllInLocked() bool {
	if !t.handRunning() || t.Stage == StageShowdown {
		return false
	}
	return t.anyAllIn() && t.canActCount() <= 1 && t.inHandCount() >= 2 && !t.dealingComplete()
}

// dealingComplete reports whether every card of the hand has been dealt.
func (t *Table) dealingComplete() bool {
	if t.rules.Stud {
		last := t.rules.Stages[len(t.rules.Stages)-2]
		return t.Stage == last
	}
	return len(t.Community) >= t.rules.boardTarget()
}

// sweepBets moves round bets into the pot and resets round state.
func (t *Table) sweepBets() {
	for _, p := range t.Players {
		t.Pot += p.CurrentBet
		p.resetForRound()
	}
	t.CurrentBet = 0
	t.LastRaise = 0
	t.MinRaise = t.BigBlind
	t.cannotRaise = make(map[string]bool)
}

// endRound closes the betting round: sweeps bets, then either stops on
// an all-in lock, advances to the next street, or resolves the hand.
func (t *Table) endRound() error {
	t.sweepBets()

	if t.inHandCount() == 1 {
		return t.resolveFold()
	}
	if t.AllInLocked() {
		t.ActivePlayer = ""
		return nil
	}

	next := nextStage(t.rules.Stages, t.Stage)
	if next == StageShowdown {
		t.Stage = StageShowdown
		_, err := t.resolveShowdown()
		return err
	}
	t.Stage = next
	if err := t.dealStage(next); err != nil {
		return err
	}
	t.setActor(t.firstActorIdx())
	return nil
}

// dealStage deals the cards owed when entering a street mid-hand.
func (t *Table) dealStage(s Stage) error {
	community, upEach, downEach := t.rules.dealOnStage(s)
	if community > 0 {
		cards, err := t.deck.Draw(community)
		if err != nil {
			return err
		}
		t.Community = append(t.Community, cards...)
	}
	for i := 0; i < upEach; i++ {
		if err := t.dealEach(func(p *Player, c deck.Card) { p.UpCards = append(p.UpCards, c) }); err != nil {
			return err
		}
	}
	for i := 0; i < downEach; i++ {
		if err := t.dealEach(func(p *Player, c deck.Card) { p.DownCards = append(p.DownCards, c) }); err != nil {
			return err
		}
	}
	return nil
}

// firstActorIdx picks the opening actor for a post-deal street.
func (t *Table) firstActorIdx() int {
	if t.rules.Stud {
		return t.highestShowingIdx()
	}
	// Postflop action starts left of the dealer
	return t.nextActorFrom(t.DealerPos)
}

// highestShowingIdx finds the player whose up-cards make the strongest
// showing hand; ties go to the earliest seat.
func (t *Table) highestShowingIdx() int {
	best := -1
	var bestVal evaluator.HandValue
	for i, p := range t.Players {
		if !p.CanAct() {
			continue
		}
		v := evaluator.Evaluate(p.UpCards, nil, evaluator.Selection{})
		if best < 0 || v.Compare(bestVal) > 0 {
			best, bestVal = i, v
		}
	}
	return best
}

// afterAction advances the turn after a mutation of player p, ending the
// round when complete.
func (t *Table) afterAction(p *Player) error {
	if t.inHandCount() == 1 {
		t.sweepBets()
		return t.resolveFold()
	}
	if t.RoundComplete() {
		return t.endRound()
	}
	next := t.FindNextActor(p.ID)
	if next == "" {
		return t.endRound()
	}
	t.ActivePlayer = next
	return nil
}

// resolveFold ends the hand with a single survivor taking everything.
func (t *Table) resolveFold() error {
	var winner *Player
	for _, p := range t.Players {
		if p.InHand() {
			winner = p
			break
		}
	}
	if winner == nil {
		return fmt.Errorf("fold resolution with no survivor")
	}
	amount := t.Pot
	winner.Stack += amount
	t.Pot = 0
	t.LastResult = &HandResult{
		HandID:    t.HandID,
		WonByFold: true,
		Board:     append([]deck.Card{}, t.Community...),
		Pots: []PotResult{{
			Amount:      amount,
			HighWinners: []string{winner.ID},
			Awards:      []Award{{PlayerID: winner.ID, Amount: amount}},
		}},
	}
	t.finishHand()
	return nil
}

// finishHand marks the hand resolved; stacks persist, per-hand state is
// cleared on the next StartHand.
func (t *Table) finishHand() {
	t.ActivePlayer = ""
	t.HandResolved = true
	t.Stage = StageShowdown
	t.RITPrompt = nil
}

// RevealNextStreet deals the next street while the hand is locked
// all-in. Returns the cards revealed and whether dealing is complete.
func (t *Table) RevealNextStreet() ([]deck.Card, bool, error) {
	if !t.handRunning() {
		return nil, false, ErrNoActiveHand
	}
	if t.RITPrompt != nil {
		return nil, false, ErrWaitingOnRIT
	}
	if t.RIT != nil && t.RIT.Enabled {
		return nil, false, illegalf("run-it-twice enabled; boards come from the runs")
	}
	if t.dealingComplete() {
		return nil, true, nil
	}
	before := len(t.Community)
	next := nextStage(t.rules.Stages, t.Stage)
	if next == StageShowdown {
		return nil, true, nil
	}
	t.Stage = next
	if err := t.dealStage(next); err != nil {
		return nil, false, err
	}
	revealed := append([]deck.Card{}, t.Community[before:]...)
	return revealed, t.dealingComplete(), nil
}

// FinishRunout enters showdown after a locked hand has fully dealt,
// executing the run-it-twice runs when enabled.
func (t *Table) FinishRunout() (*HandResult, error) {
	if !t.handRunning() {
		return nil, ErrNoActiveHand
	}
	if t.RITPrompt != nil {
		return nil, ErrWaitingOnRIT
	}
	if t.RIT != nil && t.RIT.Enabled {
		return t.RunItTwiceNow()
	}
	if !t.dealingComplete() {
		return nil, illegalf("streets remain to be revealed")
	}
	t.Stage = StageShowdown
	return t.resolveShowdown()
}

// TotalChips sums stacks, round bets and the pot, for conservation
// checks.
func (t *Table) TotalChips() int {
	sum := t.Pot
	for _, p := range t.Players {
		sum += p.Stack + p.CurrentBet
	}
	return sum
}
