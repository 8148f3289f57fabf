package game

import (
	"fmt"

	"github.com/feltserver/felt/internal/deck"
	"github.com/feltserver/felt/internal/evaluator"
)

// RITSecurity carries the audit material for a run-it-twice hand: the
// public seed and the per-run hash chain clients can verify offline.
type RITSecurity struct {
	PublicSeed string   `json:"publicSeed"`
	HandNonce  string   `json:"handNonce"`
	HashChain  []string `json:"hashChain"`
}

// RITState is the run-it-twice controller state for the current hand.
type RITState struct {
	Enabled        bool            `json:"enabled"`
	NumberOfRuns   int             `json:"numberOfRuns"`
	Seeds          []string        `json:"seeds"`
	Boards         [][]deck.Card   `json:"boards,omitempty"`
	Results        [][]string      `json:"results,omitempty"` // winner ids per run
	Security       RITSecurity     `json:"rngSecurity"`
	Consents       map[string]bool `json:"consents,omitempty"`
	Baseline       []deck.Card     `json:"baseline,omitempty"` // frozen deck order
	BaselineCursor int             `json:"baselineCursor"`
}

// RITPrompt asks one player to decide on running it twice.
type RITPrompt struct {
	PlayerID          string            `json:"playerId"`
	EligiblePlayerIDs []string          `json:"eligiblePlayerIds"`
	BoardCardsCount   int               `json:"boardCardsCount"`
	HandDescriptions  map[string]string `json:"handDescription,omitempty"`
}

// RITEligible reports whether the hand qualifies for a run-it-twice
// prompt: locked all-in with at least two contenders and cards still to
// come.
func (t *Table) RITEligible() bool {
	return t.AllInLocked() && !t.rules.Stud
}

// MaxRuns bounds the number of runs by the contender count.
func (t *Table) MaxRuns() int {
	n := t.inHandCount()
	if n < 1 {
		return 1
	}
	return n
}

// PromptRIT computes and records the run-it-twice prompt, choosing the
// decider by the table's convention (weakest hand by default; strongest
// losing hand otherwise). Ties break by a uniform draw from the hand's
// RNG stream. Returns nil when no prompt applies.
func (t *Table) PromptRIT() *RITPrompt {
	if !t.RITEligible() || t.RITDisabled || t.RITPrompt != nil {
		return nil
	}
	if t.RIT != nil && t.RIT.Enabled {
		return nil
	}

	var contenders []*Player
	for _, p := range t.Players {
		if p.InHand() {
			contenders = append(contenders, p)
		}
	}
	if len(contenders) < 2 {
		return nil
	}

	decider := t.pickDecider(contenders)
	eligible := make([]string, 0, len(contenders))
	for _, p := range contenders {
		eligible = append(eligible, p.ID)
	}
	t.RITPrompt = &RITPrompt{
		PlayerID:          decider,
		EligiblePlayerIDs: eligible,
		BoardCardsCount:   len(t.Community),
		HandDescriptions:  t.handDescriptions(t.Community),
	}
	t.ActivePlayer = ""
	return t.RITPrompt
}

func (t *Table) pickDecider(contenders []*Player) string {
	sel := t.rules.Selection()
	vals := make([]evaluator.HandValue, len(contenders))
	for i, p := range contenders {
		vals[i] = evaluator.Evaluate(p.allCards(), t.Community, sel)
	}

	var pick []int
	if t.decider == DeciderStrongest {
		// Strongest hand that is not winning outright
		best := 0
		for i := 1; i < len(vals); i++ {
			if vals[i].Compare(vals[best]) > 0 {
				best = i
			}
		}
		var bestLosing []int
		for i := range vals {
			if vals[i].Compare(vals[best]) < 0 {
				if len(bestLosing) == 0 || vals[i].Compare(vals[bestLosing[0]]) > 0 {
					bestLosing = []int{i}
				} else if vals[i].Compare(vals[bestLosing[0]]) == 0 {
					bestLosing = append(bestLosing, i)
				}
			}
		}
		pick = bestLosing
		if len(pick) == 0 {
			// Everyone is tied; fall back to the full set
			for i := range contenders {
				pick = append(pick, i)
			}
		}
	} else {
		for i := range vals {
			if len(pick) == 0 {
				pick = []int{i}
				continue
			}
			switch vals[i].Compare(vals[pick[0]]) {
			case -1:
				pick = []int{i}
			case 0:
				pick = append(pick, i)
			}
		}
	}
	return contenders[pick[t.rng.Intn(len(pick))]].ID
}

// EnableRIT records a player's consent to run it twice and, once the
// table's consent policy is satisfied, derives the run seeds and freezes
// the deck baseline. Allowed only while the board is incomplete.
func (t *Table) EnableRIT(playerID string, runs int) error {
	if !t.handRunning() || t.Stage == StageShowdown {
		return ErrNoActiveHand
	}
	if t.dealingComplete() || t.rules.Stud {
		return illegalf("board already complete")
	}
	if t.RITDisabled {
		return illegalf("run-it-twice declined for this hand")
	}
	if t.RIT != nil && t.RIT.Enabled {
		return illegalf("run-it-twice already enabled")
	}
	p, ok := t.Player(playerID)
	if !ok {
		return ErrPlayerNotFound
	}
	if !p.InHand() {
		return illegalf("folded players cannot enable run-it-twice")
	}
	if !t.RITUnanimous && t.RITPrompt != nil && t.RITPrompt.PlayerID != playerID {
		return illegalf("only the prompted player may decide")
	}
	if runs < 1 {
		runs = 2
	}
	if max := t.MaxRuns(); runs > max {
		runs = max
	}

	if t.RIT == nil {
		t.RIT = &RITState{NumberOfRuns: runs, Consents: make(map[string]bool)}
	}
	t.RIT.Consents[playerID] = true

	if t.RITUnanimous {
		for _, q := range t.Players {
			if q.InHand() && !t.RIT.Consents[q.ID] {
				return nil // waiting on remaining consents
			}
		}
	}
	return t.activateRIT()
}

func (t *Table) activateRIT() error {
	publicSeed, err := deck.NewPublicSeed(t.entropy, t.ID+":"+t.HandID)
	if err != nil {
		return fmt.Errorf("deriving public seed: %w", err)
	}
	n := t.RIT.NumberOfRuns
	seeds := deck.DeriveRunSeeds(publicSeed, t.HandID, n)
	t.RIT.Enabled = true
	t.RIT.Seeds = seeds
	t.RIT.Security = RITSecurity{
		PublicSeed: publicSeed,
		HandNonce:  t.HandID,
		HashChain:  deck.ChainSeeds(publicSeed, seeds),
	}
	t.RIT.Baseline = t.deck.Cards()
	t.RIT.BaselineCursor = t.deck.DrawnCount()
	t.RITPrompt = nil
	return nil
}

// DeclineRIT resolves the prompt negatively; the hand runs out once.
func (t *Table) DeclineRIT(playerID string) error {
	if t.RITPrompt == nil {
		if t.RITUnanimous && t.RIT != nil && !t.RIT.Enabled {
			t.RITDisabled = true
			t.RIT = nil
			return nil
		}
		return illegalf("no run-it-twice prompt pending")
	}
	p, ok := t.Player(playerID)
	if !ok {
		return ErrPlayerNotFound
	}
	if !t.RITUnanimous && t.RITPrompt.PlayerID != playerID {
		return illegalf("only the prompted player may decide")
	}
	if t.RITUnanimous && !p.InHand() {
		return illegalf("folded players cannot decide")
	}
	t.RITDisabled = true
	t.RITPrompt = nil
	t.RIT = nil
	return nil
}

// RunItTwiceNow executes every enabled run: each run reshuffles the
// undrawn remainder of the shared baseline fork with its derived seed
// and draws the missing board cards, so no two runs share a card. Each
// run distributes floor(pot/N) with the final run absorbing the
// remainder, per side pot.
func (t *Table) RunItTwiceNow() (*HandResult, error) {
	if !t.handRunning() {
		return nil, ErrNoActiveHand
	}
	if t.RIT == nil || !t.RIT.Enabled {
		return nil, illegalf("run-it-twice not enabled")
	}

	base, err := deck.Restore(t.RIT.Baseline, t.RIT.BaselineCursor)
	if err != nil {
		return nil, fmt.Errorf("restoring baseline deck: %w", err)
	}
	needed := t.rules.boardTarget() - len(t.Community)
	n := t.RIT.NumberOfRuns

	refund := t.refundUncalled()
	pots := BuildPots(t.Players)

	res := &HandResult{
		HandID:       t.HandID,
		Uncalled:     refund,
		Descriptions: make(map[string]string),
	}
	var allAwards []Award
	t.RIT.Boards = nil
	t.RIT.Results = nil

	for i := 0; i < n; i++ {
		rng, err := deck.NewRNGFromHex(t.RIT.Seeds[i])
		if err != nil {
			return nil, fmt.Errorf("run %d seed: %w", i+1, err)
		}
		base.Reshuffle(rng)
		drawn, err := base.Draw(needed)
		if err != nil {
			return nil, fmt.Errorf("run %d draw: %w", i+1, err)
		}
		board := append(append([]deck.Card{}, t.Community...), drawn...)

		runPots := runShare(pots, i, n)
		results, awards, err := t.distributeBoard(runPots, board)
		if err != nil {
			return nil, err
		}
		if err := checkPotInvariant(runPots, awards); err != nil {
			return nil, err
		}
		allAwards = append(allAwards, awards...)

		outcome := RunOutcome{BoardNumber: i + 1, Board: board, Winners: awards}
		var winners []string
		for _, pr := range results {
			outcome.PotAmount += pr.Amount
			winners = append(winners, pr.HighWinners...)
			winners = append(winners, pr.LowWinners...)
		}
		res.Runs = append(res.Runs, outcome)
		res.Pots = append(res.Pots, results...)
		t.RIT.Boards = append(t.RIT.Boards, board)
		t.RIT.Results = append(t.RIT.Results, winners)
		for id, desc := range t.handDescriptions(board) {
			res.Descriptions[fmt.Sprintf("run%d:%s", i+1, id)] = desc
		}
	}

	for _, a := range allAwards {
		if p, ok := t.Player(a.PlayerID); ok {
			p.Stack += a.Amount
		}
	}
	t.Pot = 0
	t.LastResult = res
	t.finishHand()
	return res, nil
}

// runShare scales each side pot to run i's share: floor(amount/n), with
// the last run taking the remainder.
func runShare(pots []SidePot, i, n int) []SidePot {
	out := make([]SidePot, len(pots))
	for j, p := range pots {
		share := p.Amount / n
		if i == n-1 {
			share = p.Amount - share*(n-1)
		}
		out[j] = SidePot{Amount: share, Eligible: p.Eligible}
	}
	return out
}
