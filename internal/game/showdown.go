package game

import (
	"github.com/feltserver/felt/internal/deck"
	"github.com/feltserver/felt/internal/evaluator"
)

// PotResult records how one side pot was distributed.
type PotResult struct {
	Amount      int      `json:"amount"`
	HighWinners []string `json:"highWinners"`
	LowWinners  []string `json:"lowWinners,omitempty"`
	Awards      []Award  `json:"awards"`
}

// RunOutcome is the result of one run-it-twice board.
type RunOutcome struct {
	BoardNumber int         `json:"boardNumber"`
	Board       []deck.Card `json:"communityCards"`
	PotAmount   int         `json:"potAmount"`
	Winners     []Award     `json:"winners"`
}

// HandResult summarises a resolved hand for broadcast and persistence.
type HandResult struct {
	HandID       string            `json:"handId"`
	Board        []deck.Card       `json:"board,omitempty"`
	WonByFold    bool              `json:"wonByFold"`
	Uncalled     *Award            `json:"uncalledReturn,omitempty"`
	Pots         []PotResult       `json:"pots"`
	Runs         []RunOutcome      `json:"runs,omitempty"`
	Descriptions map[string]string `json:"handDescriptions,omitempty"`
}

// resolveShowdown scores every contender against the board, distributes
// each side pot (splitting hi/lo where the variant calls for it) and
// applies the stack deltas.
func (t *Table) resolveShowdown() (*HandResult, error) {
	refund := t.refundUncalled()

	pots := BuildPots(t.Players)
	results, awards, err := t.distributeBoard(pots, t.Community)
	if err != nil {
		return nil, err
	}
	if err := checkPotInvariant(pots, awards); err != nil {
		return nil, err
	}
	for _, a := range awards {
		p, _ := t.Player(a.PlayerID)
		p.Stack += a.Amount
	}
	t.Pot = 0

	res := &HandResult{
		HandID:       t.HandID,
		Board:        append([]deck.Card{}, t.Community...),
		Uncalled:     refund,
		Pots:         results,
		Descriptions: t.handDescriptions(t.Community),
	}
	t.LastResult = res
	t.finishHand()
	return res, nil
}

func (t *Table) refundUncalled() *Award {
	var contenders []*Player
	for _, p := range t.Players {
		if p.HandBet > 0 {
			contenders = append(contenders, p)
		}
	}
	before := make(map[string]int, len(contenders))
	for _, p := range contenders {
		before[p.ID] = p.HandBet
	}
	amount := ReturnUncalled(contenders)
	if amount == 0 {
		return nil
	}
	t.Pot -= amount
	for _, p := range contenders {
		if p.HandBet != before[p.ID] {
			return &Award{PlayerID: p.ID, Amount: amount}
		}
	}
	return nil
}

// distributeBoard splits each side pot among the winners for the given
// board. Hi/Lo variants split 50/50 when a qualifying low exists among
// the pot's eligibles; an odd chip goes to the high side. Remainder
// chips within a side go one at a time to the earliest eligible seat
// clockwise of the dealer.
func (t *Table) distributeBoard(pots []SidePot, board []deck.Card) ([]PotResult, []Award, error) {
	sel := t.rules.Selection()

	highs := make(map[string]evaluator.HandValue)
	lows := make(map[string]*evaluator.LowValue)
	for _, p := range t.Players {
		if !p.InHand() {
			continue
		}
		highs[p.ID] = evaluator.Evaluate(p.allCards(), board, sel)
		if t.rules.HiLo {
			lows[p.ID] = evaluator.EvaluateLow(p.allCards(), board, sel)
		}
	}

	var results []PotResult
	var awards []Award
	for _, pot := range pots {
		if pot.Amount == 0 || len(pot.Eligible) == 0 {
			continue
		}
		hiWinners := bestHigh(pot.Eligible, highs)
		loWinners := bestLow(pot.Eligible, lows)

		pr := PotResult{Amount: pot.Amount, HighWinners: hiWinners, LowWinners: loWinners}
		if t.rules.HiLo && len(loWinners) > 0 {
			loHalf := pot.Amount / 2
			hiHalf := pot.Amount - loHalf // odd chip to the high side
			pr.Awards = append(pr.Awards, splitEqually(hiHalf, t.orderFromDealer(hiWinners))...)
			pr.Awards = append(pr.Awards, splitEqually(loHalf, t.orderFromDealer(loWinners))...)
		} else {
			pr.Awards = splitEqually(pot.Amount, t.orderFromDealer(hiWinners))
		}
		awards = append(awards, pr.Awards...)
		results = append(results, pr)
	}
	return results, awards, nil
}

func bestHigh(eligible []string, highs map[string]evaluator.HandValue) []string {
	var winners []string
	var best evaluator.HandValue
	for _, id := range eligible {
		v, ok := highs[id]
		if !ok {
			continue
		}
		if len(winners) == 0 {
			winners, best = []string{id}, v
			continue
		}
		switch v.Compare(best) {
		case 1:
			winners, best = []string{id}, v
		case 0:
			winners = append(winners, id)
		}
	}
	return winners
}

func bestLow(eligible []string, lows map[string]*evaluator.LowValue) []string {
	var winners []string
	var best *evaluator.LowValue
	for _, id := range eligible {
		v := lows[id]
		if v == nil {
			continue
		}
		if best == nil {
			winners, best = []string{id}, v
			continue
		}
		switch v.Compare(*best) {
		case -1:
			winners, best = []string{id}, v
		case 0:
			winners = append(winners, id)
		}
	}
	return winners
}

// handDescriptions names each contender's showdown hand for the prompt
// and result payloads.
func (t *Table) handDescriptions(board []deck.Card) map[string]string {
	sel := t.rules.Selection()
	out := make(map[string]string)
	for _, p := range t.Players {
		if !p.InHand() {
			continue
		}
		desc := evaluator.Evaluate(p.allCards(), board, sel).String()
		if t.rules.HiLo {
			if low := evaluator.EvaluateLow(p.allCards(), board, sel); low != nil {
				desc += " / low " + low.String()
			}
		}
		out[p.ID] = desc
	}
	return out
}
