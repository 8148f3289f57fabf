package game

import (
	"fmt"
	"sort"
)

// SidePot is one contribution layer: its chips and the players who can
// win it. Folded players fund layers but are never eligible.
type SidePot struct {
	Amount   int      `json:"amount"`
	Eligible []string `json:"eligible"` // player ids in seat order
}

// Award is one player's share of a distributed pot.
type Award struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
}

// BuildPots layers the per-hand contributions into side pots, ascending
// by contribution level. The sum of all pots equals the sum of all
// contributions.
func BuildPots(players []*Player) []SidePot {
	levels := make([]int, 0, len(players))
	seen := make(map[int]bool)
	for _, p := range players {
		if p.HandBet > 0 && !seen[p.HandBet] {
			seen[p.HandBet] = true
			levels = append(levels, p.HandBet)
		}
	}
	sort.Ints(levels)

	var pots []SidePot
	prev := 0
	for _, level := range levels {
		pot := SidePot{}
		for _, p := range players {
			if p.HandBet < level {
				continue
			}
			pot.Amount += level - prev
			if p.InHand() {
				pot.Eligible = append(pot.Eligible, p.ID)
			}
		}
		// A layer with a single eligible player can merge upward; keep
		// it separate so the uncalled-bet return stays visible.
		pots = append(pots, pot)
		prev = level
	}
	return pots
}

// ReturnUncalled refunds the portion of the highest bet no other player
// matched, before pots are built. Returns the refunded amount.
func ReturnUncalled(players []*Player) int {
	var top *Player
	second := 0
	for _, p := range players {
		if top == nil || p.HandBet > top.HandBet {
			if top != nil && top.HandBet > second {
				second = top.HandBet
			}
			top = p
		} else if p.HandBet > second {
			second = p.HandBet
		}
	}
	if top == nil || top.HandBet <= second {
		return 0
	}
	refund := top.HandBet - second
	top.HandBet -= refund
	top.Stack += refund
	if top.Stack > 0 {
		top.AllIn = false
	}
	return refund
}

// splitEqually divides amount among winners, handing remainder chips
// one-by-one in the winners' given order.
func splitEqually(amount int, winners []string) []Award {
	if len(winners) == 0 {
		return nil
	}
	share := amount / len(winners)
	rem := amount % len(winners)
	out := make([]Award, 0, len(winners))
	for i, id := range winners {
		a := share
		if i < rem {
			a++
		}
		out = append(out, Award{PlayerID: id, Amount: a})
	}
	return out
}

// orderFromDealer sorts ids by seat position starting from the first
// seat clockwise of the dealer, the remainder-chip priority order.
func (t *Table) orderFromDealer(ids []string) []string {
	pos := make(map[string]int, len(ids))
	n := len(t.Players)
	for off := 1; off <= n; off++ {
		p := t.Players[(t.DealerPos+off)%n]
		pos[p.ID] = off
	}
	out := append([]string{}, ids...)
	sort.Slice(out, func(i, j int) bool { return pos[out[i]] < pos[out[j]] })
	return out
}

// checkPotInvariant verifies distributed chips match the pot totals.
// A failure here poisons the hand; callers must not continue.
func checkPotInvariant(pots []SidePot, awards []Award) error {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	paid := 0
	for _, a := range awards {
		paid += a.Amount
	}
	if total != paid {
		return fmt.Errorf("pot invariant violated: %d in pots, %d distributed", total, paid)
	}
	return nil
}
