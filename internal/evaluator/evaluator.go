package evaluator

import (
	"sort"

	"github.com/feltserver/felt/internal/deck"
)

// Selection controls how hole and community cards combine into a
// five-card hand. ExactHole > 0 means exactly that many hole cards must
// be used (2 for omaha); zero means any split is allowed, which covers
// hold'em and stud.
type Selection struct {
	ExactHole int
}

// Evaluate returns the best five-card high hand formable from the given
// hole and community cards under the selection rule. When fewer than
// five cards are known (early-street previews) the pool is padded with
// the lexicographically smallest unused cards so comparisons stay
// stable; the filler cards never appear in the result.
func Evaluate(hole, community []deck.Card, sel Selection) HandValue {
	if sel.ExactHole > 0 {
		return evaluateExact(hole, community, sel.ExactHole)
	}

	pool := make([]deck.Card, 0, len(hole)+len(community))
	pool = append(pool, hole...)
	pool = append(pool, community...)
	pool = pad(pool, 5)
	return bestOfPool(pool)
}

// EvaluateLow returns the best qualifying 8-or-better low, or nil when
// no five distinct ranks at or below eight can be formed. Aces play low.
func EvaluateLow(hole, community []deck.Card, sel Selection) *LowValue {
	if sel.ExactHole > 0 {
		return bestLowExact(hole, community, sel.ExactHole)
	}

	pool := make([]deck.Card, 0, len(hole)+len(community))
	pool = append(pool, hole...)
	pool = append(pool, community...)
	return lowFromPool(pool)
}

// evaluateExact enumerates exactly-k hole card choices against 5-k
// community choices, the omaha rule
func evaluateExact(hole, community []deck.Card, k int) HandValue {
	hole = pad(hole, k)
	community = padExcluding(community, 5-k, hole)

	best := HandValue{}
	first := true
	for _, hc := range combinations(hole, k) {
		for _, cc := range combinations(community, 5-k) {
			hand := append(append([]deck.Card{}, hc...), cc...)
			v := rank5(hand)
			if first || v.Compare(best) > 0 {
				best = v
				first = false
			}
		}
	}
	return best
}

func bestLowExact(hole, community []deck.Card, k int) *LowValue {
	var best *LowValue
	for _, hc := range combinations(hole, k) {
		for _, cc := range combinations(community, 5-k) {
			hand := append(append([]deck.Card{}, hc...), cc...)
			if low := qualifyLow(hand); low != nil {
				if best == nil || low.Compare(*best) < 0 {
					best = low
				}
			}
		}
	}
	return best
}

// bestOfPool picks the best five-card hand from a pool of five or more
func bestOfPool(pool []deck.Card) HandValue {
	if len(pool) == 5 {
		return rank5(pool)
	}
	best := HandValue{}
	first := true
	for _, hand := range combinations(pool, 5) {
		v := rank5(hand)
		if first || v.Compare(best) > 0 {
			best = v
			first = false
		}
	}
	return best
}

// lowFromPool picks the best qualifying low from any 5 of the pool
func lowFromPool(pool []deck.Card) *LowValue {
	// Distinct low ranks present (ace = 1)
	present := make(map[int]bool)
	for _, c := range pool {
		r := lowRank(c)
		if r <= 8 {
			present[r] = true
		}
	}
	if len(present) < 5 {
		return nil
	}
	ranks := make([]int, 0, len(present))
	for r := range present {
		ranks = append(ranks, r)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))
	// Lowest five distinct ranks are the tail of the descending list
	return &LowValue{Ranks: ranks[len(ranks)-5:]}
}

// qualifyLow checks a specific five-card hand for an 8-or-better low
func qualifyLow(hand []deck.Card) *LowValue {
	seen := make(map[int]bool, 5)
	ranks := make([]int, 0, 5)
	for _, c := range hand {
		r := lowRank(c)
		if r > 8 || seen[r] {
			return nil
		}
		seen[r] = true
		ranks = append(ranks, r)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))
	return &LowValue{Ranks: ranks}
}

func lowRank(c deck.Card) int {
	if c.Rank == deck.Ace {
		return 1
	}
	return int(c.Rank)
}

// rank5 evaluates exactly five cards
func rank5(hand []deck.Card) HandValue {
	counts := make(map[int]int, 5)
	suits := make(map[deck.Suit]int, 4)
	for _, c := range hand {
		counts[c.Value()]++
		suits[c.Suit]++
	}

	flush := len(suits) == 1

	// Distinct values descending
	values := make([]int, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	straightHigh := 0
	if len(values) == 5 {
		if values[0]-values[4] == 4 {
			straightHigh = values[0]
		} else if values[0] == 14 && values[1] == 5 && values[4] == 2 {
			// Wheel: A-5-4-3-2 plays as a five-high straight
			straightHigh = 5
		}
	}

	switch {
	case flush && straightHigh == 14:
		return HandValue{Cat: RoyalFlush, Kickers: []int{14}}
	case flush && straightHigh > 0:
		return HandValue{Cat: StraightFlush, Kickers: []int{straightHigh}}
	}

	// Group values by multiplicity, higher counts first, then higher ranks
	type group struct{ value, count int }
	groups := make([]group, 0, len(counts))
	for v, n := range counts {
		groups = append(groups, group{v, n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].value > groups[j].value
	})

	kickers := make([]int, 0, 5)
	for _, g := range groups {
		kickers = append(kickers, g.value)
	}

	switch {
	case groups[0].count == 4:
		return HandValue{Cat: Quads, Kickers: kickers}
	case groups[0].count == 3 && groups[1].count == 2:
		return HandValue{Cat: FullHouse, Kickers: kickers}
	case flush:
		return HandValue{Cat: Flush, Kickers: values}
	case straightHigh > 0:
		return HandValue{Cat: Straight, Kickers: []int{straightHigh}}
	case groups[0].count == 3:
		return HandValue{Cat: Trips, Kickers: kickers}
	case groups[0].count == 2 && groups[1].count == 2:
		return HandValue{Cat: TwoPair, Kickers: kickers}
	case groups[0].count == 2:
		return HandValue{Cat: Pair, Kickers: kickers}
	default:
		return HandValue{Cat: HighCard, Kickers: values}
	}
}

// pad extends cards to n entries using the smallest unused cards
func pad(cards []deck.Card, n int) []deck.Card {
	return padExcluding(cards, n, nil)
}

// padExcluding pads like pad but also avoids the exclude set
func padExcluding(cards []deck.Card, n int, exclude []deck.Card) []deck.Card {
	if len(cards) >= n {
		return cards
	}
	used := make(map[deck.Card]bool, len(cards)+len(exclude))
	for _, c := range cards {
		used[c] = true
	}
	for _, c := range exclude {
		used[c] = true
	}
	out := append([]deck.Card{}, cards...)
	for _, c := range deck.Universe() {
		if len(out) >= n {
			break
		}
		if !used[c] {
			out = append(out, c)
			used[c] = true
		}
	}
	return out
}

// combinations returns all k-element subsets of cards
func combinations(cards []deck.Card, k int) [][]deck.Card {
	if k <= 0 || k > len(cards) {
		if k == 0 {
			return [][]deck.Card{{}}
		}
		return nil
	}
	var out [][]deck.Card
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		pick := make([]deck.Card, k)
		for i, j := range idx {
			pick[i] = cards[j]
		}
		out = append(out, pick)

		i := k - 1
		for i >= 0 && idx[i] == len(cards)-k+i {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
	return out
}
