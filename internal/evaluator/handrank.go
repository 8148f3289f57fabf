package evaluator

import (
	"fmt"
	"strings"
)

// Category is the coarse strength class of a five-card high hand.
// Higher is stronger.
type Category int

const (
	HighCard Category = iota + 1
	Pair
	TwoPair
	Trips
	Straight
	Flush
	FullHouse
	Quads
	StraightFlush
	RoyalFlush
)

// String returns the readable name of the category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case Trips:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case Quads:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// HandValue is an evaluated high hand: a category plus ordered kicker
// ranks for tie-breaking. Hands compare lexicographically on
// (Cat, Kickers).
type HandValue struct {
	Cat     Category
	Kickers []int
}

// Compare returns -1 if h is weaker than other, 0 if equal, 1 if stronger
func (h HandValue) Compare(other HandValue) int {
	if h.Cat != other.Cat {
		if h.Cat < other.Cat {
			return -1
		}
		return 1
	}
	for i := 0; i < len(h.Kickers) && i < len(other.Kickers); i++ {
		if h.Kickers[i] != other.Kickers[i] {
			if h.Kickers[i] < other.Kickers[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String returns a short description, e.g. "Two Pair, Ks and 9s"
func (h HandValue) String() string {
	name := func(v int) string {
		switch v {
		case 14:
			return "A"
		case 13:
			return "K"
		case 12:
			return "Q"
		case 11:
			return "J"
		case 10:
			return "T"
		default:
			return fmt.Sprintf("%d", v)
		}
	}

	switch h.Cat {
	case Pair:
		return fmt.Sprintf("Pair of %ss", name(h.Kickers[0]))
	case TwoPair:
		return fmt.Sprintf("Two Pair, %ss and %ss", name(h.Kickers[0]), name(h.Kickers[1]))
	case Trips:
		return fmt.Sprintf("Three of a Kind, %ss", name(h.Kickers[0]))
	case Straight:
		return fmt.Sprintf("Straight, %s high", name(h.Kickers[0]))
	case Flush:
		return fmt.Sprintf("Flush, %s high", name(h.Kickers[0]))
	case FullHouse:
		return fmt.Sprintf("Full House, %ss over %ss", name(h.Kickers[0]), name(h.Kickers[1]))
	case Quads:
		return fmt.Sprintf("Four of a Kind, %ss", name(h.Kickers[0]))
	case StraightFlush:
		return fmt.Sprintf("Straight Flush, %s high", name(h.Kickers[0]))
	case RoyalFlush:
		return "Royal Flush"
	default:
		return fmt.Sprintf("High Card %s", name(h.Kickers[0]))
	}
}

// LowValue is a qualifying ace-to-five low: five distinct ranks at or
// below eight, aces counting as one. Ranks are sorted descending so two
// lows compare lexicographically, lower being better.
type LowValue struct {
	Ranks []int
}

// Compare returns -1 if l is a better (lower) hand than other, 1 if
// worse, 0 if equal
func (l LowValue) Compare(other LowValue) int {
	for i := 0; i < len(l.Ranks) && i < len(other.Ranks); i++ {
		if l.Ranks[i] != other.Ranks[i] {
			if l.Ranks[i] < other.Ranks[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders the low as e.g. "8-6-4-2-A"
func (l LowValue) String() string {
	parts := make([]string, len(l.Ranks))
	for i, r := range l.Ranks {
		if r == 1 {
			parts[i] = "A"
		} else {
			parts[i] = fmt.Sprintf("%d", r)
		}
	}
	return strings.Join(parts, "-")
}
