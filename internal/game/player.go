package game

import "github.com/feltserver/felt/internal/deck"

// Player represents a seated player within a hand
type Player struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Seat        int         `json:"seat"`
	Stack       int         `json:"stack"`
	CurrentBet  int         `json:"currentBet"` // committed in the current betting round
	HandBet     int         `json:"handBet"`    // committed across the whole hand
	HoleCards   []deck.Card `json:"holeCards,omitempty"`
	DownCards   []deck.Card `json:"downCards,omitempty"` // stud only
	UpCards     []deck.Card `json:"upCards,omitempty"`   // stud only
	HasActed    bool        `json:"hasActed"`
	Folded      bool        `json:"folded"`
	AllIn       bool        `json:"allIn"`
	TimeBankMs  int64       `json:"timeBankMs"`
}

// InHand reports whether the player is still contesting the pot
func (p *Player) InHand() bool {
	return !p.Folded
}

// CanAct reports whether the player can take a voluntary action
func (p *Player) CanAct() bool {
	return !p.Folded && !p.AllIn
}

// commit moves up to amount chips from the stack into the current bet,
// marking the player all-in when the stack empties
func (p *Player) commit(amount int) int {
	if amount > p.Stack {
		amount = p.Stack
	}
	p.Stack -= amount
	p.CurrentBet += amount
	p.HandBet += amount
	if p.Stack == 0 {
		p.AllIn = true
	}
	return amount
}

// allCards returns every card the player holds, for showdown evaluation
func (p *Player) allCards() []deck.Card {
	if len(p.DownCards) > 0 || len(p.UpCards) > 0 {
		out := make([]deck.Card, 0, len(p.DownCards)+len(p.UpCards))
		out = append(out, p.DownCards...)
		out = append(out, p.UpCards...)
		return out
	}
	return p.HoleCards
}

// resetForHand clears per-hand state; the stack and time bank persist
func (p *Player) resetForHand() {
	p.CurrentBet = 0
	p.HandBet = 0
	p.HoleCards = nil
	p.DownCards = nil
	p.UpCards = nil
	p.HasActed = false
	p.Folded = false
	p.AllIn = false
}

// resetForRound clears per-round state at a street transition
func (p *Player) resetForRound() {
	p.CurrentBet = 0
	p.HasActed = false
}
