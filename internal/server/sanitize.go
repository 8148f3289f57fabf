package server

import (
	"github.com/feltserver/felt/internal/deck"
	"github.com/feltserver/felt/internal/game"
)

// PlayerView is the sanitised projection of a seated player.
type PlayerView struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	Seat        int         `json:"seat"`
	Stack       int         `json:"stack"`
	CurrentBet  int         `json:"currentBet"`
	HandBet     int         `json:"handBet"`
	HoleCards   []deck.Card `json:"holeCards,omitempty"`
	DownCards   []deck.Card `json:"downCards,omitempty"`
	UpCards     []deck.Card `json:"upCards,omitempty"`
	HasActed    bool        `json:"hasActed"`
	Folded      bool        `json:"folded"`
	AllIn       bool        `json:"allIn"`
	TimeBankMs  int64       `json:"timeBankMs"`
}

// TableView is the sanitised projection of a table for one audience.
type TableView struct {
	TableID      string           `json:"tableId"`
	Variant      game.Variant     `json:"variant"`
	BettingMode  game.BettingMode `json:"bettingMode"`
	Stage        game.Stage       `json:"stage"`
	Players      []PlayerView     `json:"players"`
	ActivePlayer string           `json:"activePlayer"`
	Pot          int              `json:"pot"`
	Community    []deck.Card      `json:"communityCards"`
	CurrentBet   int              `json:"currentBet"`
	MinRaise     int              `json:"minRaise"`
	DealerPos    int              `json:"dealerPosition"`
	SmallBlind   int              `json:"smallBlind"`
	BigBlind     int              `json:"bigBlind"`
	HandID       string           `json:"handId"`
	HandResolved bool             `json:"handResolved"`
	RIT          *game.RITState   `json:"rit,omitempty"`
	RITPrompt    *game.RITPrompt  `json:"ritPrompt,omitempty"`
	Sequence     uint64           `json:"sequence"`
}

// revealAll reports whether concealed cards may be shown to everyone:
// at showdown, or once the hand is locked all-in and no decisions
// remain.
func revealAll(t *game.Table) bool {
	if t.Stage == game.StageShowdown {
		return true
	}
	return t.AllInLocked() && t.RITPrompt == nil
}

// BuildView projects the table for a single audience. Hole and down
// cards of other players are stripped unless a reveal condition holds;
// stud up-cards are always visible. An empty audience is the room-wide
// broadcast, which conceals every hand off-showdown.
func BuildView(t *game.Table, audience string) TableView {
	reveal := revealAll(t)
	view := TableView{
		TableID:      t.ID,
		Variant:      t.Variant,
		BettingMode:  t.Mode,
		Stage:        t.Stage,
		ActivePlayer: t.ActivePlayer,
		Pot:          t.Pot,
		Community:    append([]deck.Card{}, t.Community...),
		CurrentBet:   t.CurrentBet,
		MinRaise:     t.MinRaise,
		DealerPos:    t.DealerPos,
		SmallBlind:   t.SmallBlind,
		BigBlind:     t.BigBlind,
		HandID:       t.HandID,
		HandResolved: t.HandResolved,
		RIT:          sanitizeRIT(t.RIT),
		RITPrompt:    t.RITPrompt,
		Sequence:     t.Sequence,
	}
	for _, p := range t.Players {
		pv := PlayerView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			Stack:       p.Stack,
			CurrentBet:  p.CurrentBet,
			HandBet:     p.HandBet,
			HasActed:    p.HasActed,
			Folded:      p.Folded,
			AllIn:       p.AllIn,
			TimeBankMs:  p.TimeBankMs,
			UpCards:     append([]deck.Card{}, p.UpCards...),
		}
		if p.ID == audience || (reveal && p.InHand()) {
			pv.HoleCards = append([]deck.Card{}, p.HoleCards...)
			pv.DownCards = append([]deck.Card{}, p.DownCards...)
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

// sanitizeRIT strips the frozen deck baseline from broadcast state; the
// seeds and hash chain stay visible for client-side verification.
func sanitizeRIT(r *game.RITState) *game.RITState {
	if r == nil {
		return nil
	}
	out := *r
	out.Baseline = nil
	out.BaselineCursor = 0
	return &out
}
