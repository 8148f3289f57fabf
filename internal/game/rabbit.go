package game

import (
	"github.com/feltserver/felt/internal/deck"
)

// RabbitPreview holds the cards a street would have produced and the
// deck suffix that would remain after dealing them.
type RabbitPreview struct {
	Street    Stage       `json:"street"`
	Cards     []deck.Card `json:"cards"`
	Remaining []deck.Card `json:"remaining"`
}

// streetBoardLen maps a community street to its total board length.
func streetBoardLen(s Stage) (int, bool) {
	switch s {
	case StageFlop:
		return 3, true
	case StageTurn:
		return 4, true
	case StageRiver:
		return 5, true
	}
	return 0, false
}

// RabbitHunt previews the community cards that would have been dealt
// through the given street, without moving the authoritative deck
// cursor. Dealing the street for real afterwards yields the same cards.
func (t *Table) RabbitHunt(street Stage) (*RabbitPreview, error) {
	if t.rules.Stud {
		return nil, illegalf("no community cards to preview in %s", t.Variant)
	}
	if t.deck == nil {
		return nil, ErrNoActiveHand
	}
	target, ok := streetBoardLen(street)
	if !ok {
		return nil, illegalf("unknown street %q", street)
	}
	if len(t.Community) >= target {
		return nil, illegalf("the %s is already dealt", street)
	}

	fork := t.deck.Fork()
	cards, err := fork.Draw(target - len(t.Community))
	if err != nil {
		return nil, err
	}
	t.RabbitPreviewed = true
	return &RabbitPreview{
		Street:    street,
		Cards:     cards,
		Remaining: fork.Remaining(),
	}, nil
}
