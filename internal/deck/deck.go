package deck

import "fmt"

// Deck is a 52-card deck with a draw cursor. Cards are never removed;
// drawing advances the cursor, which lets callers fork the deck at its
// current position for run-it-twice baselines and rabbit-hunt previews
// without disturbing the authoritative cursor.
type Deck struct {
	cards  []Card
	cursor int
}

// New creates an unshuffled deck in universe order
func New() *Deck {
	return &Deck{cards: Universe()}
}

// NewShuffled creates a deck and shuffles it with the given RNG
func NewShuffled(rng *RNG) *Deck {
	d := New()
	d.Shuffle(rng)
	return d
}

// Shuffle performs a Fisher-Yates shuffle of the undrawn portion using rng
func (d *Deck) Shuffle(rng *RNG) {
	for i := len(d.cards) - 1; i > d.cursor; i-- {
		j := d.cursor + rng.Intn(i-d.cursor+1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top k cards, advancing the cursor.
// Subsequent draws continue from the same deck position.
func (d *Deck) Draw(k int) ([]Card, error) {
	if k < 0 || d.cursor+k > len(d.cards) {
		return nil, fmt.Errorf("cannot draw %d cards, %d remaining", k, d.RemainingCount())
	}
	cards := make([]Card, k)
	copy(cards, d.cards[d.cursor:d.cursor+k])
	d.cursor += k
	return cards, nil
}

// MustDraw draws k cards and panics if the deck is exhausted.
// Used where the state machine guarantees enough cards remain.
func (d *Deck) MustDraw(k int) []Card {
	cards, err := d.Draw(k)
	if err != nil {
		panic(err)
	}
	return cards
}

// Remaining returns a copy of the undrawn suffix without advancing the cursor
func (d *Deck) Remaining() []Card {
	out := make([]Card, len(d.cards)-d.cursor)
	copy(out, d.cards[d.cursor:])
	return out
}

// RemainingCount returns the number of undrawn cards
func (d *Deck) RemainingCount() int {
	return len(d.cards) - d.cursor
}

// DrawnCount returns the number of cards drawn so far
func (d *Deck) DrawnCount() int {
	return d.cursor
}

// Fork returns an independent deck positioned at the same cursor.
// Draws from the fork never affect the original.
func (d *Deck) Fork() *Deck {
	cards := make([]Card, len(d.cards))
	copy(cards, d.cards)
	return &Deck{cards: cards, cursor: d.cursor}
}

// Reshuffle shuffles only the undrawn suffix with the given RNG.
// Run-it-twice uses this on a fork so each run draws a board from the
// same undealt card set in a seed-determined order.
func (d *Deck) Reshuffle(rng *RNG) {
	for i := len(d.cards) - 1; i > d.cursor; i-- {
		j := d.cursor + rng.Intn(i-d.cursor+1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Restore rebuilds a deck from a previously serialised card order and cursor
func Restore(cards []Card, cursor int) (*Deck, error) {
	if cursor < 0 || cursor > len(cards) {
		return nil, fmt.Errorf("invalid deck cursor %d for %d cards", cursor, len(cards))
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return &Deck{cards: out, cursor: cursor}, nil
}

// Cards returns the full card order, drawn and undrawn. Used by snapshots.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
