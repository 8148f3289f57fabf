package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCard(t *testing.T) {
	tests := []struct {
		in   string
		rank Rank
		suit Suit
	}{
		{"As", Ace, Spades},
		{"Th", Ten, Hearts},
		{"2c", Two, Clubs},
		{"kd", King, Diamonds},
	}

	for _, tt := range tests {
		c, err := ParseCard(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.rank, c.Rank)
		assert.Equal(t, tt.suit, c.Suit)
	}

	_, err := ParseCard("Xx")
	assert.Error(t, err)
	_, err = ParseCard("A")
	assert.Error(t, err)
}

func TestCardString(t *testing.T) {
	assert.Equal(t, "As", NewCard(Ace, Spades).String())
	assert.Equal(t, "Td", NewCard(Ten, Diamonds).String())
	assert.Equal(t, "9c", MustParseCard("9c").String())
}

func TestUniverseHas52UniqueCards(t *testing.T) {
	cards := Universe()
	require.Len(t, cards, 52)

	seen := make(map[Card]bool)
	for _, c := range cards {
		assert.False(t, seen[c], "duplicate card %s", c)
		seen[c] = true
	}
}

func TestDrawAdvancesCursor(t *testing.T) {
	d := NewShuffled(NewRNG([]byte("draw-test")))

	first, err := d.Draw(2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 50, d.RemainingCount())

	second, err := d.Draw(3)
	require.NoError(t, err)
	for _, a := range first {
		for _, b := range second {
			assert.NotEqual(t, a, b, "draws must not overlap")
		}
	}
	assert.Equal(t, 47, d.RemainingCount())
	assert.Equal(t, 5, d.DrawnCount())
}

func TestDrawPastEnd(t *testing.T) {
	d := New()
	_, err := d.Draw(53)
	assert.Error(t, err)

	_, err = d.Draw(52)
	require.NoError(t, err)
	_, err = d.Draw(1)
	assert.Error(t, err)
}

func TestRemainingDoesNotAdvance(t *testing.T) {
	d := NewShuffled(NewRNG([]byte("peek-test")))
	d.MustDraw(10)

	snap := d.Remaining()
	require.Len(t, snap, 42)

	next := d.MustDraw(5)
	assert.Equal(t, snap[:5], next, "draw must continue from the snapshotted position")
}

func TestForkIsIndependent(t *testing.T) {
	d := NewShuffled(NewRNG([]byte("fork-test")))
	d.MustDraw(9)

	fork := d.Fork()
	forkCards := fork.MustDraw(5)
	assert.Equal(t, 9, d.DrawnCount(), "fork draws must not advance the original")

	cards := d.MustDraw(5)
	assert.Equal(t, forkCards, cards, "fork shares the original cursor position")
}

func TestShuffleIsSeedDeterministic(t *testing.T) {
	a := NewShuffled(NewRNG([]byte("seed-a")))
	b := NewShuffled(NewRNG([]byte("seed-a")))
	c := NewShuffled(NewRNG([]byte("seed-b")))

	assert.Equal(t, a.Cards(), b.Cards())
	assert.NotEqual(t, a.Cards(), c.Cards())
}

func TestReshuffleKeepsDrawnPrefix(t *testing.T) {
	d := NewShuffled(NewRNG([]byte("reshuffle")))
	drawn := d.MustDraw(12)

	fork := d.Fork()
	fork.Reshuffle(NewRNG([]byte("run-1")))

	assert.Equal(t, drawn, fork.Cards()[:12], "reshuffle must not disturb drawn cards")
	assert.ElementsMatch(t, d.Remaining(), fork.Remaining(), "reshuffle permutes the same undrawn set")
}

func TestRestoreRoundTrip(t *testing.T) {
	d := NewShuffled(NewRNG([]byte("restore")))
	d.MustDraw(7)

	restored, err := Restore(d.Cards(), d.DrawnCount())
	require.NoError(t, err)
	assert.Equal(t, d.Remaining(), restored.Remaining())

	_, err = Restore(d.Cards(), 99)
	assert.Error(t, err)
}
