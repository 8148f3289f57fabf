package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feltserver/felt/internal/deck"
	"github.com/feltserver/felt/internal/game"
)

func TestBuildViewConcealsOtherHoleCards(t *testing.T) {
	tbl := newGameTable(t, []string{"A", "B", "C"}, 500)
	require.NoError(t, tbl.StartHand())

	view := BuildView(tbl, "A")
	for _, pv := range view.Players {
		if pv.ID == "A" {
			assert.Len(t, pv.HoleCards, 2, "audience sees own cards")
		} else {
			assert.Empty(t, pv.HoleCards, "other hands stay hidden")
		}
	}

	// The room-wide broadcast conceals everyone
	room := BuildView(tbl, "")
	for _, pv := range room.Players {
		assert.Empty(t, pv.HoleCards)
	}
	assert.Equal(t, tbl.Pot, room.Pot)
	assert.Equal(t, tbl.ActivePlayer, room.ActivePlayer)
}

func TestBuildViewRevealsInHandAtShowdown(t *testing.T) {
	tbl := newGameTable(t, []string{"A", "B", "C"}, 500)
	require.NoError(t, tbl.StartHand())

	folded, _ := tbl.Player("B")
	folded.Folded = true
	tbl.Stage = game.StageShowdown

	view := BuildView(tbl, "")
	for _, pv := range view.Players {
		if pv.ID == "B" {
			assert.Empty(t, pv.HoleCards, "folded hands are never exposed")
		} else {
			assert.Len(t, pv.HoleCards, 2)
		}
	}
}

func TestBuildViewStripsRITBaseline(t *testing.T) {
	tbl := newGameTable(t, []string{"A", "B"}, 500)
	require.NoError(t, tbl.StartHand())

	tbl.RIT = &game.RITState{
		Enabled:        true,
		NumberOfRuns:   2,
		Seeds:          []string{"aa", "bb"},
		Baseline:       deck.MustParseCards("As Kd Qh"),
		BaselineCursor: 3,
	}

	view := BuildView(tbl, "A")
	require.NotNil(t, view.RIT)
	assert.Nil(t, view.RIT.Baseline)
	assert.Zero(t, view.RIT.BaselineCursor)
	assert.Equal(t, []string{"aa", "bb"}, view.RIT.Seeds)

	// The live state keeps its baseline for the runout
	assert.Len(t, tbl.RIT.Baseline, 3)
	assert.Equal(t, 3, tbl.RIT.BaselineCursor)
}

func TestBuildViewCopiesCommunity(t *testing.T) {
	tbl := newGameTable(t, []string{"A", "B"}, 500)
	require.NoError(t, tbl.StartHand())
	tbl.Community = deck.MustParseCards("As Kd Qh")

	view := BuildView(tbl, "")
	view.Community[0] = deck.MustParseCards("2c")[0]
	assert.Equal(t, "As", tbl.Community[0].String())
}
