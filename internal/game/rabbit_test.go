package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitHuntMatchesRealDeal(t *testing.T) {
	tbl := newTestTable(t, Config{}, 300, 300)
	require.NoError(t, tbl.StartHand())

	flop, err := tbl.RabbitHunt(StageFlop)
	require.NoError(t, err)
	require.Len(t, flop.Cards, 3)
	river, err := tbl.RabbitHunt(StageRiver)
	require.NoError(t, err)
	require.Len(t, river.Cards, 5)
	assert.Equal(t, flop.Cards, river.Cards[:3], "previews share the deck cursor")
	assert.True(t, tbl.RabbitPreviewed)

	// Play the hand out; the dealt board matches the preview exactly
	for !tbl.HandResolved {
		id := tbl.ActivePlayer
		p, _ := tbl.Player(id)
		if tbl.CurrentBet > p.CurrentBet {
			require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: id}))
		} else {
			require.NoError(t, tbl.Apply(Action{Type: ActionCheck, PlayerID: id}))
		}
	}
	assert.Equal(t, river.Cards, tbl.Community)
}

func TestRabbitHuntDoesNotMoveCursor(t *testing.T) {
	tbl := newTestTable(t, Config{}, 300, 300)
	require.NoError(t, tbl.StartHand())

	before := tbl.deck.DrawnCount()
	_, err := tbl.RabbitHunt(StageTurn)
	require.NoError(t, err)
	assert.Equal(t, before, tbl.deck.DrawnCount())
}

func TestRabbitHuntRejectsDealtStreet(t *testing.T) {
	tbl := newTestTable(t, Config{}, 300, 300)
	require.NoError(t, tbl.StartHand())

	// Check through to the flop
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: tbl.ActivePlayer}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCheck, PlayerID: tbl.ActivePlayer}))
	require.Equal(t, StageFlop, tbl.Stage)

	var illegal *IllegalActionError
	_, err := tbl.RabbitHunt(StageFlop)
	assert.ErrorAs(t, err, &illegal)
	_, err = tbl.RabbitHunt(StageTurn)
	assert.NoError(t, err)
	_, err = tbl.RabbitHunt("fourth")
	assert.ErrorAs(t, err, &illegal)
}

func TestRabbitHuntUnavailableForStud(t *testing.T) {
	tbl := newTestTable(t, Config{Variant: SevenStud}, 300, 300)
	require.NoError(t, tbl.StartHand())
	_, err := tbl.RabbitHunt(StageFlop)
	assert.Error(t, err)
}
