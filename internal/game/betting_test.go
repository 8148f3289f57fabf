package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionValidation(t *testing.T) {
	tbl := newTestTable(t, Config{}, 500, 500, 500)
	require.NoError(t, tbl.StartHand())

	// A is the dealer and first to act facing the big blind
	assert.ErrorIs(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}), ErrNotYourTurn)
	assert.ErrorIs(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "zz"}), ErrPlayerNotFound)

	var illegal *IllegalActionError
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionCheck, PlayerID: "A"}), &illegal)
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionBet, PlayerID: "A", Amount: 50}), &illegal)
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 15}), &illegal,
		"raise must reach current bet plus min-raise")
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 600}), &illegal,
		"cannot wager more than the stack")

	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 30}))
	assert.Equal(t, 30, tbl.CurrentBet)
	assert.Equal(t, 20, tbl.MinRaise, "min-raise tracks the last full raise")
}

func TestMinRaiseEscalates(t *testing.T) {
	tbl := newTestTable(t, Config{}, 1000, 1000, 1000)
	require.NoError(t, tbl.StartHand())

	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 30}))
	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "B", Amount: 90}))
	assert.Equal(t, 60, tbl.MinRaise)

	var illegal *IllegalActionError
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "C", Amount: 120}), &illegal)
	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "C", Amount: 150}))
}

func TestShortAllInRaiseDoesNotReopenAction(t *testing.T) {
	tbl := newTestTable(t, Config{}, 1000, 130, 1000)
	require.NoError(t, tbl.StartHand())

	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 100}))
	// B's all-in to 130 is a raise of 30, below the min-raise of 90
	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "B", Amount: 130}))
	require.True(t, tbl.Players[1].AllIn)
	assert.Equal(t, 90, tbl.MinRaise, "short all-in leaves the min-raise unchanged")

	// C never acted and may still raise
	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "C", Amount: 260}))

	// A may call or fold, but the short all-in did not re-open raising...
	// C's full raise did, so A can raise again now.
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "A"}))
	assert.Equal(t, StageFlop, tbl.Stage)
}

func TestShortAllInBlocksMatchedPlayerRaise(t *testing.T) {
	tbl := newTestTable(t, Config{}, 1000, 1000, 130)
	require.NoError(t, tbl.StartHand())

	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 100}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}))
	// C shoves 130: a raise of 30 against a min-raise of 90
	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "C", Amount: 130}))

	var illegal *IllegalActionError
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 300}), &illegal,
		"matched players may only call the short all-in")
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "A"}))
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "B", Amount: 300}), &illegal)
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}))

	assert.Equal(t, StageFlop, tbl.Stage)
}

func TestAllInBelowTableBetMustCall(t *testing.T) {
	tbl := newTestTable(t, Config{}, 1000, 1000, 50)
	require.NoError(t, tbl.StartHand())

	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 200}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}))

	// C's whole stack is below the bet: shoving it is not a raise and
	// must never pull the table bet down
	var illegal *IllegalActionError
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "C", Amount: 50}), &illegal)
	assert.Equal(t, 200, tbl.CurrentBet)
	assert.Equal(t, "C", tbl.ActivePlayer)
	assert.NotContains(t, tbl.LegalActions("C"), ActionRaise)

	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "C"}))
	c := tbl.Players[2]
	assert.True(t, c.AllIn)
	assert.Equal(t, 50, c.CurrentBet)
	assert.Equal(t, 200, tbl.CurrentBet, "table bet is monotone within the round")
	assert.Equal(t, StageFlop, tbl.Stage, "matched players and the all-in close the round")
}

func TestPotLimitCapsWagers(t *testing.T) {
	tbl := newTestTable(t, Config{Mode: PotLimit}, 1000, 1000, 1000)
	require.NoError(t, tbl.StartHand())

	// Preflop pot raise: call 10 + (blinds 15 + call 10) = 35
	var illegal *IllegalActionError
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 36}), &illegal)
	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 35}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "C"}))

	// Postflop: pot 105, a bet may not exceed it
	require.Equal(t, StageFlop, tbl.Stage)
	assert.ErrorAs(t, tbl.Apply(Action{Type: ActionBet, PlayerID: "B", Amount: 106}), &illegal)
	require.NoError(t, tbl.Apply(Action{Type: ActionBet, PlayerID: "B", Amount: 105}))
}

func TestLegalActions(t *testing.T) {
	tbl := newTestTable(t, Config{}, 500, 500, 500)
	require.NoError(t, tbl.StartHand())

	assert.ElementsMatch(t, []ActionType{ActionFold, ActionCall, ActionRaise},
		tbl.LegalActions("A"))
	assert.Empty(t, tbl.LegalActions("B"), "not B's turn")

	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "A"}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}))
	assert.ElementsMatch(t, []ActionType{ActionFold, ActionCheck, ActionRaise},
		tbl.LegalActions("C"), "big blind may check or raise the limpers")
}

func TestAutoActionPrefersCheck(t *testing.T) {
	tbl := newTestTable(t, Config{}, 500, 500, 500)
	require.NoError(t, tbl.StartHand())

	assert.Equal(t, ActionFold, tbl.AutoAction("A").Type, "facing the blind")
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "A"}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}))
	assert.Equal(t, ActionCheck, tbl.AutoAction("C").Type, "big blind has matched")
}

func TestCallCapsAtStack(t *testing.T) {
	tbl := newTestTable(t, Config{}, 1000, 40, 1000)
	require.NoError(t, tbl.StartHand())

	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 200}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}))
	b := tbl.Players[1]
	assert.True(t, b.AllIn)
	assert.Equal(t, 40, b.CurrentBet, "call is capped at the remaining stack")
	assert.Equal(t, 0, b.Stack)
}
