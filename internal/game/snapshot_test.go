package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	tbl := newTestTable(t, Config{}, 400, 400, 400)
	require.NoError(t, tbl.StartHand())
	require.NoError(t, tbl.Apply(Action{Type: ActionRaise, PlayerID: "A", Amount: 40}))
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "B"}))

	blob, err := EncodeSnapshot(tbl.ToSnapshot())
	require.NoError(t, err)

	snap, err := DecodeSnapshot(blob)
	require.NoError(t, err)
	restored, err := FromSnapshot(snap, &seqEntropy{})
	require.NoError(t, err)

	assert.Equal(t, tbl.ID, restored.ID)
	assert.Equal(t, tbl.Stage, restored.Stage)
	assert.Equal(t, tbl.ActivePlayer, restored.ActivePlayer)
	assert.Equal(t, tbl.CurrentBet, restored.CurrentBet)
	assert.Equal(t, tbl.HandID, restored.HandID)
	require.Len(t, restored.Players, 3)
	for i, p := range tbl.Players {
		assert.Equal(t, p.Stack, restored.Players[i].Stack)
		assert.Equal(t, p.HoleCards, restored.Players[i].HoleCards)
		assert.Equal(t, p.CurrentBet, restored.Players[i].CurrentBet)
	}

	// The restored snapshot serialises identically
	blob2, err := EncodeSnapshot(restored.ToSnapshot())
	require.NoError(t, err)
	assert.JSONEq(t, string(blob), string(blob2))
}

func TestRestoredTableContinuesTheHand(t *testing.T) {
	tbl := newTestTable(t, Config{}, 400, 400, 400)
	require.NoError(t, tbl.StartHand())
	require.NoError(t, tbl.Apply(Action{Type: ActionCall, PlayerID: "A"}))

	blob, err := EncodeSnapshot(tbl.ToSnapshot())
	require.NoError(t, err)
	snap, err := DecodeSnapshot(blob)
	require.NoError(t, err)
	restored, err := FromSnapshot(snap, &seqEntropy{})
	require.NoError(t, err)

	require.NoError(t, restored.Apply(Action{Type: ActionCall, PlayerID: "B"}))
	require.NoError(t, restored.Apply(Action{Type: ActionCheck, PlayerID: "C"}))
	assert.Equal(t, StageFlop, restored.Stage)
	assert.Len(t, restored.Community, 3)
	assert.Equal(t, 1200, restored.TotalChips())
}

func TestSnapshotPreservesRITDeciderConvention(t *testing.T) {
	tbl := newTestTable(t, Config{RITDecider: DeciderStrongest}, 400, 400)
	require.NoError(t, tbl.StartHand())

	blob, err := EncodeSnapshot(tbl.ToSnapshot())
	require.NoError(t, err)
	snap, err := DecodeSnapshot(blob)
	require.NoError(t, err)
	assert.Equal(t, DeciderStrongest, snap.RITDecider)

	restored, err := FromSnapshot(snap, &seqEntropy{})
	require.NoError(t, err)
	assert.Equal(t, DeciderStrongest, restored.decider)

	// A snapshot predating the field falls back to the default
	legacy := tbl.ToSnapshot()
	legacy.RITDecider = ""
	restored, err = FromSnapshot(legacy, &seqEntropy{})
	require.NoError(t, err)
	assert.Equal(t, DeciderWeakest, restored.decider)
}

func TestSnapshotValidation(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"schemaVersion":1}`))
	assert.Error(t, err, "missing table state")

	_, err = DecodeSnapshot([]byte(`{"schemaVersion":1,"tableState":{"tableId":"","players":[]}}`))
	assert.Error(t, err, "empty table id")

	_, err = DecodeSnapshot([]byte(`{"schemaVersion":1,"tableState":{"tableId":"t1","variant":"holdem","smallBlind":5,"bigBlind":10}}`))
	assert.Error(t, err, "players missing")

	_, err = DecodeSnapshot([]byte(`{"schemaVersion":1,"tableState":{"tableId":"t1","variant":"holdem","smallBlind":0,"bigBlind":10,"players":[]},"deck":[]}`))
	assert.Error(t, err, "bad blinds")

	ok := []byte(`{"schemaVersion":1,"tableState":{"tableId":"t1","variant":"holdem","smallBlind":5,"bigBlind":10,"players":[]},"deck":[]}`)
	snap, err := DecodeSnapshot(ok)
	require.NoError(t, err)
	_, err = FromSnapshot(snap, nil)
	assert.NoError(t, err)
}

func TestSnapshotSurvivesJSONIndent(t *testing.T) {
	tbl := newTestTable(t, Config{}, 100, 100)
	require.NoError(t, tbl.StartHand())

	blob, err := json.MarshalIndent(tbl.ToSnapshot(), "", "  ")
	require.NoError(t, err)
	snap, err := DecodeSnapshot(blob)
	require.NoError(t, err)
	assert.Equal(t, tbl.HandID, snap.Table.HandID)
}
