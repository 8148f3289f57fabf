package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feltserver/felt/internal/game"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "felt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStoreSnapshotRoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.LoadSnapshot(ctx, "t1")
			require.ErrorIs(t, err, ErrSnapshotNotFound)

			tbl := newGameTable(t, []string{"A", "B"}, 500)
			require.NoError(t, tbl.StartHand())
			snap := tbl.ToSnapshot()

			require.NoError(t, store.SaveSnapshot(ctx, "t1", snap))
			loaded, err := store.LoadSnapshot(ctx, "t1")
			require.NoError(t, err)

			want, err := game.EncodeSnapshot(snap)
			require.NoError(t, err)
			got, err := game.EncodeSnapshot(loaded)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))

			// Saving again overwrites in place
			require.NoError(t, tbl.Apply(game.Action{Type: game.ActionCall, PlayerID: tbl.ActivePlayer}))
			require.NoError(t, store.SaveSnapshot(ctx, "t1", tbl.ToSnapshot()))
			loaded, err = store.LoadSnapshot(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, snap.Table.HandID, loaded.Table.HandID)

			require.NoError(t, store.DeleteSnapshot(ctx, "t1"))
			_, err = store.LoadSnapshot(ctx, "t1")
			require.ErrorIs(t, err, ErrSnapshotNotFound)
		})
	}
}

func TestStoreRITOutcomes(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "felt.db"))
	require.NoError(t, err)
	defer store.Close()

	rec := RITOutcomeRecord{
		HandID:      "t1#7",
		BoardNumber: 1,
		Community:   []string{"As", "Kd", "Qh", "Jc", "Ts"},
		Winners:     []game.Award{{PlayerID: "A", Amount: 500}},
		PotAmount:   500,
	}
	require.NoError(t, store.SaveRITOutcome(ctx, rec))
	rec.BoardNumber = 2
	require.NoError(t, store.SaveRITOutcome(ctx, rec))

	// Outcomes are append-only: a duplicate key is ignored, not an error
	require.NoError(t, store.SaveRITOutcome(ctx, rec))

	var count int
	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM rit_outcomes WHERE hand_id = ?`, "t1#7").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMemoryStoreOutcomes(t *testing.T) {
	store := NewMemoryStore()
	rec := RITOutcomeRecord{HandID: "t1#1", BoardNumber: 1, PotAmount: 100}
	require.NoError(t, store.SaveRITOutcome(context.Background(), rec))
	require.NoError(t, store.SaveRITOutcome(context.Background(), rec))
	assert.Len(t, store.Outcomes(), 2)
}
