package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/feltserver/felt/internal/game"
)

// ErrSnapshotNotFound reports a table with no persisted snapshot.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// RITOutcomeRecord is one append-only run-it-twice result row, keyed by
// (handId, boardNumber).
type RITOutcomeRecord struct {
	HandID      string       `json:"handId"`
	BoardNumber int          `json:"boardNumber"`
	Community   []string     `json:"communityCards"`
	Winners     []game.Award `json:"winners"`
	PotAmount   int          `json:"potAmount"`
}

// Store is the persistence sink the engine writes through. Writes are
// best-effort from the table loop's point of view; failures never block
// hand progression.
type Store interface {
	SaveSnapshot(ctx context.Context, tableID string, snap *game.Snapshot) error
	LoadSnapshot(ctx context.Context, tableID string) (*game.Snapshot, error)
	DeleteSnapshot(ctx context.Context, tableID string) error
	SaveRITOutcome(ctx context.Context, rec RITOutcomeRecord) error
	Close() error
}

// SQLiteStore persists snapshots and RIT outcomes in a local SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			table_id       TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			data           BLOB NOT NULL,
			updated_at     TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS rit_outcomes (
			hand_id      TEXT NOT NULL,
			board_number INTEGER NOT NULL,
			community    TEXT NOT NULL,
			winners      TEXT NOT NULL,
			pot_amount   INTEGER NOT NULL,
			created_at   TIMESTAMP NOT NULL,
			PRIMARY KEY (hand_id, board_number)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrating store: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, tableID string, snap *game.Snapshot) error {
	blob, err := game.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (table_id, schema_version, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			data           = excluded.data,
			updated_at     = excluded.updated_at
	`, tableID, snap.SchemaVersion, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", tableID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, tableID string) (*game.Snapshot, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE table_id = ?`, tableID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", tableID, err)
	}
	return game.DecodeSnapshot(blob)
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, tableID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE table_id = ?`, tableID)
	return err
}

func (s *SQLiteStore) SaveRITOutcome(ctx context.Context, rec RITOutcomeRecord) error {
	community, err := json.Marshal(rec.Community)
	if err != nil {
		return err
	}
	winners, err := json.Marshal(rec.Winners)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO rit_outcomes
			(hand_id, board_number, community, winners, pot_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.HandID, rec.BoardNumber, community, winners, rec.PotAmount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving rit outcome %s/%d: %w", rec.HandID, rec.BoardNumber, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is an in-process Store for tests and ephemeral servers.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	outcomes  []RITOutcomeRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, tableID string, snap *game.Snapshot) error {
	blob, err := game.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.snapshots[tableID] = blob
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) LoadSnapshot(_ context.Context, tableID string) (*game.Snapshot, error) {
	m.mu.Lock()
	blob, ok := m.snapshots[tableID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return game.DecodeSnapshot(blob)
}

func (m *MemoryStore) DeleteSnapshot(_ context.Context, tableID string) error {
	m.mu.Lock()
	delete(m.snapshots, tableID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SaveRITOutcome(_ context.Context, rec RITOutcomeRecord) error {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, rec)
	m.mu.Unlock()
	return nil
}

// Outcomes returns a copy of the recorded RIT outcomes.
func (m *MemoryStore) Outcomes() []RITOutcomeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RITOutcomeRecord{}, m.outcomes...)
}

func (m *MemoryStore) Close() error { return nil }
