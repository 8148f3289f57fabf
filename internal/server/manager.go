package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/feltserver/felt/internal/game"
)

// Manager owns every table runner in the process and routes client
// requests to them. Requests hold a read lock across the mailbox
// round-trip so Shutdown can fence the whole fleet with a write lock.
type Manager struct {
	store  Store
	sink   Sink
	recon  *ReconnectManager
	clock  quartz.Clock
	logger *log.Logger

	timers     TimerConfig
	revealGap  time.Duration
	maxPerSec  int
	maxHistory int

	group errgroup.Group

	mu     sync.RWMutex
	tables map[string]*tableRunner
	closed bool
}

// NewManager builds the fleet from configuration, restoring any table
// with a persisted snapshot. Pass a nil clock for the real one.
func NewManager(cfg *Config, store Store, sink Sink, clock quartz.Clock, logger *log.Logger) (*Manager, error) {
	if clock == nil {
		clock = quartz.NewReal()
	}
	timers, err := cfg.TimerConfig()
	if err != nil {
		return nil, err
	}
	revealGap, err := cfg.RevealGap()
	if err != nil {
		return nil, err
	}
	grace, err := cfg.GraceTimeout()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:      store,
		sink:       sink,
		recon:      NewReconnectManager(cfg.Reconnect.TokenSecret, grace, clock),
		clock:      clock,
		logger:     logger.WithPrefix("manager"),
		timers:     timers,
		revealGap:  revealGap,
		maxPerSec:  cfg.Broadcast.MaxUpdatesPerSecond,
		maxHistory: cfg.Reconnect.MaxHistorySize,
		tables:     make(map[string]*tableRunner),
	}
	for _, block := range cfg.Tables {
		if err := m.CreateTable(block); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CreateTable starts the runner for one table, resuming from a stored
// snapshot when one exists.
func (m *Manager) CreateTable(block TableBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errUnavailable
	}
	if _, ok := m.tables[block.Name]; ok {
		return fmt.Errorf("table %s already exists", block.Name)
	}

	table, err := m.loadOrCreate(block)
	if err != nil {
		return err
	}
	m.startRunnerLocked(table, block.AutoStart)
	return nil
}

func (m *Manager) loadOrCreate(block TableBlock) (*game.Table, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := m.store.LoadSnapshot(ctx, block.Name)
	switch {
	case err == nil:
		table, err := game.FromSnapshot(snap, nil)
		if err != nil {
			return nil, fmt.Errorf("restoring table %s: %w", block.Name, err)
		}
		m.logger.Info("table restored from snapshot", "table", block.Name, "hand", table.HandID)
		return table, nil
	case errors.Is(err, ErrSnapshotNotFound):
		return game.NewTable(block.GameConfig(), nil)
	default:
		return nil, fmt.Errorf("loading snapshot for %s: %w", block.Name, err)
	}
}

func (m *Manager) startRunnerLocked(table *game.Table, autoStart bool) {
	bc := NewBroadcaster(table.ID, m.sink, m.clock, m.logger, m.maxPerSec)
	runner := newTableRunner(table, m.logger, m.clock, m.timers, m.revealGap,
		autoStart, bc, m.recon, m.store, m.maxHistory)
	m.tables[table.ID] = runner
	m.group.Go(func() error {
		runner.run()
		return nil
	})
}

// Rehydrate replaces a poisoned table runner with a fresh one rebuilt
// from the last good snapshot.
func (m *Manager) Rehydrate(tableID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errUnavailable
	}
	old, ok := m.tables[tableID]
	if !ok {
		return errTableNotFound
	}
	done := make(chan struct{})
	old.mailbox <- shutdownMsg{done: done}
	<-done
	delete(m.tables, tableID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := m.store.LoadSnapshot(ctx, tableID)
	if err != nil {
		return fmt.Errorf("loading snapshot for %s: %w", tableID, err)
	}
	table, err := game.FromSnapshot(snap, nil)
	if err != nil {
		return fmt.Errorf("restoring table %s: %w", tableID, err)
	}
	m.startRunnerLocked(table, old.autoStart)
	m.logger.Info("table rehydrated", "table", tableID, "hand", table.HandID)
	return nil
}

// runnerFor resolves a table under the read lock. The caller must hold
// the read lock for the duration of the mailbox round-trip.
func (m *Manager) runnerFor(tableID string) (*tableRunner, error) {
	if m.closed {
		return nil, errUnavailable
	}
	r, ok := m.tables[tableID]
	if !ok {
		return nil, errTableNotFound
	}
	return r, nil
}

// SubmitAction routes a betting action to its table.
func (m *Manager) SubmitAction(tableID string, action game.Action) Ack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return errAck(err)
	}
	reply := make(chan Ack, 1)
	r.mailbox <- actionMsg{action: action, reply: reply}
	return <-reply
}

// StartHand deals the next hand on a table.
func (m *Manager) StartHand(tableID string) Ack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return errAck(err)
	}
	reply := make(chan Ack, 1)
	r.mailbox <- startHandMsg{reply: reply}
	return <-reply
}

// Join seats a player.
func (m *Manager) Join(tableID, playerID, name string, seat, stack int) Ack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return errAck(err)
	}
	reply := make(chan Ack, 1)
	r.mailbox <- joinMsg{playerID: playerID, name: name, seat: seat, stack: stack, reply: reply}
	return <-reply
}

// Leave removes a player; mid-hand the seat folds and is reclaimed
// after the hand.
func (m *Manager) Leave(tableID, playerID string) Ack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return errAck(err)
	}
	reply := make(chan Ack, 1)
	r.mailbox <- leaveMsg{playerID: playerID, reply: reply}
	return <-reply
}

// RespondRIT delivers a run-it-twice accept or decline.
func (m *Manager) RespondRIT(tableID, playerID string, runs int, accept bool) Ack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return errAck(err)
	}
	reply := make(chan Ack, 1)
	r.mailbox <- ritMsg{playerID: playerID, runs: runs, accept: accept, reply: reply}
	return <-reply
}

// UseTimeBank spends the player's full time bank on the current turn.
func (m *Manager) UseTimeBank(tableID, playerID string) Ack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return errAck(err)
	}
	reply := make(chan Ack, 1)
	r.mailbox <- timebankMsg{playerID: playerID, reply: reply}
	return <-reply
}

// RabbitHunt previews how an unreached street would have come, once
// the hand is resolved.
func (m *Manager) RabbitHunt(tableID, playerID string, street game.Stage) (Ack, *game.RabbitPreview) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return errAck(err), nil
	}
	reply := make(chan rabbitReply, 1)
	r.mailbox <- rabbitMsg{playerID: playerID, street: street, reply: reply}
	res := <-reply
	return res.ack, res.preview
}

// State returns the sanitised view for one player (or the public room
// view for an empty playerID).
func (m *Manager) State(tableID, playerID string) (TableView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return TableView{}, err
	}
	reply := make(chan TableView, 1)
	r.mailbox <- stateMsg{playerID: playerID, reply: reply}
	return <-reply, nil
}

// Disconnect records a dropped connection and returns the reconnect
// token for the grace window.
func (m *Manager) Disconnect(tableID, playerID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return "", err
	}
	reply := make(chan string, 1)
	r.mailbox <- disconnectMsg{playerID: playerID, reply: reply}
	return <-reply, nil
}

// Reconnect verifies a reconnect token and returns the reconciliation
// payload; the same payload is also pushed through the sink.
func (m *Manager) Reconnect(tableID, playerID, token string) (Ack, *ReconcilePayload) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.runnerFor(tableID)
	if err != nil {
		return errAck(err), nil
	}
	reply := make(chan reconnectReply, 1)
	r.mailbox <- reconnectMsg{playerID: playerID, token: token, reply: reply}
	res := <-reply
	return res.ack, res.payload
}

// Shutdown stops every table runner, persisting final snapshots, and
// refuses all requests afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	runners := make([]*tableRunner, 0, len(m.tables))
	for _, r := range m.tables {
		runners = append(runners, r)
	}
	m.mu.Unlock()

	for _, r := range runners {
		done := make(chan struct{})
		select {
		case r.mailbox <- shutdownMsg{done: done}:
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.group.Wait()
}
