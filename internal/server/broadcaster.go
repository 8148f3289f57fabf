package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/feltserver/felt/internal/game"
)

// Sink delivers (room, event, payload) triples to the transport. The
// room is either a table id for room-wide events or a private room from
// PrivateRoom. Sends may fail transiently; missed state is recovered
// through reconciliation.
type Sink interface {
	Send(room, event string, payload any) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(room, event string, payload any) error

func (f SinkFunc) Send(room, event string, payload any) error {
	return f(room, event, payload)
}

// PrivateRoom names the per-player delivery room.
func PrivateRoom(tableID, playerID string) string {
	return tableID + "/" + playerID
}

type outboundMsg struct {
	room      string
	event     string
	payload   any
	reconcile bool
}

// Broadcaster sequences and fans out state for one table. Sequencing
// and rate-limit state are touched only from the table loop; delivery
// happens on a writer goroutine behind a bounded queue that drops the
// oldest state update when the transport is slow, but never drops a
// reconcile.
type Broadcaster struct {
	tableID   string
	sink      Sink
	clock     quartz.Clock
	logger    *log.Logger
	maxPerSec int
	maxQueue  int

	seq  uint64
	sent []time.Time // state_update emissions in the sliding window

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []outboundMsg
	inFlight int
	closed   bool
}

// NewBroadcaster starts the writer goroutine for one table's stream.
func NewBroadcaster(tableID string, sink Sink, clock quartz.Clock, logger *log.Logger, maxPerSec int) *Broadcaster {
	b := &Broadcaster{
		tableID:   tableID,
		sink:      sink,
		clock:     clock,
		logger:    logger.WithPrefix("broadcast").With("table", tableID),
		maxPerSec: maxPerSec,
		maxQueue:  256,
	}
	b.cond = sync.NewCond(&b.mu)
	go b.writer()
	return b
}

// Sequence returns the latest sequenced state version.
func (b *Broadcaster) Sequence() uint64 {
	return b.seq
}

// Allow reports whether another state update fits the rate budget,
// without consuming it.
func (b *Broadcaster) Allow() bool {
	b.sweep(b.clock.Now())
	return len(b.sent) < b.maxPerSec
}

// StateUpdate sequences the table and fans the sanitised views out to
// the room and to each seated player. Returns errRateLimited, without
// consuming a sequence number, when the per-second cap is hit.
func (b *Broadcaster) StateUpdate(t *game.Table) (uint64, error) {
	now := b.clock.Now()
	b.sweep(now)
	if len(b.sent) >= b.maxPerSec {
		return 0, errRateLimited
	}
	b.sent = append(b.sent, now)
	b.seq++
	t.Sequence = b.seq

	b.enqueue(outboundMsg{
		room:  b.tableID,
		event: EventStateUpdate,
		payload: StateUpdatePayload{
			TableID: b.tableID, Sequence: b.seq, State: BuildView(t, ""),
		},
	})
	for _, p := range t.Players {
		b.enqueue(outboundMsg{
			room:  PrivateRoom(b.tableID, p.ID),
			event: EventStateUpdate,
			payload: StateUpdatePayload{
				TableID: b.tableID, Sequence: b.seq, State: BuildView(t, p.ID),
			},
		})
	}
	return b.seq, nil
}

// Reconcile sends a full-state recovery payload to one player. It is
// never dropped; enqueueing blocks if the queue is saturated.
func (b *Broadcaster) Reconcile(playerID string, payload ReconcilePayload) {
	b.mu.Lock()
	for len(b.pending) >= b.maxQueue && !b.closed {
		// Make room by discarding the oldest droppable message
		if !b.dropOneLocked() {
			b.cond.Wait()
		}
	}
	b.pending = append(b.pending, outboundMsg{
		room:      PrivateRoom(b.tableID, playerID),
		event:     EventReconcile,
		payload:   payload,
		reconcile: true,
	})
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Event emits a room-wide auxiliary event (timers, prompts, results).
func (b *Broadcaster) Event(event string, payload any) {
	b.enqueue(outboundMsg{room: b.tableID, event: event, payload: payload})
}

// EventTo emits an auxiliary event to a single player.
func (b *Broadcaster) EventTo(playerID, event string, payload any) {
	b.enqueue(outboundMsg{room: PrivateRoom(b.tableID, playerID), event: event, payload: payload})
}

// sweep drops rate counters older than one second.
func (b *Broadcaster) sweep(now time.Time) {
	cut := 0
	for cut < len(b.sent) && now.Sub(b.sent[cut]) >= time.Second {
		cut++
	}
	b.sent = b.sent[cut:]
}

func (b *Broadcaster) enqueue(msg outboundMsg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if len(b.pending) >= b.maxQueue {
		if !b.dropOneLocked() {
			return // queue is all reconciles; shed the new update instead
		}
	}
	b.pending = append(b.pending, msg)
	b.cond.Broadcast()
}

// dropOneLocked removes the oldest droppable message. Reports false
// when only reconciles remain.
func (b *Broadcaster) dropOneLocked() bool {
	for i, m := range b.pending {
		if !m.reconcile {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			b.logger.Warn("dropping stale update", "event", m.event, "room", m.room)
			return true
		}
	}
	return false
}

func (b *Broadcaster) writer() {
	for {
		b.mu.Lock()
		for len(b.pending) == 0 && !b.closed {
			b.cond.Wait()
		}
		if len(b.pending) == 0 && b.closed {
			b.mu.Unlock()
			return
		}
		msg := b.pending[0]
		b.pending = b.pending[1:]
		b.inFlight++
		b.cond.Broadcast()
		b.mu.Unlock()

		if err := b.sink.Send(msg.room, msg.event, msg.payload); err != nil {
			b.logger.Warn("send failed", "event", msg.event, "room", msg.room, "err", err)
		}

		b.mu.Lock()
		b.inFlight--
		b.cond.Broadcast()
		b.mu.Unlock()
	}
}

// Flush blocks until every queued message has been handed to the sink.
func (b *Broadcaster) Flush() {
	b.mu.Lock()
	for len(b.pending) > 0 || b.inFlight > 0 {
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// Close stops the writer after the queue drains.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
