package server

import (
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/feltserver/felt/internal/game"
)

// seqEntropy yields a deterministic byte stream so shuffles and seeds
// are reproducible across runs.
type seqEntropy struct{ n byte }

func (e *seqEntropy) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = e.n
		e.n++
	}
	return len(p), nil
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newGameTable(t *testing.T, ids []string, stack int) *game.Table {
	t.Helper()
	tbl, err := game.NewTable(game.Config{
		ID:         "t1",
		Variant:    game.Holdem,
		SmallBlind: 5,
		BigBlind:   10,
	}, &seqEntropy{})
	require.NoError(t, err)
	for i, id := range ids {
		require.NoError(t, tbl.AddPlayer(id, "Player "+id, i, stack))
	}
	return tbl
}

type sinkEvent struct {
	Room    string
	Event   string
	Payload any
}

// recordSink collects everything the broadcaster delivers.
type recordSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *recordSink) Send(room, event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{Room: room, Event: event, Payload: payload})
	return nil
}

func (s *recordSink) all() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkEvent{}, s.events...)
}

func (s *recordSink) byEvent(name string) []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkEvent
	for _, e := range s.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// blockingSink holds every Send until released, to back the queue up.
type blockingSink struct {
	release chan struct{}
	inner   recordSink
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{})}
}

func (s *blockingSink) Send(room, event string, payload any) error {
	<-s.release
	return s.inner.Send(room, event, payload)
}
