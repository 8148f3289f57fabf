package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startTestGateway(t *testing.T) (string, *Manager) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Tables = []TableBlock{{Name: "t1", SmallBlind: 5, BigBlind: 10, AutoStart: true}}
	require.NoError(t, cfg.applyDefaults())
	cfg.Broadcast.MaxUpdatesPerSecond = 10000

	var gw *Gateway
	m, err := NewManager(cfg, NewMemoryStore(), SinkFunc(func(room, event string, payload any) error {
		return gw.Send(room, event, payload)
	}), nil, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	gw = NewGateway(addr, m, testLogger())
	go func() { _ = gw.Start() }()
	t.Cleanup(func() { _ = gw.Stop() })

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	return addr, m
}

func dialGateway(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readEvent reads frames until one matches the wanted event name.
func readEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Event == want {
			return frame.Data
		}
	}
}

func readAck(t *testing.T, conn *websocket.Conn) Ack {
	t.Helper()
	var ack Ack
	require.NoError(t, json.Unmarshal(readEvent(t, conn, "ack"), &ack))
	return ack
}

func TestGatewayJoinActionAndBroadcast(t *testing.T) {
	addr, _ := startTestGateway(t)

	alice := dialGateway(t, addr)
	send(t, alice, clientMessage{Type: "join_table", TableID: "t1", PlayerID: "A", Name: "Alice", Seat: 0, Stack: 500})
	require.True(t, readAck(t, alice).Success)

	bob := dialGateway(t, addr)
	send(t, bob, clientMessage{Type: "join_table", TableID: "t1", PlayerID: "B", Name: "Bob", Seat: 1, Stack: 500})
	require.True(t, readAck(t, bob).Success)

	// Bob's join auto-starts the hand; both receive sanitised state
	var view StateUpdatePayload
	require.NoError(t, json.Unmarshal(readEvent(t, alice, EventStateUpdate), &view))
	assert.Equal(t, "t1", view.TableID)

	// Heads-up: the dealer acts first and may fold to the blind
	send(t, alice, clientMessage{Type: "player_action", Action: "fold"})
	require.True(t, readAck(t, alice).Success)

	var result HandResultEvent
	require.NoError(t, json.Unmarshal(readEvent(t, bob, EventHandResult), &result))
	require.NotNil(t, result.Result)
	assert.True(t, result.Result.WonByFold)
}

func TestGatewayPrivateRoomSeesOwnCardsOnly(t *testing.T) {
	addr, _ := startTestGateway(t)

	alice := dialGateway(t, addr)
	send(t, alice, clientMessage{Type: "join_table", TableID: "t1", PlayerID: "A", Name: "Alice", Seat: 0, Stack: 500})
	require.True(t, readAck(t, alice).Success)

	bob := dialGateway(t, addr)
	send(t, bob, clientMessage{Type: "join_table", TableID: "t1", PlayerID: "B", Name: "Bob", Seat: 1, Stack: 500})
	require.True(t, readAck(t, bob).Success)

	// Find a state update that carries Alice's own hand
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "never saw a private state update")
		var view StateUpdatePayload
		require.NoError(t, json.Unmarshal(readEvent(t, alice, EventStateUpdate), &view))
		var mine, theirs []PlayerView
		for _, p := range view.State.Players {
			if p.ID == "A" {
				mine = append(mine, p)
			} else {
				theirs = append(theirs, p)
			}
		}
		require.Len(t, mine, 1)
		if len(mine[0].HoleCards) == 0 {
			continue // room-wide copy; wait for the private one
		}
		assert.Len(t, mine[0].HoleCards, 2)
		for _, p := range theirs {
			assert.Empty(t, p.HoleCards)
		}
		return
	}
}

func TestGatewayRejectsMalformedAndUnknown(t *testing.T) {
	addr, _ := startTestGateway(t)

	conn := dialGateway(t, addr)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	ack := readAck(t, conn)
	assert.False(t, ack.Success)
	assert.Equal(t, CodeIllegalAction, ack.Code)

	send(t, conn, clientMessage{Type: "warp_cards"})
	ack = readAck(t, conn)
	assert.False(t, ack.Success)
	assert.Contains(t, ack.Error, "unknown message type")
}
