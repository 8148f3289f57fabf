package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/feltserver/felt/internal/game"
)

// Gateway is the WebSocket front of the table fleet. It implements Sink
// so table broadcasters can address rooms without knowing about
// connections, and it routes inbound client messages to the Manager.
type Gateway struct {
	addr     string
	upgrader websocket.Upgrader
	manager  *Manager
	logger   *log.Logger

	mu     sync.RWMutex
	conns  map[*wsConn]bool
	rooms  map[string]map[*wsConn]bool
	tokens map[string]string // table|player reconnect tokens

	ctx    context.Context
	cancel context.CancelFunc
	srv    *http.Server
}

// NewGateway creates the gateway listening on addr.
func NewGateway(addr string, manager *Manager, logger *log.Logger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		manager: manager,
		logger:  logger.WithPrefix("gateway"),
		conns:   make(map[*wsConn]bool),
		rooms:   make(map[string]map[*wsConn]bool),
		tokens:  make(map[string]string),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start serves until Stop is called.
func (g *Gateway) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWebSocket)
	mux.HandleFunc("/health", g.handleHealth)

	g.srv = &http.Server{Addr: g.addr, Handler: mux}
	g.logger.Info("starting WebSocket gateway", "addr", g.addr)
	err := g.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the listener and every live connection.
func (g *Gateway) Stop() error {
	g.cancel()
	g.mu.Lock()
	for c := range g.conns {
		c.close()
	}
	g.mu.Unlock()
	if g.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return g.srv.Shutdown(ctx)
	}
	return nil
}

// envelope is the outbound wire frame.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Send implements Sink: fan a payload out to every subscriber of the
// room. Slow consumers are disconnected rather than blocking the
// writer.
func (g *Gateway) Send(room, event string, payload any) error {
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", event, err)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.rooms[room] {
		select {
		case c.send <- frame:
		default:
			g.logger.Warn("dropping slow consumer", "room", room, "player", c.playerID)
			go c.close()
		}
	}
	return nil
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("failed to upgrade connection", "error", err)
		return
	}
	c := &wsConn{
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, 64),
		done:    make(chan struct{}),
	}
	g.mu.Lock()
	g.conns[c] = true
	total := len(g.conns)
	g.mu.Unlock()
	g.logger.Info("client connected", "total", total)

	go c.writePump()
	go c.readPump()
}

// subscribe joins a connection to a delivery room.
func (g *Gateway) subscribe(c *wsConn, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[room] == nil {
		g.rooms[room] = make(map[*wsConn]bool)
	}
	g.rooms[room][c] = true
}

func (g *Gateway) unsubscribeAll(c *wsConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for room, members := range g.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(g.rooms, room)
		}
	}
	delete(g.conns, c)
}

// clientMessage is the inbound wire frame.
type clientMessage struct {
	Type     string `json:"type"`
	TableID  string `json:"tableId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"name,omitempty"`
	Seat     int    `json:"seat,omitempty"`
	Stack    int    `json:"stack,omitempty"`
	Action   string `json:"action,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Runs     int    `json:"runs,omitempty"`
	Accept   bool   `json:"accept,omitempty"`
	Street   string `json:"street,omitempty"`
}

// wsConn is one client connection. The write pump is the only writer
// of the underlying socket.
type wsConn struct {
	gateway *Gateway
	conn    *websocket.Conn
	send    chan []byte

	playerID string
	tableID  string

	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsConn) writePump() {
	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) readPump() {
	defer c.teardown()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply("ack", Ack{Success: false, Error: "malformed message", Code: CodeIllegalAction})
			continue
		}
		c.dispatch(msg)
	}
}

// teardown runs when the socket drops: a seated player enters the
// disconnect grace window instead of being removed outright.
func (c *wsConn) teardown() {
	g := c.gateway
	g.unsubscribeAll(c)
	c.close()
	if c.playerID != "" && c.tableID != "" {
		token, err := g.manager.Disconnect(c.tableID, c.playerID)
		if err == nil {
			g.mu.Lock()
			g.tokens[c.tableID+"|"+c.playerID] = token
			g.mu.Unlock()
			g.logger.Info("player entered grace window", "player", c.playerID, "table", c.tableID)
		}
	}
	g.logger.Info("client disconnected", "player", c.playerID)
}

func (c *wsConn) reply(event string, data any) {
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *wsConn) dispatch(msg clientMessage) {
	g := c.gateway
	switch msg.Type {
	case "join_table":
		ack := g.manager.Join(msg.TableID, msg.PlayerID, msg.Name, msg.Seat, msg.Stack)
		if ack.Success {
			c.playerID = msg.PlayerID
			c.tableID = msg.TableID
			g.subscribe(c, msg.TableID)
			g.subscribe(c, PrivateRoom(msg.TableID, msg.PlayerID))
		}
		c.reply("ack", ack)

	case "leave_table":
		ack := g.manager.Leave(c.tableID, c.playerID)
		if ack.Success {
			g.unsubscribeAll(c)
			g.mu.Lock()
			g.conns[c] = true // still connected, just unseated
			g.mu.Unlock()
			c.playerID = ""
			c.tableID = ""
		}
		c.reply("ack", ack)

	case "start_hand":
		c.reply("ack", g.manager.StartHand(c.tableID))

	case "player_action":
		action := game.Action{
			Type:     game.ActionType(msg.Action),
			PlayerID: c.playerID,
			Amount:   msg.Amount,
		}
		c.reply("ack", g.manager.SubmitAction(c.tableID, action))

	case "enable_run_it_twice":
		c.reply("ack", g.manager.RespondRIT(c.tableID, c.playerID, msg.Runs, msg.Accept))

	case "use_timebank":
		c.reply("ack", g.manager.UseTimeBank(c.tableID, c.playerID))

	case "rabbit_hunt_preview":
		ack, preview := g.manager.RabbitHunt(c.tableID, c.playerID, game.Stage(msg.Street))
		if !ack.Success {
			c.reply("ack", ack)
			return
		}
		c.reply("rabbit_preview", preview)

	case "reconnect":
		g.mu.Lock()
		token := g.tokens[msg.TableID+"|"+msg.PlayerID]
		delete(g.tokens, msg.TableID+"|"+msg.PlayerID)
		g.mu.Unlock()
		// Subscribe before reconciling so the reconcile frame and
		// everything after it are delivered in order.
		c.playerID = msg.PlayerID
		c.tableID = msg.TableID
		g.subscribe(c, msg.TableID)
		g.subscribe(c, PrivateRoom(msg.TableID, msg.PlayerID))
		ack, _ := g.manager.Reconnect(msg.TableID, msg.PlayerID, token)
		if !ack.Success {
			g.unsubscribeAll(c)
			g.mu.Lock()
			g.conns[c] = true
			g.mu.Unlock()
			c.playerID = ""
			c.tableID = ""
		}
		c.reply("ack", ack)

	case "get_state":
		view, err := g.manager.State(c.tableID, c.playerID)
		if err != nil {
			c.reply("ack", errAck(err))
			return
		}
		c.reply("state", view)

	default:
		c.reply("ack", Ack{Success: false, Error: "unknown message type: " + msg.Type, Code: CodeIllegalAction})
	}
}
