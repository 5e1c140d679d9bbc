// Package websocket pushes realtime table changes to connected dashboard
// clients. It is a hub-and-spoke fanout: clients subscribe to table names and
// receive every change event applied to the matching snapshots, so open
// dashboards re-render without polling.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

// Event is one table change pushed to dashboard clients.
type Event struct {
	Table     string       `json:"table"`
	Action    string       `json:"action"` // INSERT, UPDATE, DELETE
	Row       supabase.Row `json:"row,omitempty"`
	OldRow    supabase.Row `json:"old_row,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// clientMessage is an inbound subscribe/unsubscribe request.
type clientMessage struct {
	Action string   `json:"action"`
	Tables []string `json:"tables"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client is one connected dashboard.
type client struct {
	id     string
	tables map[string]bool
	send   chan []byte
}

// Hub tracks connected dashboards and their table subscriptions.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		log:     logger.With().Str("component", "ws-hub").Logger(),
		clients: make(map[*client]bool),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) setTables(c *client, tables []string, subscribed bool) {
	h.mu.Lock()
	for _, table := range tables {
		if subscribed {
			c.tables[table] = true
		} else {
			delete(c.tables, table)
		}
	}
	h.mu.Unlock()
}

// Broadcast delivers an event to every client subscribed to its table.
// Slow clients are skipped rather than allowed to block the caller.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.tables[event.Table] {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("client", c.id).Msg("client buffer full, dropping event")
		}
	}
}

// BroadcastChange adapts a realtime change into a push event. Wire it as a
// livequery observer or directly onto a subscription feed.
func (h *Hub) BroadcastChange(change supabase.Change) {
	h.Broadcast(Event{
		Table:  change.Table,
		Action: string(change.Type),
		Row:    change.New,
		OldRow: change.Old,
	})
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns how many clients watch a table.
func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.tables[table] {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware owns origin policy.
	},
}

// Handler upgrades dashboard connections and runs their pumps.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.Connect)
}

// Connect upgrades the request and serves the client until it disconnects.
func (h *Handler) Connect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	h.Serve(ws)
	return nil
}

// Serve registers a connection and runs its read/write pumps. Exposed so
// tests can drive a fake Conn.
func (h *Handler) Serve(conn Conn) {
	cl := &client{
		id:     uuid.New().String(),
		tables: make(map[string]bool),
		send:   make(chan []byte, 256),
	}
	h.hub.register(cl)

	go h.writePump(cl, conn)
	h.readPump(cl, conn)
}

func (h *Handler) readPump(cl *client, conn Conn) {
	defer func() {
		h.hub.unregister(cl)
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}
		switch msg.Action {
		case "subscribe":
			h.hub.setTables(cl, msg.Tables, true)
		case "unsubscribe":
			h.hub.setTables(cl, msg.Tables, false)
		}
	}
}

func (h *Handler) writePump(cl *client, conn Conn) {
	for message := range cl.send {
		if err := conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			conn.Close()
			return
		}
	}
	conn.Close()
}
