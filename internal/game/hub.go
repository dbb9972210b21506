package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"crashcore/internal/logging"
	"crashcore/internal/ratelimit"
)

const (
	pongWait   = 15 * time.Second
	pingPeriod = pongWait - 2*time.Second
	writeWait  = 10 * time.Second
	outboxSize = 16
)

// Client is one connected socket, the Broadcast Fabric's unit of delivery
// (spec §4.6). Grounded on hub.go's Client, extended with the Session it
// represents, a buffered outbox and a 15s heartbeat.
type Client struct {
	conn    *websocket.Conn
	session *Session

	outbox chan []byte
	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, session *Session) *Client {
	return &Client{
		conn:    conn,
		session: session,
		outbox:  make(chan []byte, outboxSize),
	}
}

// enqueue never blocks when the client is slow: with the outbox full, a
// non-terminal frame is dropped, while a terminal frame (connected/
// betPlaced/cashedOut/error) displaces the oldest buffered frame.
func (c *Client) enqueue(payload []byte, terminal bool) {
	select {
	case c.outbox <- payload:
		return
	default:
	}
	if !terminal {
		return
	}
	select {
	case <-c.outbox:
	default:
	}
	select {
	case c.outbox <- payload:
	default:
	}
}

// writePump drains the outbox and drives the ping heartbeat; it owns the
// connection's write side exclusively (gorilla/websocket forbids
// concurrent writers).
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case payload, ok := <-c.outbox:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) closeOutbox() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

// Hub is the Broadcast Fabric (spec §4.6): it fans a single public frame out
// to every session per tick and a personal overlay out to one session at a
// time, and doubles as the Session Registry, evicting a session's prior
// socket on reconnect. Grounded on hub.go's register/unregister/broadcast
// loop, generalized to split-payload delivery and per-session buffering.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // sessionID -> client
	byUser  map[string]string  // userID -> sessionID, authenticated sessions only
	limiter *ratelimit.Registry
	engine  *Engine
	log     *logging.Logger
}

// NewHub builds a Hub. messagesPerSecond/burst size the per-session inbound
// rate limiter (spec §4.6: 10 msg/s).
func NewHub(messagesPerSecond, burst int, log *logging.Logger) *Hub {
	return &Hub{
		clients: map[string]*Client{},
		byUser:  map[string]string{},
		limiter: ratelimit.New(messagesPerSecond, burst),
		log:     log,
	}
}

// SetEngine wires the Engine the Hub notifies on reconnect so a live wager
// can be re-keyed onto the new session (two-step, same-package wiring,
// mirroring Engine.SetArbiter — Hub and Engine reference each other and
// both live in this package).
func (h *Hub) SetEngine(e *Engine) { h.engine = e }

// Attach registers a new connection, replacing any existing socket for the
// same authenticated user (spec §4.6: reconnect-replaces-old-session) and
// asking the Engine to carry any live wager forward onto the new session ID.
func (h *Hub) Attach(conn *websocket.Conn, session *Session) *Client {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	client := newClient(conn, session)
	if conn != nil {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	h.mu.Lock()
	var prevID string
	var evicted bool
	if session.Authenticated {
		if id, ok := h.byUser[session.UserID]; ok {
			if prev, ok := h.clients[id]; ok {
				delete(h.clients, id)
				go prev.conn.Close()
				prevID, evicted = id, true
			}
		}
		h.byUser[session.UserID] = session.ID
	}
	h.clients[session.ID] = client
	h.mu.Unlock()

	if evicted && h.engine != nil {
		h.engine.reassignSession(prevID, session.ID, session.UserID)
	}

	go client.writePump()
	return client
}

// Sessions returns a snapshot of every attached session keyed by session ID,
// for the Engine's per-tick personal-overlay fanout.
func (h *Hub) Sessions() map[string]*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]*Session, len(h.clients))
	for id, c := range h.clients {
		out[id] = c.session
	}
	return out
}

// Detach removes a session's client and releases its rate limiter.
func (h *Hub) Detach(sessionID string) {
	h.mu.Lock()
	client, ok := h.clients[sessionID]
	if ok {
		delete(h.clients, sessionID)
		if client.session.Authenticated && h.byUser[client.session.UserID] == sessionID {
			delete(h.byUser, client.session.UserID)
		}
	}
	h.mu.Unlock()
	h.limiter.Drop(sessionID)
	if ok {
		client.closeOutbox()
	}
}

// Get returns the live client for a session, if any.
func (h *Hub) Get(sessionID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[sessionID]
	return c, ok
}

// Allow reports whether sessionID may send another inbound message right
// now (spec §4.6: 10 msg/s per session).
func (h *Hub) Allow(sessionID string) bool { return h.limiter.Allow(sessionID) }

// Count reports the number of connected sessions (diagnostics/admin).
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast fans a public frame out to every connected session, computed
// once per tick by the Engine (spec §4.6). Public frames, including those
// announcing a new betting phase or the crash, are never terminal: a session
// whose outbox is full does not receive them.
func (h *Hub) Broadcast(frame PublicFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		if h.log != nil {
			h.log.WithField("error", err).Warn("game: public frame marshal failed")
		}
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(payload, false)
	}
}

// Send delivers a per-session frame (personal overlay, betPlaced,
// cashedOut, error, warning) to exactly one session. Terminal frame kinds
// survive a full outbox by displacing the oldest queued frame.
func (h *Hub) Send(sessionID string, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		if h.log != nil {
			h.log.WithField("error", err).Warn("game: personal frame marshal failed")
		}
		return
	}
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	client.enqueue(payload, isTerminalFrame(frame))
}

func isTerminalFrame(frame any) bool {
	switch frame.(type) {
	case connectedFrame, cashedOutFrame, errorFrame, betPlacedFrame:
		return true
	default:
		return false
	}
}
