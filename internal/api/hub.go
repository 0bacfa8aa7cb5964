package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// writeDeadline bounds a single WebSocket write.
	writeDeadline = 5 * time.Second

	// readDeadline is how long a client may stay silent, pongs included.
	readDeadline = 90 * time.Second

	// pingInterval is the keepalive interval (readDeadline / 3).
	pingInterval = 30 * time.Second

	// maxReadMessageSize limits incoming bridge messages.
	maxReadMessageSize = 64 * 1024

	// sendBuffer is the per-client queue length. A client that falls this
	// far behind is disconnected.
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Envelope is the message format in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client is one WebSocket connection.
type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans events out to every connected client.
//
// Each client has a writer goroutine that owns all writes to its
// connection, since gorilla/websocket does not allow concurrent writers.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	// onMessage handles inbound envelopes. It may return replies for the
	// sending client only.
	onMessage func(Envelope) []Envelope

	// onConnect returns the initial state sent to a new client.
	onConnect func() []Envelope
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log.With().Str("component", "hub").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client. Clients whose queue is full
// are dropped.
func (h *Hub) Broadcast(eventType string, payload any) {
	msg, err := encodeEnvelope(eventType, payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Msg("client too slow, disconnecting")
			delete(h.clients, c)
			c.close()
		}
	}
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	if h.onConnect != nil {
		for _, env := range h.onConnect() {
			h.queue(c, env)
		}
	}

	go h.writePump(c)
	h.readPump(c)
}

// queue sends env to one client.
func (h *Hub) queue(c *client, env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.log.Debug().Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxReadMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			h.queue(c, errorEnvelope("malformed message"))
			continue
		}
		if h.onMessage == nil {
			continue
		}
		for _, reply := range h.onMessage(env) {
			h.queue(c, reply)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug().Err(err).Msg("write failed")
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func encodeEnvelope(eventType string, payload any) ([]byte, error) {
	env, err := newEnvelope(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func newEnvelope(eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: raw}, nil
}

func errorEnvelope(msg string) Envelope {
	env, _ := newEnvelope(EventError, map[string]string{"error": msg})
	return env
}
