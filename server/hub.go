package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/messages"
	"github.com/room4-2/OpenInterpret/metrics"
	"github.com/room4-2/OpenInterpret/session"
	"github.com/room4-2/OpenInterpret/transcript"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
)

// Hub fans session events out to every connected UI client. It implements
// session.Listener and never blocks the caller.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	clients   map[*client]struct{}
	sessionID string
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		metrics: m,
		clients: make(map[*client]struct{}),
	}
}

// SetSessionID tags outgoing messages.
func (h *Hub) SetSessionID(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionID = id
}

func (h *Hub) id() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionID
}

// StatusChanged implements session.Listener.
func (h *Hub) StatusChanged(st session.Status) {
	h.Broadcast(messages.NewStatusMessage(h.id(), statusPayload(st)))
}

// Partial implements session.Listener.
func (h *Hub) Partial(role transcript.Role, text string) {
	h.Broadcast(messages.NewPartialMessage(h.id(), role, text))
}

// Turn implements session.Listener.
func (h *Hub) Turn(t transcript.Turn) {
	h.Broadcast(messages.NewTurnMessage(h.id(), t))
}

// Level forwards microphone loudness. It is called from the capture stage.
func (h *Hub) Level(l audio.Level) {
	h.Broadcast(messages.NewLevelMessage(l.RMS, l.Peak))
}

// Broadcast encodes msg once and queues it for every client.
func (h *Hub) Broadcast(msg *messages.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	data, err := msg.Encode()
	if err != nil {
		h.logger.Error("❌ Failed to encode message", "type", msg.Type, "error", err)
		return
	}
	for c := range h.clients {
		c.queue(data)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// join registers c and queues its snapshot while broadcasts are held off, so
// the snapshot comes first and nothing published after it is missed.
func (h *Hub) join(c *client, snapshot func() []byte) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	c.queue(snapshot())
	h.mu.Unlock()
	h.metrics.SetUIClients(n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetUIClients(n)
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
	h.metrics.SetUIClients(0)
}

func statusPayload(st session.Status) messages.StatusPayload {
	return messages.StatusPayload{
		Status:      string(st.State),
		Message:     st.Error,
		Attempt:     st.Attempt,
		MaxAttempts: st.MaxAttempts,
		Language:    st.Language,
	}
}

// client is one UI websocket connection.
type client struct {
	conn      *websocket.Conn
	writeChan chan []byte
	closeChan chan struct{}
	keepAlive time.Duration
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func newClient(conn *websocket.Conn, keepAlive time.Duration, logger *slog.Logger) *client {
	return &client{
		conn:      conn,
		writeChan: make(chan []byte, writeBufferSize),
		closeChan: make(chan struct{}),
		keepAlive: keepAlive,
		logger:    logger,
	}
}

func (c *client) queue(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.writeChan <- data:
	default:
		// Queue full, drop message
		c.logger.Debug("UI client queue full, dropping message")
	}
}

func (c *client) writePump() {
	var ping <-chan time.Time
	if c.keepAlive > 0 {
		ticker := time.NewTicker(c.keepAlive)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() {
		// Send close message before exiting
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closeChan:
			return
		case <-ping:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data := <-c.writeChan:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			n := len(c.writeChan)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.writeChan); err != nil {
					return
				}
			}
		}
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.closeChan)
}
