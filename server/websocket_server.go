// Package server exposes the interpreter session to browser UIs over a
// websocket, plus health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/room4-2/OpenInterpret/config"
	"github.com/room4-2/OpenInterpret/messages"
	"github.com/room4-2/OpenInterpret/metrics"
	"github.com/room4-2/OpenInterpret/session"
	"github.com/room4-2/OpenInterpret/transcript"
)

// Controller is the session as seen by UI clients.
type Controller interface {
	Start()
	Stop()
	SetLanguage(code string) error
	Status() session.Status
	History() []transcript.Turn
	Partial() (input, output string)
	Languages() []config.Language
}

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub
	session    Controller
	config     *config.Config
	logger     *slog.Logger
}

func NewServerWebsocket(cfg *config.Config, hub *Hub, ctl Controller, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hub:     hub,
		session: ctl,
		config:  cfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    4 * 1024,
			WriteBufferSize:   64 * 1024, // turns may carry images
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				// Check allowed origins
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for connections
func (s *Server) Start() error {
	s.logger.Info("🚀 WebSocket server starting", "port", s.config.Port)
	s.logger.Info("📡 WebSocket endpoint", "url", fmt.Sprintf("ws://localhost:%d/ws", s.config.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("🛑 Shutting down server...")
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(64 * 1024)

	c := newClient(conn, s.config.KeepAlivePeriod, s.logger)
	s.hub.join(c, s.snapshot)
	s.logger.Info("✅ UI client connected", "remote", r.RemoteAddr, "clients", s.hub.Count())

	go c.writePump()
	s.readPump(c)

	s.hub.remove(c)
	c.close()
	s.logger.Info("🔌 UI client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) readPump(c *client) {
	if s.config.KeepAlivePeriod > 0 {
		wait := 2 * s.config.KeepAlivePeriod
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(wait))
		})
	} else {
		// the server's ReadTimeout deadline outlives the upgrade
		_ = c.conn.SetReadDeadline(time.Time{})
	}

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if s.config.KeepAlivePeriod > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.config.KeepAlivePeriod))
		}
		if messageType != websocket.TextMessage {
			c.queue(encode(messages.NewErrorMessage("", messages.ErrCodeInvalidMessage, "Only JSON text messages are accepted")))
			continue
		}
		if reply := s.handleClientMessage(data); reply != nil {
			c.queue(encode(reply))
		}
	}
}

// handleClientMessage applies one UI message and returns the direct reply,
// if any. Status changes reach every client through the hub.
func (s *Server) handleClientMessage(data []byte) *messages.ServerMessage {
	sessionID := s.session.Status().SessionID

	msg, err := messages.ParseClientMessage(data)
	if err != nil {
		return messages.NewErrorMessage(sessionID, messages.ErrCodeInvalidMessage, "Invalid message format")
	}

	switch msg.Type {
	case messages.TypeControl:
		p, err := msg.Control()
		if err != nil {
			return messages.NewErrorMessage(sessionID, messages.ErrCodeInvalidMessage, err.Error())
		}
		switch p.Action {
		case messages.ActionStart:
			s.logger.Info("▶️ Start requested")
			s.session.Start()
		case messages.ActionStop:
			s.logger.Info("⏹️ Stop requested")
			s.session.Stop()
		case messages.ActionPing:
			return messages.NewPongMessage(sessionID)
		default:
			return messages.NewErrorMessage(sessionID, messages.ErrCodeUnknownAction, fmt.Sprintf("Unknown action: %s", p.Action))
		}
	case messages.TypeConfig:
		p, err := msg.Config()
		if err != nil {
			return messages.NewErrorMessage(sessionID, messages.ErrCodeInvalidMessage, err.Error())
		}
		if err := s.session.SetLanguage(p.Language); err != nil {
			return messages.NewErrorMessage(sessionID, messages.ErrCodeUnknownLanguage, err.Error())
		}
	default:
		return messages.NewErrorMessage(sessionID, messages.ErrCodeInvalidMessage, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
	return nil
}

func (s *Server) snapshot() []byte {
	st := s.session.Status()
	in, out := s.session.Partial()
	return encode(messages.NewSnapshotMessage(st.SessionID, messages.SnapshotPayload{
		Status:        statusPayload(st),
		History:       s.session.History(),
		PartialInput:  in,
		PartialOutput: out,
		Languages:     s.session.Languages(),
	}))
}

func encode(msg *messages.ServerMessage) []byte {
	data, err := msg.Encode()
	if err != nil {
		data, _ = sonic.Marshal(messages.NewErrorMessage("", messages.ErrCodeSessionFailed, err.Error()))
	}
	return data
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	body, err := sonic.Marshal(map[string]interface{}{
		"status":  "ok",
		"session": string(st.State),
		"clients": s.hub.Count(),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
