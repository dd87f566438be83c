// Package gemini implements the transport contract on top of the Gemini Live
// API using the official SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/transport"
)

const (
	DefaultModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice = "Zephyr" // Puck, Charon, Kore, Fenrir, Aoede, Leda, Orus, Zephyr
)

// Client dials Live sessions. It implements transport.Dialer.
type Client struct {
	genai  *genai.Client
	logger *slog.Logger
}

// NewClient creates the SDK client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string, logger *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{genai: client, logger: logger}, nil
}

// Dial returns a pending Proxy and connects in the background. OnOpen fires
// once the Live session is set up; a failed connect is reported via OnError.
func (c *Client) Dial(ctx context.Context, cfg transport.Config, cb transport.Callbacks) (transport.Conn, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	p := &Proxy{
		callbacks: cb,
		logger:    c.logger.With("model", cfg.Model),
	}
	go p.connect(ctx, c.genai, cfg)
	return p, nil
}

// Proxy is one Live session. It implements transport.Conn.
type Proxy struct {
	session   *genai.Session
	callbacks transport.Callbacks
	logger    *slog.Logger

	// genai.Session writes straight to the websocket, which allows one writer.
	writeMu sync.Mutex

	mu     sync.RWMutex
	closed bool
}

func (gp *Proxy) connect(ctx context.Context, client *genai.Client, cfg transport.Config) {
	session, err := client.Live.Connect(ctx, cfg.Model, connectConfig(cfg))
	if err != nil {
		if !gp.isClosed() {
			gp.logger.Error("❌ Failed to connect to Live API", "error", err)
			gp.emitError(fmt.Errorf("failed to connect to Live API: %w", err))
		}
		return
	}

	gp.mu.Lock()
	if gp.closed {
		gp.mu.Unlock()
		_ = session.Close()
		return
	}
	gp.session = session
	gp.mu.Unlock()

	gp.logger.Info("✅ Connected to Gemini Live via SDK")
	if gp.callbacks.OnOpen != nil {
		gp.callbacks.OnOpen()
	}
	gp.receive(session)
}

func (gp *Proxy) receive(session *genai.Session) {
	for {
		resp, err := session.Receive()
		if err != nil {
			if gp.isClosed() {
				return
			}
			if reason, ok := closeReason(err); ok {
				gp.logger.Info("🔌 Gemini closed the session", "reason", reason)
				if gp.callbacks.OnClose != nil {
					gp.callbacks.OnClose(reason)
				}
				return
			}
			gp.logger.Error("❌ Gemini receive error", "error", err)
			gp.emitError(err)
			return
		}

		if resp.GoAway != nil {
			gp.logger.Warn("⚠️ Gemini is going away", "time_left", resp.GoAway.TimeLeft)
		}
		msg := translate(resp)
		if msg == nil || gp.isClosed() {
			continue
		}
		if gp.callbacks.OnMessage != nil {
			gp.callbacks.OnMessage(msg)
		}
	}
}

// closeReason reports whether err is an orderly close from the server.
func closeReason(err error) (string, bool) {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return "", false
	}
	if !websocket.IsCloseError(ce, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return "", false
	}
	if ce.Text != "" {
		return ce.Text, true
	}
	return ce.Error(), true
}

// translate maps a server message onto the transport message. It returns nil
// for messages the session has no use for, such as setup acknowledgements.
func translate(resp *genai.LiveServerMessage) *transport.Message {
	msg := &transport.Message{}
	used := false

	if resp.ToolCall != nil {
		for _, fc := range resp.ToolCall.FunctionCalls {
			if fc == nil {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, transport.ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
			used = true
		}
	}

	if sc := resp.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" && !part.Thought {
					msg.Text += part.Text
					used = true
				}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					mimeType := part.InlineData.MIMEType
					if mimeType == "" {
						mimeType = audio.MIMEType(audio.OutputRate)
					}
					msg.Audio = append(msg.Audio, audio.Frame{
						Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
						MIMEType: mimeType,
					})
					used = true
				}
			}
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			msg.InputTranscript = sc.InputTranscription.Text
			used = true
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			msg.OutputTranscript = sc.OutputTranscription.Text
			used = true
		}
		if sc.Interrupted {
			msg.Interrupted = true
			used = true
		}
		if sc.TurnComplete {
			msg.TurnComplete = true
			used = true
		}
	}

	if !used {
		return nil
	}
	return msg
}

// Send forwards one encoded audio frame.
func (gp *Proxy) Send(frame audio.Frame) error {
	data, err := base64.StdEncoding.DecodeString(frame.Data)
	if err != nil {
		return fmt.Errorf("invalid base64: %w", err)
	}
	return gp.write(func(s *genai.Session) error {
		return s.SendRealtimeInput(genai.LiveRealtimeInput{
			Audio: &genai.Blob{MIMEType: frame.MIMEType, Data: data},
		})
	})
}

// SendToolResult answers a tool call with a plain text result.
func (gp *Proxy) SendToolResult(callID, name, result string) error {
	err := gp.write(func(s *genai.Session) error {
		return s.SendToolResponse(genai.LiveToolResponseInput{
			FunctionResponses: []*genai.FunctionResponse{{
				ID:       callID,
				Name:     name,
				Response: map[string]any{"result": result},
			}},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to send tool response: %w", err)
	}
	gp.logger.Info("📤 Sent tool response to Gemini", "name", name, "id", callID)
	return nil
}

// SendText sends a complete user text turn. Used by the probe command.
func (gp *Proxy) SendText(text string) error {
	turnComplete := true
	err := gp.write(func(s *genai.Session) error {
		return s.SendClientContent(genai.LiveClientContentInput{
			Turns:        []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
			TurnComplete: &turnComplete,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	gp.logger.Info("📤 Sent text to Gemini", "text", text)
	return nil
}

// EndAudioStream tells the service no more audio follows for now.
func (gp *Proxy) EndAudioStream() error {
	return gp.write(func(s *genai.Session) error {
		return s.SendRealtimeInput(genai.LiveRealtimeInput{AudioStreamEnd: true})
	})
}

func (gp *Proxy) write(fn func(*genai.Session) error) error {
	gp.mu.RLock()
	session := gp.session
	closed := gp.closed
	gp.mu.RUnlock()

	if closed || session == nil {
		return transport.ErrNotConnected
	}

	gp.writeMu.Lock()
	defer gp.writeMu.Unlock()
	return fn(session)
}

// Close terminates the Live session. No callbacks fire afterwards.
func (gp *Proxy) Close() error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.closed {
		return nil
	}
	gp.closed = true

	if gp.session != nil {
		return gp.session.Close()
	}
	return nil
}

func (gp *Proxy) isClosed() bool {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return gp.closed
}

func (gp *Proxy) emitError(err error) {
	if gp.callbacks.OnError != nil {
		gp.callbacks.OnError(err)
	}
}
