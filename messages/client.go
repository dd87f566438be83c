package messages

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Client message types
const (
	TypeControl = "control"
	TypeConfig  = "config"
)

// Control actions
const (
	ActionStart = "start"
	ActionStop  = "stop"
	ActionPing  = "ping"
)

// ClientMessage represents a message from a UI client
type ClientMessage struct {
	Type    string          `json:"type"` // "control", "config"
	Payload json.RawMessage `json:"payload"`
}

// ConfigPayload selects the target language. An empty code means
// transcription only.
type ConfigPayload struct {
	Language string `json:"language"`
}

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "start", "stop", "ping"
}

// ParseClientMessage decodes one text frame from a UI client.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("invalid message: missing type")
	}
	return &msg, nil
}

// Control decodes the payload of a control message.
func (m *ClientMessage) Control() (*ControlPayload, error) {
	var p ControlPayload
	if err := sonic.Unmarshal(m.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid control payload: %w", err)
	}
	return &p, nil
}

// Config decodes the payload of a config message.
func (m *ClientMessage) Config() (*ConfigPayload, error) {
	var p ConfigPayload
	if err := sonic.Unmarshal(m.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid config payload: %w", err)
	}
	return &p, nil
}
