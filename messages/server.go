package messages

import (
	"github.com/bytedance/sonic"

	"github.com/room4-2/OpenInterpret/config"
	"github.com/room4-2/OpenInterpret/transcript"
)

// Error codes
const (
	ErrCodeInvalidMessage  = "INVALID_MESSAGE"
	ErrCodeUnknownAction   = "UNKNOWN_ACTION"
	ErrCodeUnknownLanguage = "UNKNOWN_LANGUAGE"
	ErrCodeSessionFailed   = "SESSION_FAILED"
)

// Server message types
const (
	TypeStatus   = "status"
	TypePartial  = "partial"
	TypeTurn     = "turn"
	TypeLevel    = "level"
	TypeSnapshot = "snapshot"
	TypePong     = "pong"
	TypeError    = "error"
)

// ServerMessage represents a message sent to UI clients
type ServerMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// StatusPayload contains status updates
type StatusPayload struct {
	Status      string `json:"status"` // "disconnected", "connecting", "connected", "error"
	Message     string `json:"message,omitempty"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	Language    string `json:"language"`
}

// PartialPayload is the in-progress text of one direction.
type PartialPayload struct {
	Role transcript.Role `json:"role"`
	Text string          `json:"text"`
}

// LevelPayload is the microphone loudness.
type LevelPayload struct {
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"`
}

// SnapshotPayload brings a newly connected client up to date.
type SnapshotPayload struct {
	Status        StatusPayload     `json:"status"`
	History       []transcript.Turn `json:"history"`
	PartialInput  string            `json:"partialInput,omitempty"`
	PartialOutput string            `json:"partialOutput,omitempty"`
	Languages     []config.Language `json:"languages"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode serializes a message for the wire.
func (m *ServerMessage) Encode() ([]byte, error) {
	return sonic.Marshal(m)
}

// NewStatusMessage creates a status message
func NewStatusMessage(sessionID string, status StatusPayload) *ServerMessage {
	return &ServerMessage{Type: TypeStatus, SessionID: sessionID, Payload: status}
}

// NewPartialMessage creates a partial transcript message
func NewPartialMessage(sessionID string, role transcript.Role, text string) *ServerMessage {
	return &ServerMessage{
		Type:      TypePartial,
		SessionID: sessionID,
		Payload:   PartialPayload{Role: role, Text: text},
	}
}

// NewTurnMessage creates a finalized turn message
func NewTurnMessage(sessionID string, turn transcript.Turn) *ServerMessage {
	return &ServerMessage{Type: TypeTurn, SessionID: sessionID, Payload: turn}
}

// NewLevelMessage creates a microphone level message
func NewLevelMessage(rms, peak float64) *ServerMessage {
	return &ServerMessage{Type: TypeLevel, Payload: LevelPayload{RMS: rms, Peak: peak}}
}

// NewSnapshotMessage creates the message sent to a client on connect
func NewSnapshotMessage(sessionID string, snap SnapshotPayload) *ServerMessage {
	return &ServerMessage{Type: TypeSnapshot, SessionID: sessionID, Payload: snap}
}

// NewPongMessage answers a ping
func NewPongMessage(sessionID string) *ServerMessage {
	return &ServerMessage{Type: TypePong, SessionID: sessionID}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
