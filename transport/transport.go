// Package transport defines the bidirectional channel to a live speech
// service as seen by the session state machine.
package transport

import (
	"context"
	"errors"

	"github.com/room4-2/OpenInterpret/audio"
)

// ErrNotConnected is returned by sends on a connection that is not open.
var ErrNotConnected = errors.New("transport not connected")

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ToolSpec declares a function the remote model may call.
type ToolSpec struct {
	Name        string
	Description string
	Params      []Param
}

// Config is everything fixed at connect time.
type Config struct {
	Model             string
	Voice             string
	LanguageCode      string
	SystemInstruction string
	Tools             []ToolSpec
	InputTranscript   bool
	OutputTranscript  bool
}

// ToolCall is a function invocation requested by the remote model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Message is one inbound event. Several fields may be set at once.
type Message struct {
	Audio            []audio.Frame
	Text             string
	InputTranscript  string
	OutputTranscript string
	ToolCalls        []ToolCall
	Interrupted      bool
	TurnComplete     bool
}

// Callbacks receive connection events in delivery order. None fire after
// the connection was closed locally.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(*Message)
	OnClose   func(reason string)
	OnError   func(err error)
}

// Conn is an open or pending connection.
type Conn interface {
	Send(frame audio.Frame) error
	SendToolResult(callID, name, result string) error
	Close() error
}

// Dialer starts a connection. Dial returns immediately; the outcome is
// reported through OnOpen or OnError.
type Dialer interface {
	Dial(ctx context.Context, cfg Config, cb Callbacks) (Conn, error)
}
