package session

// State is the lifecycle state of the interpreter session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

var allStates = []string{
	string(StateDisconnected),
	string(StateConnecting),
	string(StateConnected),
	string(StateError),
}

// Status is the user-visible view of the session.
type Status struct {
	SessionID   string `json:"sessionId"`
	State       State  `json:"state"`
	Error       string `json:"error,omitempty"` // also set while reconnecting
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	Language    string `json:"language"`
}

// Active reports whether a connection is open or being established.
func (s State) Active() bool {
	return s == StateConnecting || s == StateConnected
}
