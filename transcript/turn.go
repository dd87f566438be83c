// Package transcript rebuilds turn-based conversation text from streamed
// transcription fragments.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who spoke a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is a finalized piece of the conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"` // data URL
	IsFinal   bool      `json:"isFinal"`
	Timestamp time.Time `json:"timestamp"`
}

// Accumulator buffers the in-progress text of each direction and moves it
// into history when a turn is committed.
type Accumulator struct {
	mu      sync.Mutex
	input   strings.Builder
	output  strings.Builder
	history []Turn
	now     func() time.Time
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{now: time.Now}
}

// AppendInput adds captured-speech text and returns the visible partial.
func (a *Accumulator) AppendInput(text string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input.WriteString(text)
	return a.input.String()
}

// AppendOutput adds synthesized-speech text and returns the visible partial.
func (a *Accumulator) AppendOutput(text string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.output.WriteString(text)
	return a.output.String()
}

// Partial returns both uncommitted buffers.
func (a *Accumulator) Partial() (input, output string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input.String(), a.output.String()
}

// Commit finalizes each non-blank buffer as a turn, user side first, and
// clears both buffers.
func (a *Accumulator) Commit() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()

	var turns []Turn
	if t, ok := a.take(&a.input, RoleUser); ok {
		turns = append(turns, t)
	}
	if t, ok := a.take(&a.output, RoleModel); ok {
		turns = append(turns, t)
	}
	return turns
}

// Flush commits whatever is buffered regardless of turn state. It runs on
// every teardown so no spoken text is lost.
func (a *Accumulator) Flush() []Turn {
	return a.Commit()
}

// Interrupt discards the model-side buffer. The user side is kept because the
// speaker is still mid-turn.
func (a *Accumulator) Interrupt() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	dropped := a.output.String()
	a.output.Reset()
	return dropped
}

// Add appends an already final turn, such as a tool outcome.
func (a *Accumulator) Add(role Role, text, image string) Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.newTurn(role, text)
	t.Image = image
	a.history = append(a.history, t)
	return t
}

// History returns a copy of all committed turns in order.
func (a *Accumulator) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Turn, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Accumulator) take(b *strings.Builder, role Role) (Turn, bool) {
	text := strings.TrimSpace(b.String())
	b.Reset()
	if text == "" {
		return Turn{}, false
	}
	t := a.newTurn(role, text)
	a.history = append(a.history, t)
	return t, true
}

func (a *Accumulator) newTurn(role Role, text string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		IsFinal:   true,
		Timestamp: a.now(),
	}
}
