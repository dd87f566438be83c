// Package functions holds the tools the live model may call, keyed by name.
package functions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/room4-2/OpenInterpret/transport"
)

// Result is what a tool call produced. Output goes back to the model. Text
// and Image, when set, are shown to the user as a model turn.
type Result struct {
	Output string
	Text   string
	Image  string
}

// Visible reports whether the result should appear in the transcript.
func (r Result) Visible() bool {
	return r.Text != "" || r.Image != ""
}

// Handler executes one call.
type Handler func(ctx context.Context, args map[string]any) Result

// Capability is a declared tool plus its implementation.
type Capability struct {
	Spec    transport.ToolSpec
	Handler Handler
}

// Registry dispatches tool calls by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Capability
}

// NewRegistry returns a registry holding caps.
func NewRegistry(caps ...Capability) *Registry {
	r := &Registry{tools: make(map[string]Capability)}
	for _, c := range caps {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a capability.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[c.Spec.Name] = c
}

// Specs lists declarations for every registered tool, sorted by name.
func (r *Registry) Specs() []transport.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]transport.ToolSpec, 0, len(r.tools))
	for _, c := range r.tools {
		specs = append(specs, c.Spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Dispatch runs the capability registered under call.Name.
func (r *Registry) Dispatch(ctx context.Context, call transport.ToolCall) Result {
	r.mu.RLock()
	c, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return Result{Output: fmt.Sprintf("Unknown function: %s", call.Name)}
	}
	return c.Handler(ctx, call.Args)
}
