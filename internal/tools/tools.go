// Package tools exposes the organizer's capabilities (reminders, lists,
// events, direct messages) as LLM-callable tools. Every execution is scoped
// to the calling chat; a tool can never touch another owner's data.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/providers"
)

// Owner identifies the chat a tool call runs on behalf of, plus the
// preferences tools need for formatting and scheduling.
type Owner struct {
	Channel   string
	ChatID    string
	PhoneHash string
	Timezone  string
	Lang      i18n.Lang
	Leads     []int // pre-event leads in seconds, default first
}

// Tool is one agent-callable capability.
type Tool interface {
	Name() string
	Definition() providers.ToolDefinition
	Execute(ctx context.Context, owner Owner, args map[string]any) (string, error)
}

// Registry holds the enabled tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Later registrations with the same name replace the
// earlier one.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Definitions returns the tool schemas in registration order.
func (r *Registry) Definitions() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]providers.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute dispatches a tool call. Unknown tools return an error string
// rather than failing the turn.
func (r *Registry) Execute(ctx context.Context, owner Owner, name string, args map[string]any) string {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Sprintf("unknown tool %q", name)
	}
	result, err := t.Execute(ctx, owner, args)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

// strArg reads a string argument, tolerating absent keys.
func strArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// intArg reads a numeric argument; JSON numbers arrive as float64.
func intArg(args map[string]any, key string) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
