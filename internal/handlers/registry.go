// Package handlers implements the ordered handler chain the agent loop runs
// before falling back to the LLM. The first handler to produce a reply wins;
// a failing handler is logged and skipped unless strict mode is on.
package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/sessions"
	"github.com/zapista/zapista/internal/tools"
	"github.com/zapista/zapista/internal/users"
)

// Context carries everything a handler may need for one turn. Pending state
// goes through the user store, never through handler-local globals.
type Context struct {
	Ctx     context.Context
	Channel string
	ChatID  string
	TraceID string

	Owner    tools.Owner
	User     users.User
	Users    *users.Store
	Cron     *cron.Service
	Tools    *tools.Registry
	Sessions *sessions.Manager
	Logger   *slog.Logger

	// RestartFn executes a confirmed /restart. Injected so tests can
	// observe it without killing the process.
	RestartFn func()
}

// Handler processes one turn. handled=false passes the turn to the next
// handler in the chain.
type Handler struct {
	Name string
	Fn   func(hc *Context, text string) (reply string, handled bool, err error)
}

// Registry is the ordered handler chain.
type Registry struct {
	handlers []Handler
	strict   bool
	logger   *slog.Logger
}

// NewRegistry creates a chain. strict makes handler errors fail the turn
// instead of being skipped; tests use it to surface bugs.
func NewRegistry(strict bool, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{strict: strict, logger: logger}
}

// Register appends a handler. Order is significant: pending-confirmation
// resolution must come before command parsing, informationals last.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// Run walks the chain and returns the first reply. handled=false means no
// handler claimed the turn and the caller may fall back to the LLM.
func (r *Registry) Run(hc *Context, text string) (string, bool, error) {
	for _, h := range r.handlers {
		reply, handled, err := r.runOne(h, hc, text)
		if err != nil {
			if r.strict {
				return "", false, fmt.Errorf("handler %s: %w", h.Name, err)
			}
			r.logger.Warn("handler failed, skipping",
				"handler", h.Name,
				"trace_id", hc.TraceID,
				"preview", preview(text),
				"error", err)
			continue
		}
		if handled {
			return reply, true, nil
		}
	}
	return "", false, nil
}

// runOne isolates a single handler, converting panics into errors.
func (r *Registry) runOne(h Handler, hc *Context, text string) (reply string, handled bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			handled = false
		}
	}()
	return h.Fn(hc, text)
}

func preview(text string) string {
	const max = 40
	if len(text) <= max {
		return text
	}
	return text[:max] + "…"
}
