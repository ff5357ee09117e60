package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zapista/zapista/internal/bus"
)

// Manager owns the channel adapters and runs the outbound dispatcher. One
// dispatcher goroutine consumes the bus and routes each message to its
// channel, deduplicating repeated content per chat on the way out.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel

	router  bus.MessageRouter
	deduper *bus.OutboundDeduper
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a channel manager on top of the given router.
func NewManager(router bus.MessageRouter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		channels: make(map[string]Channel),
		router:   router,
		deduper:  bus.NewOutboundDeduper(bus.OutboundDedupWindow),
		logger:   logger,
	}
}

// Register adds a channel before StartAll.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Get returns a registered channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// StartAll starts every registered channel and the outbound dispatcher.
// A channel that fails to start aborts the whole startup.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		m.logger.Info("channel started", "channel", name)
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.dispatchOutbound(dispatchCtx)
	return nil
}

// StopAll stops the dispatcher and every channel.
func (m *Manager) StopAll() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Stop(); err != nil {
			m.logger.Error("channel stop failed", "channel", name, "error", err)
		}
	}
}

// dispatchOutbound consumes outbound messages and hands each to its
// channel. Duplicate content to the same chat inside the dedup window is
// dropped here, after lane ordering but before the transport.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	defer close(m.done)
	m.logger.Info("outbound dispatcher started")

	for {
		msg, ok := m.router.ConsumeOutbound(ctx)
		if !ok {
			m.logger.Info("outbound dispatcher stopped")
			return
		}

		ch, found := m.Get(msg.Channel)
		if !found {
			m.logger.Warn("outbound for unknown channel",
				"channel", msg.Channel,
				"trace_id", msg.Metadata[bus.MetaTraceID])
			continue
		}

		if !m.deduper.ShouldSend(msg) {
			m.logger.Debug("duplicate outbound suppressed",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"trace_id", msg.Metadata[bus.MetaTraceID])
			continue
		}

		if err := ch.Send(ctx, msg); err != nil {
			m.logger.Error("outbound send failed",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"trace_id", msg.Metadata[bus.MetaTraceID],
				"error", err)
		}
	}
}
