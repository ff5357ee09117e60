// Package channels defines the channel adapter interface and the outbound
// dispatcher that connects adapters to the message bus.
package channels

import (
	"context"
	"strings"
	"sync"

	"github.com/zapista/zapista/internal/bus"
)

// Channel is a messaging transport adapter. Adapters publish inbound
// messages to the bus and deliver outbound messages handed to Send.
type Channel interface {
	// Name returns the channel identifier used for message routing.
	Name() string

	// Start begins receiving messages. Blocks until the channel is ready
	// or fails; reconnection after that is the adapter's business.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error

	// Send delivers one outbound message.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is active.
	IsRunning() bool

	// IsAllowed reports whether the sender may talk to the agent. An empty
	// allow list admits everyone.
	IsAllowed(senderID string) bool
}

// BaseChannel provides the allow-list and running-state plumbing adapters
// embed. The allow list is the union of configured numbers and numbers
// granted at runtime through the admin pipeline.
type BaseChannel struct {
	name string

	mu        sync.RWMutex
	running   bool
	allowList map[string]struct{}
}

// NewBaseChannel creates the embedded base with the configured allow list.
// Entries are phone digit strings.
func NewBaseChannel(name string, allowed []string) *BaseChannel {
	allowList := make(map[string]struct{}, len(allowed))
	for _, entry := range allowed {
		if d := digitsOnly(entry); d != "" {
			allowList[d] = struct{}{}
		}
	}
	return &BaseChannel{name: name, allowList: allowList}
}

// Name returns the channel identifier.
func (b *BaseChannel) Name() string { return b.name }

// IsRunning reports whether the channel is active.
func (b *BaseChannel) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// SetRunning flips the running flag.
func (b *BaseChannel) SetRunning(running bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = running
}

// IsAllowed checks the sender against the allow list. Sender IDs may be
// compound ("5511999990000@c.us"); only the digits are compared.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.allowList) == 0 {
		return true
	}
	_, ok := b.allowList[digitsOnly(senderID)]
	return ok
}

// Allow grants a number access at runtime. Granting on an open channel
// (empty list) closes it to the granted numbers only, so the first grant is
// also the opt-in to allow-listing.
func (b *BaseChannel) Allow(number string) {
	d := digitsOnly(number)
	if d == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowList[d] = struct{}{}
}

// AllowedCount returns the number of allow-listed senders.
func (b *BaseChannel) AllowedCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.allowList)
}

// digitsOnly strips everything but digits from a sender or chat ID.
func digitsOnly(id string) string {
	head, _, _ := strings.Cut(id, "@")
	var sb strings.Builder
	for _, r := range head {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
