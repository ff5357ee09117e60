package bus

import "context"

// Priority values recognized in OutboundMessage metadata.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// Metadata keys used across the pipeline.
const (
	MetaMessageID = "message_id"
	MetaTraceID   = "trace_id"
	MetaIsGroup   = "is_group"
	MetaPriority  = "priority"
	MetaJobID     = "job_id"
)

// InboundMessage represents a message received from a channel.
// Constructed by the channel adapter, consumed exactly once by the agent loop.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"` // unix seconds, from the bridge
	Media     []string          `json:"media,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"` // message_id, is_group, trace_id
}

// TraceID returns the trace identifier assigned at inbound reception.
func (m InboundMessage) TraceID() string {
	return m.Metadata[MetaTraceID]
}

// OutboundMessage represents a message to be delivered to a channel.
// Produced by the agent loop or the cron service; exactly one delivery
// attempt per consume.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Media    []string          `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"` // priority, job_id
}

// Priority returns the routing lane for the message ("high" or "normal").
func (m OutboundMessage) Priority() string {
	if m.Metadata[MetaPriority] == PriorityHigh {
		return PriorityHigh
	}
	return PriorityNormal
}

// JobID returns the cron job this delivery originates from, if any.
func (m OutboundMessage) JobID() string {
	return m.Metadata[MetaJobID]
}

// MessageRouter abstracts inbound/outbound message routing between the
// channel adapters and the agent runtime.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	ConsumeOutbound(ctx context.Context) (OutboundMessage, bool)
}
