// Package bus implements the in-process message bus connecting channel
// adapters to the agent runtime.
//
// The inbound queue has a single consumer (the agent loop). The outbound
// side carries two priority lanes: "high" (time-sensitive cron deliveries)
// and "normal" (agent replies). When a Redis URL is configured, outbound
// publishing goes through Redis lists and a feeder task drains both lanes
// back into the local queues in priority order.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// consumePollInterval bounds how long a blocked consumer waits before
// re-checking for cancellation. Keeps stop requests prompt.
const consumePollInterval = 1 * time.Second

// queue is an unbounded FIFO guarded by a mutex. Waiters are woken through
// the signal channel; spurious wakeups are handled by re-checking length.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{signal: make(chan struct{}, 1)}
}

func (q *queue[T]) push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MessageBus routes messages between channels and the agent loop.
type MessageBus struct {
	inbound  *queue[InboundMessage]
	outHigh  *queue[OutboundMessage]
	outNorm  *queue[OutboundMessage]
	deduper  InboundDeduper
	redis    *RedisLanes // nil when REDIS_URL is not configured
	outReady chan struct{}
}

// Option configures a MessageBus.
type Option func(*MessageBus)

// WithRedisLanes routes outbound publishing through Redis lists.
func WithRedisLanes(lanes *RedisLanes) Option {
	return func(b *MessageBus) { b.redis = lanes }
}

// WithInboundDeduper installs inbound deduplication at the publish step.
// Channel adapters normally own dedup themselves; this hook covers buses
// fed by sources without their own dedup layer.
func WithInboundDeduper(d InboundDeduper) Option {
	return func(b *MessageBus) { b.deduper = d }
}

// New creates a message bus. Without options it is fully in-memory and
// publishes inbound messages as-is.
func New(opts ...Option) *MessageBus {
	b := &MessageBus{
		inbound:  newQueue[InboundMessage](),
		outHigh:  newQueue[OutboundMessage](),
		outNorm:  newQueue[OutboundMessage](),
		outReady: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PublishInbound enqueues an inbound message, running it through the
// deduper when one is installed. The queue is unbounded; the agent-side
// rate limiter is the throttle.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	if b.deduper != nil {
		if key := InboundDedupKey(msg); key != "" && !b.deduper.FirstSeen(key) {
			slog.Debug("bus: duplicate inbound dropped",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"key", key,
			)
			return
		}
	}
	b.inbound.push(msg)
}

// ConsumeInbound blocks until a message is available or the context is
// cancelled. Returns ok=false on cancellation.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	for {
		if msg, ok := b.inbound.tryPop(); ok {
			return msg, true
		}
		select {
		case <-ctx.Done():
			return InboundMessage{}, false
		case <-b.inbound.signal:
		case <-time.After(consumePollInterval):
		}
	}
}

// PublishOutbound routes a message by its priority metadata. With Redis
// configured the message is RPUSHed to the corresponding lane; on Redis
// error it falls back to the local queue. Errors are never surfaced.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	if b.redis != nil {
		if err := b.redis.Push(msg); err == nil {
			return
		} else {
			slog.Warn("bus: redis publish failed, using local queue",
				"channel", msg.Channel,
				"error", err,
			)
		}
	}
	b.pushLocal(msg)
}

// pushLocal enqueues directly to the local priority lanes. Used for direct
// publishing and by the Redis feeder.
func (b *MessageBus) pushLocal(msg OutboundMessage) {
	if msg.Priority() == PriorityHigh {
		b.outHigh.push(msg)
	} else {
		b.outNorm.push(msg)
	}
	select {
	case b.outReady <- struct{}{}:
	default:
	}
}

// ConsumeOutbound blocks until an outbound message is available, draining
// the high lane before the normal lane.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	for {
		if msg, ok := b.outHigh.tryPop(); ok {
			return msg, true
		}
		if msg, ok := b.outNorm.tryPop(); ok {
			return msg, true
		}
		select {
		case <-ctx.Done():
			return OutboundMessage{}, false
		case <-b.outReady:
		case <-time.After(consumePollInterval):
		}
	}
}

// StartRedisFeeder runs the BLPOP feeder that drains the Redis lanes into
// the local queues in priority order. No-op when Redis is not configured.
func (b *MessageBus) StartRedisFeeder(ctx context.Context) {
	if b.redis == nil {
		return
	}
	go func() {
		slog.Info("bus: redis feeder started", "namespace", b.redis.Namespace())
		for {
			select {
			case <-ctx.Done():
				slog.Info("bus: redis feeder stopped")
				return
			default:
			}

			msg, ok, err := b.redis.Pop(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("bus: redis pop failed", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
				}
				continue
			}
			if ok {
				b.pushLocal(msg)
			}
		}
	}()
}

// PendingOutbound reports the number of locally queued outbound messages.
func (b *MessageBus) PendingOutbound() int {
	return b.outHigh.len() + b.outNorm.len()
}
