package bus

import (
	"context"
	"testing"
	"time"
)

func TestPublishConsumeInbound(t *testing.T) {
	b := New()
	b.PublishInbound(InboundMessage{
		Channel: "whatsapp",
		ChatID:  "111@c.us",
		Content: "oi",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Content != "oi" {
		t.Errorf("content = %q, want %q", msg.Content, "oi")
	}
}

func TestConsumeInboundCancellation(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := b.ConsumeInbound(ctx)
	if ok {
		t.Error("expected ok=false on cancelled context")
	}
}

func TestInboundDedupByMessageID(t *testing.T) {
	b := New(WithInboundDeduper(NewMemoryDeduper(memoryDedupTTL)))
	msg := InboundMessage{
		Channel:  "whatsapp",
		ChatID:   "111@c.us",
		Content:  "oi",
		Metadata: map[string]string{MetaMessageID: "X"},
	}

	b.PublishInbound(msg)
	b.PublishInbound(msg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, ok := b.ConsumeInbound(ctx); !ok {
		t.Fatal("expected first message")
	}

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer shortCancel()
	if _, ok := b.ConsumeInbound(shortCtx); ok {
		t.Error("duplicate message_id should not be published twice")
	}
}

func TestInboundNoDedupByDefault(t *testing.T) {
	// Channel adapters own dedup; a bare bus must not drop repeats.
	b := New()
	msg := InboundMessage{
		Channel:  "whatsapp",
		ChatID:   "111@c.us",
		Content:  "oi",
		Metadata: map[string]string{MetaMessageID: "X"},
	}

	b.PublishInbound(msg)
	b.PublishInbound(msg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		if _, ok := b.ConsumeInbound(ctx); !ok {
			t.Fatalf("message %d missing", i)
		}
	}
}

func TestOutboundPriorityOrder(t *testing.T) {
	b := New()
	b.PublishOutbound(OutboundMessage{Channel: "whatsapp", ChatID: "a", Content: "normal"})
	b.PublishOutbound(OutboundMessage{
		Channel:  "whatsapp",
		ChatID:   "b",
		Content:  "urgent",
		Metadata: map[string]string{MetaPriority: PriorityHigh},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, ok := b.ConsumeOutbound(ctx)
	if !ok {
		t.Fatal("expected a message")
	}
	if first.Content != "urgent" {
		t.Errorf("high-priority lane should drain first, got %q", first.Content)
	}

	second, ok := b.ConsumeOutbound(ctx)
	if !ok {
		t.Fatal("expected second message")
	}
	if second.Content != "normal" {
		t.Errorf("second = %q, want %q", second.Content, "normal")
	}
}

func TestOutboundPriorityMetadata(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]string
		want string
	}{
		{"nil metadata", nil, PriorityNormal},
		{"explicit normal", map[string]string{MetaPriority: "normal"}, PriorityNormal},
		{"high", map[string]string{MetaPriority: "high"}, PriorityHigh},
		{"unknown value", map[string]string{MetaPriority: "urgent"}, PriorityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := OutboundMessage{Metadata: tt.meta}
			if got := msg.Priority(); got != tt.want {
				t.Errorf("Priority() = %q, want %q", got, tt.want)
			}
		})
	}
}
