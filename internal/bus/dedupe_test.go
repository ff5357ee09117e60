package bus

import (
	"strings"
	"testing"
	"time"
)

func TestMemoryDeduperTTL(t *testing.T) {
	d := NewMemoryDeduper(50 * time.Millisecond)

	if !d.FirstSeen("k") {
		t.Fatal("first sighting should be new")
	}
	if d.FirstSeen("k") {
		t.Fatal("second sighting within TTL should be a duplicate")
	}

	time.Sleep(60 * time.Millisecond)
	if !d.FirstSeen("k") {
		t.Error("sighting after TTL expiry should be new again")
	}
}

func TestInboundDedupKey(t *testing.T) {
	withID := InboundMessage{
		ChatID:   "111@c.us",
		Content:  "oi",
		Metadata: map[string]string{MetaMessageID: "ABC"},
	}
	if got := InboundDedupKey(withID); got != "dedup:inbound:ABC" {
		t.Errorf("key with id = %q", got)
	}

	// Without an id, the key is a content bucket scoped to the chat.
	noID := InboundMessage{ChatID: "111@c.us", Content: "  oi  "}
	key := InboundDedupKey(noID)
	if !strings.HasPrefix(key, "dedup:inbound:111@c.us:oi:") {
		t.Errorf("content-bucket key = %q", key)
	}

	// Empty content with no id yields no key at all.
	if got := InboundDedupKey(InboundMessage{ChatID: "x"}); got != "" {
		t.Errorf("empty message key = %q, want empty", got)
	}
}

func TestOutboundDeduperWindow(t *testing.T) {
	d := NewOutboundDeduper(80 * time.Millisecond)

	msg := OutboundMessage{Channel: "whatsapp", ChatID: "111@c.us", Content: "Lembrete: beber água"}
	if !d.ShouldSend(msg) {
		t.Fatal("first send should pass")
	}
	if d.ShouldSend(msg) {
		t.Fatal("identical content within window should be suppressed")
	}

	// Same content to a different chat is unaffected.
	other := msg
	other.ChatID = "222@c.us"
	if !d.ShouldSend(other) {
		t.Error("different recipient should not be suppressed")
	}

	time.Sleep(100 * time.Millisecond)
	if !d.ShouldSend(msg) {
		t.Error("send after window expiry should pass")
	}
}
