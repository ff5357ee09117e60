package bus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// memoryDedupTTL is the in-memory inbound dedup window. Redis uses a
	// longer TTL (24h) because its memory is not ours to exhaust.
	memoryDedupTTL = 120 * time.Second

	// contentBucketSeconds groups id-less messages into 30-second buckets
	// keyed by chat and trimmed content.
	contentBucketSeconds = 30

	// OutboundDedupWindow suppresses exact-duplicate outbound content to the
	// same chat.
	OutboundDedupWindow = 90 * time.Second
)

// InboundDeduper answers whether a dedup key is being seen for the first
// time within the backend's TTL window.
type InboundDeduper interface {
	FirstSeen(key string) bool
}

// InboundDedupKey derives the dedup key for an inbound message: the bridge
// message id when present, otherwise a 30-second content bucket.
func InboundDedupKey(msg InboundMessage) string {
	if id := msg.Metadata[MetaMessageID]; id != "" {
		return "dedup:inbound:" + id
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return ""
	}
	bucket := time.Now().Unix() / contentBucketSeconds
	return fmt.Sprintf("dedup:inbound:%s:%s:%d", msg.ChatID, content, bucket)
}

// MemoryDeduper is a TTL map guarded by a mutex. Expired entries are purged
// opportunistically on insert; O(n) purges are fine at chat-message rates.
type MemoryDeduper struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time // key → expiry
}

// NewMemoryDeduper creates an in-memory deduper with the given TTL.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		ttl:     ttl,
		entries: make(map[string]time.Time),
	}
}

// FirstSeen records the key and reports whether it was unseen. A key whose
// previous sighting has expired counts as first-seen again.
func (d *MemoryDeduper) FirstSeen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if expiry, ok := d.entries[key]; ok && now.Before(expiry) {
		return false
	}

	for k, expiry := range d.entries {
		if now.After(expiry) {
			delete(d.entries, k)
		}
	}

	d.entries[key] = now.Add(d.ttl)
	return true
}

// OutboundDeduper suppresses repeated outbound content per chat within a
// rolling window. Keyed by (channel, chat_id, sha256(content)[:16]) so one
// recipient's repeats never affect another's.
type OutboundDeduper struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time
}

// NewOutboundDeduper creates an outbound deduper with the given window.
func NewOutboundDeduper(window time.Duration) *OutboundDeduper {
	return &OutboundDeduper{
		window:  window,
		entries: make(map[string]time.Time),
	}
}

// ShouldSend reports whether the message content is new for its chat within
// the window, recording it when so.
func (d *OutboundDeduper) ShouldSend(msg OutboundMessage) bool {
	sum := sha256.Sum256([]byte(msg.Content))
	key := fmt.Sprintf("%s:%s:%s", msg.Channel, msg.ChatID, hex.EncodeToString(sum[:])[:16])

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if expiry, ok := d.entries[key]; ok && now.Before(expiry) {
		return false
	}

	for k, expiry := range d.entries {
		if now.After(expiry) {
			delete(d.entries, k)
		}
	}

	d.entries[key] = now.Add(d.window)
	return true
}
