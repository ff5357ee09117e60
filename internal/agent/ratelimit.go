package agent

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedChats bounds the limiter map so an abusive fan-out of chat IDs
// cannot grow memory without limit.
const maxTrackedChats = 10000

// RateLimiter enforces a per-chat token bucket. Each chat gets its own
// bucket of `burst` messages refilled over `window`; excess turns are
// dropped by the caller after a single notice.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*chatBucket
	burst    int
	interval time.Duration
}

type chatBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	notified bool
}

// NewRateLimiter creates a limiter allowing burst messages per window for
// each (channel, chat) pair.
func NewRateLimiter(burst int, window time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 15
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets:  make(map[string]*chatBucket),
		burst:    burst,
		interval: window / time.Duration(burst),
	}
}

// Allow reports whether the chat may process another turn right now.
// notify is true exactly once per saturation episode so the user gets a
// single rate-limit message, not one per dropped turn.
func (r *RateLimiter) Allow(key string) (allowed, notify bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		if len(r.buckets) >= maxTrackedChats {
			r.prune()
		}
		b = &chatBucket{limiter: rate.NewLimiter(rate.Every(r.interval), r.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = time.Now()

	if b.limiter.Allow() {
		b.notified = false
		return true, false
	}
	if !b.notified {
		b.notified = true
		return false, true
	}
	return false, false
}

// prune drops the stalest buckets. Caller holds the lock.
func (r *RateLimiter) prune() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for key, b := range r.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
	// Still full of active chats; evict arbitrarily to make room.
	if len(r.buckets) >= maxTrackedChats {
		for key := range r.buckets {
			delete(r.buckets, key)
			if len(r.buckets) < maxTrackedChats/2 {
				break
			}
		}
	}
}
