package agent

import (
	"sync"
	"time"
)

// CircuitBreaker trips after consecutive provider failures so a dead LLM
// endpoint does not stall every turn on timeouts. While open, callers use
// the local fallback path; after the recovery timeout a single probe is
// allowed and one success closes the circuit.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration

	failures int
	openedAt time.Time
	open     bool
}

// NewCircuitBreaker creates a breaker that opens after threshold
// consecutive failures and stays open for at least recovery.
func NewCircuitBreaker(threshold int, recovery time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if recovery <= 0 {
		recovery = 60 * time.Second
	}
	return &CircuitBreaker{failureThreshold: threshold, recoveryTimeout: recovery}
}

// IsOpen reports whether calls should be skipped. Once the recovery window
// elapses the breaker turns half-open and lets the next call through as a
// probe.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return false
	}
	return time.Since(cb.openedAt) < cb.recoveryTimeout
}

// RecordSuccess closes the circuit and resets the failure count. A single
// success in half-open state is enough.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
}

// RecordFailure counts a failure and opens the circuit at the threshold.
// A failed half-open probe restarts the recovery window.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.failureThreshold {
		cb.open = true
		cb.openedAt = time.Now()
	}
}
