package ops

import (
	"sync"
	"time"
)

// CircuitBreaker stops the tracker from hammering an unhealthy audit store.
// Recovery is time-based: an open circuit drops events before persistence,
// so no recorded outcome arrives to close it. Once the cooldown lapses the
// next event goes through as a probe.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	failures int
	isOpen   bool
	probeAt  time.Time
}

// NewCircuitBreaker returns a closed breaker that opens after threshold
// consecutive failures and stays open for cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether an event may proceed to the queue. An open circuit
// whose cooldown has lapsed closes and admits the caller as the probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.isOpen {
		return true
	}
	if time.Now().After(cb.probeAt) {
		cb.isOpen = false
		cb.failures = 0
		return true
	}
	return false
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.isOpen = false
}

// RecordFailure counts a persistence failure and opens the circuit at the
// threshold. Failures are consecutive; any success resets the count.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.threshold {
		cb.isOpen = true
		cb.probeAt = time.Now().Add(cb.cooldown)
	}
}

// IsOpen reports whether the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.isOpen
}

// Reset forces the circuit closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.isOpen = false
}
