package security

import (
	"sync"

	audit "firmo/pkg/platform/audit"
)

// RingBuffer holds security events between the hot request path and the
// background flusher. Bounded: once full, each new event evicts the oldest
// so a stalled sink can never grow the heap or block a request.
type RingBuffer struct {
	mu      sync.Mutex
	slots   []audit.SecurityEvent
	start   int // index of the oldest buffered event
	count   int
	dropped int64
}

// NewRingBuffer allocates a buffer for capacity events. Non-positive
// capacities fall back to 10000.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{slots: make([]audit.SecurityEvent, capacity)}
}

// Enqueue appends an event, evicting the oldest one when full.
func (b *RingBuffer) Enqueue(event audit.SecurityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == len(b.slots) {
		b.start = (b.start + 1) % len(b.slots)
		b.count--
		b.dropped++
	}
	b.slots[(b.start+b.count)%len(b.slots)] = event
	b.count++
}

// DropOldest discards the oldest buffered event, reporting whether there
// was one to discard.
func (b *RingBuffer) DropOldest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return false
	}
	b.start = (b.start + 1) % len(b.slots)
	b.count--
	b.dropped++
	return true
}

// DequeueBatch removes and returns up to n events, oldest first. Nil when
// the buffer is empty.
func (b *RingBuffer) DequeueBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	batch := make([]audit.SecurityEvent, n)
	for i := range batch {
		batch[i] = b.slots[b.start]
		b.start = (b.start + 1) % len(b.slots)
	}
	b.count -= n
	return batch
}

// Len reports how many events are waiting to flush.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped reports how many events were evicted unflushed since creation.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
