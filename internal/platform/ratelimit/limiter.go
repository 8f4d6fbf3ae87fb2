// Package ratelimit bounds request rates on the verification routes with a
// sliding window per caller. Counters live in process memory, so the limit
// applies per instance, not across a fleet.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window frees a slot, never
// below one so the header stays meaningful.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter admits up to limit requests per key within a sliding window. The
// window slides over real timestamps, so a burst at a boundary cannot double
// the effective rate.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
}

// New builds a limiter admitting limit requests per window for each key.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string][]time.Time),
	}
}

// Allow records one request for key and reports whether it fits the window.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stamps := expire(l.buckets[key], now.Add(-l.window))

	if len(stamps) >= l.limit {
		l.buckets[key] = stamps
		return Result{
			Allowed:   false,
			Limit:     l.limit,
			Remaining: 0,
			ResetAt:   stamps[0].Add(l.window),
		}
	}

	stamps = append(stamps, now)
	l.buckets[key] = stamps
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(stamps),
		ResetAt:   stamps[0].Add(l.window),
	}
}

// Reset clears the window for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// expire drops timestamps at or before cutoff. Stamps are appended in order,
// so the survivors are a suffix.
func expire(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
