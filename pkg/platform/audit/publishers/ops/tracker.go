// Package ops provides a fire-and-forget audit tracker for high-volume
// operational events.
//
// Ops events are the chattiest category (every session start, step
// submission and status read), so the tracker protects the request path
// three ways: configurable sampling drops a fraction up front, a circuit
// breaker stops hammering an unhealthy store, and a bounded queue decouples
// persistence from the caller. Track never blocks and never returns an
// error.
//
// Use for: verification_session_started, verification_step_submitted,
// invitation_sent, verification_status_queried.
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "firmo/pkg/platform/audit"
)

const (
	defaultQueueSize    = 1024
	persistTimeout      = 2 * time.Second
	defaultCBThreshold  = 5
	defaultCBCooldown   = time.Minute
	defaultSamplingRate = 1.0
)

// Tracker records operational audit events best-effort.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	cb      *CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics

	queue     chan audit.OpsEvent
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLogger sets a logger for persistence error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithSampler replaces the default keep-everything sampler.
func WithSampler(s *Sampler) Option {
	return func(t *Tracker) {
		if s != nil {
			t.sampler = s
		}
	}
}

// WithCircuitBreaker replaces the default circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(t *Tracker) {
		if cb != nil {
			t.cb = cb
		}
	}
}

// WithQueueSize bounds the in-flight event queue.
func WithQueueSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.queue = make(chan audit.OpsEvent, n)
		}
	}
}

// NewTracker creates an ops tracker and starts its persistence worker.
func NewTracker(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(defaultSamplingRate),
		cb:      NewCircuitBreaker(defaultCBThreshold, defaultCBCooldown),
		queue:   make(chan audit.OpsEvent, defaultQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.wg.Add(1)
	go t.run()

	return t
}

// Track records an operational event. It never blocks: sampled-out events,
// circuit-breaker drops and queue overflow all discard silently (counted in
// metrics when configured).
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.IncSampled()
		}
		return
	}

	if !t.cb.Allow() {
		if t.metrics != nil {
			t.metrics.IncCircuitBreakerDropped()
			t.metrics.SetCircuitBreakerState(true)
		}
		return
	}

	select {
	case <-t.done:
		// Shutting down; drop.
	case t.queue <- event:
	default:
		if t.metrics != nil {
			t.metrics.IncQueueDropped()
		}
		if t.logger != nil {
			t.logger.DebugContext(ctx, "ops audit queue full, dropping event",
				"action", event.Action,
			)
		}
	}
}

// Close stops the worker after draining queued events.
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
	return nil
}

func (t *Tracker) run() {
	defer t.wg.Done()

	for {
		select {
		case event := <-t.queue:
			t.persist(event)
		case <-t.done:
			// Drain whatever is still queued.
			for {
				select {
				case event := <-t.queue:
					t.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracker) persist(event audit.OpsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := t.store.Append(ctx, event.ToEvent()); err != nil {
		t.cb.RecordFailure()
		if t.metrics != nil {
			t.metrics.IncPersistFailures()
			t.metrics.SetCircuitBreakerState(t.cb.IsOpen())
		}
		if t.logger != nil {
			t.logger.Debug("ops audit persist failed",
				"action", event.Action,
				"error", err,
			)
		}
		return
	}

	t.cb.RecordSuccess()
	if t.metrics != nil {
		t.metrics.IncTracked()
		t.metrics.SetCircuitBreakerState(false)
	}
}
