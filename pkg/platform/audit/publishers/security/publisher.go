// Package security provides a buffered, non-blocking audit publisher for
// security events.
//
// Security events must never slow down or fail the request path: rejected
// verification attempts are recorded best-effort through a bounded ring
// buffer and flushed to the store in the background. Under sustained
// pressure the oldest events are dropped first.
//
// Use for: verification_party_rejected, verification_state_rejected.
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "firmo/pkg/platform/audit"
)

const (
	defaultBufferCapacity = 10000
	defaultFlushInterval  = time.Second
	defaultBatchSize      = 100
	flushTimeout          = 5 * time.Second
)

// Publisher emits security events asynchronously. Emit never blocks and
// never returns an error; delivery is best-effort with drop-oldest
// semantics when the buffer fills.
type Publisher struct {
	store   audit.Store
	buffer  *RingBuffer
	logger  *slog.Logger
	metrics *Metrics

	flushInterval time.Duration
	batchSize     int

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for flush error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBufferCapacity bounds the in-flight event buffer.
func WithBufferCapacity(n int) Option {
	return func(p *Publisher) {
		p.buffer = NewRingBuffer(n)
	}
}

// WithFlushInterval sets how often buffered events are flushed.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithBatchSize sets how many events a single flush drains at most.
func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// New creates a security publisher and starts its flush loop.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		buffer:        NewRingBuffer(defaultBufferCapacity),
		flushInterval: defaultFlushInterval,
		batchSize:     defaultBatchSize,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.flushLoop()

	return p
}

// Emit buffers a security event for background persistence. It never blocks:
// when the buffer is full the oldest event is dropped to make room.
func (p *Publisher) Emit(ctx context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}

	droppedBefore := p.buffer.Dropped()
	p.buffer.Enqueue(event)

	if p.metrics != nil {
		p.metrics.IncEventsEmitted()
		if dropped := p.buffer.Dropped() - droppedBefore; dropped > 0 {
			p.metrics.AddEventsDropped(dropped)
		}
		p.metrics.SetBufferDepth(p.buffer.Len())
	}
}

// Close flushes remaining events and stops the background loop.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	return nil
}

func (p *Publisher) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-p.done:
			// Drain everything still buffered before returning.
			for p.buffer.Len() > 0 {
				p.flush()
			}
			return
		}
	}
}

func (p *Publisher) flush() {
	batch := p.buffer.DequeueBatch(p.batchSize)
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for _, event := range batch {
		if err := p.store.Append(ctx, event.ToEvent()); err != nil {
			if p.metrics != nil {
				p.metrics.IncFlushFailures()
			}
			if p.logger != nil {
				p.logger.Warn("security audit flush failed",
					"action", event.Action,
					"error", err,
				)
			}
			// Best-effort: the event is lost, but the request path
			// already moved on. Do not re-enqueue.
		}
	}

	if p.metrics != nil {
		p.metrics.SetBufferDepth(p.buffer.Len())
	}
}
