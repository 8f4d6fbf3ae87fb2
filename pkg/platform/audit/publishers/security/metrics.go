package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for security audit publishing.
type Metrics struct {
	EventsEmitted prometheus.Counter
	EventsDropped prometheus.Counter
	FlushFailures prometheus.Counter
	BufferDepth   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with security audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "firmo_audit_security_events_total",
			Help: "Total number of security audit events accepted for buffering",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "firmo_audit_security_dropped_total",
			Help: "Total number of security audit events dropped under buffer pressure",
		}),
		FlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "firmo_audit_security_flush_failures_total",
			Help: "Total number of security audit events that failed to persist",
		}),
		BufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "firmo_audit_security_buffer_depth",
			Help: "Current number of security audit events waiting to be flushed",
		}),
	}
}

// IncEventsEmitted increments the emitted counter.
func (m *Metrics) IncEventsEmitted() {
	m.EventsEmitted.Inc()
}

// AddEventsDropped adds to the dropped counter.
func (m *Metrics) AddEventsDropped(n int64) {
	m.EventsDropped.Add(float64(n))
}

// IncFlushFailures increments the flush failures counter.
func (m *Metrics) IncFlushFailures() {
	m.FlushFailures.Inc()
}

// SetBufferDepth sets the buffer depth gauge.
func (m *Metrics) SetBufferDepth(n int) {
	m.BufferDepth.Set(float64(n))
}
