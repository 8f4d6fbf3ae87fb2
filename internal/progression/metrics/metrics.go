package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the progression coordinator.
type Metrics struct {
	// Phase advances by origin phase, completing role, and resulting phase.
	Advances *prometheus.CounterVec

	// Unmatched (phase, role) pairs that produced a fail-safe proposal.
	Conflicts *prometheus.CounterVec

	// Fail-safe phases actually applied.
	FailSafes prometheus.Counter
}

// New creates and registers the progression metrics.
func New() *Metrics {
	return &Metrics{
		Advances: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firmo_progression_advances_total",
			Help: "Contract phase advances by origin phase, role and next phase",
		}, []string{"from_phase", "role", "to_phase"}),

		Conflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firmo_progression_conflicts_total",
			Help: "Completion events with no matching progression rule",
		}, []string{"phase", "role"}),

		FailSafes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "firmo_progression_failsafe_total",
			Help: "Contracts parked in the fail-safe phase",
		}),
	}
}

// IncAdvance records one applied phase advance.
func (m *Metrics) IncAdvance(fromPhase, role, toPhase string) {
	if m != nil {
		m.Advances.WithLabelValues(fromPhase, role, toPhase).Inc()
	}
}

// IncConflict records one unmatched (phase, role) pair.
func (m *Metrics) IncConflict(phase, role string) {
	if m != nil {
		m.Conflicts.WithLabelValues(phase, role).Inc()
	}
}

// IncFailSafe records one applied fail-safe phase.
func (m *Metrics) IncFailSafe() {
	if m != nil {
		m.FailSafes.Inc()
	}
}
