package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Sessions started by party role
	SessionsStarted *prometheus.CounterVec

	// Steps submitted by capture kind
	StepsSubmitted *prometheus.CounterVec

	// Completion outcomes by result
	Completions *prometheus.CounterVec

	// Overall confidence of scored completions
	OverallConfidence prometheus.Histogram

	// Analyzer call latencies by channel
	AnalyzerLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firmo_verification_sessions_started_total",
			Help: "Total verification sessions started by party role",
		}, []string{"role"}),

		StepsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firmo_verification_steps_submitted_total",
			Help: "Total capture steps submitted by kind",
		}, []string{"kind"}),

		Completions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "firmo_verification_completions_total",
			Help: "Total session completion attempts by outcome",
		}, []string{"outcome"}), // outcome: "completed", "failed", "incomplete"

		OverallConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "firmo_verification_overall_confidence",
			Help:    "Overall confidence of scored completion attempts",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
		}),

		AnalyzerLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "firmo_verification_analyzer_duration_seconds",
			Help:    "Duration of analyzer calls by channel",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"channel"}), // channel: "face", "document", "combined", "voice"
	}
}

// IncSessionStarted records a session start for a role.
func (m *Metrics) IncSessionStarted(role string) {
	if m != nil {
		m.SessionsStarted.WithLabelValues(role).Inc()
	}
}

// IncStepSubmitted records a submitted capture step.
func (m *Metrics) IncStepSubmitted(kind string) {
	if m != nil {
		m.StepsSubmitted.WithLabelValues(kind).Inc()
	}
}

// IncCompletion records a completion attempt outcome.
func (m *Metrics) IncCompletion(outcome string) {
	if m != nil {
		m.Completions.WithLabelValues(outcome).Inc()
	}
}

// ObserveOverallConfidence records the confidence of a scored completion.
func (m *Metrics) ObserveOverallConfidence(score float64) {
	if m != nil {
		m.OverallConfidence.Observe(score)
	}
}

// ObserveAnalyzerLatency records the duration of one analyzer call.
func (m *Metrics) ObserveAnalyzerLatency(channel string, d time.Duration) {
	if m != nil {
		m.AnalyzerLatency.WithLabelValues(channel).Observe(d.Seconds())
	}
}
