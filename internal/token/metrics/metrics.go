package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks token issuance and validation outcomes.
type Metrics struct {
	TokensIssued       prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	ValidateDuration   prometheus.Histogram
	TokensPruned       prometheus.Counter
}

// New registers token metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_tokens_issued_total",
			Help: "Check-in tokens issued, including rotations",
		}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_token_validation_failures_total",
			Help: "Rejected check-in tokens by reason",
		}, []string{"reason"}),
		ValidateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_token_validate_duration_seconds",
			Help:    "Duration of token validation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		TokensPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_tokens_pruned_total",
			Help: "Retired tokens dropped after their retention window",
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	if m == nil {
		return
	}
	m.TokensIssued.Inc()
}

func (m *Metrics) IncrementValidationFailure(reason string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(reason).Inc()
}

// ObserveValidate records validation latency. Call with time.Now() at the start.
func (m *Metrics) ObserveValidate(start time.Time) {
	if m == nil {
		return
	}
	m.ValidateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensPruned.Add(float64(n))
}
