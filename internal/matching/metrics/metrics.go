package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes face matching.
type Metrics struct {
	Results    *prometheus.CounterVec
	BestScore  prometheus.Histogram
	Candidates prometheus.Histogram
	Duration   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_match_results_total",
			Help: "Match attempts by result status",
		}, []string{"status"}),
		BestScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_match_best_score",
			Help:    "Highest candidate score per match attempt",
			Buckets: []float64{0.3, 0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		}),
		Candidates: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_match_candidates",
			Help:    "Usable profiles scored per match attempt",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_match_duration_seconds",
			Help:    "Time spent scoring the candidate pool",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) ObserveResult(status string, best float64, candidates int, start time.Time) {
	if m == nil {
		return
	}
	m.Results.WithLabelValues(status).Inc()
	m.Candidates.Observe(float64(candidates))
	m.Duration.Observe(time.Since(start).Seconds())
	if candidates > 0 {
		m.BestScore.Observe(best)
	}
}
