package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes ledger commits.
type Metrics struct {
	Commits        *prometheus.CounterVec
	CommitDuration prometheus.Histogram
	Amendments     prometheus.Counter
	Absences       prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_ledger_commits_total",
			Help: "Check-in commits by method and result (recorded, duplicate, other_method, error)",
		}, []string{"method", "result"}),
		CommitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_ledger_commit_duration_seconds",
			Help:    "Duration of the ledger persistence call",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Amendments: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_ledger_amendments_total",
			Help: "Correction entries appended",
		}),
		Absences: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_ledger_absences_total",
			Help: "Absent entries written at session close",
		}),
	}
}

func (m *Metrics) ObserveCommit(method, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Commits.WithLabelValues(method, result).Inc()
	m.CommitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementAmendment() {
	if m != nil {
		m.Amendments.Inc()
	}
}

func (m *Metrics) AddAbsences(n int) {
	if m != nil {
		m.Absences.Add(float64(n))
	}
}
