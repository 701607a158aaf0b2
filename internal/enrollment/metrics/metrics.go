package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks enrollment progress.
type Metrics struct {
	SamplesAccepted *prometheus.CounterVec
	SamplesRejected *prometheus.CounterVec
	Finalized       prometheus.Counter
	Resets          prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SamplesAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_enrollment_samples_accepted_total",
			Help: "Enrollment samples stored, by pose",
		}, []string{"pose"}),
		SamplesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_enrollment_samples_rejected_total",
			Help: "Enrollment samples refused, by error code",
		}, []string{"code"}),
		Finalized: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_enrollment_finalized_total",
			Help: "Profiles that became usable",
		}),
		Resets: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_enrollment_resets_total",
			Help: "Profiles discarded by a confirmed re-enrollment",
		}),
	}
}

func (m *Metrics) IncrementAccepted(pose string) {
	if m == nil {
		return
	}
	m.SamplesAccepted.WithLabelValues(pose).Inc()
}

func (m *Metrics) IncrementRejected(code string) {
	if m == nil {
		return
	}
	m.SamplesRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) IncrementFinalized() {
	if m == nil {
		return
	}
	m.Finalized.Inc()
}

func (m *Metrics) IncrementReset() {
	if m == nil {
		return
	}
	m.Resets.Inc()
}
