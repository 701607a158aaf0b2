package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes risk scoring.
type Metrics struct {
	Recomputed *prometheus.CounterVec
	CacheHits  *prometheus.CounterVec
	Dropped    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recomputed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_risk_recomputed_total",
			Help: "Risk profiles recomputed, by resulting level",
		}, []string{"level"}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_risk_cache_lookups_total",
			Help: "Risk cache lookups by result (hit, miss)",
		}, []string{"result"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_risk_recompute_dropped_total",
			Help: "Recompute requests dropped because the queue was full",
		}),
	}
}

func (m *Metrics) IncrementRecomputed(level string) {
	if m != nil {
		m.Recomputed.WithLabelValues(level).Inc()
	}
}

func (m *Metrics) IncrementCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues("hit").Inc()
		return
	}
	m.CacheHits.WithLabelValues("miss").Inc()
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}
