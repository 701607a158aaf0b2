package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes check-in requests end to end.
type Metrics struct {
	CheckIns *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CheckIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_checkins_total",
			Help: "Check-in requests by method and result code",
		}, []string{"method", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollcall_checkin_duration_seconds",
			Help:    "Check-in latency from request to commit",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method"}),
	}
}

// ObserveCheckIn counts one request. result is "recorded", "duplicate" or an
// error code.
func (m *Metrics) ObserveCheckIn(method, result string, start time.Time) {
	if m == nil {
		return
	}
	m.CheckIns.WithLabelValues(method, result).Inc()
	m.Duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
