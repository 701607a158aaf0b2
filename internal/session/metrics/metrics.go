package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks session lifecycle and rotation.
type Metrics struct {
	SessionsOpened   prometheus.Counter
	SessionsClosed   prometheus.Counter
	ActiveSessions   prometheus.Gauge
	Rotations        prometheus.Counter
	RotationFailures prometheus.Counter
	AttendeesAtClose prometheus.Histogram
}

// New registers session metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_sessions_opened_total",
			Help: "Sessions opened",
		}),
		SessionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_sessions_closed_total",
			Help: "Sessions closed",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_sessions_active",
			Help: "Sessions currently accepting check-ins",
		}),
		Rotations: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_session_token_rotations_total",
			Help: "Scheduled token rotations",
		}),
		RotationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_session_token_rotation_failures_total",
			Help: "Scheduled token rotations that failed",
		}),
		AttendeesAtClose: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_session_attendees_at_close",
			Help:    "Attendee count reported when a session closes",
			Buckets: []float64{0, 5, 10, 20, 40, 80, 160, 320},
		}),
	}
}

func (m *Metrics) IncrementOpened() {
	if m == nil {
		return
	}
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) ObserveClosed(attendees int) {
	if m == nil {
		return
	}
	m.SessionsClosed.Inc()
	m.ActiveSessions.Dec()
	m.AttendeesAtClose.Observe(float64(attendees))
}

func (m *Metrics) IncrementRotation(failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.RotationFailures.Inc()
		return
	}
	m.Rotations.Inc()
}
