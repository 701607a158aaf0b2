package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes the notification pipeline.
type Metrics struct {
	Published    *prometheus.CounterVec
	Dropped      prometheus.Counter
	Delivered    *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	BreakerState prometheus.Gauge
	QueueDepth   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_notify_published_total",
			Help: "Events accepted into the notify queue, by kind",
		}, []string{"kind"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_notify_dropped_total",
			Help: "Events dropped because the notify queue was full",
		}),
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_notify_delivered_total",
			Help: "Events delivered, by sink",
		}, []string{"sink"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_notify_delivery_failures_total",
			Help: "Failed deliveries, by sink",
		}, []string{"sink"}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_notify_breaker_state",
			Help: "Broker circuit state (0=closed, 1=open)",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_notify_queue_depth",
			Help: "Events waiting for delivery",
		}),
	}
}

func (m *Metrics) IncrementPublished(kind string) {
	if m != nil {
		m.Published.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) IncrementDelivered(sink string) {
	if m != nil {
		m.Delivered.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncrementFailure(sink string) {
	if m != nil {
		m.Failures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
		return
	}
	m.BreakerState.Set(0)
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
