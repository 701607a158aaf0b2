package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"rollcall/internal/notify/metrics"
	"rollcall/pkg/platform/circuit"
)

// LogSink writes events to the structured log. It is the default sink and
// the Kafka sink's fallback.
type LogSink struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewLogSink(logger *slog.Logger, m *metrics.Metrics) *LogSink {
	return &LogSink{logger: logger, metrics: m}
}

func (s *LogSink) Deliver(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "notification",
		"kind", string(e.Kind),
		"severity", string(e.Severity),
		"session_id", e.SessionID,
		"class_id", e.ClassID,
		"participant_id", e.ParticipantID,
		"method", e.Method,
		"outcome", e.Outcome,
		"message", e.Message,
		"timestamp", e.Timestamp,
	)
	s.metrics.IncrementDelivered("log")
	return nil
}

// KafkaSink publishes JSON events keyed by session. While the breaker is
// open, events go to the fallback sink instead.
type KafkaSink struct {
	producer Producer
	breaker  *circuit.Breaker
	fallback Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewKafkaSink(producer Producer, breaker *circuit.Breaker, fallback Sink, logger *slog.Logger, m *metrics.Metrics) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		breaker:  breaker,
		fallback: fallback,
		logger:   logger,
		metrics:  m,
	}
}

func (s *KafkaSink) Deliver(ctx context.Context, e Event) error {
	if !s.breaker.Allow() {
		return s.fallback.Deliver(ctx, e)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.producer.Publish(ctx, e.Key(), payload); err != nil {
		s.metrics.IncrementFailure("kafka")
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.metrics.SetBreakerOpen(true)
			s.logger.WarnContext(ctx, "event stream circuit opened; falling back to log sink",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		return s.fallback.Deliver(ctx, e)
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetBreakerOpen(false)
		s.logger.InfoContext(ctx, "event stream circuit closed", "breaker", s.breaker.Name())
	}
	s.metrics.IncrementDelivered("kafka")
	return nil
}
