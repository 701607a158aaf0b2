package notify

import (
	"context"
	"io"
	"log/slog"
	"time"

	"rollcall/internal/notify/metrics"
)

// Worker queues events on a bounded channel and delivers them from a single
// goroutine. Publish never blocks: a full queue drops the event.
type Worker struct {
	sink         Sink
	inbox        chan Event
	drainTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type WorkerOption func(*Worker)

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithDrainTimeout bounds delivery of queued events after Run's context ends.
func WithDrainTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.drainTimeout = d
	}
}

func NewWorker(sink Sink, bufferSize int, opts ...WorkerOption) *Worker {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	w := &Worker{
		sink:         sink,
		inbox:        make(chan Event, bufferSize),
		drainTimeout: 5 * time.Second,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Publish enqueues event without blocking.
func (w *Worker) Publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case w.inbox <- event:
		w.metrics.IncrementPublished(string(event.Kind))
		w.metrics.SetQueueDepth(len(w.inbox))
	default:
		w.metrics.IncrementDropped()
		w.logger.WarnContext(ctx, "notify queue full; event dropped",
			"kind", string(event.Kind),
			"session_id", event.SessionID,
		)
	}
}

// Run delivers events until ctx ends, then drains what is already queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.deliver(ctx, event)
		default:
			return
		}
		if ctx.Err() != nil {
			w.logger.Warn("notify drain timed out", "remaining", len(w.inbox))
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	w.metrics.SetQueueDepth(len(w.inbox))
	if err := w.sink.Deliver(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "notify delivery failed",
			"kind", string(event.Kind),
			"session_id", event.SessionID,
			"error", err,
		)
	}
}
