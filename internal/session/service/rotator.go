package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"rollcall/pkg/requestcontext"
)

// Rotator periodically rotates live tokens, prunes retired ones and evicts
// long-closed sessions.
type Rotator struct {
	sessions        *Service
	every           time.Duration
	closedRetention time.Duration
	clock           func() time.Time
	logger          *slog.Logger
}

// NewRotator builds a rotator. closedRetention of zero keeps closed
// sessions forever.
func NewRotator(sessions *Service, every, closedRetention time.Duration, logger *slog.Logger) *Rotator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Rotator{
		sessions:        sessions,
		every:           every,
		closedRetention: closedRetention,
		clock:           time.Now,
		logger:          logger,
	}
}

// Run ticks until ctx is cancelled. Tick failures are logged, not fatal.
func (r *Rotator) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.TickAt(ctx, r.clock())
		case <-ctx.Done():
			return nil
		}
	}
}

// TickAt performs one sweep as of now. Exported for tests.
func (r *Rotator) TickAt(ctx context.Context, now time.Time) {
	ctx = requestcontext.WithTime(ctx, now)

	rotated, err := r.sessions.RotateActive(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "token rotation sweep failed", "error", err, "rotated", rotated)
	} else if rotated > 0 {
		r.logger.DebugContext(ctx, "rotated session tokens", "rotated", rotated)
	}

	if r.closedRetention > 0 {
		r.sessions.Evict(ctx, now.Add(-r.closedRetention))
	}
}
