// Package service keeps advisory attendance-risk profiles. Profiles are
// derived from ledger history on demand and cached; nothing here can block or
// alter a ledger commit.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	ledgerModels "rollcall/internal/ledger/models"
	"rollcall/internal/notify"
	"rollcall/internal/risk/metrics"
	"rollcall/internal/risk/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// HistorySource yields a participant's effective ledger entries, oldest first.
type HistorySource interface {
	QueryByParticipant(ctx context.Context, pid domain.ParticipantID, from, to time.Time) ([]*ledgerModels.Record, error)
}

// Cache stores derived profiles. Get returns sentinel.ErrNotFound on a miss.
// The announced level is kept apart from the profile and never expires, so
// an expired profile does not re-announce an unchanged level.
type Cache interface {
	Get(ctx context.Context, pid domain.ParticipantID) (*models.Profile, error)
	Set(ctx context.Context, p *models.Profile, ttl time.Duration) error
	Delete(ctx context.Context, pid domain.ParticipantID) error
	AnnouncedLevel(ctx context.Context, pid domain.ParticipantID) (models.Level, error)
	SetAnnouncedLevel(ctx context.Context, pid domain.ParticipantID, level models.Level) error
}

type Publisher interface {
	Publish(ctx context.Context, event notify.Event)
}

type Service struct {
	history   HistorySource
	cache     Cache
	policy    Policy
	cacheTTL  time.Duration
	queue     chan domain.ParticipantID
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithQueueSize bounds pending background recomputes.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queue = make(chan domain.ParticipantID, n)
		}
	}
}

func New(history HistorySource, cache Cache, opts ...Option) *Service {
	s := &Service{
		history:  history,
		cache:    cache,
		policy:   DefaultPolicy(),
		cacheTTL: 10 * time.Minute,
		queue:    make(chan domain.ParticipantID, 256),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRisk returns the cached profile or derives a fresh one.
func (s *Service) GetRisk(ctx context.Context, pid domain.ParticipantID) (*models.Profile, error) {
	if pid == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "participant id is required")
	}
	cached, err := s.cache.Get(ctx, pid)
	if err == nil {
		s.metrics.IncrementCache(true)
		return cached, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "risk cache read failed", "participant_id", pid, "error", err)
	}
	s.metrics.IncrementCache(false)
	return s.Recompute(ctx, pid)
}

// Recompute derives the profile from ledger history, replaces the cached
// copy, and announces a rise to medium or high.
func (s *Service) Recompute(ctx context.Context, pid domain.ParticipantID) (*models.Profile, error) {
	history, err := s.history.QueryByParticipant(ctx, pid, time.Time{}, time.Time{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "failed to load attendance history")
	}

	previous, err := s.cache.AnnouncedLevel(ctx, pid)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "risk announced level read failed", "participant_id", pid, "error", err)
		}
		previous = models.LevelLow
	}

	profile := Score(pid, history, s.policy)
	profile.LastUpdated = requestcontext.Now(ctx)
	if err := s.cache.Set(ctx, profile, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "risk cache write failed", "participant_id", pid, "error", err)
	}
	s.metrics.IncrementRecomputed(string(profile.Level))

	if profile.Level.Rank() > previous.Rank() && profile.Level != models.LevelLow {
		s.logger.InfoContext(ctx, "participant attendance risk rose",
			"participant_id", pid,
			"level", profile.Level,
			"windowed_rate", profile.WindowedRate,
		)
		if s.publisher != nil {
			s.publisher.Publish(ctx, lowAttendanceEvent(profile))
		}
	}
	if profile.Level != previous {
		if err := s.cache.SetAnnouncedLevel(ctx, pid, profile.Level); err != nil {
			s.logger.WarnContext(ctx, "risk announced level write failed", "participant_id", pid, "error", err)
		}
	}
	return profile, nil
}

// Observe queues a recompute without blocking. When the queue is full the
// request is dropped; the next GetRisk still derives a correct profile once
// the cached copy expires.
func (s *Service) Observe(ctx context.Context, pid domain.ParticipantID) {
	select {
	case s.queue <- pid:
	default:
		s.metrics.IncrementDropped()
		s.logger.WarnContext(ctx, "risk recompute dropped, queue full", "participant_id", pid)
	}
}

// Run processes queued recomputes until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pid := <-s.queue:
			if _, err := s.Recompute(ctx, pid); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "risk recompute failed", "participant_id", pid, "error", err)
			}
		}
	}
}

func lowAttendanceEvent(p *models.Profile) notify.Event {
	severity := notify.SeverityWarning
	if p.Level == models.LevelHigh {
		severity = notify.SeverityError
	}
	factors := make([]string, 0, len(p.Factors))
	for _, f := range p.Factors {
		factors = append(factors, string(f))
	}
	return notify.Event{
		Kind:          notify.KindLowAttendance,
		Severity:      severity,
		ParticipantID: p.ParticipantID.String(),
		Message:       "Attendance needs attention",
		Timestamp:     p.LastUpdated,
		Attributes: map[string]string{
			"level":   string(p.Level),
			"trend":   string(p.Trend),
			"factors": strings.Join(factors, ","),
		},
	}
}
