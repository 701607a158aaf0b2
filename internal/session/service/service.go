package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"rollcall/internal/notify"
	"rollcall/internal/session/metrics"
	"rollcall/internal/session/models"
	tokenModels "rollcall/internal/token/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

// TokenIssuer mints and retires the session's check-in tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, sessionID domain.SessionID, ttl time.Duration) (*tokenModels.Token, error)
	Revoke(ctx context.Context, sessionID domain.SessionID) error
	Prune(ctx context.Context) (int, error)
}

// Publisher hands events to the notification pipeline without blocking.
type Publisher interface {
	Publish(ctx context.Context, event notify.Event)
}

// CheckInFunc commits one check-in while the session is held open.
// It returns the participant that was recorded.
type CheckInFunc func(ctx context.Context, session *models.Session) (domain.ParticipantID, error)

// entry guards one session. lifecycle serializes open, rotate and close;
// mu is held shared by check-ins and exclusively by state changes, so a
// close waits for in-flight check-ins before counting attendees.
type entry struct {
	lifecycle sync.Mutex
	mu        sync.RWMutex
	attendMu  sync.Mutex
	session   *models.Session
}

func (e *entry) snapshot() *models.Session {
	e.attendMu.Lock()
	defer e.attendMu.Unlock()
	return e.session.Snapshot()
}

// Service owns every session's state. Callers only ever see snapshots.
type Service struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*entry

	tokens      TokenIssuer
	defaultMode models.Mode
	tokenTTL    time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	publisher   Publisher
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

// WithDefaultMode sets the mode used when Open is not given one.
func WithDefaultMode(m models.Mode) Option {
	return func(s *Service) {
		s.defaultMode = m
	}
}

// WithTokenTTL sets the lifetime of tokens minted on open and rotation.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// New constructs the session manager.
func New(tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		sessions:    make(map[domain.SessionID]*entry),
		tokens:      tokens,
		defaultMode: models.ModeBoth,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a session, activates it and mints its first token.
func (s *Service) Open(ctx context.Context, classID domain.ClassID, ownerID domain.OwnerID, mode models.Mode) (*models.Session, *tokenModels.Token, error) {
	if mode == "" {
		mode = s.defaultMode
	}
	now := requestcontext.Now(ctx)
	sess, err := models.NewSession(domain.NewSessionID(), classID, ownerID, mode, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, nil, err
	}
	if err := sess.CanOpen(); err != nil {
		return nil, nil, err
	}

	tok, err := s.tokens.Issue(ctx, sess.ID, s.tokenTTL)
	if err != nil {
		return nil, nil, err
	}
	sess.ApplyOpen(tok, now)

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{session: sess}
	s.mu.Unlock()

	s.metrics.IncrementOpened()
	s.logger.InfoContext(ctx, "session opened",
		"session_id", sess.ID.String(),
		"class_id", classID.String(),
		"owner_id", ownerID.String(),
		"mode", string(mode),
	)
	s.publish(ctx, notify.Event{
		Kind:      notify.KindSessionOpened,
		Severity:  notify.SeverityInfo,
		SessionID: sess.ID.String(),
		ClassID:   classID.String(),
		Message:   "New class session",
		Timestamp: now,
	})

	snap := sess.Snapshot()
	return snap, snap.CurrentToken, nil
}

// Close ends a session, retires its token and reports the final attendee
// count. Closing an unknown or already closed session fails.
func (s *Service) Close(ctx context.Context, id domain.SessionID) (int, error) {
	e, ok := s.lookup(id)
	if !ok {
		return 0, dErrors.New(dErrors.CodeInvalidStateTransition, "session does not exist").
			With("session_id", id.String())
	}

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if err := e.session.CanClose(); err != nil {
		e.mu.Unlock()
		return 0, err
	}
	now := requestcontext.Now(ctx)
	e.session.ApplyClose(now)
	count := e.session.AttendeeCount()
	classID := e.session.ClassID
	e.mu.Unlock()

	if err := s.tokens.Revoke(ctx, id); err != nil {
		// the session already refuses check-ins, so a stale token is harmless
		s.logger.ErrorContext(ctx, "failed to revoke token on close",
			"session_id", id.String(),
			"error", err,
		)
	}

	s.metrics.ObserveClosed(count)
	s.logger.InfoContext(ctx, "session closed",
		"session_id", id.String(),
		"attendee_count", count,
	)
	s.publish(ctx, notify.Event{
		Kind:       notify.KindSessionClosed,
		Severity:   notify.SeverityInfo,
		SessionID:  id.String(),
		ClassID:    classID.String(),
		Timestamp:  now,
		Attributes: map[string]string{"attendee_count": strconv.Itoa(count)},
	})
	return count, nil
}

// Get returns a snapshot of the session.
func (s *Service) Get(_ context.Context, id domain.SessionID) (*models.Session, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found").With("session_id", id.String())
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot(), nil
}

// CheckIn runs fn while the session is guaranteed to stay Active, then adds
// the returned participant to the attendee set. Check-ins on one session
// run concurrently with each other; close waits for them.
func (s *Service) CheckIn(ctx context.Context, id domain.SessionID, fn CheckInFunc) error {
	e, ok := s.lookup(id)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "session not found").With("session_id", id.String())
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.session.CanCheckIn(); err != nil {
		return err
	}
	participantID, err := fn(ctx, e.snapshot())
	if err != nil {
		return err
	}

	e.attendMu.Lock()
	e.session.Attendees[participantID] = struct{}{}
	e.attendMu.Unlock()
	return nil
}

// Rotate mints a fresh live token for an Active session.
func (s *Service) Rotate(ctx context.Context, id domain.SessionID) (*tokenModels.Token, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found").With("session_id", id.String())
	}

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.RLock()
	err := e.session.CanRotate()
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	tok, err := s.tokens.Issue(ctx, id, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.session.CurrentToken = tok
	e.mu.Unlock()
	return tok, nil
}

// RotateActive rotates every Active session and prunes retired tokens.
// Sessions that close mid-sweep are skipped.
func (s *Service) RotateActive(ctx context.Context) (int, error) {
	var errs []error
	rotated := 0
	for _, id := range s.activeIDs() {
		_, err := s.Rotate(ctx, id)
		switch {
		case err == nil:
			rotated++
			s.metrics.IncrementRotation(false)
		case dErrors.HasCode(err, dErrors.CodeInvalidStateTransition):
		default:
			s.metrics.IncrementRotation(true)
			errs = append(errs, err)
		}
	}
	if _, err := s.tokens.Prune(ctx); err != nil {
		errs = append(errs, err)
	}
	return rotated, errors.Join(errs...)
}

// Evict forgets sessions closed before cutoff. Check-ins against them then
// fail as not found instead of closed.
func (s *Service) Evict(ctx context.Context, cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		e.mu.RLock()
		closedAt := e.session.ClosedAt
		e.mu.RUnlock()
		if closedAt != nil && closedAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.DebugContext(ctx, "evicted closed sessions", "count", evicted)
	}
	return evicted
}

func (s *Service) activeIDs() []domain.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]domain.SessionID, 0, len(s.sessions))
	for id, e := range s.sessions {
		e.mu.RLock()
		active := e.session.IsActive()
		e.mu.RUnlock()
		if active {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Service) lookup(id domain.SessionID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

func (s *Service) publish(ctx context.Context, event notify.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, event)
}
