package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"rollcall/internal/token/codec"
	"rollcall/internal/token/metrics"
	"rollcall/internal/token/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// Store is the persistence the issuer needs. See token/store.
type Store interface {
	Rotate(ctx context.Context, next *models.Token, now time.Time) (*models.Token, error)
	Find(ctx context.Context, sessionID domain.SessionID, value string) (*models.Token, error)
	Live(ctx context.Context, sessionID domain.SessionID) (*models.Token, error)
	RetireLive(ctx context.Context, sessionID domain.SessionID, now time.Time) error
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Config carries token timing policy.
type Config struct {
	TTL       time.Duration
	GraceSkew time.Duration
	// Retention keeps retired tokens past their grace deadline so late
	// replays are rejected as expired rather than unknown.
	Retention time.Duration
}

// Service issues, rotates and validates check-in tokens.
type Service struct {
	store   Store
	codec   *codec.Codec
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
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

// New constructs a token Service.
func New(store Store, c *codec.Codec, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		codec:  c,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a token for sessionID and makes it the live token, retiring
// the previous one into the grace set. A non-positive ttl uses the default.
func (s *Service) Issue(ctx context.Context, sessionID domain.SessionID, ttl time.Duration) (*models.Token, error) {
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	now := requestcontext.Now(ctx)
	tok, err := models.New(sessionID, now, ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint token")
	}
	prev, err := s.store.Rotate(ctx, tok, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store token")
	}
	s.metrics.IncrementIssued()

	attrs := []any{"session_id", sessionID.String(), "expires_at", tok.ExpiresAt}
	if prev != nil {
		attrs = append(attrs, "retired_nonce", prev.Nonce)
	}
	s.logger.DebugContext(ctx, "token issued", attrs...)
	return tok, nil
}

// Validate judges a raw token value against sessionID at request time.
func (s *Service) Validate(ctx context.Context, sessionID domain.SessionID, value string) (*models.Token, error) {
	start := time.Now()
	defer s.metrics.ObserveValidate(start)

	if value == "" {
		return nil, s.reject(ctx, sessionID, "empty", dErrors.New(dErrors.CodeTokenUnknown, "token is required"))
	}
	now := requestcontext.Now(ctx)
	tok, err := s.store.Find(ctx, sessionID, value)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.reject(ctx, sessionID, "unknown", dErrors.New(dErrors.CodeTokenUnknown, "token not recognized for this session"))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token")
	}

	switch tok.StatusAt(now, s.cfg.GraceSkew) {
	case models.StatusNotYetValid:
		return nil, s.reject(ctx, sessionID, "not_yet_valid",
			dErrors.New(dErrors.CodeTokenUnknown, "token is not valid yet").With("issued_at", tok.IssuedAt.Format(time.RFC3339)))
	case models.StatusExpired:
		return nil, s.reject(ctx, sessionID, "expired",
			dErrors.New(dErrors.CodeTokenExpired, "token has expired").With("expired_at", tok.ExpiresAt.Format(time.RFC3339)))
	}
	return tok, nil
}

// ValidatePayload verifies a scanned payload and then the token it carries.
func (s *Service) ValidatePayload(ctx context.Context, sessionID domain.SessionID, payload string) (*models.Token, error) {
	p, err := s.codec.Decode(payload, sessionID)
	if err != nil {
		if errors.Is(err, codec.ErrSessionMismatch) {
			return nil, s.reject(ctx, sessionID, "session_mismatch", dErrors.New(dErrors.CodeTokenUnknown, "code belongs to another session"))
		}
		return nil, s.reject(ctx, sessionID, "malformed", dErrors.New(dErrors.CodeTokenUnknown, "code could not be verified"))
	}

	tok, err := s.Validate(ctx, sessionID, p.Value)
	if dErrors.HasCode(err, dErrors.CodeTokenUnknown) && !p.ExpiresAt.IsZero() {
		// Signed payload for a token already pruned from the store.
		if !requestcontext.Now(ctx).Before(p.ExpiresAt.Add(s.cfg.GraceSkew)) {
			return nil, dErrors.New(dErrors.CodeTokenExpired, "token has expired").With("expired_at", p.ExpiresAt.Format(time.RFC3339))
		}
	}
	return tok, err
}

// Current returns the live token for sessionID.
func (s *Service) Current(ctx context.Context, sessionID domain.SessionID) (*models.Token, error) {
	tok, err := s.store.Live(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session has no live token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load live token")
	}
	return tok, nil
}

// Encode renders tok as a signed payload for the code renderer.
func (s *Service) Encode(tok *models.Token) (string, error) {
	payload, err := s.codec.Encode(tok)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode token")
	}
	return payload, nil
}

// Revoke retires the live token of sessionID. Retired tokens keep rejecting
// replays as expired until pruned.
func (s *Service) Revoke(ctx context.Context, sessionID domain.SessionID) error {
	if err := s.store.RetireLive(ctx, sessionID, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	return nil
}

// Prune drops retired tokens past their grace deadline plus retention.
func (s *Service) Prune(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.cfg.GraceSkew - s.cfg.Retention)
	n, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to prune tokens")
	}
	s.metrics.AddPruned(n)
	return n, nil
}

func (s *Service) reject(ctx context.Context, sessionID domain.SessionID, reason string, err *dErrors.Error) error {
	s.metrics.IncrementValidationFailure(reason)
	s.logger.InfoContext(ctx, "token rejected",
		"session_id", sessionID.String(),
		"reason", reason,
	)
	return err
}
