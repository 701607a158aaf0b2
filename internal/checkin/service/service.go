// Package service runs a check-in from request to ledger commit. It checks
// the session mode and class roster, verifies identity by token or face, and
// commits through the ledger while the session is held open.
package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rollcall/internal/checkin/metrics"
	enrollmentModels "rollcall/internal/enrollment/models"
	ledgerModels "rollcall/internal/ledger/models"
	ledgerService "rollcall/internal/ledger/service"
	"rollcall/internal/matching"
	"rollcall/internal/notify"
	sessionModels "rollcall/internal/session/models"
	sessionService "rollcall/internal/session/service"
	tokenModels "rollcall/internal/token/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

type Sessions interface {
	Get(ctx context.Context, id domain.SessionID) (*sessionModels.Session, error)
	CheckIn(ctx context.Context, id domain.SessionID, fn sessionService.CheckInFunc) error
	Close(ctx context.Context, id domain.SessionID) (int, error)
}

type Tokens interface {
	Validate(ctx context.Context, sessionID domain.SessionID, value string) (*tokenModels.Token, error)
	ValidatePayload(ctx context.Context, sessionID domain.SessionID, payload string) (*tokenModels.Token, error)
}

type Enrollment interface {
	Describe(ctx context.Context, image []byte, descriptor enrollmentModels.Descriptor) (enrollmentModels.Descriptor, error)
	UsableProfiles(ctx context.Context, ids []domain.ParticipantID) ([]*enrollmentModels.Profile, error)
}

type Matcher interface {
	Match(ctx context.Context, live enrollmentModels.Descriptor, pool []*enrollmentModels.Profile) (matching.Result, error)
}

type Ledger interface {
	Record(ctx context.Context, in ledgerService.RecordInput) (*ledgerModels.Record, error)
	MarkAbsent(ctx context.Context, sessionID domain.SessionID, classID domain.ClassID, members []domain.ParticipantID) (int, error)
}

// Roster lists a class's members. No members means the class is open.
type Roster interface {
	Members(ctx context.Context, classID domain.ClassID) ([]domain.ParticipantID, error)
}

type Publisher interface {
	Publish(ctx context.Context, event notify.Event)
}

// TokenCheckIn carries a scanned code. Payload is the signed code; TokenValue
// is the bare token for clients that type it in. One is required.
type TokenCheckIn struct {
	SessionID     domain.SessionID
	ParticipantID domain.ParticipantID
	Payload       string
	TokenValue    string
}

// FaceCheckIn carries a live capture: a raw image or a descriptor.
type FaceCheckIn struct {
	SessionID  domain.SessionID
	Image      []byte
	Descriptor enrollmentModels.Descriptor
}

// FaceResult is a committed face check-in with the match that identified it.
type FaceResult struct {
	Record *ledgerModels.Record
	Match  matching.Result
}

// CloseResult reports a closed session.
type CloseResult struct {
	AttendeeCount int
	AbsentCount   int
}

type Service struct {
	sessions   Sessions
	tokens     Tokens
	enrollment Enrollment
	matcher    Matcher
	ledger     Ledger
	roster     Roster
	publisher  Publisher
	lateAfter  time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
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

func WithRoster(r Roster) Option {
	return func(s *Service) {
		s.roster = r
	}
}

// WithLateAfter marks check-ins later than openedAt+d as late.
func WithLateAfter(d time.Duration) Option {
	return func(s *Service) {
		s.lateAfter = d
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(sessions Sessions, tokens Tokens, enrollment Enrollment, matcher Matcher, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		sessions:   sessions,
		tokens:     tokens,
		enrollment: enrollment,
		matcher:    matcher,
		ledger:     ledger,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.Tracer("rollcall/checkin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckInToken validates the scanned token against the session and records
// the participant.
func (s *Service) CheckInToken(ctx context.Context, in TokenCheckIn) (rec *ledgerModels.Record, err error) {
	ctx, span := s.tracer.Start(ctx, "checkin.Token", trace.WithAttributes(
		attribute.String("session_id", in.SessionID.String()),
		attribute.String("participant_id", in.ParticipantID.String()),
	))
	start := time.Now()
	defer func() { s.finish(span, domain.MethodToken, rec, err, start) }()

	if in.ParticipantID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "participant id is required")
	}
	if in.Payload == "" && in.TokenValue == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payload or token value is required")
	}

	err = s.sessions.CheckIn(ctx, in.SessionID, func(ctx context.Context, sess *sessionModels.Session) (domain.ParticipantID, error) {
		if err := s.admit(ctx, sess, domain.MethodToken, in.ParticipantID); err != nil {
			return "", err
		}
		if in.Payload != "" {
			_, err := s.tokens.ValidatePayload(ctx, sess.ID, in.Payload)
			if err != nil {
				return "", err
			}
		} else if _, err := s.tokens.Validate(ctx, sess.ID, in.TokenValue); err != nil {
			return "", err
		}
		rec, err = s.commit(ctx, sess, in.ParticipantID, domain.MethodToken, 1)
		if err != nil {
			return "", err
		}
		return in.ParticipantID, nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CheckInFace identifies the participant from a live capture and records
// them. A no-match or ambiguous result is returned as an error carrying its
// code so the caller can offer another method.
func (s *Service) CheckInFace(ctx context.Context, in FaceCheckIn) (res *FaceResult, err error) {
	ctx, span := s.tracer.Start(ctx, "checkin.Face", trace.WithAttributes(
		attribute.String("session_id", in.SessionID.String()),
	))
	start := time.Now()
	defer func() {
		var rec *ledgerModels.Record
		if res != nil {
			rec = res.Record
		}
		s.finish(span, domain.MethodFace, rec, err, start)
	}()

	sess, err := s.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.CanCheckIn(); err != nil {
		return nil, err
	}
	if !sess.Mode.Allows(domain.MethodFace) {
		return nil, methodDisabled(sess, domain.MethodFace)
	}

	// Detection and scoring run before the session is held so a slow
	// capture does not delay close.
	live, err := s.enrollment.Describe(ctx, in.Image, in.Descriptor)
	if err != nil {
		return nil, err
	}
	members, err := s.members(ctx, sess.ClassID)
	if err != nil {
		return nil, err
	}
	pool, err := s.enrollment.UsableProfiles(ctx, members)
	if err != nil {
		return nil, err
	}
	result, err := s.matcher.Match(ctx, live, pool)
	if err != nil {
		return nil, err
	}
	if result.Status != matching.StatusMatched {
		s.matchFailed(ctx, sess, result)
		return nil, result.Err()
	}

	pid := result.Best.ParticipantID
	span.SetAttributes(attribute.String("participant_id", pid.String()))
	var rec *ledgerModels.Record
	err = s.sessions.CheckIn(ctx, in.SessionID, func(ctx context.Context, sess *sessionModels.Session) (domain.ParticipantID, error) {
		if err := s.admit(ctx, sess, domain.MethodFace, pid); err != nil {
			return "", err
		}
		var err error
		rec, err = s.commit(ctx, sess, pid, domain.MethodFace, result.Best.Score)
		if err != nil {
			return "", err
		}
		return pid, nil
	})
	if err != nil {
		return nil, err
	}
	return &FaceResult{Record: rec, Match: result}, nil
}

// Close ends the session and records every roster member without an entry
// as absent.
func (s *Service) Close(ctx context.Context, id domain.SessionID) (CloseResult, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return CloseResult{}, dErrors.New(dErrors.CodeInvalidStateTransition, "session does not exist").
			With("session_id", id.String())
	}
	count, err := s.sessions.Close(ctx, id)
	if err != nil {
		return CloseResult{}, err
	}
	out := CloseResult{AttendeeCount: count}

	members, err := s.members(ctx, sess.ClassID)
	if err != nil {
		s.logger.ErrorContext(ctx, "roster unavailable, absences not recorded",
			"session_id", id.String(),
			"error", err,
		)
		return out, nil
	}
	absent, err := s.ledger.MarkAbsent(ctx, id, sess.ClassID, members)
	if err != nil {
		// the session is closed either way; absences can be amended later
		s.logger.ErrorContext(ctx, "failed to record absences",
			"session_id", id.String(),
			"error", err,
		)
		return out, nil
	}
	out.AbsentCount = absent
	return out, nil
}

// admit checks what the session and roster allow. It runs while the session
// is held.
func (s *Service) admit(ctx context.Context, sess *sessionModels.Session, method domain.CheckInMethod, pid domain.ParticipantID) error {
	if !sess.Mode.Allows(method) {
		return methodDisabled(sess, method)
	}
	members, err := s.members(ctx, sess.ClassID)
	if err != nil {
		return err
	}
	if len(members) > 0 && !slices.Contains(members, pid) {
		return dErrors.New(dErrors.CodeForbidden, "participant is not enrolled in this class").
			With("participant_id", pid.String()).
			With("class_id", sess.ClassID.String())
	}
	return nil
}

func (s *Service) commit(ctx context.Context, sess *sessionModels.Session, pid domain.ParticipantID, method domain.CheckInMethod, confidence float64) (*ledgerModels.Record, error) {
	outcome := ledgerModels.OutcomePresent
	if sess.IsLate(requestcontext.Now(ctx), s.lateAfter) {
		outcome = ledgerModels.OutcomeLate
	}
	return s.ledger.Record(ctx, ledgerService.RecordInput{
		SessionID:     sess.ID,
		ClassID:       sess.ClassID,
		ParticipantID: pid,
		Method:        method,
		Confidence:    confidence,
		Outcome:       outcome,
		Device:        requestcontext.Device(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
	})
}

// members returns the class roster, or nil when none is configured.
func (s *Service) members(ctx context.Context, classID domain.ClassID) ([]domain.ParticipantID, error) {
	if s.roster == nil {
		return nil, nil
	}
	members, err := s.roster.Members(ctx, classID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "class roster unavailable")
	}
	return members, nil
}

func (s *Service) matchFailed(ctx context.Context, sess *sessionModels.Session, result matching.Result) {
	attrs := []any{
		"session_id", sess.ID.String(),
		"status", string(result.Status),
		"candidates", result.Candidates,
	}
	eventAttrs := map[string]string{"status": string(result.Status)}
	if result.Best != nil {
		attrs = append(attrs, "best_score", result.Best.Score)
		eventAttrs["best_score"] = strconv.FormatFloat(result.Best.Score, 'f', 3, 64)
	}
	s.logger.InfoContext(ctx, "face check-in not matched", attrs...)
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, notify.Event{
		Kind:       notify.KindMatchFailed,
		Severity:   notify.SeverityWarning,
		SessionID:  sess.ID.String(),
		ClassID:    sess.ClassID.String(),
		Method:     domain.MethodFace.String(),
		Message:    "Face recognition failed, try QR",
		Timestamp:  requestcontext.Now(ctx),
		Attributes: eventAttrs,
	})
}

func (s *Service) finish(span trace.Span, method domain.CheckInMethod, rec *ledgerModels.Record, err error, start time.Time) {
	defer span.End()
	result := "recorded"
	switch {
	case err != nil:
		result = string(dErrors.CodeOf(err))
		span.SetStatus(codes.Error, result)
	case rec != nil && rec.Duplicate:
		result = "duplicate"
	}
	span.SetAttributes(attribute.String("checkin.result", result))
	s.metrics.ObserveCheckIn(method.String(), result, start)
}

func methodDisabled(sess *sessionModels.Session, method domain.CheckInMethod) error {
	return dErrors.New(dErrors.CodeBadRequest, "method not enabled for session").
		With("method", method.String()).
		With("mode", string(sess.Mode))
}
