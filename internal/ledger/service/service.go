package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"rollcall/internal/ledger/metrics"
	"rollcall/internal/ledger/models"
	"rollcall/internal/notify"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// Store persists ledger entries. InsertCheckIn is an atomic check-and-insert
// per (session, participant): when a root entry exists it returns that entry
// with sentinel.ErrDuplicate.
type Store interface {
	InsertCheckIn(ctx context.Context, rec *models.Record) (*models.Record, error)
	Amend(ctx context.Context, rec *models.Record) (*models.Record, error)
	InsertAbsences(ctx context.Context, sessionID domain.SessionID, classID domain.ClassID, participants []domain.ParticipantID, at time.Time, reason string) (int, error)
	ListBySession(ctx context.Context, id domain.SessionID) ([]*models.Record, error)
	ListByParticipant(ctx context.Context, pid domain.ParticipantID, from, to time.Time) ([]*models.Record, error)
}

// Publisher hands events to the notification pipeline without blocking.
type Publisher interface {
	Publish(ctx context.Context, event notify.Event)
}

// Observer is told whose history changed after each commit. It must not
// block and cannot affect the commit.
type Observer interface {
	Observe(ctx context.Context, participantID domain.ParticipantID)
}

// RecordInput is one check-in to commit.
type RecordInput struct {
	SessionID     domain.SessionID
	ClassID       domain.ClassID
	ParticipantID domain.ParticipantID
	Method        domain.CheckInMethod
	Confidence    float64
	Outcome       models.Outcome
	Device        string
	ClientIP      string
}

// AmendInput is an instructor correction.
type AmendInput struct {
	SessionID     domain.SessionID
	ClassID       domain.ClassID
	ParticipantID domain.ParticipantID
	Outcome       models.Outcome
	Reason        string
}

// Service is the attendance ledger. Entries are never edited; corrections
// append a superseding entry.
type Service struct {
	store         Store
	commitTimeout time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	publisher     Publisher
	observers     []Observer
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

func WithObserver(o Observer) Option {
	return func(s *Service) {
		s.observers = append(s.observers, o)
	}
}

// WithCommitTimeout bounds each persistence call.
func WithCommitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.commitTimeout = d
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		commitTimeout: 5 * time.Second,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe adds an observer after construction, for collaborators that
// themselves read from the ledger. Call it before serving.
func (s *Service) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// Record commits a check-in. Retrying a committed check-in with the same
// method returns the original entry with Duplicate set. A check-in by a
// different method than the committed one fails with
// already_recorded_by_other_method.
func (s *Service) Record(ctx context.Context, in RecordInput) (*models.Record, error) {
	rec, err := models.NewCheckIn(in.SessionID, in.ClassID, in.ParticipantID, in.Method, in.Confidence, in.Outcome, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	rec.Device = in.Device
	rec.ClientIP = in.ClientIP

	start := time.Now()
	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	stored, err := s.store.InsertCheckIn(commitCtx, rec)
	cancel()

	switch {
	case err == nil:
		s.metrics.ObserveCommit(in.Method.String(), "recorded", start)
		s.logger.InfoContext(ctx, "attendance recorded",
			"session_id", stored.SessionID.String(),
			"participant_id", stored.ParticipantID.String(),
			"method", stored.Method.String(),
			"outcome", stored.Outcome.String(),
			"confidence", stored.Confidence,
		)
		s.committed(ctx, stored, notify.KindAttendanceRecorded)
		return stored, nil

	case errors.Is(err, sentinel.ErrDuplicate) && stored != nil:
		if stored.Method != in.Method {
			s.metrics.ObserveCommit(in.Method.String(), "other_method", start)
			s.logger.WarnContext(ctx, "check-in already recorded by another method",
				"session_id", in.SessionID.String(),
				"participant_id", in.ParticipantID.String(),
				"method", in.Method.String(),
				"existing_method", stored.Method.String(),
			)
			return nil, dErrors.New(dErrors.CodeAlreadyRecordedByOtherMethod, "participant already recorded by another method").
				With("participant_id", in.ParticipantID.String()).
				With("existing_method", stored.Method.String()).
				With("recorded_at", stored.RecordedAt.UTC().Format(time.RFC3339))
		}
		s.metrics.ObserveCommit(in.Method.String(), "duplicate", start)
		s.logger.InfoContext(ctx, "duplicate check-in",
			"session_id", in.SessionID.String(),
			"participant_id", in.ParticipantID.String(),
			"method", in.Method.String(),
			"code", string(dErrors.CodeDuplicateCheckIn),
		)
		stored.Duplicate = true
		return stored, nil

	default:
		s.metrics.ObserveCommit(in.Method.String(), "error", start)
		return nil, commitErr(err, "failed to record attendance")
	}
}

// Amend appends a correction superseding the pair's current entry. A pair
// with no entry gets the correction as its first entry.
func (s *Service) Amend(ctx context.Context, in AmendInput) (*models.Record, error) {
	rec, err := models.NewCorrection(in.SessionID, in.ClassID, in.ParticipantID, in.Outcome, in.Reason, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	stored, err := s.store.Amend(commitCtx, rec)
	cancel()
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "entry was amended concurrently; reload and retry").
				With("participant_id", in.ParticipantID.String())
		}
		return nil, commitErr(err, "failed to amend attendance")
	}

	s.metrics.IncrementAmendment()
	attrs := []any{
		"session_id", stored.SessionID.String(),
		"participant_id", stored.ParticipantID.String(),
		"outcome", stored.Outcome.String(),
	}
	if stored.Supersedes != nil {
		attrs = append(attrs, "supersedes", stored.Supersedes.String())
	}
	s.logger.InfoContext(ctx, "attendance amended", attrs...)
	s.committed(ctx, stored, notify.KindAttendanceAmended)
	return stored, nil
}

// MarkAbsent writes absent entries for members who have no entry in the
// session. It is called after the session closes.
func (s *Service) MarkAbsent(ctx context.Context, sessionID domain.SessionID, classID domain.ClassID, members []domain.ParticipantID) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}
	now := requestcontext.Now(ctx)
	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	n, err := s.store.InsertAbsences(commitCtx, sessionID, classID, members, now, "no check-in before session close")
	cancel()
	if err != nil {
		return 0, commitErr(err, "failed to record absences")
	}
	s.metrics.AddAbsences(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "absences recorded",
			"session_id", sessionID.String(),
			"class_id", classID.String(),
			"count", n,
		)
		for _, pid := range members {
			s.observe(ctx, pid)
		}
	}
	return n, nil
}

// Query returns every entry for the session in commit order.
func (s *Service) Query(ctx context.Context, sessionID domain.SessionID) ([]*models.Record, error) {
	records, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, commitErr(err, "failed to load records")
	}
	return records, nil
}

// Effective returns the latest entry per participant for the session.
func (s *Service) Effective(ctx context.Context, sessionID domain.SessionID) ([]*models.Record, error) {
	records, err := s.Query(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return models.Effective(records), nil
}

// QueryByParticipant returns the participant's effective entry for each
// session first recorded within [from, to), oldest first. Zero bounds are
// open.
func (s *Service) QueryByParticipant(ctx context.Context, pid domain.ParticipantID, from, to time.Time) ([]*models.Record, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeValidation, "range start must be before its end")
	}
	records, err := s.store.ListByParticipant(ctx, pid, from, to)
	if err != nil {
		return nil, commitErr(err, "failed to load participant history")
	}
	return models.Effective(records), nil
}

func (s *Service) committed(ctx context.Context, rec *models.Record, kind notify.Kind) {
	if s.publisher != nil {
		severity := notify.SeveritySuccess
		switch rec.Outcome {
		case models.OutcomeLate:
			severity = notify.SeverityWarning
		case models.OutcomeAbsent:
			severity = notify.SeverityInfo
		}
		s.publisher.Publish(ctx, notify.Event{
			Kind:          kind,
			Severity:      severity,
			SessionID:     rec.SessionID.String(),
			ClassID:       rec.ClassID.String(),
			ParticipantID: rec.ParticipantID.String(),
			Method:        rec.Method.String(),
			Outcome:       rec.Outcome.String(),
			Timestamp:     rec.RecordedAt,
		})
	}
	s.observe(ctx, rec.ParticipantID)
}

func (s *Service) observe(ctx context.Context, pid domain.ParticipantID) {
	for _, o := range s.observers {
		o.Observe(ctx, pid)
	}
}

func commitErr(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger commit timed out")
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
