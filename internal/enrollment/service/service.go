package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"rollcall/internal/enrollment/metrics"
	"rollcall/internal/enrollment/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, p *models.Profile) error
	Find(ctx context.Context, id domain.ParticipantID) (*models.Profile, error)
	Execute(ctx context.Context, id domain.ParticipantID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error)
	ListUsable(ctx context.Context, ids []domain.ParticipantID) ([]*models.Profile, error)
}

// SampleInput is a capture event from the camera flow. Exactly one of Image
// or Descriptor is set.
type SampleInput struct {
	ParticipantID domain.ParticipantID
	Pose          models.Pose
	Image         []byte
	Descriptor    models.Descriptor
	CapturedAt    time.Time
}

// Service accumulates samples into profiles and serves usable ones.
type Service struct {
	store      Store
	detector   models.FaceDetector
	extractor  models.DescriptorExtractor
	minSamples int
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

// WithCapabilities enables raw image submissions.
func WithCapabilities(detector models.FaceDetector, extractor models.DescriptorExtractor) Option {
	return func(s *Service) {
		s.detector = detector
		s.extractor = extractor
	}
}

// New constructs the enrollment Service. Every pose is required and a
// profile holds one sample per pose, so minSamples is pinned to the pose
// count.
func New(store Store, minSamples int, opts ...Option) *Service {
	if minSamples != len(models.RequiredPoses) {
		minSamples = len(models.RequiredPoses)
	}
	s := &Service{
		store:      store,
		minSamples: minSamples,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin creates an empty profile. Replacing a profile that has samples or
// is already usable requires confirmReset; the version then increments.
func (s *Service) Begin(ctx context.Context, id domain.ParticipantID, confirmReset bool) (*models.Profile, error) {
	now := requestcontext.Now(ctx)
	reset := false
	p, err := s.store.Execute(ctx, id,
		func(p *models.Profile) error {
			if p.HasProgress() && !confirmReset {
				return dErrors.New(dErrors.CodeConflict, "profile already exists; confirm reset to discard it").
					With("participant_id", id.String()).
					With("status", string(p.Status))
			}
			return nil
		},
		func(p *models.Profile) {
			if p.HasProgress() {
				p.ApplyReset(now)
				reset = true
			}
		},
	)
	if err == nil {
		if reset {
			s.metrics.IncrementReset()
			s.logger.InfoContext(ctx, "enrollment reset",
				"participant_id", id.String(),
				"version", p.Version,
			)
		}
		return p, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, wrapStoreErr(err, "failed to begin enrollment")
	}

	p, err = models.NewProfile(id, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "enrollment started concurrently; retry").
				With("participant_id", id.String())
		}
		return nil, wrapStoreErr(err, "failed to begin enrollment")
	}
	s.logger.InfoContext(ctx, "enrollment started", "participant_id", id.String())
	return p, nil
}

// AddSample stores one pose capture. Raw images pass the face detection
// gate and are converted by the extractor; descriptors are stored as given.
func (s *Service) AddSample(ctx context.Context, in SampleInput) (*models.Profile, error) {
	p, err := s.addSample(ctx, in)
	if err != nil {
		s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.IncrementAccepted(in.Pose.String())
	return p, nil
}

func (s *Service) addSample(ctx context.Context, in SampleInput) (*models.Profile, error) {
	descriptor, err := s.Describe(ctx, in.Image, in.Descriptor)
	if err != nil {
		return nil, err
	}
	capturedAt := in.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = requestcontext.Now(ctx)
	}

	p, err := s.store.Execute(ctx, in.ParticipantID,
		func(p *models.Profile) error {
			return p.CanAddSample(in.Pose, descriptor)
		},
		func(p *models.Profile) {
			p.ApplySample(models.Sample{Pose: in.Pose, Descriptor: descriptor, CapturedAt: capturedAt})
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "enrollment not started").
				With("participant_id", in.ParticipantID.String())
		}
		return nil, wrapStoreErr(err, "failed to add sample")
	}
	s.logger.InfoContext(ctx, "enrollment sample added",
		"participant_id", in.ParticipantID.String(),
		"pose", in.Pose.String(),
		"remaining", len(p.MissingPoses()),
	)
	return p, nil
}

// Describe resolves a capture to a descriptor. A raw image must contain
// exactly one face.
func (s *Service) Describe(ctx context.Context, image []byte, descriptor models.Descriptor) (models.Descriptor, error) {
	switch {
	case len(image) > 0 && len(descriptor) > 0:
		return nil, dErrors.New(dErrors.CodeBadRequest, "send either an image or a descriptor, not both")
	case len(descriptor) > 0:
		if err := descriptor.Validate(); err != nil {
			return nil, err
		}
		return descriptor, nil
	case len(image) == 0:
		return nil, dErrors.New(dErrors.CodeBadRequest, "image or descriptor is required")
	}
	if s.detector == nil || s.extractor == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "image capture is not supported; submit a descriptor")
	}

	faces, err := s.detector.Detect(ctx, image)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "face detection failed")
	}
	switch len(faces) {
	case 0:
		return nil, dErrors.New(dErrors.CodeValidation, "no face detected")
	case 1:
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "multiple faces detected").With("faces", strconv.Itoa(len(faces)))
	}

	out, err := s.extractor.Extract(ctx, image, faces[0])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "descriptor extraction failed")
	}
	if err := out.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "extractor returned an invalid descriptor")
	}
	return out, nil
}

// Finalize marks the profile usable once every pose is captured.
func (s *Service) Finalize(ctx context.Context, id domain.ParticipantID) (*models.Profile, error) {
	now := requestcontext.Now(ctx)
	wasUsable := false
	p, err := s.store.Execute(ctx, id,
		func(p *models.Profile) error {
			wasUsable = p.Status == models.StatusUsable
			return p.CanFinalize(s.minSamples)
		},
		func(p *models.Profile) {
			p.ApplyFinalize(now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "enrollment not started").
				With("participant_id", id.String())
		}
		if dErrors.HasCode(err, dErrors.CodeIncompleteEnrollment) {
			s.logger.InfoContext(ctx, "enrollment incomplete", "participant_id", id.String())
		}
		return nil, wrapStoreErr(err, "failed to finalize enrollment")
	}
	if !wasUsable {
		s.metrics.IncrementFinalized()
		s.logger.InfoContext(ctx, "enrollment finalized",
			"participant_id", id.String(),
			"version", p.Version,
			"samples", len(p.Samples),
		)
	}
	return p, nil
}

// Get returns the profile in any state.
func (s *Service) Get(ctx context.Context, id domain.ParticipantID) (*models.Profile, error) {
	p, err := s.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "enrollment not found").With("participant_id", id.String())
		}
		return nil, wrapStoreErr(err, "failed to load enrollment")
	}
	return p, nil
}

// UsableProfiles returns profiles eligible for matching. A nil ids slice
// means all participants. Profiles below the minimum never appear.
func (s *Service) UsableProfiles(ctx context.Context, ids []domain.ParticipantID) ([]*models.Profile, error) {
	profiles, err := s.store.ListUsable(ctx, ids)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load profiles")
	}
	out := profiles[:0]
	for _, p := range profiles {
		if p.IsUsable(s.minSamples) {
			out = append(out, p)
		}
	}
	return out, nil
}

func wrapStoreErr(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
