package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/enrollment/models"
	"rollcall/internal/enrollment/service/mocks"
	"rollcall/internal/enrollment/store"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

//go:generate mockgen -source=../models/capability.go -destination=mocks/mocks.go -package=mocks FaceDetector,DescriptorExtractor

type EnrollmentServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	detector  *mocks.MockFaceDetector
	extractor *mocks.MockDescriptorExtractor
	svc       *Service
	ctx       context.Context
}

func TestEnrollmentServiceSuite(t *testing.T) {
	suite.Run(t, new(EnrollmentServiceSuite))
}

func (s *EnrollmentServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.detector = mocks.NewMockFaceDetector(s.ctrl)
	s.extractor = mocks.NewMockDescriptorExtractor(s.ctrl)
	s.svc = New(store.NewInMemory(), 4, WithCapabilities(s.detector, s.extractor))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func (s *EnrollmentServiceSuite) addDescriptor(id domain.ParticipantID, pose models.Pose) error {
	_, err := s.svc.AddSample(s.ctx, SampleInput{
		ParticipantID: id,
		Pose:          pose,
		Descriptor:    models.Descriptor{0.3, 0.4, 0.5},
	})
	return err
}

func (s *EnrollmentServiceSuite) TestPartialEnrollmentThenComplete() {
	_, err := s.svc.Begin(s.ctx, "P2", false)
	s.Require().NoError(err)

	s.Require().NoError(s.addDescriptor("P2", models.PoseExpression))
	s.Require().NoError(s.addDescriptor("P2", models.PoseFrontal))

	_, err = s.svc.Finalize(s.ctx, "P2")
	s.True(dErrors.HasCode(err, dErrors.CodeIncompleteEnrollment))

	usable, err := s.svc.UsableProfiles(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(usable, "incomplete profile is never a candidate")

	s.Require().NoError(s.addDescriptor("P2", models.PoseRight))
	s.Require().NoError(s.addDescriptor("P2", models.PoseLeft))

	p, err := s.svc.Finalize(s.ctx, "P2")
	s.Require().NoError(err)
	s.Equal(models.StatusUsable, p.Status)

	usable, err = s.svc.UsableProfiles(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(usable, 1)
	s.Equal(domain.ParticipantID("P2"), usable[0].ParticipantID)

	s.Run("finalize again is a no-op", func() {
		again, err := s.svc.Finalize(s.ctx, "P2")
		s.Require().NoError(err)
		s.Equal(p.FinalizedAt, again.FinalizedAt)
	})

	s.Run("samples after finalize are refused", func() {
		err := s.addDescriptor("P2", models.PoseFrontal)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	})
}

func (s *EnrollmentServiceSuite) TestMinSamplesAbovePoseCountStillFinalizes() {
	svc := New(store.NewInMemory(), 5)
	_, err := svc.Begin(s.ctx, "P7", false)
	s.Require().NoError(err)
	for _, pose := range models.RequiredPoses {
		_, err := svc.AddSample(s.ctx, SampleInput{ParticipantID: "P7", Pose: pose, Descriptor: models.Descriptor{0.3, 0.4, 0.5}})
		s.Require().NoError(err)
	}

	p, err := svc.Finalize(s.ctx, "P7")
	s.Require().NoError(err)
	s.Equal(models.StatusUsable, p.Status)
}

func (s *EnrollmentServiceSuite) TestBeginReset() {
	_, err := s.svc.Begin(s.ctx, "P1", false)
	s.Require().NoError(err)

	s.Run("begin on empty profile is idempotent", func() {
		p, err := s.svc.Begin(s.ctx, "P1", false)
		s.Require().NoError(err)
		s.Equal(1, p.Version)
	})

	s.Require().NoError(s.addDescriptor("P1", models.PoseFrontal))

	s.Run("reset without confirmation refused", func() {
		_, err := s.svc.Begin(s.ctx, "P1", false)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		p, err := s.svc.Get(s.ctx, "P1")
		s.Require().NoError(err)
		s.Len(p.Samples, 1)
	})

	s.Run("confirmed reset clears samples and bumps version", func() {
		p, err := s.svc.Begin(s.ctx, "P1", true)
		s.Require().NoError(err)
		s.Equal(2, p.Version)
		s.Empty(p.Samples)
	})
}

func (s *EnrollmentServiceSuite) TestAddSampleErrors() {
	s.Run("not started", func() {
		err := s.addDescriptor("ghost", models.PoseFrontal)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	_, err := s.svc.Begin(s.ctx, "P1", false)
	s.Require().NoError(err)

	s.Run("duplicate pose", func() {
		s.Require().NoError(s.addDescriptor("P1", models.PoseFrontal))
		err := s.addDescriptor("P1", models.PoseFrontal)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("neither image nor descriptor", func() {
		_, err := s.svc.AddSample(s.ctx, SampleInput{ParticipantID: "P1", Pose: models.PoseLeft})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("both image and descriptor", func() {
		_, err := s.svc.AddSample(s.ctx, SampleInput{
			ParticipantID: "P1",
			Pose:          models.PoseLeft,
			Image:         []byte{1},
			Descriptor:    models.Descriptor{1},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *EnrollmentServiceSuite) TestImageCaptureGate() {
	_, err := s.svc.Begin(s.ctx, "P1", false)
	s.Require().NoError(err)
	image := []byte("jpeg-bytes")
	face := models.Face{Box: models.Rect{X: 10, Y: 10, Width: 64, Height: 64}, Confidence: 0.99}

	s.Run("single face is extracted", func() {
		s.detector.EXPECT().Detect(gomock.Any(), image).Return([]models.Face{face}, nil)
		s.extractor.EXPECT().Extract(gomock.Any(), image, face).Return(models.Descriptor{0.1, 0.2}, nil)

		p, err := s.svc.AddSample(s.ctx, SampleInput{ParticipantID: "P1", Pose: models.PoseFrontal, Image: image})
		s.Require().NoError(err)
		s.Equal(models.Descriptor{0.1, 0.2}, p.Samples[0].Descriptor)
	})

	s.Run("no face", func() {
		s.detector.EXPECT().Detect(gomock.Any(), image).Return(nil, nil)
		_, err := s.svc.AddSample(s.ctx, SampleInput{ParticipantID: "P1", Pose: models.PoseLeft, Image: image})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("multiple faces", func() {
		s.detector.EXPECT().Detect(gomock.Any(), image).Return([]models.Face{face, face}, nil)
		_, err := s.svc.AddSample(s.ctx, SampleInput{ParticipantID: "P1", Pose: models.PoseLeft, Image: image})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("detector outage", func() {
		s.detector.EXPECT().Detect(gomock.Any(), image).Return(nil, errors.New("model offline"))
		_, err := s.svc.AddSample(s.ctx, SampleInput{ParticipantID: "P1", Pose: models.PoseLeft, Image: image})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("dimension drift from extractor", func() {
		s.detector.EXPECT().Detect(gomock.Any(), image).Return([]models.Face{face}, nil)
		s.extractor.EXPECT().Extract(gomock.Any(), image, face).Return(models.Descriptor{0.1, 0.2, 0.3}, nil)
		_, err := s.svc.AddSample(s.ctx, SampleInput{ParticipantID: "P1", Pose: models.PoseLeft, Image: image})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *EnrollmentServiceSuite) TestImagesUnsupportedWithoutCapabilities() {
	svc := New(store.NewInMemory(), 4)
	_, err := svc.Begin(s.ctx, "P1", false)
	s.Require().NoError(err)
	_, err = svc.AddSample(s.ctx, SampleInput{ParticipantID: "P1", Pose: models.PoseFrontal, Image: []byte{1}})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *EnrollmentServiceSuite) TestUsableProfilesRestrictedToIDs() {
	for _, id := range []domain.ParticipantID{"A", "B"} {
		_, err := s.svc.Begin(s.ctx, id, false)
		s.Require().NoError(err)
		for _, pose := range models.RequiredPoses {
			s.Require().NoError(s.addDescriptor(id, pose))
		}
		_, err = s.svc.Finalize(s.ctx, id)
		s.Require().NoError(err)
	}

	usable, err := s.svc.UsableProfiles(s.ctx, []domain.ParticipantID{"B", "missing"})
	s.Require().NoError(err)
	s.Require().Len(usable, 1)
	s.Equal(domain.ParticipantID("B"), usable[0].ParticipantID)
}

func (s *EnrollmentServiceSuite) TestConcurrentSamplesForDistinctPoses() {
	_, err := s.svc.Begin(s.ctx, "P1", false)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for _, pose := range models.RequiredPoses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.addDescriptor("P1", pose))
		}()
	}
	wg.Wait()

	p, err := s.svc.Finalize(s.ctx, "P1")
	s.Require().NoError(err)
	s.Len(p.Samples, 4)
}
