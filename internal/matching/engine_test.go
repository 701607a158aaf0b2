package matching

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	enrollmentModels "rollcall/internal/enrollment/models"
	"rollcall/internal/matching/metrics"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	engine  *Engine
	metrics *metrics.Metrics
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.metrics = metrics.New(prometheus.NewRegistry())
	engine, err := New(Config{Threshold: 0.80, Epsilon: 0.02, Parallelism: 4}, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.engine = engine
}

// enrolled builds a usable profile whose every pose sample is d.
func enrolled(id domain.ParticipantID, d ...float64) *enrollmentModels.Profile {
	p, _ := enrollmentModels.NewProfile(id, time.Now())
	for _, pose := range enrollmentModels.RequiredPoses {
		p.ApplySample(enrollmentModels.Sample{Pose: pose, Descriptor: d})
	}
	p.ApplyFinalize(time.Now())
	return p
}

func (s *EngineSuite) TestClearWinnerMatches() {
	pool := []*enrollmentModels.Profile{
		enrolled("alice", 1, 0, 0),
		enrolled("bob", 0, 1, 0),
		enrolled("carol", 0, 0, 1),
	}
	res, err := s.engine.Match(context.Background(), enrollmentModels.Descriptor{0.95, 0.05, 0}, pool)
	s.Require().NoError(err)
	s.Equal(StatusMatched, res.Status)
	s.Require().NotNil(res.Best)
	s.Equal(domain.ParticipantID("alice"), res.Best.ParticipantID)
	s.Equal(3, res.Candidates)
	s.NoError(res.Err())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Results.WithLabelValues("matched")))
}

func (s *EngineSuite) TestTwoCloseCandidatesAreAmbiguous() {
	pool := []*enrollmentModels.Profile{
		enrolled("alice", 1, 0),
		enrolled("twin", 1, 0.1),
	}
	res, err := s.engine.Match(context.Background(), enrollmentModels.Descriptor{1, 0.02}, pool)
	s.Require().NoError(err)
	s.Equal(StatusAmbiguous, res.Status)
	s.Require().NotNil(res.RunnerUp)
	s.GreaterOrEqual(res.RunnerUp.Score, 0.80)
	s.True(dErrors.HasCode(res.Err(), dErrors.CodeAmbiguousMatch))
}

func (s *EngineSuite) TestIdenticalScoresAreAmbiguousEvenWithZeroEpsilon() {
	engine, err := New(Config{Threshold: 0.5, Epsilon: 0})
	s.Require().NoError(err)
	res, err := engine.Match(context.Background(), enrollmentModels.Descriptor{1, 1},
		[]*enrollmentModels.Profile{enrolled("b", 1, 1), enrolled("a", 1, 1)})
	s.Require().NoError(err)
	s.Equal(StatusAmbiguous, res.Status)
	s.Equal(domain.ParticipantID("a"), res.Best.ParticipantID, "ties rank deterministically")
}

func (s *EngineSuite) TestBelowThresholdIsNoMatch() {
	pool := []*enrollmentModels.Profile{enrolled("alice", 1, 0)}
	res, err := s.engine.Match(context.Background(), enrollmentModels.Descriptor{0.5, 0.5}, pool)
	s.Require().NoError(err)
	s.Equal(StatusNoMatch, res.Status)
	s.Require().NotNil(res.Best)
	s.Less(res.Best.Score, 0.80)
	s.True(dErrors.HasCode(res.Err(), dErrors.CodeNoMatch))
}

func (s *EngineSuite) TestEmptyPoolIsNoMatch() {
	res, err := s.engine.Match(context.Background(), enrollmentModels.Descriptor{1}, nil)
	s.Require().NoError(err)
	s.Equal(StatusNoMatch, res.Status)
	s.Nil(res.Best)
	s.Zero(res.Candidates)
}

func (s *EngineSuite) TestUnusableProfilesAreNeverCandidates() {
	partial, _ := enrollmentModels.NewProfile("partial", time.Now())
	partial.ApplySample(enrollmentModels.Sample{Pose: enrollmentModels.PoseFrontal, Descriptor: enrollmentModels.Descriptor{1, 0}})

	res, err := s.engine.Match(context.Background(), enrollmentModels.Descriptor{1, 0},
		[]*enrollmentModels.Profile{partial, nil})
	s.Require().NoError(err)
	s.Equal(StatusNoMatch, res.Status)
	s.Zero(res.Candidates)
}

func (s *EngineSuite) TestDimensionMismatchSkipsProfile() {
	pool := []*enrollmentModels.Profile{
		enrolled("wide", 1, 0, 0, 0),
		enrolled("alice", 1, 0),
	}
	res, err := s.engine.Match(context.Background(), enrollmentModels.Descriptor{1, 0}, pool)
	s.Require().NoError(err)
	s.Equal(StatusMatched, res.Status)
	s.Equal(1, res.Candidates)
}

// requestIDHandler records the request id carried by each log call's context.
type requestIDHandler struct {
	mu  sync.Mutex
	ids []string
}

func (h *requestIDHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *requestIDHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h *requestIDHandler) WithGroup(string) slog.Handler            { return h }
func (h *requestIDHandler) Handle(ctx context.Context, _ slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, requestcontext.RequestID(ctx))
	return nil
}

func (s *EngineSuite) TestSkippedProfileIsLoggedWithRequestContext() {
	h := &requestIDHandler{}
	engine, err := New(Config{Threshold: 0.80, Epsilon: 0.02, Parallelism: 2}, WithLogger(slog.New(h)))
	s.Require().NoError(err)

	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	_, err = engine.Match(ctx, enrollmentModels.Descriptor{1, 0}, []*enrollmentModels.Profile{enrolled("wide", 1, 0, 0, 0)})
	s.Require().NoError(err)

	h.mu.Lock()
	defer h.mu.Unlock()
	s.Equal([]string{"req-42"}, h.ids)
}

func (s *EngineSuite) TestInvalidLiveDescriptor() {
	_, err := s.engine.Match(context.Background(), nil, []*enrollmentModels.Profile{enrolled("a", 1)})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *EngineSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.engine.Match(ctx, enrollmentModels.Descriptor{1, 0}, []*enrollmentModels.Profile{enrolled("a", 1, 0)})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *EngineSuite) TestLargePoolInParallel() {
	pool := make([]*enrollmentModels.Profile, 0, 200)
	for i := range 200 {
		pool = append(pool, enrolled(domain.ParticipantID("p"+string(rune('A'+i%26))+string(rune('a'+i/26))), float64(i)+1, 0, 1))
	}
	pool = append(pool, enrolled("target", 0, 1, 0))
	res, err := s.engine.Match(context.Background(), enrollmentModels.Descriptor{0, 1, 0}, pool)
	s.Require().NoError(err)
	s.Equal(StatusMatched, res.Status)
	s.Equal(domain.ParticipantID("target"), res.Best.ParticipantID)
}

func (s *EngineSuite) TestNewRejectsBadPolicy() {
	_, err := New(Config{Threshold: 0})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = New(Config{Threshold: 0.8, Epsilon: -1})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *EngineSuite) TestMaxAggregateWithEuclidean() {
	engine, err := New(Config{Threshold: 0.9, Aggregate: AggregateMax}, WithSimilarity(Euclidean))
	s.Require().NoError(err)

	p, _ := enrollmentModels.NewProfile("alice", time.Now())
	for i, pose := range enrollmentModels.RequiredPoses {
		d := enrollmentModels.Descriptor{float64(i) * 10, 0}
		p.ApplySample(enrollmentModels.Sample{Pose: pose, Descriptor: d})
	}
	p.ApplyFinalize(time.Now())

	res, err := engine.Match(context.Background(), enrollmentModels.Descriptor{0, 0}, []*enrollmentModels.Profile{p})
	s.Require().NoError(err)
	s.Equal(StatusMatched, res.Status)
	s.InDelta(1.0, res.Best.Score, 1e-9)
}
