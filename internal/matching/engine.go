package matching

import (
	"cmp"
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
	"golang.org/x/sync/errgroup"

	enrollmentModels "rollcall/internal/enrollment/models"
	"rollcall/internal/matching/metrics"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Status is the outcome of a match attempt. Only StatusMatched identifies
// someone; the others are expected results the caller handles by offering
// another check-in method.
type Status string

const (
	StatusMatched   Status = "matched"
	StatusNoMatch   Status = "no_match"
	StatusAmbiguous Status = "ambiguous"
)

// Candidate is one scored profile.
type Candidate struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Score         float64              `json:"score"`
}

// Result carries the best candidate and, when present, the runner-up that
// decided ambiguity.
type Result struct {
	Status     Status     `json:"status"`
	Best       *Candidate `json:"best,omitempty"`
	RunnerUp   *Candidate `json:"runner_up,omitempty"`
	Candidates int        `json:"candidates"`
}

// Err converts a non-matched result into its coded error.
func (r Result) Err() error {
	switch r.Status {
	case StatusMatched:
		return nil
	case StatusAmbiguous:
		return dErrors.New(dErrors.CodeAmbiguousMatch, "more than one enrolled profile matches; use another check-in method").
			With("best_score", formatScore(r.Best)).
			With("runner_up_score", formatScore(r.RunnerUp))
	default:
		return dErrors.New(dErrors.CodeNoMatch, "no enrolled profile matches; retry or use another check-in method").
			With("best_score", formatScore(r.Best)).
			With("candidates", strconv.Itoa(r.Candidates))
	}
}

func formatScore(c *Candidate) string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(c.Score, 'f', 4, 64)
}

// Config is the acceptance policy.
type Config struct {
	Threshold float64
	// Epsilon is the minimum lead the best candidate needs over the runner-up.
	Epsilon     float64
	Aggregate   Aggregate
	Parallelism int
	// MinSamples re-checks profile usability; profiles below it are skipped.
	MinSamples int
}

// Engine scores a live descriptor against a candidate pool. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	cfg        Config
	similarity Similarity
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Engine)

// WithSimilarity replaces the default cosine similarity.
func WithSimilarity(fn Similarity) Option {
	return func(e *Engine) {
		e.similarity = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "threshold must be in (0,1]")
	}
	if cfg.Epsilon < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "epsilon must not be negative")
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.Aggregate == "" {
		cfg.Aggregate = AggregateMean
	}
	if cfg.MinSamples != len(enrollmentModels.RequiredPoses) {
		cfg.MinSamples = len(enrollmentModels.RequiredPoses)
	}
	e := &Engine{
		cfg:        cfg,
		similarity: Cosine,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.Tracer("rollcall/matching"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Match scores live against every usable profile in pool. NoMatch and
// Ambiguous are reported in the Result, not as errors; an error means the
// input was invalid or ctx ended.
func (e *Engine) Match(ctx context.Context, live enrollmentModels.Descriptor, pool []*enrollmentModels.Profile) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "matching.Match", trace.WithAttributes(
		attribute.Int("match.pool_size", len(pool)),
	))
	defer span.End()
	start := time.Now()

	if err := live.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid descriptor")
		return Result{}, err
	}

	usable := make([]*enrollmentModels.Profile, 0, len(pool))
	for _, p := range pool {
		if p != nil && p.IsUsable(e.cfg.MinSamples) {
			usable = append(usable, p)
		}
	}

	scores := make([]float64, len(usable))
	scored := make([]bool, len(usable))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for i, p := range usable {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score, ok := e.scoreProfile(gctx, live, p)
			scores[i], scored[i] = score, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, "match cancelled")
		return Result{}, dErrors.Wrap(err, dErrors.CodeTimeout, "match cancelled")
	}

	ranked := make([]Candidate, 0, len(usable))
	for i, p := range usable {
		if scored[i] {
			ranked = append(ranked, Candidate{ParticipantID: p.ParticipantID, Score: scores[i]})
		}
	}
	slices.SortFunc(ranked, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ParticipantID, b.ParticipantID)
	})

	res := e.decide(ranked)
	span.SetAttributes(
		attribute.String("match.status", string(res.Status)),
		attribute.Int("match.candidates", res.Candidates),
	)
	var best float64
	if res.Best != nil {
		best = res.Best.Score
		span.SetAttributes(attribute.Float64("match.best_score", best))
	}
	e.metrics.ObserveResult(string(res.Status), best, res.Candidates, start)
	return res, nil
}

func (e *Engine) decide(ranked []Candidate) Result {
	res := Result{Status: StatusNoMatch, Candidates: len(ranked)}
	if len(ranked) == 0 {
		return res
	}
	best := ranked[0]
	res.Best = &best
	if len(ranked) > 1 {
		runnerUp := ranked[1]
		res.RunnerUp = &runnerUp
	}
	if best.Score < e.cfg.Threshold {
		return res
	}
	if res.RunnerUp != nil && best.Score-res.RunnerUp.Score <= e.cfg.Epsilon {
		res.Status = StatusAmbiguous
		return res
	}
	res.Status = StatusMatched
	return res
}

// scoreProfile aggregates live against each sample of p. Samples of a
// different dimension make the whole profile unscorable.
func (e *Engine) scoreProfile(ctx context.Context, live enrollmentModels.Descriptor, p *enrollmentModels.Profile) (float64, bool) {
	sampleScores := make([]float64, 0, len(p.Samples))
	for _, s := range p.Samples {
		score, err := e.similarity(live, s.Descriptor)
		if err != nil {
			e.logger.WarnContext(ctx, "profile skipped during match",
				"participant_id", p.ParticipantID.String(),
				"pose", s.Pose.String(),
				"error", err,
			)
			return 0, false
		}
		sampleScores = append(sampleScores, score)
	}
	return e.cfg.Aggregate.apply(sampleScores), true
}
