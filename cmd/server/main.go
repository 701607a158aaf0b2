package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	checkinHandler "rollcall/internal/checkin/handler"
	checkinMetrics "rollcall/internal/checkin/metrics"
	checkinService "rollcall/internal/checkin/service"
	enrollmentHandler "rollcall/internal/enrollment/handler"
	enrollmentMetrics "rollcall/internal/enrollment/metrics"
	enrollmentService "rollcall/internal/enrollment/service"
	enrollmentStore "rollcall/internal/enrollment/store"
	ledgerHandler "rollcall/internal/ledger/handler"
	ledgerMetrics "rollcall/internal/ledger/metrics"
	ledgerService "rollcall/internal/ledger/service"
	ledgerStore "rollcall/internal/ledger/store"
	"rollcall/internal/matching"
	matchingMetrics "rollcall/internal/matching/metrics"
	"rollcall/internal/notify"
	notifyMetrics "rollcall/internal/notify/metrics"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/kafka"
	"rollcall/internal/platform/logger"
	httpMetrics "rollcall/internal/platform/metrics"
	"rollcall/internal/platform/postgres"
	"rollcall/internal/platform/redis"
	ratelimitMetrics "rollcall/internal/ratelimit/metrics"
	ratelimit "rollcall/internal/ratelimit/middleware"
	rlModels "rollcall/internal/ratelimit/models"
	"rollcall/internal/ratelimit/store/bucket"
	riskHandler "rollcall/internal/risk/handler"
	riskMetrics "rollcall/internal/risk/metrics"
	riskService "rollcall/internal/risk/service"
	riskStore "rollcall/internal/risk/store"
	"rollcall/internal/roster"
	sessionHandler "rollcall/internal/session/handler"
	sessionMetrics "rollcall/internal/session/metrics"
	sessionModels "rollcall/internal/session/models"
	sessionService "rollcall/internal/session/service"
	"rollcall/internal/token/codec"
	tokenMetrics "rollcall/internal/token/metrics"
	tokenService "rollcall/internal/token/service"
	tokenStore "rollcall/internal/token/store"
	httptransport "rollcall/internal/transport/http"
	"rollcall/pkg/platform/circuit"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// infra holds the optional shared backends. Nil fields fall back to memory.
type infra struct {
	redis    *redis.Client
	db       *sql.DB
	producer *kafka.Producer
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	inf := &infra{}
	var err error
	if inf.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if inf.db, err = postgres.Open(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if inf.db != nil {
		if err := postgres.Migrate(ctx, inf.db); err != nil {
			return nil, err
		}
	}
	if inf.producer, err = kafka.NewProducer(cfg.Kafka); err != nil {
		return nil, err
	}
	if inf.producer != nil {
		if err := inf.producer.EnsureTopic(ctx, 3, 1); err != nil {
			// topic may be managed externally; publishing still reports failures
			log.WarnContext(ctx, "could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
	}
	log.InfoContext(ctx, "backends selected",
		"redis", inf.redis != nil,
		"postgres", inf.db != nil,
		"kafka", inf.producer != nil,
	)
	return inf, nil
}

func (i *infra) close(ctx context.Context) {
	if i.producer != nil {
		_ = i.producer.Close(ctx)
	}
	if i.db != nil {
		_ = i.db.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

func (i *infra) checks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.producer != nil {
		checks["kafka"] = i.producer.Health
	}
	return checks
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	inf, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		inf.close(closeCtx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// notifications
	nm := notifyMetrics.New(reg)
	var sink notify.Sink = notify.NewLogSink(log, nm)
	if inf.producer != nil {
		breaker := circuit.New("kafka", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second))
		sink = notify.NewKafkaSink(inf.producer, breaker, sink, log, nm)
	}
	events := notify.NewWorker(sink, cfg.Notify.BufferSize, notify.WithLogger(log), notify.WithMetrics(nm))

	// tokens and sessions
	signer, err := codec.New([]byte(cfg.Token.SigningKey))
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	var tokens tokenService.Store = tokenStore.NewInMemory(cfg.Token.GraceHistory)
	if inf.redis != nil {
		tokens = tokenStore.NewRedis(inf.redis.Client, cfg.Token.GraceSkew, cfg.Token.Retention)
	}
	tokenSvc := tokenService.New(tokens, signer, tokenService.Config{
		TTL:       cfg.Token.TTL,
		GraceSkew: cfg.Token.GraceSkew,
		Retention: cfg.Token.Retention,
	}, tokenService.WithLogger(log), tokenService.WithMetrics(tokenMetrics.New(reg)))

	defaultMode, err := sessionModels.ParseMode(cfg.Session.DefaultMode, sessionModels.ModeBoth)
	if err != nil {
		return err
	}
	sessions := sessionService.New(tokenSvc,
		sessionService.WithLogger(log),
		sessionService.WithMetrics(sessionMetrics.New(reg)),
		sessionService.WithPublisher(events),
		sessionService.WithDefaultMode(defaultMode),
		sessionService.WithTokenTTL(cfg.Token.TTL),
	)
	rotator := sessionService.NewRotator(sessions, cfg.Token.RotateEvery, cfg.Session.ClosedRetention, log)

	// enrollment and matching
	var profiles enrollmentService.Store = enrollmentStore.NewInMemory()
	var records ledgerService.Store = ledgerStore.NewInMemory()
	if inf.db != nil {
		profiles = enrollmentStore.NewPostgres(inf.db)
		records = ledgerStore.NewPostgres(inf.db)
	}
	enrollment := enrollmentService.New(profiles, cfg.Enrollment.MinSamples,
		enrollmentService.WithLogger(log),
		enrollmentService.WithMetrics(enrollmentMetrics.New(reg)),
	)
	similarity, err := matching.SimilarityByName(cfg.Match.Similarity)
	if err != nil {
		return err
	}
	engine, err := matching.New(matching.Config{
		Threshold:   cfg.Match.Threshold,
		Epsilon:     cfg.Match.Epsilon,
		Aggregate:   matching.Aggregate(cfg.Match.Aggregate),
		Parallelism: cfg.Match.Parallelism,
		MinSamples:  cfg.Enrollment.MinSamples,
	},
		matching.WithSimilarity(similarity),
		matching.WithLogger(log),
		matching.WithMetrics(matchingMetrics.New(reg)),
	)
	if err != nil {
		return err
	}

	// ledger and risk
	var cache riskService.Cache = riskStore.NewInMemory()
	if inf.redis != nil {
		cache = riskStore.NewRedis(inf.redis.Client)
	}
	ledgerSvc := ledgerService.New(records,
		ledgerService.WithLogger(log),
		ledgerService.WithMetrics(ledgerMetrics.New(reg)),
		ledgerService.WithPublisher(events),
		ledgerService.WithCommitTimeout(cfg.Ledger.CommitTimeout),
	)
	risk := riskService.New(ledgerSvc, cache,
		riskService.WithLogger(log),
		riskService.WithMetrics(riskMetrics.New(reg)),
		riskService.WithPublisher(events),
		riskService.WithCacheTTL(cfg.Risk.CacheTTL),
		riskService.WithPolicy(riskService.Policy{
			Window:              cfg.Risk.Window,
			TrendDelta:          cfg.Risk.TrendDelta,
			Threshold:           cfg.Risk.Threshold,
			ConsecutiveAbsences: cfg.Risk.ConsecutiveAbsences,
		}),
	)
	ledgerSvc.Subscribe(risk)

	// check-in
	classes := roster.NewInMemory()
	checkins := checkinService.New(sessions, tokenSvc, enrollment, engine, ledgerSvc,
		checkinService.WithRoster(classes),
		checkinService.WithPublisher(events),
		checkinService.WithLateAfter(cfg.Session.LateAfter),
		checkinService.WithLogger(log),
		checkinService.WithMetrics(checkinMetrics.New(reg)),
	)

	// public throttling
	rlOpts := []ratelimit.Option{
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimitMetrics.New(reg)),
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithLimit(rlModels.ClassCheckIn, rlModels.Limit{Requests: cfg.RateLimit.CheckIns, Window: cfg.RateLimit.Window}),
		ratelimit.WithLimit(rlModels.ClassEnrollment, rlModels.Limit{Requests: cfg.RateLimit.Enrollment, Window: cfg.RateLimit.Window}),
		ratelimit.WithLimit(rlModels.ClassRead, rlModels.Limit{Requests: cfg.RateLimit.Reads, Window: cfg.RateLimit.Window}),
	}
	var limiter *ratelimit.Middleware
	var pruner *bucket.InMemoryStore
	if inf.redis != nil {
		limiter = ratelimit.New(bucket.NewRedis(inf.redis.Client), rlOpts...)
	} else {
		pruner = bucket.NewInMemory()
		limiter = ratelimit.New(pruner, rlOpts...)
	}

	sh := sessionHandler.New(sessions, tokenSvc, log)
	ch := checkinHandler.New(checkins, log)
	router := httptransport.NewRouter(httptransport.Config{
		Logger:      log,
		StaffToken:  cfg.StaffToken,
		Gatherer:    reg,
		Metrics:     httpMetrics.New(reg),
		Checks:      inf.checks(),
		RateLimiter: limiter,
		Public:      []httptransport.PublicRoutes{sh, ch, enrollmentHandler.New(enrollment, log)},
		Staff: []httptransport.StaffRoutes{
			sh, ch,
			ledgerHandler.New(ledgerSvc, sessions, log),
			riskHandler.New(risk),
			roster.NewHandler(classes),
		},
	})
	if cfg.StaffToken == "" {
		log.WarnContext(ctx, "staff token not set; instructor routes are open")
	}

	srv := httpserver.New(cfg.Addr, router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return events.Run(gctx) })
	g.Go(func() error { return rotator.Run(gctx) })
	g.Go(func() error { return risk.Run(gctx) })
	if pruner != nil && !cfg.RateLimit.Disabled {
		g.Go(func() error { return pruner.RunPruner(gctx, cfg.RateLimit.Window, cfg.RateLimit.Window) })
	}
	g.Go(func() error {
		log.InfoContext(gctx, "starting rollcall", "addr", cfg.Addr, "env", cfg.Environment)
		return httpserver.Run(gctx, srv, 10*time.Second)
	})
	return g.Wait()
}
