package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	enrollmentModels "rollcall/internal/enrollment/models"
)

// Server captures all runtime configuration. Every field has a development
// default; production deployments override through ROLLCALL_* variables.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	// StaffToken guards instructor routes. Empty disables the guard.
	StaffToken string

	Session    SessionConfig
	Token      TokenConfig
	Enrollment EnrollmentConfig
	Match      MatchConfig
	Ledger     LedgerConfig
	Risk       RiskConfig
	Notify     NotifyConfig
	RateLimit  RateLimitConfig

	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
}

type SessionConfig struct {
	// DefaultMode is used when open does not name one: token, face or both.
	DefaultMode string
	// LateAfter marks check-ins after openedAt+LateAfter as late. Zero disables.
	LateAfter time.Duration
	// ClosedRetention is how long closed sessions stay queryable in memory.
	ClosedRetention time.Duration
}

type TokenConfig struct {
	TTL         time.Duration
	RotateEvery time.Duration
	GraceSkew   time.Duration
	// GraceHistory bounds how many retired tokens a session keeps.
	GraceHistory int
	// Retention keeps retired tokens past their grace deadline so late
	// replays are reported as expired.
	Retention time.Duration
	// SigningKey signs scannable payloads. Must be at least 32 bytes outside dev.
	SigningKey string
}

type EnrollmentConfig struct {
	MinSamples int
}

type MatchConfig struct {
	// Similarity names the metric: cosine or euclidean.
	Similarity  string
	Threshold   float64
	Epsilon     float64
	Aggregate   string
	Parallelism int
}

type LedgerConfig struct {
	// CommitTimeout bounds one persistence call.
	CommitTimeout time.Duration
}

type RiskConfig struct {
	Window              int
	TrendDelta          float64
	Threshold           float64
	ConsecutiveAbsences int
	CacheTTL            time.Duration
}

type NotifyConfig struct {
	BufferSize int
}

// RateLimitConfig budgets public requests per client address over Window.
// Zero disables a class.
type RateLimitConfig struct {
	Disabled   bool
	Window     time.Duration
	CheckIns   int
	Enrollment int
	Reads      int
}

// RedisConfig configures the shared token store and risk cache.
// Empty URL keeps both in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures ledger and enrollment persistence.
// Empty URL keeps both in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the attendance event stream.
// No brokers routes events to the log sink.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

const devSigningKey = "dev-signing-key-change-in-production-0000"

// Default returns development defaults.
func Default() Server {
	return Server{
		Addr:        ":8080",
		Environment: "dev",
		LogLevel:    "info",
		Session: SessionConfig{
			DefaultMode:     "both",
			ClosedRetention: 24 * time.Hour,
		},
		Token: TokenConfig{
			TTL:          30 * time.Second,
			RotateEvery:  30 * time.Second,
			GraceSkew:    5 * time.Second,
			GraceHistory: 4,
			Retention:    2 * time.Minute,
			SigningKey:   devSigningKey,
		},
		Enrollment: EnrollmentConfig{MinSamples: 4},
		Match: MatchConfig{
			Similarity:  "cosine",
			Threshold:   0.80,
			Epsilon:     0.02,
			Aggregate:   "mean",
			Parallelism: 8,
		},
		Ledger: LedgerConfig{CommitTimeout: 5 * time.Second},
		Risk: RiskConfig{
			Window:              10,
			TrendDelta:          0.10,
			Threshold:           0.75,
			ConsecutiveAbsences: 3,
			CacheTTL:            15 * time.Minute,
		},
		Notify: NotifyConfig{BufferSize: 1024},
		RateLimit: RateLimitConfig{
			Window:     time.Minute,
			CheckIns:   600,
			Enrollment: 300,
			Reads:      1200,
		},
		Redis: RedisConfig{
			PoolSize:     20,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic:    "attendance.events",
			ClientID: "rollcall",
		},
	}
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Server, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	r.str("ROLLCALL_ADDR", &cfg.Addr)
	r.str("ROLLCALL_ENV", &cfg.Environment)
	r.str("ROLLCALL_LOG_LEVEL", &cfg.LogLevel)
	r.str("ROLLCALL_STAFF_TOKEN", &cfg.StaffToken)

	r.str("ROLLCALL_SESSION_DEFAULT_MODE", &cfg.Session.DefaultMode)
	r.duration("ROLLCALL_SESSION_LATE_AFTER", &cfg.Session.LateAfter)
	r.duration("ROLLCALL_SESSION_CLOSED_RETENTION", &cfg.Session.ClosedRetention)

	r.duration("ROLLCALL_TOKEN_TTL", &cfg.Token.TTL)
	r.duration("ROLLCALL_TOKEN_ROTATE_EVERY", &cfg.Token.RotateEvery)
	r.duration("ROLLCALL_TOKEN_GRACE_SKEW", &cfg.Token.GraceSkew)
	r.integer("ROLLCALL_TOKEN_GRACE_HISTORY", &cfg.Token.GraceHistory)
	r.duration("ROLLCALL_TOKEN_RETENTION", &cfg.Token.Retention)
	r.str("ROLLCALL_TOKEN_SIGNING_KEY", &cfg.Token.SigningKey)

	r.integer("ROLLCALL_ENROLLMENT_MIN_SAMPLES", &cfg.Enrollment.MinSamples)

	r.str("ROLLCALL_MATCH_SIMILARITY", &cfg.Match.Similarity)
	r.float("ROLLCALL_MATCH_THRESHOLD", &cfg.Match.Threshold)
	r.float("ROLLCALL_MATCH_EPSILON", &cfg.Match.Epsilon)
	r.str("ROLLCALL_MATCH_AGGREGATE", &cfg.Match.Aggregate)
	r.integer("ROLLCALL_MATCH_PARALLELISM", &cfg.Match.Parallelism)

	r.duration("ROLLCALL_LEDGER_COMMIT_TIMEOUT", &cfg.Ledger.CommitTimeout)

	r.integer("ROLLCALL_RISK_WINDOW", &cfg.Risk.Window)
	r.float("ROLLCALL_RISK_TREND_DELTA", &cfg.Risk.TrendDelta)
	r.float("ROLLCALL_RISK_THRESHOLD", &cfg.Risk.Threshold)
	r.integer("ROLLCALL_RISK_CONSECUTIVE_ABSENCES", &cfg.Risk.ConsecutiveAbsences)
	r.duration("ROLLCALL_RISK_CACHE_TTL", &cfg.Risk.CacheTTL)

	r.integer("ROLLCALL_NOTIFY_BUFFER", &cfg.Notify.BufferSize)

	r.boolean("ROLLCALL_RATE_LIMIT_DISABLED", &cfg.RateLimit.Disabled)
	r.duration("ROLLCALL_RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	r.integer("ROLLCALL_RATE_LIMIT_CHECKINS", &cfg.RateLimit.CheckIns)
	r.integer("ROLLCALL_RATE_LIMIT_ENROLLMENT", &cfg.RateLimit.Enrollment)
	r.integer("ROLLCALL_RATE_LIMIT_READS", &cfg.RateLimit.Reads)

	r.str("ROLLCALL_REDIS_URL", &cfg.Redis.URL)
	r.integer("ROLLCALL_REDIS_POOL_SIZE", &cfg.Redis.PoolSize)

	r.str("ROLLCALL_DATABASE_URL", &cfg.Database.URL)
	r.integer("ROLLCALL_DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)

	var brokers string
	r.str("ROLLCALL_KAFKA_BROKERS", &brokers)
	if brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	r.str("ROLLCALL_KAFKA_TOPIC", &cfg.Kafka.Topic)

	if err := errors.Join(r.errs...); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c Server) Validate() error {
	var errs []error
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.Token.RotateEvery <= 0 {
		errs = append(errs, errors.New("token rotation cadence must be positive"))
	}
	if c.Token.GraceSkew < 0 {
		errs = append(errs, errors.New("token grace skew must not be negative"))
	}
	if c.Token.GraceHistory < 1 {
		errs = append(errs, errors.New("token grace history must be at least 1"))
	}
	if c.Environment != "dev" && (c.Token.SigningKey == devSigningKey || len(c.Token.SigningKey) < 32) {
		errs = append(errs, errors.New("token signing key must be set and at least 32 bytes outside dev"))
	}
	switch c.Session.DefaultMode {
	case "token", "face", "both":
	default:
		errs = append(errs, fmt.Errorf("unknown session mode %q", c.Session.DefaultMode))
	}
	if n := len(enrollmentModels.RequiredPoses); c.Enrollment.MinSamples < 1 || c.Enrollment.MinSamples > n {
		errs = append(errs, fmt.Errorf("enrollment min samples must be between 1 and %d, one per required pose", n))
	}
	switch c.Match.Similarity {
	case "cosine", "euclidean":
	default:
		errs = append(errs, fmt.Errorf("unknown match similarity %q", c.Match.Similarity))
	}
	switch c.Match.Aggregate {
	case "mean", "max":
	default:
		errs = append(errs, fmt.Errorf("unknown match aggregate %q", c.Match.Aggregate))
	}
	if c.Match.Parallelism < 1 {
		errs = append(errs, errors.New("match parallelism must be at least 1"))
	}
	if c.Ledger.CommitTimeout <= 0 {
		errs = append(errs, errors.New("ledger commit timeout must be positive"))
	}
	if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
		errs = append(errs, errors.New("match threshold must be in (0,1]"))
	}
	if c.Match.Epsilon < 0 {
		errs = append(errs, errors.New("match epsilon must not be negative"))
	}
	if !c.RateLimit.Disabled && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.Risk.Window < 2 {
		errs = append(errs, errors.New("risk window must cover at least 2 sessions"))
	}
	return errors.Join(errs...)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func (r *reader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *reader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (r *reader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}
