package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := fromLookup(envLookup(nil))
	s.Require().NoError(err)
	s.Equal(":8080", cfg.Addr)
	s.Equal(4, cfg.Enrollment.MinSamples)
	s.Equal(30*time.Second, cfg.Token.RotateEvery)
	s.Empty(cfg.Kafka.Brokers)
}

func (s *ConfigSuite) TestOverrides() {
	cfg, err := fromLookup(envLookup(map[string]string{
		"ROLLCALL_TOKEN_TTL":           "45s",
		"ROLLCALL_MATCH_THRESHOLD":     "0.9",
		"ROLLCALL_KAFKA_BROKERS":       "k1:9092, k2:9092,",
		"ROLLCALL_SESSION_LATE_AFTER":  "10m",
		"ROLLCALL_RATE_LIMIT_DISABLED": "true",
		"ROLLCALL_RATE_LIMIT_CHECKINS": "50",
	}))
	s.Require().NoError(err)
	s.Equal(45*time.Second, cfg.Token.TTL)
	s.InDelta(0.9, cfg.Match.Threshold, 1e-9)
	s.Equal([]string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	s.Equal(10*time.Minute, cfg.Session.LateAfter)
	s.True(cfg.RateLimit.Disabled)
	s.Equal(50, cfg.RateLimit.CheckIns)
}

func (s *ConfigSuite) TestInvalidValues() {
	s.Run("unparseable duration", func() {
		_, err := fromLookup(envLookup(map[string]string{"ROLLCALL_TOKEN_TTL": "soon"}))
		s.Require().Error(err)
	})

	s.Run("dev signing key rejected outside dev", func() {
		_, err := fromLookup(envLookup(map[string]string{"ROLLCALL_ENV": "prod"}))
		s.Require().Error(err)
	})

	s.Run("unparseable bool", func() {
		_, err := fromLookup(envLookup(map[string]string{"ROLLCALL_RATE_LIMIT_DISABLED": "maybe"}))
		s.Require().Error(err)
	})

	s.Run("min samples above the pose count", func() {
		_, err := fromLookup(envLookup(map[string]string{"ROLLCALL_ENROLLMENT_MIN_SAMPLES": "5"}))
		s.Require().Error(err)
		s.Contains(err.Error(), "enrollment min samples")
	})

	s.Run("min samples at the pose count", func() {
		cfg, err := fromLookup(envLookup(map[string]string{"ROLLCALL_ENROLLMENT_MIN_SAMPLES": "4"}))
		s.Require().NoError(err)
		s.Equal(4, cfg.Enrollment.MinSamples)
	})

	s.Run("min samples below one", func() {
		_, err := fromLookup(envLookup(map[string]string{"ROLLCALL_ENROLLMENT_MIN_SAMPLES": "0"}))
		s.Require().Error(err)
	})

	s.Run("unknown session mode", func() {
		_, err := fromLookup(envLookup(map[string]string{"ROLLCALL_SESSION_DEFAULT_MODE": "qr"}))
		s.Require().Error(err)
	})
}
