//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/risk/models"
	"rollcall/internal/risk/store"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *store.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = store.NewRedis(s.redis.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripAndTTL() {
	ctx := context.Background()
	p := &models.Profile{
		ParticipantID: "P1",
		WindowedRate:  0.6,
		Trend:         models.TrendDeclining,
		Level:         models.LevelHigh,
		Factors:       []models.Factor{models.FactorDecliningTrend, models.FactorBelowThreshold},
		LastUpdated:   time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(s.cache.Set(ctx, p, time.Minute))

	got, err := s.cache.Get(ctx, "P1")
	s.Require().NoError(err)
	s.Equal(p, got)

	ttl, err := s.redis.Client.TTL(ctx, "rollcall:risk:P1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 50*time.Second)

	s.Require().NoError(s.cache.Delete(ctx, "P1"))
	_, err = s.cache.Get(ctx, "P1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisCacheSuite) TestAnnouncedLevelHasNoTTL() {
	ctx := context.Background()
	_, err := s.cache.AnnouncedLevel(ctx, "P1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.cache.SetAnnouncedLevel(ctx, "P1", models.LevelMedium))
	level, err := s.cache.AnnouncedLevel(ctx, "P1")
	s.Require().NoError(err)
	s.Equal(models.LevelMedium, level)

	ttl, err := s.redis.Client.TTL(ctx, "rollcall:risk-announced:P1").Result()
	s.Require().NoError(err)
	s.Equal(time.Duration(-1), ttl)
}
