//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/ratelimit/models"
	"rollcall/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	ctx   context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisStoreSuite) TestLimitAndSlide() {
	now := time.Now()
	limit := models.Limit{Requests: 2, Window: time.Minute}
	key := models.Key(models.ClassCheckIn, "10.0.0.1")

	first, err := s.store.Allow(s.ctx, key, limit, now)
	s.Require().NoError(err)
	s.True(first.Allowed)
	s.Equal(1, first.Remaining)

	_, err = s.store.Allow(s.ctx, key, limit, now.Add(time.Second))
	s.Require().NoError(err)

	denied, err := s.store.Allow(s.ctx, key, limit, now.Add(2*time.Second))
	s.Require().NoError(err)
	s.False(denied.Allowed)
	s.GreaterOrEqual(denied.RetryAfter, 57)

	n, err := s.redis.Client.ZCard(s.ctx, key).Result()
	s.Require().NoError(err)
	s.EqualValues(2, n, "denied request is withdrawn")

	later, err := s.store.Allow(s.ctx, key, limit, now.Add(61*time.Second))
	s.Require().NoError(err)
	s.True(later.Allowed)
}

func (s *RedisStoreSuite) TestKeyExpires() {
	key := models.Key(models.ClassRead, "10.0.0.2")
	_, err := s.store.Allow(s.ctx, key, models.Limit{Requests: 5, Window: 30 * time.Second}, time.Now())
	s.Require().NoError(err)
	ttl, err := s.redis.Client.PTTL(s.ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 25*time.Second)
}
