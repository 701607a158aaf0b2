package bucket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/ratelimit/models"
)

var (
	testLimit = models.Limit{Requests: 3, Window: time.Minute}
	t0        = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) allow(key string, at time.Time) *models.Result {
	res, err := s.store.Allow(s.ctx, key, testLimit, at)
	s.Require().NoError(err)
	return res
}

func (s *InMemoryStoreSuite) TestAllow() {
	s.Run("counts down remaining", func() {
		first := s.allow("k:first", t0)
		s.True(first.Allowed)
		s.Equal(3, first.Limit)
		s.Equal(2, first.Remaining)
		s.Equal(t0.Add(time.Minute), first.ResetAt)
	})

	s.Run("denies over the limit with retry after", func() {
		for i := range 3 {
			s.True(s.allow("k:over", t0.Add(time.Duration(i)*time.Second)).Allowed)
		}
		denied := s.allow("k:over", t0.Add(10*time.Second))
		s.False(denied.Allowed)
		s.Equal(0, denied.Remaining)
		s.Equal(50, denied.RetryAfter)
	})

	s.Run("window slides", func() {
		for range 3 {
			s.allow("k:slide", t0)
		}
		s.False(s.allow("k:slide", t0.Add(59*time.Second)).Allowed)
		s.True(s.allow("k:slide", t0.Add(61*time.Second)).Allowed)
	})

	s.Run("keys are independent", func() {
		for range 3 {
			s.allow("k:a", t0)
		}
		s.False(s.allow("k:a", t0).Allowed)
		s.True(s.allow("k:b", t0).Allowed)
	})
}

func (s *InMemoryStoreSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.store.Allow(ctx, "k", testLimit, t0)
	s.ErrorIs(err, context.Canceled)
}

func (s *InMemoryStoreSuite) TestPrune() {
	s.allow("k:old", t0)
	s.allow("k:new", t0.Add(2*time.Minute))
	s.Equal(1, s.store.Prune(t0.Add(time.Minute)))
	s.Len(s.store.buckets, 1)
}

func (s *InMemoryStoreSuite) TestConcurrentAdmissionsNeverOvershoot() {
	limit := models.Limit{Requests: 25, Window: time.Minute}
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(s.ctx, "k:race", limit, t0)
			s.NoError(err)
			if res != nil && res.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(25, admitted)
}
