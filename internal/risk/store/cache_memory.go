package store

import (
	"context"
	"sync"
	"time"

	"rollcall/internal/risk/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

type cached struct {
	profile   models.Profile
	expiresAt time.Time
}

// InMemoryCache holds risk profiles with a TTL.
type InMemoryCache struct {
	mu        sync.RWMutex
	entries   map[domain.ParticipantID]cached
	announced map[domain.ParticipantID]models.Level
	now       func() time.Time
}

type MemoryOption func(*InMemoryCache)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *InMemoryCache) {
		c.now = now
	}
}

func NewInMemory(opts ...MemoryOption) *InMemoryCache {
	c := &InMemoryCache{
		entries:   make(map[domain.ParticipantID]cached),
		announced: make(map[domain.ParticipantID]models.Level),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemoryCache) Get(_ context.Context, pid domain.ParticipantID) (*models.Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[pid]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	p := e.profile
	p.Factors = append([]models.Factor(nil), e.profile.Factors...)
	return &p, nil
}

func (c *InMemoryCache) Set(_ context.Context, p *models.Profile, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := *p
	stored.Factors = append([]models.Factor(nil), p.Factors...)
	c.entries[p.ParticipantID] = cached{profile: stored, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, pid domain.ParticipantID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, pid)
	return nil
}

// AnnouncedLevel returns the last level published for pid.
func (c *InMemoryCache) AnnouncedLevel(_ context.Context, pid domain.ParticipantID) (models.Level, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	level, ok := c.announced[pid]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return level, nil
}

func (c *InMemoryCache) SetAnnouncedLevel(_ context.Context, pid domain.ParticipantID, level models.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.announced[pid] = level
	return nil
}
