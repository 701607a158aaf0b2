package store

import (
	"context"
	"sort"
	"sync"

	"rollcall/internal/enrollment/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[domain.ParticipantID]*models.Profile
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[domain.ParticipantID]*models.Profile)}
}

// Create stores a new profile; sentinel.ErrConflict if one exists.
func (s *InMemoryStore) Create(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ParticipantID]; ok {
		return sentinel.ErrConflict
	}
	s.profiles[p.ParticipantID] = p.Clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id domain.ParticipantID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// Execute validates and mutates a profile under the store lock. The stored
// profile only changes if validate succeeds.
func (s *InMemoryStore) Execute(_ context.Context, id domain.ParticipantID, validate func(*models.Profile) error, mutate func(*models.Profile)) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := p.Clone()
	if err := validate(working); err != nil {
		return working, err
	}
	mutate(working)
	s.profiles[id] = working
	return working.Clone(), nil
}

// ListUsable returns finalized profiles, optionally restricted to ids.
func (s *InMemoryStore) ListUsable(_ context.Context, ids []domain.ParticipantID) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Profile
	collect := func(p *models.Profile) {
		if p != nil && p.Status == models.StatusUsable {
			out = append(out, p.Clone())
		}
	}
	if ids == nil {
		for _, p := range s.profiles {
			collect(p)
		}
	} else {
		for _, id := range ids {
			collect(s.profiles[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}
