package store

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"rollcall/internal/token/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

type sessionTokens struct {
	live    *models.Token
	retired []*models.Token // newest first
}

// InMemoryStore is a process-local Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionTokens
	history  int
}

// NewInMemory keeps at most history retired tokens per session.
func NewInMemory(history int) *InMemoryStore {
	if history < 1 {
		history = 1
	}
	return &InMemoryStore{
		sessions: make(map[domain.SessionID]*sessionTokens),
		history:  history,
	}
}

func (s *InMemoryStore) Rotate(_ context.Context, next *models.Token, now time.Time) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[next.SessionID]
	if !ok {
		st = &sessionTokens{}
		s.sessions[next.SessionID] = st
	}
	prev := st.live
	if prev != nil {
		prev.Retire(now)
		s.pushRetired(st, prev)
	}
	st.live = clone(next)
	return clone(prev), nil
}

func (s *InMemoryStore) pushRetired(st *sessionTokens, t *models.Token) {
	st.retired = append([]*models.Token{t}, st.retired...)
	if len(st.retired) > s.history {
		st.retired = st.retired[:s.history]
	}
}

func (s *InMemoryStore) Find(_ context.Context, sessionID domain.SessionID, value string) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if st.live != nil && sameValue(st.live.Value, value) {
		return clone(st.live), nil
	}
	for _, t := range st.retired {
		if sameValue(t.Value, value) {
			return clone(t), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Live(_ context.Context, sessionID domain.SessionID) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[sessionID]
	if !ok || st.live == nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(st.live), nil
}

func (s *InMemoryStore) RetireLive(_ context.Context, sessionID domain.SessionID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok || st.live == nil {
		return nil
	}
	st.live.Retire(now)
	s.pushRetired(st, st.live)
	st.live = nil
	return nil
}

func (s *InMemoryStore) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, st := range s.sessions {
		kept := st.retired[:0]
		for _, t := range st.retired {
			if t.ExpiresAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, t)
		}
		st.retired = kept
		if st.live == nil && len(st.retired) == 0 {
			delete(s.sessions, id)
		}
	}
	return pruned, nil
}

func sameValue(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
