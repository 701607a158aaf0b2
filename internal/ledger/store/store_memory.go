package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"rollcall/internal/ledger/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// bucket holds one session's entries. Its mutex makes the root
// check-and-insert atomic per session while other sessions proceed.
type bucket struct {
	mu      sync.Mutex
	records []*models.Record
	roots   map[domain.ParticipantID]*models.Record
	latest  map[domain.ParticipantID]*models.Record
}

// InMemoryStore is the default ledger when no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	buckets map[domain.SessionID]*bucket
	seq     int64
	seqMu   sync.Mutex
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{buckets: make(map[domain.SessionID]*bucket)}
}

func (s *InMemoryStore) bucket(id domain.SessionID, create bool) *bucket {
	s.mu.RLock()
	b, ok := s.buckets[id]
	s.mu.RUnlock()
	if ok || !create {
		return b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[id]; ok {
		return b
	}
	b = &bucket{
		roots:  make(map[domain.ParticipantID]*models.Record),
		latest: make(map[domain.ParticipantID]*models.Record),
	}
	s.buckets[id] = b
	return b
}

func (s *InMemoryStore) nextSeq() int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.seq++
	return s.seq
}

// InsertCheckIn stores rec as the pair's root entry. If a root exists it is
// returned with sentinel.ErrDuplicate and nothing is written.
func (s *InMemoryStore) InsertCheckIn(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := s.bucket(rec.SessionID, true)
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.roots[rec.ParticipantID]; ok {
		return existing.Clone(), sentinel.ErrDuplicate
	}
	stored := rec.Clone()
	stored.Supersedes = nil
	stored.Duplicate = false
	stored.Seq = s.nextSeq()
	b.records = append(b.records, stored)
	b.roots[rec.ParticipantID] = stored
	b.latest[rec.ParticipantID] = stored
	return stored.Clone(), nil
}

// Amend appends rec after the pair's latest entry, or as the root when the
// pair has none.
func (s *InMemoryStore) Amend(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := s.bucket(rec.SessionID, true)
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := rec.Clone()
	stored.Duplicate = false
	stored.Supersedes = nil
	if prev, ok := b.latest[rec.ParticipantID]; ok {
		id := prev.ID
		stored.Supersedes = &id
	} else {
		b.roots[rec.ParticipantID] = stored
	}
	stored.Seq = s.nextSeq()
	b.records = append(b.records, stored)
	b.latest[rec.ParticipantID] = stored
	return stored.Clone(), nil
}

// InsertAbsences writes absent roots for participants without one.
func (s *InMemoryStore) InsertAbsences(ctx context.Context, sessionID domain.SessionID, classID domain.ClassID, participants []domain.ParticipantID, at time.Time, reason string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(participants) == 0 {
		return 0, nil
	}
	b := s.bucket(sessionID, true)
	b.mu.Lock()
	defer b.mu.Unlock()

	written := 0
	for _, pid := range participants {
		if _, ok := b.roots[pid]; ok {
			continue
		}
		rec := models.NewAbsence(sessionID, classID, pid, at)
		rec.Reason = reason
		rec.Seq = s.nextSeq()
		b.records = append(b.records, rec)
		b.roots[pid] = rec
		b.latest[pid] = rec
		written++
	}
	return written, nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, id domain.SessionID) ([]*models.Record, error) {
	b := s.bucket(id, false)
	if b == nil {
		return []*models.Record{}, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*models.Record, len(b.records))
	for i, r := range b.records {
		out[i] = r.Clone()
	}
	return out, nil
}

// ListByParticipant returns every entry for pid whose session's root was
// recorded within [from, to). Zero bounds are open.
func (s *InMemoryStore) ListByParticipant(_ context.Context, pid domain.ParticipantID, from, to time.Time) ([]*models.Record, error) {
	s.mu.RLock()
	buckets := make([]*bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		buckets = append(buckets, b)
	}
	s.mu.RUnlock()

	var out []*models.Record
	for _, b := range buckets {
		b.mu.Lock()
		root, ok := b.roots[pid]
		if ok && inRange(root.RecordedAt, from, to) {
			for _, r := range b.records {
				if r.ParticipantID == pid {
					out = append(out, r.Clone())
				}
			}
		}
		b.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b *models.Record) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
