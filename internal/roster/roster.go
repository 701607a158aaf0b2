// Package roster answers which participants belong to a class.
package roster

import (
	"context"
	"slices"
	"sync"

	"rollcall/pkg/domain"
)

// InMemory is a class membership table. A class with no members is open to
// everyone.
type InMemory struct {
	mu      sync.RWMutex
	members map[domain.ClassID][]domain.ParticipantID
}

func NewInMemory() *InMemory {
	return &InMemory{members: make(map[domain.ClassID][]domain.ParticipantID)}
}

// Set replaces the class membership. Duplicates are dropped.
func (r *InMemory) Set(_ context.Context, classID domain.ClassID, members []domain.ParticipantID) {
	sorted := slices.Clone(members)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(sorted) == 0 {
		delete(r.members, classID)
		return
	}
	r.members[classID] = sorted
}

// Members returns the class members sorted by id.
func (r *InMemory) Members(ctx context.Context, classID domain.ClassID) ([]domain.ParticipantID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.members[classID]), nil
}
