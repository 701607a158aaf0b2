package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/enrollment/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

func newProfile(t *testing.T, id domain.ParticipantID, usable bool) *models.Profile {
	t.Helper()
	p, err := models.NewProfile(id, time.Now())
	require.NoError(t, err)
	if usable {
		for _, pose := range models.RequiredPoses {
			p.ApplySample(models.Sample{Pose: pose, Descriptor: models.Descriptor{1, 0}})
		}
		p.ApplyFinalize(time.Now())
	}
	return p
}

func TestInMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	p := newProfile(t, "P1", false)

	require.NoError(t, s.Create(ctx, p))
	assert.ErrorIs(t, s.Create(ctx, p), sentinel.ErrConflict)

	_, err := s.Find(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	got, err := s.Find(ctx, "P1")
	require.NoError(t, err)
	got.Version = 99
	again, err := s.Find(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Version, "callers get copies")
}

func TestInMemoryExecuteLeavesProfileOnValidationFailure(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newProfile(t, "P1", false)))

	refuse := errors.New("refused")
	_, err := s.Execute(ctx, "P1",
		func(*models.Profile) error { return refuse },
		func(p *models.Profile) { p.Version = 5 },
	)
	assert.ErrorIs(t, err, refuse)

	got, err := s.Find(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)

	updated, err := s.Execute(ctx, "P1",
		func(*models.Profile) error { return nil },
		func(p *models.Profile) { p.Version = 5 },
	)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Version)

	_, err = s.Execute(ctx, "missing", func(*models.Profile) error { return nil }, func(*models.Profile) {})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryListUsable(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Create(ctx, newProfile(t, "C", true)))
	require.NoError(t, s.Create(ctx, newProfile(t, "A", true)))
	require.NoError(t, s.Create(ctx, newProfile(t, "B", false)))

	all, err := s.ListUsable(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.ParticipantID("A"), all[0].ParticipantID)
	assert.Equal(t, domain.ParticipantID("C"), all[1].ParticipantID)

	some, err := s.ListUsable(ctx, []domain.ParticipantID{"B", "C", "Z"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, domain.ParticipantID("C"), some[0].ParticipantID)

	none, err := s.ListUsable(ctx, []domain.ParticipantID{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
