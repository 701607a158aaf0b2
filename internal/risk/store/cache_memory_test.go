package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/risk/models"
	"rollcall/pkg/platform/sentinel"
)

func TestInMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewInMemory(WithClock(func() time.Time { return now }))

	_, err := c.Get(ctx, "P1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, c.Set(ctx, &models.Profile{ParticipantID: "P1", Level: models.LevelHigh, Factors: []models.Factor{models.FactorBelowThreshold}}, time.Minute))
	got, err := c.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, models.LevelHigh, got.Level)

	got.Factors[0] = models.FactorDecliningTrend
	again, err := c.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, models.FactorBelowThreshold, again.Factors[0], "callers get copies")

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "P1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, c.Set(ctx, &models.Profile{ParticipantID: "P2"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "P2"))
	_, err = c.Get(ctx, "P2")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryAnnouncedLevelOutlivesProfile(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewInMemory(WithClock(func() time.Time { return now }))

	_, err := c.AnnouncedLevel(ctx, "P1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, c.Set(ctx, &models.Profile{ParticipantID: "P1", Level: models.LevelHigh}, time.Minute))
	require.NoError(t, c.SetAnnouncedLevel(ctx, "P1", models.LevelHigh))

	now = now.Add(time.Hour)
	_, err = c.Get(ctx, "P1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	level, err := c.AnnouncedLevel(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, models.LevelHigh, level)
}
