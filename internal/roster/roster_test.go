package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/pkg/domain"
)

func TestInMemoryMembers(t *testing.T) {
	ctx := context.Background()
	r := NewInMemory()

	got, err := r.Members(ctx, "C1")
	require.NoError(t, err)
	assert.Empty(t, got)

	r.Set(ctx, "C1", []domain.ParticipantID{"P2", "P1", "P2"})
	got, err = r.Members(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ParticipantID{"P1", "P2"}, got)

	got[0] = "X"
	again, _ := r.Members(ctx, "C1")
	assert.Equal(t, domain.ParticipantID("P1"), again[0])

	r.Set(ctx, "C1", nil)
	got, err = r.Members(ctx, "C1")
	require.NoError(t, err)
	assert.Empty(t, got)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Members(cancelled, "C1")
	assert.ErrorIs(t, err, context.Canceled)
}
