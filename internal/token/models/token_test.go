package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/pkg/domain"
)

func TestNewTokenIsUnpredictable(t *testing.T) {
	sid := domain.NewSessionID()
	now := time.Now()
	seen := make(map[string]struct{})
	for range 100 {
		tok, err := New(sid, now, time.Minute)
		require.NoError(t, err)
		_, dup := seen[tok.Value]
		require.False(t, dup)
		seen[tok.Value] = struct{}{}
		assert.Len(t, tok.Value, 43)
	}
}

func TestNewTokenRejectsBadInput(t *testing.T) {
	_, err := New(domain.SessionID{}, time.Now(), time.Minute)
	assert.Error(t, err)
	_, err = New(domain.NewSessionID(), time.Now(), 0)
	assert.Error(t, err)
}

func TestStatusAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tok, err := New(domain.NewSessionID(), now, 30*time.Second)
	require.NoError(t, err)
	skew := 5 * time.Second

	assert.Equal(t, StatusNotYetValid, tok.StatusAt(now.Add(-time.Second), skew))
	assert.Equal(t, StatusValid, tok.StatusAt(now, skew))
	assert.Equal(t, StatusValid, tok.StatusAt(now.Add(34*time.Second), skew))
	assert.Equal(t, StatusExpired, tok.StatusAt(now.Add(35*time.Second), skew))
}

func TestRetireOnlyShortens(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tok, err := New(domain.NewSessionID(), now, 30*time.Second)
	require.NoError(t, err)

	tok.Retire(now.Add(10 * time.Second))
	assert.Equal(t, now.Add(10*time.Second), tok.ExpiresAt)

	tok.Retire(now.Add(time.Minute))
	assert.Equal(t, now.Add(10*time.Second), tok.ExpiresAt)
}
