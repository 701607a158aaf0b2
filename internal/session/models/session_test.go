package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tokenModels "rollcall/internal/token/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

func newSession(t *testing.T, now time.Time) *Session {
	t.Helper()
	s, err := NewSession(domain.NewSessionID(), "C1", "instructor-1", ModeBoth, now)
	require.NoError(t, err)
	return s
}

func TestLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := newSession(t, now)
	assert.Equal(t, StatePending, s.State)
	assert.True(t, dErrors.HasCode(s.CanCheckIn(), dErrors.CodeInvalidStateTransition))
	assert.True(t, dErrors.HasCode(s.CanClose(), dErrors.CodeInvalidStateTransition))

	require.NoError(t, s.CanOpen())
	tok, err := tokenModels.New(s.ID, now, time.Minute)
	require.NoError(t, err)
	s.ApplyOpen(tok, now)
	assert.True(t, s.IsActive())
	assert.NoError(t, s.CanCheckIn())
	assert.NoError(t, s.CanRotate())
	assert.True(t, dErrors.HasCode(s.CanOpen(), dErrors.CodeInvalidStateTransition))

	require.NoError(t, s.CanClose())
	s.ApplyClose(now.Add(time.Hour))
	assert.Equal(t, StateClosed, s.State)
	assert.Nil(t, s.CurrentToken)
	require.NotNil(t, s.ClosedAt)

	assert.True(t, dErrors.HasCode(s.CanCheckIn(), dErrors.CodeSessionClosed))
	assert.True(t, dErrors.HasCode(s.CanClose(), dErrors.CodeInvalidStateTransition))
	assert.True(t, dErrors.HasCode(s.CanOpen(), dErrors.CodeInvalidStateTransition), "no reopening")
	assert.Error(t, s.CanRotate())
}

func TestNewSessionInvariants(t *testing.T) {
	now := time.Now()
	_, err := NewSession(domain.SessionID{}, "C1", "o", ModeBoth, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	_, err = NewSession(domain.NewSessionID(), "", "o", ModeBoth, now)
	assert.Error(t, err)
	_, err = NewSession(domain.NewSessionID(), "C1", "", ModeBoth, now)
	assert.Error(t, err)

	s, err := NewSession(domain.NewSessionID(), "C1", "o", "", now)
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, s.Mode)
}

func TestModeAllows(t *testing.T) {
	assert.True(t, ModeBoth.Allows(domain.MethodFace))
	assert.True(t, ModeToken.Allows(domain.MethodToken))
	assert.False(t, ModeToken.Allows(domain.MethodFace))
	assert.False(t, ModeFace.Allows(domain.MethodToken))
	assert.False(t, ModeBoth.Allows(domain.MethodManual))

	m, err := ParseMode("", ModeToken)
	require.NoError(t, err)
	assert.Equal(t, ModeToken, m)
	_, err = ParseMode("qr", ModeBoth)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestIsLate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := newSession(t, now)
	s.ApplyOpen(nil, now)

	assert.False(t, s.IsLate(now.Add(time.Hour), 0))
	assert.False(t, s.IsLate(now.Add(5*time.Minute), 10*time.Minute))
	assert.True(t, s.IsLate(now.Add(11*time.Minute), 10*time.Minute))
}

func TestSnapshotIsDeep(t *testing.T) {
	s := newSession(t, time.Now())
	s.Attendees["p1"] = struct{}{}

	snap := s.Snapshot()
	snap.Attendees["p2"] = struct{}{}
	assert.Equal(t, 1, s.AttendeeCount())
	assert.Equal(t, 2, snap.AttendeeCount())
}
