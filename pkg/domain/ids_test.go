package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

func TestParseSessionID(t *testing.T) {
	id := NewSessionID()

	parsed, err := ParseSessionID("  " + id.String() + " ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "abc", uuid.Nil.String()} {
		_, err := ParseSessionID(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "input %q", bad)
	}
}

func TestSessionIDTextRoundTrip(t *testing.T) {
	id := NewSessionID()
	b, err := id.MarshalText()
	require.NoError(t, err)

	var out SessionID
	require.NoError(t, out.UnmarshalText(b))
	assert.Equal(t, id, out)
}

func TestParseExternalIDs(t *testing.T) {
	p, err := ParseParticipantID(" s-1 ")
	require.NoError(t, err)
	assert.Equal(t, ParticipantID("s-1"), p)

	_, err = ParseClassID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = ParseOwnerID(strings.Repeat("x", maxExternalIDLength+1))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestParseCheckInMethod(t *testing.T) {
	m, err := ParseCheckInMethod("face")
	require.NoError(t, err)
	assert.True(t, m.IsCheckIn())

	assert.False(t, MethodManual.IsCheckIn())

	_, err = ParseCheckInMethod("sms")
	assert.Error(t, err)
}
