package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enrollmentModels "rollcall/internal/enrollment/models"
	ledgerModels "rollcall/internal/ledger/models"
	sessionModels "rollcall/internal/session/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/testutil"
)

func TestRotatingCodeScenario(t *testing.T) {
	h := newHarness(t)
	h.roster.Set(context.Background(), "C1", []domain.ParticipantID{"alice", "bob"})
	h.enroll(t, "bob", enrollmentModels.Descriptor{0, 1, 0})

	var sess *sessionModels.Session
	var firstPayload string

	testutil.Given(t, "an open session whose code has rotated once", func(t *testing.T) {
		sess, firstPayload = h.open(t, sessionModels.ModeBoth)
		_, err := h.sessions.Rotate(h.at(30*time.Second), sess.ID)
		require.NoError(t, err)
	})

	testutil.When(t, "a student scans the previous code within the grace window", func(t *testing.T) {
		rec, err := h.svc.CheckInToken(h.at(33*time.Second), TokenCheckIn{
			SessionID: sess.ID, ParticipantID: "alice", Payload: firstPayload,
		})
		testutil.Then(t, "the check-in is recorded", func(t *testing.T) {
			require.NoError(t, err)
			assert.Equal(t, ledgerModels.OutcomePresent, rec.Outcome)
		})
	})

	testutil.When(t, "the same code is scanned after the grace window", func(t *testing.T) {
		_, err := h.svc.CheckInToken(h.at(40*time.Second), TokenCheckIn{
			SessionID: sess.ID, ParticipantID: "bob", Payload: firstPayload,
		})
		testutil.Then(t, "the student is told to rescan", func(t *testing.T) {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenExpired))
		})
	})

	testutil.When(t, "the student falls back to face check-in", func(t *testing.T) {
		res, err := h.svc.CheckInFace(h.at(45*time.Second), FaceCheckIn{
			SessionID: sess.ID, Descriptor: enrollmentModels.Descriptor{0, 1, 0},
		})
		testutil.Then(t, "they are identified and recorded", func(t *testing.T) {
			require.NoError(t, err)
			assert.Equal(t, domain.ParticipantID("bob"), res.Record.ParticipantID)
		})
	})

	testutil.When(t, "the instructor closes the session", func(t *testing.T) {
		res, err := h.svc.Close(h.at(time.Hour), sess.ID)
		testutil.Then(t, "both attendees are counted and nobody is absent", func(t *testing.T) {
			require.NoError(t, err)
			assert.Equal(t, CloseResult{AttendeeCount: 2}, res)
		})
	})
}
