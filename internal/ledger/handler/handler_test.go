package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Sessions

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/ledger/handler/mocks"
	"rollcall/internal/ledger/models"
	"rollcall/internal/ledger/service"
	ledgerStore "rollcall/internal/ledger/store"
	sessionModels "rollcall/internal/session/models"
	sessionService "rollcall/internal/session/service"
	"rollcall/internal/token/codec"
	tokenService "rollcall/internal/token/service"
	tokenStore "rollcall/internal/token/store"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	service  *mocks.MockService
	sessions *mocks.MockSessions
	router   chi.Router
	sid      domain.SessionID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.sessions = mocks.NewMockSessions(s.ctrl)
	s.sid = domain.NewSessionID()
	s.router = chi.NewRouter()
	New(s.service, s.sessions, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterStaff(s.router)
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func (s *HandlerSuite) amendPath() string {
	return "/sessions/" + s.sid.String() + "/records/P1/amend"
}

func (s *HandlerSuite) TestAmendRequiresReason() {
	rec := s.do(http.MethodPost, s.amendPath(), `{"outcome":"excused","reason":"  "}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestAmendRejectsUnknownOutcome() {
	rec := s.do(http.MethodPost, s.amendPath(), `{"outcome":"tardy","reason":"doctor's note"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestAmendUsesSessionClassWhenLedgerIsEmpty() {
	s.service.EXPECT().Query(gomock.Any(), s.sid).Return(nil, nil)
	s.sessions.EXPECT().Get(gomock.Any(), s.sid).Return(&sessionModels.Session{ID: s.sid, ClassID: "C1"}, nil)
	s.service.EXPECT().Amend(gomock.Any(), service.AmendInput{
		SessionID:     s.sid,
		ClassID:       "C1",
		ParticipantID: "P1",
		Outcome:       models.OutcomeExcused,
		Reason:        "doctor's note",
	}).Return(&models.Record{
		ID:            domain.NewRecordID(),
		SessionID:     s.sid,
		ClassID:       "C1",
		ParticipantID: "P1",
		Method:        domain.MethodManual,
		Outcome:       models.OutcomeExcused,
		Reason:        "doctor's note",
	}, nil)

	rec := s.do(http.MethodPost, s.amendPath(), `{"outcome":"excused","reason":" doctor's note "}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var got models.Record
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(models.OutcomeExcused, got.Outcome)
	s.Equal(domain.MethodManual, got.Method)
}

func (s *HandlerSuite) TestAmendUsesLedgerClassWithoutSession() {
	s.service.EXPECT().Query(gomock.Any(), s.sid).Return([]*models.Record{{SessionID: s.sid, ClassID: "C9", ParticipantID: "P2"}}, nil)
	s.service.EXPECT().Amend(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, in service.AmendInput) (*models.Record, error) {
		s.Equal(domain.ClassID("C9"), in.ClassID)
		return &models.Record{SessionID: in.SessionID, ClassID: in.ClassID, ParticipantID: in.ParticipantID, Outcome: in.Outcome}, nil
	})

	rec := s.do(http.MethodPost, s.amendPath(), `{"outcome":"excused","reason":"doctor's note"}`)
	s.Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestAmendUnknownSession() {
	s.service.EXPECT().Query(gomock.Any(), s.sid).Return(nil, nil)
	s.sessions.EXPECT().Get(gomock.Any(), s.sid).Return(nil, dErrors.New(dErrors.CodeNotFound, "session not found"))

	rec := s.do(http.MethodPost, s.amendPath(), `{"outcome":"absent","reason":"left early"}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestAmendConflict() {
	s.service.EXPECT().Query(gomock.Any(), s.sid).Return([]*models.Record{{SessionID: s.sid, ClassID: "C1", ParticipantID: "P1"}}, nil)
	s.service.EXPECT().Amend(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeConflict, "record was amended concurrently"))

	rec := s.do(http.MethodPost, s.amendPath(), `{"outcome":"absent","reason":"left early"}`)
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestSessionRecordsViews() {
	path := "/sessions/" + s.sid.String() + "/records"

	s.service.EXPECT().Effective(gomock.Any(), s.sid).Return(nil, nil)
	rec := s.do(http.MethodGet, path, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"records":[]}`, rec.Body.String())

	s.service.EXPECT().Query(gomock.Any(), s.sid).Return([]*models.Record{{ParticipantID: "P1", Outcome: models.OutcomePresent}}, nil)
	rec = s.do(http.MethodGet, path+"?view=all", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp RecordsResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Len(resp.Records, 1)

	rec = s.do(http.MethodGet, path+"?view=latest", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSessionRecordsRejectsMalformedSessionID() {
	rec := s.do(http.MethodGet, "/sessions/not-a-uuid/records", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestParticipantRecordsBounds() {
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	s.service.EXPECT().QueryByParticipant(gomock.Any(), domain.ParticipantID("P1"), from, time.Time{}).Return(nil, nil)

	rec := s.do(http.MethodGet, "/participants/P1/records?from=2026-09-01T00:00:00Z", "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/participants/P1/records?from=yesterday", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func TestAmendAfterSessionEvicted(t *testing.T) {
	c, err := codec.New([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	tokens := tokenService.New(tokenStore.NewInMemory(4), c, tokenService.Config{
		TTL:       30 * time.Second,
		GraceSkew: 5 * time.Second,
		Retention: time.Minute,
	})
	sessions := sessionService.New(tokens)
	ledger := service.New(ledgerStore.NewInMemory())
	opened := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) context.Context {
		return requestcontext.WithTime(context.Background(), opened.Add(d))
	}

	sess, _, err := sessions.Open(at(0), "C1", "instructor-1", sessionModels.ModeToken)
	require.NoError(t, err)
	_, err = ledger.Record(at(time.Minute), service.RecordInput{
		SessionID:     sess.ID,
		ClassID:       "C1",
		ParticipantID: "P1",
		Method:        domain.MethodToken,
		Confidence:    1,
		Outcome:       models.OutcomePresent,
	})
	require.NoError(t, err)
	_, err = sessions.Close(at(time.Hour), sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, sessions.Evict(at(48*time.Hour), opened.Add(25*time.Hour)))
	_, err = sessions.Get(at(48*time.Hour), sess.ID)
	require.Error(t, err)

	r := chi.NewRouter()
	New(ledger, sessions, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterStaff(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/sessions/"+sess.ID.String()+"/records/P1/amend",
		strings.NewReader(`{"outcome":"excused","reason":"doctor's note"}`)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, domain.ClassID("C1"), got.ClassID)
	require.Equal(t, models.OutcomeExcused, got.Outcome)
	require.NotNil(t, got.Supersedes)
}
