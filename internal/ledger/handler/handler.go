package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/ledger/models"
	"rollcall/internal/ledger/service"
	sessionModels "rollcall/internal/session/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

type Service interface {
	Amend(ctx context.Context, in service.AmendInput) (*models.Record, error)
	Query(ctx context.Context, sessionID domain.SessionID) ([]*models.Record, error)
	Effective(ctx context.Context, sessionID domain.SessionID) ([]*models.Record, error)
	QueryByParticipant(ctx context.Context, pid domain.ParticipantID, from, to time.Time) ([]*models.Record, error)
}

// Sessions resolves the class of a session with no ledger entries yet.
type Sessions interface {
	Get(ctx context.Context, id domain.SessionID) (*sessionModels.Session, error)
}

type Handler struct {
	service  Service
	sessions Sessions
	logger   *slog.Logger
}

func New(svc Service, sessions Sessions, logger *slog.Logger) *Handler {
	return &Handler{service: svc, sessions: sessions, logger: logger}
}

// RegisterStaff mounts instructor routes. Records are not public.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Get("/sessions/{session_id}/records", h.HandleSessionRecords)
	r.Post("/sessions/{session_id}/records/{participant_id}/amend", h.HandleAmend)
	r.Get("/participants/{participant_id}/records", h.HandleParticipantRecords)
}

// AmendRequest is the body of an amend call.
type AmendRequest struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`

	outcome models.Outcome
}

func (r *AmendRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	outcome, err := models.ParseOutcome(strings.TrimSpace(r.Outcome))
	if err != nil {
		return err
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	r.outcome = outcome
	return nil
}

type RecordsResponse struct {
	Records []*models.Record `json:"records"`
}

// HandleSessionRecords handles GET /sessions/{session_id}/records. The
// effective view is the default; ?view=all returns every entry.
func (h *Handler) HandleSessionRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, err := domain.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var records []*models.Record
	switch view := r.URL.Query().Get("view"); view {
	case "", "effective":
		records, err = h.service.Effective(ctx, sid)
	case "all":
		records, err = h.service.Query(ctx, sid)
	default:
		err = dErrors.New(dErrors.CodeValidation, "view must be effective or all").With("view", view)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RecordsResponse{Records: nonNil(records)})
}

// HandleAmend handles POST /sessions/{session_id}/records/{participant_id}/amend.
func (h *Handler) HandleAmend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	sid, err := domain.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pid, err := domain.ParseParticipantID(chi.URLParam(r, "participant_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AmendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	classID, err := h.classOf(ctx, sid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Amend(ctx, service.AmendInput{
		SessionID:     sid,
		ClassID:       classID,
		ParticipantID: pid,
		Outcome:       req.outcome,
		Reason:        req.Reason,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "amend failed",
			"request_id", requestID,
			"session_id", sid.String(),
			"participant_id", pid.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

// classOf resolves the class from the ledger so closed sessions that were
// evicted or lost on restart stay correctable. The live session is only
// consulted when the ledger has no entries yet.
func (h *Handler) classOf(ctx context.Context, sid domain.SessionID) (domain.ClassID, error) {
	records, err := h.service.Query(ctx, sid)
	if err != nil {
		return "", err
	}
	if len(records) > 0 {
		return records[0].ClassID, nil
	}
	sess, err := h.sessions.Get(ctx, sid)
	if err != nil {
		return "", err
	}
	return sess.ClassID, nil
}

// HandleParticipantRecords handles GET /participants/{participant_id}/records
// with optional RFC 3339 from and to bounds.
func (h *Handler) HandleParticipantRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pid, err := domain.ParseParticipantID(chi.URLParam(r, "participant_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	from, err := parseBound(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseBound(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.service.QueryByParticipant(ctx, pid, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RecordsResponse{Records: nonNil(records)})
}

func parseBound(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, name+" must be an RFC 3339 timestamp").With(name, raw)
	}
	return t, nil
}

func nonNil(records []*models.Record) []*models.Record {
	if records == nil {
		return []*models.Record{}
	}
	return records
}
