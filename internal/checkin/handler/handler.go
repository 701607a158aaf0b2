package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/checkin/service"
	ledgerModels "rollcall/internal/ledger/models"
	rlModels "rollcall/internal/ratelimit/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

type Service interface {
	CheckInToken(ctx context.Context, in service.TokenCheckIn) (*ledgerModels.Record, error)
	CheckInFace(ctx context.Context, in service.FaceCheckIn) (*service.FaceResult, error)
	Close(ctx context.Context, id domain.SessionID) (service.CloseResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the check-in routes.
// RateLimitClass puts public check-in routes on their own budget.
func (h *Handler) RateLimitClass() rlModels.EndpointClass { return rlModels.ClassCheckIn }

func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions/{session_id}/check-ins/token", h.HandleTokenCheckIn)
	r.Post("/sessions/{session_id}/check-ins/face", h.HandleFaceCheckIn)
}

// RegisterStaff mounts instructor routes.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Post("/sessions/{session_id}/close", h.HandleClose)
}

// HandleTokenCheckIn handles POST /sessions/{session_id}/check-ins/token.
func (h *Handler) HandleTokenCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	sid, err := domain.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TokenCheckInRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.CheckInToken(ctx, service.TokenCheckIn{
		SessionID:     sid,
		ParticipantID: req.participantID,
		Payload:       req.Payload,
		TokenValue:    req.TokenValue,
	})
	if err != nil {
		h.logFailure(ctx, requestID, sid, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, statusFor(rec), fromRecord(rec))
}

// HandleFaceCheckIn handles POST /sessions/{session_id}/check-ins/face.
func (h *Handler) HandleFaceCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	sid, err := domain.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[FaceCheckInRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.CheckInFace(ctx, service.FaceCheckIn{
		SessionID:  sid,
		Image:      req.Image,
		Descriptor: req.Descriptor,
	})
	if err != nil {
		h.logFailure(ctx, requestID, sid, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, statusFor(res.Record), fromFace(res))
}

// HandleClose handles POST /sessions/{session_id}/close.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid, err := domain.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.Close(ctx, sid)
	if err != nil {
		h.logFailure(ctx, requestcontext.RequestID(ctx), sid, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CloseResponse{AttendeeCount: res.AttendeeCount, AbsentCount: res.AbsentCount})
}

// logFailure keeps expected refusals out of the error log.
func (h *Handler) logFailure(ctx context.Context, requestID string, sid domain.SessionID, err error) {
	attrs := []any{
		"request_id", requestID,
		"session_id", sid.String(),
		"error", err,
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeTimeout, dErrors.CodeUnavailable:
		h.logger.ErrorContext(ctx, "check-in request failed", attrs...)
	default:
		h.logger.InfoContext(ctx, "check-in request refused", attrs...)
	}
}

func statusFor(rec *ledgerModels.Record) int {
	if rec.Duplicate {
		return http.StatusOK
	}
	return http.StatusCreated
}
