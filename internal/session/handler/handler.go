package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/session/models"
	tokenModels "rollcall/internal/token/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

type Service interface {
	Open(ctx context.Context, classID domain.ClassID, ownerID domain.OwnerID, mode models.Mode) (*models.Session, *tokenModels.Token, error)
	Get(ctx context.Context, id domain.SessionID) (*models.Session, error)
}

// Tokens renders the live token as a scannable payload.
type Tokens interface {
	Current(ctx context.Context, sessionID domain.SessionID) (*tokenModels.Token, error)
	Encode(tok *tokenModels.Token) (string, error)
}

// Handler serves the session control surface.
type Handler struct {
	service Service
	tokens  Tokens
	logger  *slog.Logger
}

func New(service Service, tokens Tokens, logger *slog.Logger) *Handler {
	return &Handler{service: service, tokens: tokens, logger: logger}
}

// Register mounts routes any client may call.
func (h *Handler) Register(r chi.Router) {
	r.Get("/sessions/{session_id}", h.HandleGet)
}

// RegisterStaff mounts instructor routes.
func (h *Handler) RegisterStaff(r chi.Router) {
	r.Post("/sessions", h.HandleOpen)
	r.Get("/sessions/{session_id}/token", h.HandleToken)
}

// HandleOpen handles POST /sessions.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OpenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sess, tok, err := h.service.Open(ctx, req.classID, req.ownerID, req.mode)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open session",
			"request_id", requestID,
			"class_id", req.ClassID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	payload, err := h.tokens.Encode(tok)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, OpenResponse{
		SessionResponse: fromSession(sess),
		Token:           fromToken(tok, payload),
	})
}

// HandleGet handles GET /sessions/{session_id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sess, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromSession(sess))
}

// HandleToken handles GET /sessions/{session_id}/token: the payload the
// classroom display renders.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.service.Get(ctx, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tok, err := h.tokens.Current(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, err := h.tokens.Encode(tok)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, fromToken(tok, payload))
}
