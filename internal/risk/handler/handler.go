package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/risk/models"
	"rollcall/pkg/domain"
	"rollcall/pkg/platform/httputil"
)

type Service interface {
	GetRisk(ctx context.Context, pid domain.ParticipantID) (*models.Profile, error)
}

type Handler struct {
	service Service
}

func New(svc Service) *Handler {
	return &Handler{service: svc}
}

func (h *Handler) RegisterStaff(r chi.Router) {
	r.Get("/participants/{participant_id}/risk", h.HandleGetRisk)
}

// HandleGetRisk handles GET /participants/{participant_id}/risk.
func (h *Handler) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	pid, err := domain.ParseParticipantID(chi.URLParam(r, "participant_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetRisk(r.Context(), pid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
