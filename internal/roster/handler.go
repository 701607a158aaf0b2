package roster

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	strutil "rollcall/pkg/platform/strings"
)

// Handler lets instructors publish class membership.
type Handler struct {
	roster *InMemory
}

func NewHandler(r *InMemory) *Handler {
	return &Handler{roster: r}
}

func (h *Handler) RegisterStaff(r chi.Router) {
	r.Put("/classes/{class_id}/roster", h.HandlePut)
	r.Get("/classes/{class_id}/roster", h.HandleGet)
}

type Request struct {
	Participants []string `json:"participants"`
}

type Response struct {
	ClassID      domain.ClassID         `json:"class_id"`
	Participants []domain.ParticipantID `json:"participants"`
}

// HandlePut replaces the roster of a class. An empty list opens the class
// to everyone.
func (h *Handler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	classID, err := domain.ParseClassID(chi.URLParam(r, "class_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req Request
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	members, bad, err := strutil.ParseAll(req.Participants, domain.ParseParticipantID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid participant id").With("participant_id", bad))
		return
	}
	h.roster.Set(ctx, classID, members)
	h.write(w, r, classID)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	classID, err := domain.ParseClassID(chi.URLParam(r, "class_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.write(w, r, classID)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, classID domain.ClassID) {
	members, err := h.roster.Members(r.Context(), classID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled"))
		return
	}
	if members == nil {
		members = []domain.ParticipantID{}
	}
	httputil.WriteJSON(w, http.StatusOK, Response{ClassID: classID, Participants: members})
}
