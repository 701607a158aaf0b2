package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/enrollment/models"
	"rollcall/internal/enrollment/service"
	rlModels "rollcall/internal/ratelimit/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

type Service interface {
	Begin(ctx context.Context, id domain.ParticipantID, confirmReset bool) (*models.Profile, error)
	AddSample(ctx context.Context, in service.SampleInput) (*models.Profile, error)
	Finalize(ctx context.Context, id domain.ParticipantID) (*models.Profile, error)
	Get(ctx context.Context, id domain.ParticipantID) (*models.Profile, error)
}

// Handler serves the guided capture flow.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// RateLimitClass puts public enrollment routes on their own budget.
func (h *Handler) RateLimitClass() rlModels.EndpointClass { return rlModels.ClassEnrollment }

func (h *Handler) Register(r chi.Router) {
	r.Post("/enrollments/{participant_id}", h.HandleBegin)
	r.Get("/enrollments/{participant_id}", h.HandleGet)
	r.Post("/enrollments/{participant_id}/samples", h.HandleAddSample)
	r.Post("/enrollments/{participant_id}/finalize", h.HandleFinalize)
}

type BeginRequest struct {
	ConfirmReset bool `json:"confirm_reset"`
}

func (r *BeginRequest) Validate() error { return nil }

type SampleRequest struct {
	Pose       string            `json:"pose"`
	Image      []byte            `json:"image,omitempty"`
	Descriptor models.Descriptor `json:"descriptor,omitempty"`
	CapturedAt time.Time         `json:"captured_at,omitzero"`

	pose models.Pose
}

func (r *SampleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	pose, err := models.ParsePose(r.Pose)
	if err != nil {
		return err
	}
	r.pose = pose
	return nil
}

// ProfileResponse reports progress without exposing descriptors.
type ProfileResponse struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Status        models.Status        `json:"status"`
	Version       int                  `json:"version"`
	Captured      []models.Pose        `json:"captured"`
	Missing       []PosePrompt         `json:"missing"`
	FinalizedAt   *time.Time           `json:"finalized_at,omitempty"`
}

// PosePrompt is the next capture the UI should ask for.
type PosePrompt struct {
	Pose        models.Pose `json:"pose"`
	Instruction string      `json:"instruction"`
}

func fromProfile(p *models.Profile) ProfileResponse {
	out := ProfileResponse{
		ParticipantID: p.ParticipantID,
		Status:        p.Status,
		Version:       p.Version,
		Captured:      make([]models.Pose, 0, len(p.Samples)),
		Missing:       []PosePrompt{},
		FinalizedAt:   p.FinalizedAt,
	}
	for _, s := range p.Samples {
		out.Captured = append(out.Captured, s.Pose)
	}
	for _, pose := range p.MissingPoses() {
		out.Missing = append(out.Missing, PosePrompt{Pose: pose, Instruction: pose.Instruction()})
	}
	return out
}

// HandleBegin handles POST /enrollments/{participant_id}. An empty body is
// allowed.
func (h *Handler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pid, err := domain.ParseParticipantID(chi.URLParam(r, "participant_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req BeginRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	p, err := h.service.Begin(ctx, pid, req.ConfirmReset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "enrollment started",
		"request_id", requestcontext.RequestID(ctx),
		"participant_id", pid.String(),
		"version", p.Version,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromProfile(p))
}

// HandleGet handles GET /enrollments/{participant_id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	pid, err := domain.ParseParticipantID(chi.URLParam(r, "participant_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), pid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromProfile(p))
}

// HandleAddSample handles POST /enrollments/{participant_id}/samples.
func (h *Handler) HandleAddSample(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	pid, err := domain.ParseParticipantID(chi.URLParam(r, "participant_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SampleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	capturedAt := req.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = requestcontext.Now(ctx)
	}
	p, err := h.service.AddSample(ctx, service.SampleInput{
		ParticipantID: pid,
		Pose:          req.pose,
		Image:         req.Image,
		Descriptor:    req.Descriptor,
		CapturedAt:    capturedAt,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromProfile(p))
}

// HandleFinalize handles POST /enrollments/{participant_id}/finalize.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	pid, err := domain.ParseParticipantID(chi.URLParam(r, "participant_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Finalize(r.Context(), pid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromProfile(p))
}
