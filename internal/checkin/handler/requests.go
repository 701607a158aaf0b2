package handler

import (
	"strings"

	enrollmentModels "rollcall/internal/enrollment/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// TokenCheckInRequest is the body of POST /sessions/{id}/check-ins/token.
type TokenCheckInRequest struct {
	ParticipantID string `json:"participant_id"`
	Payload       string `json:"payload,omitempty"`
	TokenValue    string `json:"token_value,omitempty"`

	participantID domain.ParticipantID
}

func (r *TokenCheckInRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	pid, err := domain.ParseParticipantID(r.ParticipantID)
	if err != nil {
		return err
	}
	r.participantID = pid
	r.Payload = strings.TrimSpace(r.Payload)
	r.TokenValue = strings.TrimSpace(r.TokenValue)
	if r.Payload == "" && r.TokenValue == "" {
		return dErrors.New(dErrors.CodeValidation, "payload or token_value is required")
	}
	return nil
}

// FaceCheckInRequest is the body of POST /sessions/{id}/check-ins/face.
// Image is base64 in JSON.
type FaceCheckInRequest struct {
	Image      []byte                      `json:"image,omitempty"`
	Descriptor enrollmentModels.Descriptor `json:"descriptor,omitempty"`
}

func (r *FaceCheckInRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if (len(r.Image) == 0) == (len(r.Descriptor) == 0) {
		return dErrors.New(dErrors.CodeValidation, "exactly one of image or descriptor is required")
	}
	return nil
}
