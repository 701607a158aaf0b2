package handler

import (
	"rollcall/internal/session/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// OpenRequest is the body of POST /sessions.
type OpenRequest struct {
	ClassID string `json:"class_id"`
	OwnerID string `json:"owner_id"`
	Mode    string `json:"mode,omitempty"`

	classID domain.ClassID
	ownerID domain.OwnerID
	mode    models.Mode
}

func (r *OpenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	classID, err := domain.ParseClassID(r.ClassID)
	if err != nil {
		return err
	}
	ownerID, err := domain.ParseOwnerID(r.OwnerID)
	if err != nil {
		return err
	}
	mode, err := models.ParseMode(r.Mode, "")
	if err != nil {
		return err
	}
	r.classID, r.ownerID, r.mode = classID, ownerID, mode
	return nil
}
