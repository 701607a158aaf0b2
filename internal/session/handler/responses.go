package handler

import (
	"time"

	"rollcall/internal/session/models"
	tokenModels "rollcall/internal/token/models"
	"rollcall/pkg/domain"
)

// TokenResponse is what the code renderer displays.
type TokenResponse struct {
	Payload   string    `json:"payload"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionResponse struct {
	SessionID     domain.SessionID `json:"session_id"`
	ClassID       domain.ClassID   `json:"class_id"`
	OwnerID       domain.OwnerID   `json:"owner_id"`
	State         models.State     `json:"state"`
	Mode          models.Mode      `json:"mode"`
	OpenedAt      time.Time        `json:"opened_at,omitzero"`
	ClosedAt      *time.Time       `json:"closed_at,omitempty"`
	AttendeeCount int              `json:"attendee_count"`
}

type OpenResponse struct {
	SessionResponse
	Token TokenResponse `json:"token"`
}

func fromSession(s *models.Session) SessionResponse {
	return SessionResponse{
		SessionID:     s.ID,
		ClassID:       s.ClassID,
		OwnerID:       s.OwnerID,
		State:         s.State,
		Mode:          s.Mode,
		OpenedAt:      s.OpenedAt,
		ClosedAt:      s.ClosedAt,
		AttendeeCount: s.AttendeeCount(),
	}
}

func fromToken(tok *tokenModels.Token, payload string) TokenResponse {
	return TokenResponse{Payload: payload, IssuedAt: tok.IssuedAt, ExpiresAt: tok.ExpiresAt}
}
