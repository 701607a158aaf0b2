package models

import (
	"time"

	tokenModels "rollcall/internal/token/models"
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Session is one class's attendance window.
//
// Invariants:
//   - exactly one State at any instant; Closed is terminal
//   - ClosedAt is set iff State is Closed
//   - Attendees only grows, and only while Active
//   - CurrentToken is nil once Closed
type Session struct {
	ID           domain.SessionID                  `json:"session_id"`
	ClassID      domain.ClassID                    `json:"class_id"`
	OwnerID      domain.OwnerID                    `json:"owner_id"`
	State        State                             `json:"state"`
	Mode         Mode                              `json:"mode"`
	CreatedAt    time.Time                         `json:"created_at"`
	OpenedAt     time.Time                         `json:"opened_at,omitzero"`
	ClosedAt     *time.Time                        `json:"closed_at,omitempty"`
	CurrentToken *tokenModels.Token                `json:"-"`
	Attendees    map[domain.ParticipantID]struct{} `json:"-"`
}

// NewSession builds a Pending session.
func NewSession(id domain.SessionID, classID domain.ClassID, ownerID domain.OwnerID, mode Mode, now time.Time) (*Session, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session id cannot be nil")
	}
	if classID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "class id cannot be empty")
	}
	if ownerID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner id cannot be empty")
	}
	if mode == "" {
		mode = ModeBoth
	}
	return &Session{
		ID:        id,
		ClassID:   classID,
		OwnerID:   ownerID,
		State:     StatePending,
		Mode:      mode,
		CreatedAt: now,
		Attendees: make(map[domain.ParticipantID]struct{}),
	}, nil
}

func (s *Session) IsActive() bool { return s.State == StateActive }

// CanOpen checks the Pending -> Active transition.
func (s *Session) CanOpen() error {
	if !s.State.CanTransitionTo(StateActive) {
		return dErrors.New(dErrors.CodeInvalidStateTransition, "session cannot be opened").
			With("state", s.State.String())
	}
	return nil
}

// ApplyOpen activates the session with its first live token.
// Call CanOpen first.
func (s *Session) ApplyOpen(tok *tokenModels.Token, now time.Time) {
	s.State = StateActive
	s.OpenedAt = now
	s.CurrentToken = tok
}

// CanClose checks the Active -> Closed transition.
func (s *Session) CanClose() error {
	if !s.State.CanTransitionTo(StateClosed) {
		return dErrors.New(dErrors.CodeInvalidStateTransition, "session is not open").
			With("state", s.State.String())
	}
	return nil
}

// ApplyClose closes the session and drops its live token.
// Call CanClose first.
func (s *Session) ApplyClose(now time.Time) {
	s.State = StateClosed
	s.ClosedAt = &now
	s.CurrentToken = nil
}

// CanCheckIn reports why a check-in against this session must be refused.
func (s *Session) CanCheckIn() error {
	switch s.State {
	case StateActive:
		return nil
	case StateClosed:
		return dErrors.New(dErrors.CodeSessionClosed, "session is closed").
			With("session_id", s.ID.String())
	default:
		return dErrors.New(dErrors.CodeInvalidStateTransition, "session is not open yet").
			With("session_id", s.ID.String())
	}
}

// CanRotate checks whether a fresh token may be issued.
func (s *Session) CanRotate() error {
	if !s.IsActive() {
		return dErrors.New(dErrors.CodeInvalidStateTransition, "only active sessions rotate tokens").
			With("state", s.State.String())
	}
	return nil
}

// IsLate reports whether a check-in at t falls after the late cutoff.
// A zero lateAfter disables late marking.
func (s *Session) IsLate(t time.Time, lateAfter time.Duration) bool {
	return lateAfter > 0 && t.After(s.OpenedAt.Add(lateAfter))
}

func (s *Session) AttendeeCount() int { return len(s.Attendees) }

// Snapshot returns a deep copy safe to hand outside the owning manager.
func (s *Session) Snapshot() *Session {
	c := *s
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	if s.CurrentToken != nil {
		t := *s.CurrentToken
		c.CurrentToken = &t
	}
	c.Attendees = make(map[domain.ParticipantID]struct{}, len(s.Attendees))
	for p := range s.Attendees {
		c.Attendees[p] = struct{}{}
	}
	return &c
}
