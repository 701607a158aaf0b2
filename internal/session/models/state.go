package models

import (
	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// State is a session lifecycle state.
type State string

const (
	StatePending State = "pending"
	StateActive  State = "active"
	StateClosed  State = "closed"
)

// CanTransitionTo enforces Pending -> Active -> Closed with no reopening.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StatePending:
		return next == StateActive
	case StateActive:
		return next == StateClosed
	default:
		return false
	}
}

func (s State) String() string { return string(s) }

// Mode selects which check-in methods a session accepts.
type Mode string

const (
	ModeToken Mode = "token"
	ModeFace  Mode = "face"
	ModeBoth  Mode = "both"
)

// ParseMode validates a mode name. Empty maps to fallback.
func ParseMode(s string, fallback Mode) (Mode, error) {
	if s == "" {
		return fallback, nil
	}
	m := Mode(s)
	switch m {
	case ModeToken, ModeFace, ModeBoth:
		return m, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "mode must be token, face or both").With("mode", s)
	}
}

// Allows reports whether method may be used to check in.
func (m Mode) Allows(method domain.CheckInMethod) bool {
	switch method {
	case domain.MethodToken:
		return m == ModeToken || m == ModeBoth
	case domain.MethodFace:
		return m == ModeFace || m == ModeBoth
	default:
		return false
	}
}
