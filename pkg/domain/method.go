package domain

import dErrors "rollcall/pkg/domain-errors"

// CheckInMethod is how a participant proved presence.
type CheckInMethod string

const (
	MethodToken CheckInMethod = "token"
	MethodFace  CheckInMethod = "face"
	// MethodManual marks entries written by an instructor correction rather
	// than a participant check-in.
	MethodManual CheckInMethod = "manual"
	// MethodSystem marks absences written when a session closes.
	MethodSystem CheckInMethod = "system"
)

func (m CheckInMethod) String() string { return string(m) }

// IsCheckIn reports whether m is a participant-initiated method.
func (m CheckInMethod) IsCheckIn() bool {
	return m == MethodToken || m == MethodFace
}

// ParseCheckInMethod accepts only participant-initiated methods.
func ParseCheckInMethod(s string) (CheckInMethod, error) {
	m := CheckInMethod(s)
	if !m.IsCheckIn() {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported check-in method").With("method", s)
	}
	return m, nil
}
