package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "rollcall/pkg/domain-errors"
)

// maxExternalIDLength bounds identifiers supplied by outside systems
// (student numbers, course codes, staff ids).
const maxExternalIDLength = 128

// SessionID identifies a single attendance session. Minted by the session
// manager; never supplied by clients on open.
type SessionID uuid.UUID

// RecordID identifies one ledger entry.
type RecordID uuid.UUID

// ClassID identifies the class a session belongs to (e.g. "CS101").
type ClassID string

// ParticipantID identifies an attendee (e.g. a student number).
type ParticipantID string

// OwnerID identifies the instructor who opened a session.
type OwnerID string

func NewSessionID() SessionID { return SessionID(uuid.New()) }
func NewRecordID() RecordID   { return RecordID(uuid.New()) }

func (i SessionID) String() string { return uuid.UUID(i).String() }
func (i SessionID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }

func (i RecordID) String() string { return uuid.UUID(i).String() }
func (i RecordID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }

func (c ClassID) String() string       { return string(c) }
func (p ParticipantID) String() string { return string(p) }
func (o OwnerID) String() string       { return string(o) }

// MarshalText lets SessionID appear as a plain string in JSON payloads.
func (i SessionID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (i RecordID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *RecordID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid record id")
	}
	*i = RecordID(u)
	return nil
}

// ParseSessionID validates a session identifier at a trust boundary.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil || u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeValidation, "invalid session id").With("session_id", s)
	}
	return SessionID(u), nil
}

// ParseClassID trims and validates a class identifier.
func ParseClassID(s string) (ClassID, error) {
	v, err := parseExternalID(s, "class_id")
	return ClassID(v), err
}

// ParseParticipantID trims and validates a participant identifier.
func ParseParticipantID(s string) (ParticipantID, error) {
	v, err := parseExternalID(s, "participant_id")
	return ParticipantID(v), err
}

// ParseOwnerID trims and validates an owner identifier.
func ParseOwnerID(s string) (OwnerID, error) {
	v, err := parseExternalID(s, "owner_id")
	return OwnerID(v), err
}

func parseExternalID(s, field string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if !utf8.ValidString(v) {
		return "", dErrors.New(dErrors.CodeValidation, field+" must be valid UTF-8")
	}
	if len(v) > maxExternalIDLength {
		return "", dErrors.New(dErrors.CodeValidation, field+" must be 128 characters or less")
	}
	return v, nil
}
