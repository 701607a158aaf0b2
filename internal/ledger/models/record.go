package models

import (
	"math"
	"slices"
	"strconv"
	"time"

	"rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Outcome is the attendance result an entry asserts.
type Outcome string

const (
	OutcomePresent Outcome = "present"
	OutcomeLate    Outcome = "late"
	OutcomeExcused Outcome = "excused"
	OutcomeAbsent  Outcome = "absent"
)

func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomePresent, OutcomeLate, OutcomeExcused, OutcomeAbsent:
		return o, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown outcome").With("outcome", s)
	}
}

// Attended reports whether the outcome counts as attendance.
func (o Outcome) Attended() bool {
	return o == OutcomePresent || o == OutcomeLate
}

func (o Outcome) String() string { return string(o) }

// Record is one immutable ledger entry. The first entry for a
// (session, participant) pair is its root; corrections point at the entry
// they replace through Supersedes.
type Record struct {
	ID            domain.RecordID      `json:"id"`
	SessionID     domain.SessionID     `json:"session_id"`
	ClassID       domain.ClassID       `json:"class_id"`
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Method        domain.CheckInMethod `json:"method"`
	Outcome       Outcome              `json:"outcome"`
	Confidence    float64              `json:"confidence"`
	RecordedAt    time.Time            `json:"recorded_at"`
	Supersedes    *domain.RecordID     `json:"supersedes,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Device        string               `json:"device,omitempty"`
	ClientIP      string               `json:"-"`
	// Seq is the store's commit order.
	Seq int64 `json:"seq"`
	// Duplicate is set on the original entry returned for a retried check-in.
	// It is never persisted.
	Duplicate bool `json:"duplicate,omitempty"`
}

// NewCheckIn builds a root entry for a participant-initiated check-in.
// Token check-ins always carry confidence 1.0.
func NewCheckIn(sessionID domain.SessionID, classID domain.ClassID, participantID domain.ParticipantID, method domain.CheckInMethod, confidence float64, outcome Outcome, now time.Time) (*Record, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session id cannot be empty")
	}
	if participantID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "participant id cannot be empty")
	}
	if !method.IsCheckIn() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported check-in method").With("method", method.String())
	}
	if outcome != OutcomePresent && outcome != OutcomeLate {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "check-ins record present or late").With("outcome", outcome.String())
	}
	if method == domain.MethodToken {
		confidence = 1.0
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "confidence must be within [0, 1]").
			With("confidence", strconv.FormatFloat(confidence, 'f', -1, 64))
	}
	return &Record{
		ID:            domain.NewRecordID(),
		SessionID:     sessionID,
		ClassID:       classID,
		ParticipantID: participantID,
		Method:        method,
		Outcome:       outcome,
		Confidence:    confidence,
		RecordedAt:    now,
	}, nil
}

// NewCorrection builds an instructor entry. The store links it to the entry
// it supersedes.
func NewCorrection(sessionID domain.SessionID, classID domain.ClassID, participantID domain.ParticipantID, outcome Outcome, reason string, now time.Time) (*Record, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a reason is required for corrections")
	}
	if participantID == "" || sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session and participant are required")
	}
	return &Record{
		ID:            domain.NewRecordID(),
		SessionID:     sessionID,
		ClassID:       classID,
		ParticipantID: participantID,
		Method:        domain.MethodManual,
		Outcome:       outcome,
		RecordedAt:    now,
		Reason:        reason,
	}, nil
}

// NewAbsence builds the root entry written for a roster member who never
// checked in before close.
func NewAbsence(sessionID domain.SessionID, classID domain.ClassID, participantID domain.ParticipantID, now time.Time) *Record {
	return &Record{
		ID:            domain.NewRecordID(),
		SessionID:     sessionID,
		ClassID:       classID,
		ParticipantID: participantID,
		Method:        domain.MethodSystem,
		Outcome:       OutcomeAbsent,
		RecordedAt:    now,
		Reason:        "no check-in before session close",
	}
}

// IsRoot reports whether r is the first entry for its pair.
func (r *Record) IsRoot() bool { return r.Supersedes == nil }

func (r *Record) Clone() *Record {
	c := *r
	if r.Supersedes != nil {
		id := *r.Supersedes
		c.Supersedes = &id
	}
	return &c
}

// Effective keeps the latest entry per (session, participant), ordered by
// when each pair was first recorded.
func Effective(records []*Record) []*Record {
	type key struct {
		session     domain.SessionID
		participant domain.ParticipantID
	}
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *Record) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	index := make(map[key]int)
	var out []*Record
	for _, r := range sorted {
		k := key{r.SessionID, r.ParticipantID}
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}
