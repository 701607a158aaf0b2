// Package notify carries attendance events to the external notification
// collaborator. Producers hand events to a Worker, which delivers them to a
// Sink off the request path.
package notify

import (
	"time"
)

// Kind names what happened.
type Kind string

const (
	KindAttendanceRecorded Kind = "attendance_recorded"
	KindAttendanceAmended  Kind = "attendance_amended"
	KindSessionOpened      Kind = "session_opened"
	KindSessionClosed      Kind = "session_closed"
	KindMatchFailed        Kind = "match_failed"
	KindLowAttendance      Kind = "low_attendance"
)

// Severity tells the presentation layer how to style the notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is the wire payload. Ids are strings so the payload stays stable
// when internal id types change.
type Event struct {
	Kind          Kind              `json:"kind"`
	Severity      Severity          `json:"severity"`
	SessionID     string            `json:"session_id,omitempty"`
	ClassID       string            `json:"class_id,omitempty"`
	ParticipantID string            `json:"participant_id,omitempty"`
	Method        string            `json:"method,omitempty"`
	Outcome       string            `json:"outcome,omitempty"`
	Message       string            `json:"message,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Key partitions events so one session's events stay ordered.
func (e Event) Key() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.ParticipantID
}
