package models

import (
	"strings"
	"time"
)

// EndpointClass groups routes that share a budget.
type EndpointClass string

const (
	// ClassCheckIn covers token and face check-in submissions.
	ClassCheckIn EndpointClass = "checkin"
	// ClassEnrollment covers capture uploads and finalization.
	ClassEnrollment EndpointClass = "enrollment"
	// ClassRead covers public lookups.
	ClassRead EndpointClass = "read"
)

// Limit caps requests per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when denied
}

const keyPrefix = "rollcall:ratelimit:"

// Key names the bucket for one client on one endpoint class.
func Key(class EndpointClass, clientIP string) string {
	if clientIP == "" {
		clientIP = "unknown"
	}
	return keyPrefix + sanitize(string(class)) + ":" + sanitize(clientIP)
}

// sanitize keeps IPv6 colons from splitting key segments.
func sanitize(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// RetryAfterSeconds rounds d up to whole seconds, at least one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
