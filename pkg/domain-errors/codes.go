package domainerrors

// Code is the stable, machine-readable kind of a domain error.
type Code string

// Generic request and infrastructure codes.
const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"
	CodeRateLimited        Code = "rate_limited"
)

// Attendance capture codes.
const (
	// CodeInvalidStateTransition: session already closed or unknown. Not retried.
	CodeInvalidStateTransition Code = "invalid_state_transition"
	// CodeSessionClosed: a check-in arrived after the roster was reported.
	CodeSessionClosed Code = "session_closed"
	// CodeTokenExpired / CodeTokenUnknown: client should re-scan the current code.
	CodeTokenExpired Code = "token_expired"
	CodeTokenUnknown Code = "token_unknown"
	// CodeIncompleteEnrollment: remaining poses must be captured.
	CodeIncompleteEnrollment Code = "incomplete_enrollment"
	// CodeNoMatch / CodeAmbiguousMatch: expected outcomes, offer another method.
	CodeNoMatch        Code = "no_match"
	CodeAmbiguousMatch Code = "ambiguous_match"
	// CodeDuplicateCheckIn is logged, never surfaced as a failure.
	CodeDuplicateCheckIn Code = "duplicate_check_in"
	// CodeAlreadyRecordedByOtherMethod hints at identity confusion.
	CodeAlreadyRecordedByOtherMethod Code = "already_recorded_by_other_method"
)

// Recovery names the action a client should offer the user.
type Recovery string

const (
	RecoveryNone               Recovery = "none"
	RecoveryFixRequest         Recovery = "fix_request"
	RecoveryRetry              Recovery = "retry"
	RecoveryRescan             Recovery = "rescan"
	RecoveryCompleteEnrollment Recovery = "complete_enrollment"
	RecoveryUseAlternateMethod Recovery = "use_alternate_method"
	RecoveryContactInstructor  Recovery = "contact_instructor"
)

var recoveries = map[Code]Recovery{
	CodeBadRequest:                   RecoveryFixRequest,
	CodeValidation:                   RecoveryFixRequest,
	CodeTimeout:                      RecoveryRetry,
	CodeUnavailable:                  RecoveryRetry,
	CodeRateLimited:                  RecoveryRetry,
	CodeTokenExpired:                 RecoveryRescan,
	CodeTokenUnknown:                 RecoveryRescan,
	CodeIncompleteEnrollment:         RecoveryCompleteEnrollment,
	CodeNoMatch:                      RecoveryUseAlternateMethod,
	CodeAmbiguousMatch:               RecoveryUseAlternateMethod,
	CodeSessionClosed:                RecoveryContactInstructor,
	CodeForbidden:                    RecoveryContactInstructor,
	CodeAlreadyRecordedByOtherMethod: RecoveryContactInstructor,
}

// Recovery returns the recovery action for c. Unlisted codes need none.
func (c Code) Recovery() Recovery {
	if r, ok := recoveries[c]; ok {
		return r
	}
	return RecoveryNone
}

// Retryable reports whether repeating the same request can succeed.
func (c Code) Retryable() bool {
	switch c.Recovery() {
	case RecoveryRetry, RecoveryRescan:
		return true
	default:
		return false
	}
}
