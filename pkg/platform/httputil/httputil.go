// Package httputil renders JSON responses and maps domain error codes onto
// HTTP statuses with a uniform error envelope.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "rollcall/pkg/domain-errors"
)

// maxBodyBytes caps request bodies. Face captures arrive base64 encoded.
const maxBodyBytes = 8 << 20

// ErrorResponse is the JSON envelope for every failed request.
type ErrorResponse struct {
	Error       string            `json:"error"`
	Description string            `json:"error_description,omitempty"`
	Recovery    string            `json:"recovery"`
	Retryable   bool              `json:"retryable"`
	Context     map[string]string `json:"context,omitempty"`
}

var statuses = map[dErrors.Code]int{
	dErrors.CodeBadRequest:                   http.StatusBadRequest,
	dErrors.CodeValidation:                   http.StatusBadRequest,
	dErrors.CodeUnauthorized:                 http.StatusUnauthorized,
	dErrors.CodeForbidden:                    http.StatusForbidden,
	dErrors.CodeNotFound:                     http.StatusNotFound,
	dErrors.CodeConflict:                     http.StatusConflict,
	dErrors.CodeInvariantViolation:           http.StatusConflict,
	dErrors.CodeTimeout:                      http.StatusGatewayTimeout,
	dErrors.CodeUnavailable:                  http.StatusServiceUnavailable,
	dErrors.CodeInternal:                     http.StatusInternalServerError,
	dErrors.CodeRateLimited:                  http.StatusTooManyRequests,
	dErrors.CodeInvalidStateTransition:       http.StatusConflict,
	dErrors.CodeSessionClosed:                http.StatusGone,
	dErrors.CodeTokenExpired:                 http.StatusUnauthorized,
	dErrors.CodeTokenUnknown:                 http.StatusUnauthorized,
	dErrors.CodeIncompleteEnrollment:         http.StatusUnprocessableEntity,
	dErrors.CodeNoMatch:                      http.StatusUnprocessableEntity,
	dErrors.CodeAmbiguousMatch:               http.StatusUnprocessableEntity,
	dErrors.CodeDuplicateCheckIn:             http.StatusOK,
	dErrors.CodeAlreadyRecordedByOtherMethod: http.StatusConflict,
}

// StatusFor maps a code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	if s, ok := statuses[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err using the error envelope. Internal errors never
// leak their message.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}
	resp := ErrorResponse{
		Error:       string(de.Code),
		Description: de.Message,
		Recovery:    string(de.Code.Recovery()),
		Retryable:   de.Code.Retryable(),
		Context:     de.Fields(),
	}
	if de.Code == dErrors.CodeInternal {
		resp.Description = "internal error"
		resp.Context = nil
	}
	WriteJSON(w, StatusFor(de.Code), resp)
}

// DecodeJSON decodes a size-limited JSON body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

// Validatable request bodies check and normalize themselves after decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes and validates a request body. On failure it has
// already written the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))
	if err := DecodeJSON(r, req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.InfoContext(ctx, "request rejected",
			"request_id", requestID,
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
