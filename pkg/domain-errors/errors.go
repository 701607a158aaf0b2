// Package domainerrors defines the coded, structured errors services return to
// transports. Stores return sentinel errors (pkg/platform/sentinel); services
// translate them into a Code here so every failure carries a kind, a message
// and optional context fields the UI can use to pick a recovery action.
package domainerrors

import (
	"errors"
	"maps"
)

// Error is a structured domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
	Context map[string]string
}

// New creates an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// With adds a context field. It mutates and returns e so calls chain.
func (e *Error) With(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string, 2)
	}
	e.Context[key] = value
	return e
}

// Fields returns a copy of the context fields.
func (e *Error) Fields() map[string]string {
	if len(e.Context) == 0 {
		return nil
	}
	return maps.Clone(e.Context)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// As extracts the outermost *Error from err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is an alias for HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns err's code, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}
