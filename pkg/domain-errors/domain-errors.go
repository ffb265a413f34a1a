// Package domainerrors carries failure categories across layers without
// tying them to a transport. Handlers translate codes at the edge.
package domainerrors

import "errors"

// Code names a failure category.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_failed"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"

	CodeLocked       Code = "locked"        // origin or account under a timed lockout
	CodeInvalidToken Code = "invalid_token" // bearer, refresh or reset token rejected
	CodeTooLarge     Code = "too_large"     // request body over the configured limit
)

// Error pairs a Code with a caller-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinel comparisons work
// through errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches msg to err. A code already present in err's chain wins over
// code, so a lockout stays a lockout however many layers wrap it.
func Wrap(err error, code Code, msg string) error {
	if existing, ok := as(err); ok {
		code = existing.Code
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in err's chain, CodeInternal if none.
func CodeOf(err error) Code {
	if e, ok := as(err); ok {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	e, ok := as(err)
	return ok && e.Code == code
}

func as(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
