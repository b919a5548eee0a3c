// Package errclass defines the stable, machine-readable error classes returned
// by memcore operations.
package errclass

import "fmt"

// Error is a stable, machine-readable error class.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg = msg + ": " + e.Cause.Error()
		}
	}
	if msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Is reports whether target is an Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new Error with the same Code that keeps cause reachable
// through errors.Is and errors.As.
func (e *Error) Wrap(cause error, msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Cause: cause}
}

// Code returns the class code of err, or "" when err carries no class.
func Code(err error) string {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			return ce.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

var (
	ErrValidation  = &Error{Code: "E_VALIDATION"}
	ErrDuplicateID = &Error{Code: "E_DUPLICATE_ID"}
	ErrCorruption  = &Error{Code: "E_CORRUPTION"}
	ErrNotFound    = &Error{Code: "E_NOT_FOUND"}
	ErrParse       = &Error{Code: "E_PARSE"}
	ErrIO          = &Error{Code: "E_IO"}
	ErrNameInvalid = &Error{Code: "E_NAME_INVALID"}
	ErrConflict    = &Error{Code: "E_CONFLICT"}
)
