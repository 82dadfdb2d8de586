package walk

import "errors"

// Code classifies engine errors.
type Code string

const (
	CodeConfig         Code = "config"
	CodeCondition      Code = "condition"
	CodeRewindConflict Code = "rewind_conflict"
	CodeNotFound       Code = "not_found"
	CodeCanceled       Code = "canceled"
)

// Error is the coded error returned by walk operations.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// ErrSnapshotNodeMismatch is returned when a gate snapshot belongs to a
// different node than the one the resolver currently holds.
var ErrSnapshotNodeMismatch = newError(CodeRewindConflict, "gate snapshot belongs to a different node")

// ErrAnchorNotFound is returned when rewinding to an unknown anchor.
var ErrAnchorNotFound = newError(CodeNotFound, "anchor not found")

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
