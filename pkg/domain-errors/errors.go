// Package domainerrors defines the coded error taxonomy ledger operations
// surface to their callers. Services translate store sentinels and invariant
// failures into these typed outcomes so the transport layer can map them
// deterministically to responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation covers malformed or missing input: bad ids, term
	// mismatches, attendance targets outside the active roster.
	CodeValidation Code = "validation"

	// CodeConflict covers uniqueness violations: duplicate active enrollment,
	// duplicate attendance key, duplicate admission number.
	CodeConflict Code = "conflict"

	// CodeInvalidState covers illegal transitions: paying a cancelled invoice,
	// transferring a non-active enrollment.
	CodeInvalidState Code = "invalid_state"

	// CodeNotFound covers absent entities, including entities that exist but
	// live outside the caller's tenant scope.
	CodeNotFound Code = "not_found"

	// CodeForbidden covers tenant-scope rejections: the actor's tenant does
	// not match the target and the role grants no cross-tenant access.
	CodeForbidden Code = "forbidden"

	// CodeUnauthorized covers missing or unverifiable actor context at the
	// transport boundary.
	CodeUnauthorized Code = "unauthorized"

	// CodeInvariantViolation marks aggregate constructor/transition guards.
	// Services usually re-code these before returning them to callers.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal covers unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is/As for logging, but callers branch on the code.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message carried by err, or its Error string otherwise.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
