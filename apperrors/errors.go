// Package apperrors defines the error kinds shared by the services and the
// HTTP layer. Each kind has a sentinel so callers can match with errors.Is,
// and an *Error carrying the user-facing message and optional field details.
package apperrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeInvalidState Code = "INVALID_STATE"
	CodeNotFound     Code = "NOT_FOUND"
	CodeStorage      Code = "STORAGE_ERROR"
	CodeConflict     Code = "CONFLICT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeInternal     Code = "INTERNAL_ERROR"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrStorage      = errors.New("storage failure")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var sentinels = map[Code]error{
	CodeValidation:   ErrValidation,
	CodeInvalidState: ErrInvalidState,
	CodeNotFound:     ErrNotFound,
	CodeStorage:      ErrStorage,
	CodeConflict:     ErrConflict,
	CodeUnauthorized: ErrUnauthorized,
	CodeForbidden:    ErrForbidden,
}

// Error is a classified application error.
type Error struct {
	Code    Code
	Message string
	// Fields maps a request field to its validation message.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against the sentinel of its kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

func newError(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

func Validation(msg string) *Error {
	return newError(CodeValidation, msg, nil)
}

// ValidationFields builds a validation error with per-field messages.
func ValidationFields(msg string, fields map[string]string) *Error {
	e := newError(CodeValidation, msg, nil)
	e.Fields = fields
	return e
}

func InvalidState(msg string) *Error {
	return newError(CodeInvalidState, msg, nil)
}

func NotFound(msg string) *Error {
	return newError(CodeNotFound, msg, nil)
}

func Storage(msg string, cause error) *Error {
	return newError(CodeStorage, msg, cause)
}

func Conflict(msg string, cause error) *Error {
	return newError(CodeConflict, msg, cause)
}

func Unauthorized(msg string) *Error {
	return newError(CodeUnauthorized, msg, nil)
}

func Forbidden(msg string) *Error {
	return newError(CodeForbidden, msg, nil)
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}
