// Package apperr defines the error taxonomy shared by the gate, the ledgers
// and the REST layer, and maps it onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, client-visible error code.
type Code string

const (
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeAccountLocked   Code = "ACCOUNT_LOCKED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeConflict        Code = "CONFLICT"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInternal        Code = "INTERNAL"
)

// StatusLocked is returned for frozen accounts so clients can route the user
// to reactivation instead of a login screen.
const StatusLocked = http.StatusLocked

// Error is a typed application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, apperr.NotFound(""))
// style checks work regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return newf(CodeUnauthenticated, format, args...)
}

func AccountLocked(format string, args ...interface{}) *Error {
	return newf(CodeAccountLocked, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(CodeNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newf(CodeForbidden, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(CodeConflict, format, args...)
}

func InvalidArgument(format string, args ...interface{}) *Error {
	return newf(CodeInvalidArgument, format, args...)
}

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf returns the taxonomy code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error onto its HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeAccountLocked:
		return StatusLocked
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
