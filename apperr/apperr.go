// Package apperr defines the typed application errors returned by services and
// the connection manager. Each error carries the HTTP status and a stable code
// that the response layer writes back to clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeAuthentication Code = "AUTHENTICATION_ERROR"
	CodeAuthorization  Code = "AUTHORIZATION_ERROR"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeRateLimit      Code = "RATE_LIMIT"
	CodeInternal       Code = "INTERNAL_ERROR"
	CodeBadRequest     Code = "BAD_REQUEST"
)

// FieldError describes one failed field in a validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error is an application error with a fixed status and code.
type Error struct {
	Message string
	Status  int
	Code    Code
	Details map[string]any
	Fields  []FieldError

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error with the same code, so errors.Is(err, apperr.ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// WithCause attaches the underlying error without changing what clients see.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// Sentinels for errors.Is comparisons. They carry only a code.
var (
	ErrValidation     = &Error{Code: CodeValidation}
	ErrAuthentication = &Error{Code: CodeAuthentication}
	ErrAuthorization  = &Error{Code: CodeAuthorization}
	ErrNotFound       = &Error{Code: CodeNotFound}
	ErrConflict       = &Error{Code: CodeConflict}
	ErrRateLimit      = &Error{Code: CodeRateLimit}
	ErrInternal       = &Error{Code: CodeInternal}
	ErrBadRequest     = &Error{Code: CodeBadRequest}
)

func Validation(message string, fields ...FieldError) *Error {
	if message == "" {
		message = "Validation failed"
	}
	return &Error{Message: message, Status: http.StatusBadRequest, Code: CodeValidation, Fields: fields}
}

func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Message: message, Status: http.StatusUnauthorized, Code: CodeAuthentication}
}

func Authorization(message string) *Error {
	if message == "" {
		message = "Insufficient permissions"
	}
	return &Error{Message: message, Status: http.StatusForbidden, Code: CodeAuthorization}
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{Message: message, Status: http.StatusNotFound, Code: CodeNotFound}
}

func Conflict(message string) *Error {
	return &Error{Message: message, Status: http.StatusConflict, Code: CodeConflict}
}

func RateLimit(message string) *Error {
	if message == "" {
		message = "Too many requests"
	}
	return &Error{Message: message, Status: http.StatusTooManyRequests, Code: CodeRateLimit}
}

func BadRequest(message string, details map[string]any) *Error {
	return &Error{Message: message, Status: http.StatusBadRequest, Code: CodeBadRequest, Details: details}
}

func Internal(message string, details map[string]any) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return &Error{Message: message, Status: http.StatusInternalServerError, Code: CodeInternal, Details: details}
}

// From returns the *Error in err's chain, if any.
func From(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 for untyped errors.
func StatusOf(err error) int {
	if appErr, ok := From(err); ok && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
