// Package errors defines the structured error type shared by services,
// storage backends and the HTTP layer. Errors carry a stable code that maps
// onto an HTTP status so handlers never need to inspect message text.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies an error condition. Codes are strings so they serialise
// naturally into API responses.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeConflict          Code = "CONFLICT"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	CodeNotFound:          http.StatusNotFound,
	CodeAlreadyExists:     http.StatusConflict,
	CodeConflict:          http.StatusConflict,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeInvalidInput:      http.StatusBadRequest,
	CodeInsufficientFunds: http.StatusUnprocessableEntity,
	CodeRateLimit:         http.StatusTooManyRequests,
	CodeInternal:          http.StatusInternalServerError,
}

// ServiceError is the structured error returned by the application layer.
type ServiceError struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

// Sentinels for errors.Is comparisons. They match any ServiceError with the
// same code.
var (
	ErrNotFound          = &ServiceError{Code: CodeNotFound}
	ErrAlreadyExists     = &ServiceError{Code: CodeAlreadyExists}
	ErrConflict          = &ServiceError{Code: CodeConflict}
	ErrUnauthorized      = &ServiceError{Code: CodeUnauthorized}
	ErrForbidden         = &ServiceError{Code: CodeForbidden}
	ErrInvalidInput      = &ServiceError{Code: CodeInvalidInput}
	ErrInsufficientFunds = &ServiceError{Code: CodeInsufficientFunds}
)

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel with the same code.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// WithDetails returns a copy of the error with an extra detail entry.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New builds a ServiceError for the code.
func New(code Code, message string) *ServiceError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap builds a ServiceError that keeps err as its cause.
func Wrap(code Code, message string, err error) *ServiceError {
	e := New(code, message)
	e.Err = err
	return e
}

func NotFound(resource, id string) *ServiceError {
	return New(CodeNotFound, fmt.Sprintf("%s %s not found", resource, id)).
		WithDetails("resource", resource)
}

func AlreadyExists(message string) *ServiceError { return New(CodeAlreadyExists, message) }

func Conflict(message string) *ServiceError { return New(CodeConflict, message) }

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return New(CodeUnauthorized, message)
}

func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "operation not permitted"
	}
	return New(CodeForbidden, message)
}

func InvalidInput(format string, args ...any) *ServiceError {
	return New(CodeInvalidInput, fmt.Sprintf(format, args...))
}

func InvalidToken(err error) *ServiceError {
	return Wrap(CodeUnauthorized, "invalid token", err)
}

func InsufficientFunds(available, required int64) *ServiceError {
	return New(CodeInsufficientFunds, "insufficient funds").
		WithDetails("available", available).
		WithDetails("required", required)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimit, "rate limit exceeded").
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(message string, err error) *ServiceError {
	return Wrap(CodeInternal, message, err)
}

// GetServiceError extracts the first ServiceError in err's chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HTTPStatus maps any error onto a response status.
func HTTPStatus(err error) int {
	if se := GetServiceError(err); se != nil && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
