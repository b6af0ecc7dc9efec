// Package errors provides structured errors that carry an HTTP status and a
// client-safe message, plus the mapping from domain sentinels.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pscheid92/plantpulse/internal/domain"
)

type ErrorType string

const (
	TypeValidation   ErrorType = "validation"
	TypeUnauthorized ErrorType = "unauthorized"
	TypeForbidden    ErrorType = "forbidden"
	TypeNotFound     ErrorType = "not_found"
	TypeConflict     ErrorType = "conflict"
	TypeRateLimited  ErrorType = "rate_limited"
	TypeInternal     ErrorType = "internal"
	// TypeUnavailable is a dependency (database, cache) that cannot serve right now.
	TypeUnavailable ErrorType = "unavailable"
)

// Error is a structured error with type, message, code and context.
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeRateLimited:
		return http.StatusTooManyRequests
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, code, message string, cause error) *Error {
	return &Error{Type: t, Code: code, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, domain.CodeInvalidPayload, message, nil)
}

func UnauthorizedError(code, message string) *Error {
	return newError(TypeUnauthorized, code, message, nil)
}

func ForbiddenError(message string) *Error {
	return newError(TypeForbidden, domain.CodeForbidden, message, nil)
}

func NotFoundError(message string) *Error {
	return newError(TypeNotFound, domain.CodeNotFound, message, nil)
}

func ConflictError(code, message string, cause error) *Error {
	return newError(TypeConflict, code, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, domain.CodeInternal, message, cause)
}

func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, domain.CodeStoreUnavailable, message, cause)
}

// WithField adds a context field (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Code:    e.Code,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError converts any error into a structured Error. Structured
// errors pass through, domain sentinels map to their type, anything else
// becomes an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return FromDomain(err)
}

// FromDomain maps a domain error onto a structured error.
func FromDomain(err error) *Error {
	code := domain.ErrorCode(err)
	switch code {
	case domain.CodeUnauthenticated, domain.CodeAuthFailure, domain.CodeAuthTimeout:
		return newError(TypeUnauthorized, code, "authentication required", err)
	case domain.CodeForbidden:
		return newError(TypeForbidden, code, "permission denied", err)
	case domain.CodeRateLimited:
		return newError(TypeRateLimited, code, "rate limit exceeded", err)
	case domain.CodeInvalidPayload:
		return newError(TypeValidation, code, err.Error(), err)
	case domain.CodeNotFound, domain.CodeUnrecognized:
		return newError(TypeNotFound, code, "not found", err)
	case domain.CodeInsufficientStock, domain.CodeTooOld, domain.CodeAlreadyReversed, domain.CodeNotReversible:
		return ConflictError(code, err.Error(), err)
	case domain.CodeStoreUnavailable:
		return newError(TypeUnavailable, code, "inventory store unavailable", err)
	default:
		return InternalError("internal server error", err)
	}
}
