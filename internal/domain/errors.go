package domain

import "errors"

var (
	ErrUnauthenticated     = errors.New("no credential presented")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrExpiredCredential   = errors.New("credential expired")
	ErrUnknownCredential   = errors.New("unknown credential")
	ErrInactiveActor       = errors.New("actor is missing or deactivated")
	ErrAuthTimeout         = errors.New("authentication timed out")

	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrForbidden    = errors.New("permission denied")
	ErrUnrecognized = errors.New("unrecognized command")
	ErrInvalidInput = errors.New("invalid payload")

	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTooOld            = errors.New("movement is outside the reversal window")
	ErrAlreadyReversed   = errors.New("movement already reversed")
	ErrNotReversible     = errors.New("movement cannot be reversed")
	ErrStoreUnavailable  = errors.New("inventory store unavailable")
)

// Wire codes carried in "error" envelopes and HTTP error bodies.
const (
	CodeUnauthenticated   = "unauthenticated"
	CodeAuthFailure       = "auth_failure"
	CodeAuthTimeout       = "auth_timeout"
	CodeRateLimited       = "rate_limited"
	CodeForbidden         = "forbidden"
	CodeUnrecognized      = "unrecognized"
	CodeInvalidPayload    = "invalid_payload"
	CodeNotFound          = "not_found"
	CodeInsufficientStock = "insufficient_stock"
	CodeTooOld            = "too_old"
	CodeAlreadyReversed   = "already_reversed"
	CodeNotReversible     = "not_reversible"
	CodeStoreUnavailable  = "store_unavailable"
	CodeInternal          = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnauthenticated, CodeUnauthenticated},
	{ErrMalformedCredential, CodeAuthFailure},
	{ErrExpiredCredential, CodeAuthFailure},
	{ErrUnknownCredential, CodeAuthFailure},
	{ErrInactiveActor, CodeAuthFailure},
	{ErrAuthTimeout, CodeAuthTimeout},
	{ErrRateLimited, CodeRateLimited},
	{ErrForbidden, CodeForbidden},
	{ErrUnrecognized, CodeUnrecognized},
	{ErrInvalidInput, CodeInvalidPayload},
	{ErrNotFound, CodeNotFound},
	{ErrInsufficientStock, CodeInsufficientStock},
	{ErrTooOld, CodeTooOld},
	{ErrAlreadyReversed, CodeAlreadyReversed},
	{ErrNotReversible, CodeNotReversible},
	{ErrStoreUnavailable, CodeStoreUnavailable},
}

// ErrorCode maps an error onto its wire code. Anything unknown is "internal".
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// AuthFailureReason names the specific authentication failure for logs and
// metrics; the wire only ever sees auth_failure.
func AuthFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "missing"
	case errors.Is(err, ErrMalformedCredential):
		return "malformed"
	case errors.Is(err, ErrExpiredCredential):
		return "expired"
	case errors.Is(err, ErrUnknownCredential):
		return "unknown"
	case errors.Is(err, ErrInactiveActor):
		return "inactive"
	case errors.Is(err, ErrAuthTimeout):
		return "timeout"
	default:
		return "error"
	}
}
