package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures so callers can branch on outcome kind
// instead of string matching.
type ErrorType string

const (
	// ErrorTypeNetwork covers DNS, connect and timeout failures where the
	// service never answered usefully.
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeAuthRequired means the service answered with a login wall
	// (401/403 or a login_required body marker) and re-authentication did
	// not or could not resolve it.
	ErrorTypeAuthRequired ErrorType = "auth_required"

	// ErrorTypeResolutionExhausted means every candidate in a fallback
	// chain was tried and none yielded a usable payload. The service
	// answered, just not usefully, so this is treated as not-found.
	ErrorTypeResolutionExhausted ErrorType = "resolution_exhausted"

	// ErrorTypeMalformedPayload means a response parsed but the expected
	// top-level container was absent.
	ErrorTypeMalformedPayload ErrorType = "malformed_payload"

	// ErrorTypePublishRejected means the configure/commit step of a publish
	// returned a logical non-ok status. Never auto-retried.
	ErrorTypePublishRejected ErrorType = "publish_rejected"

	// ErrorTypeGuardRejected means a local guard (duplicate-comment
	// cooldown) refused the operation before any network call.
	ErrorTypeGuardRejected ErrorType = "guard_rejected"

	// ErrorTypePrivateAccount means the target profile is private and no
	// authenticated session is available.
	ErrorTypePrivateAccount ErrorType = "private_account"

	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is the typed error carried across every pipeline boundary.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error without an HTTP status code.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// WithCode creates a typed error carrying the HTTP status that produced it.
func WithCode(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// TypeOf unwraps err and returns its ErrorType, or ErrorTypeUnknown for
// foreign errors.
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type.
func Is(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// IsRetryable reports whether an error type is worth retrying with backoff.
// Retrying is always the caller's decision; the pipelines never retry
// beyond the single re-auth replay.
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status code indicates a
// transient failure.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
