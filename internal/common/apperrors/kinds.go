package apperrors

import (
	"context"
	"errors"
)

// Root kinds. Every error produced by parkadmin descends from one of these.
var (
	// ErrTransport covers network failures, timeouts and non-authorization HTTP
	// failures. The cache layer retries these.
	ErrTransport Error = New("failed to load")
	// ErrUnauthorized covers 401/403 responses and missing local sessions.
	ErrUnauthorized Error = New("session expired")
	// ErrValidation is returned when a response does not satisfy its declared shape.
	ErrValidation Error = New("invalid data")
	// ErrBusiness is returned when the server answers with an explicit failure flag.
	ErrBusiness Error = New("request rejected")
)

var (
	ErrNoSession     = ErrUnauthorized.New("no active session")
	ErrPermission    = ErrBusiness.New("insufficient permissions")
	ErrLoadFailed    = ErrTransport.New("failed to load data")
	ErrInvalidConfig = New("invalid configuration")
)

// IsTransport reports whether err is a retryable transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidation reports whether err is a schema validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsBusiness reports whether err is an explicit server-side rejection.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrBusiness)
}

// Retryable reports whether a failed fetch may be attempted again. Validation,
// authorization and business failures are terminal, as is caller cancellation.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if IsValidation(err) || IsUnauthorized(err) || IsBusiness(err) {
		return false
	}
	return true
}

// UserMessage maps err onto the text shown to a staff member. Validation
// failures read as invalid data wherever they surface; any other load failure
// reads as a generic failure whatever its cause.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return ErrValidation.Error()
	case errors.Is(err, ErrLoadFailed):
		return ErrTransport.Error()
	case IsUnauthorized(err):
		return ErrUnauthorized.Error()
	case IsBusiness(err):
		var ae Error
		if errors.As(err, &ae) {
			return ae.Error()
		}
		return ErrBusiness.Error()
	default:
		return ErrTransport.Error()
	}
}
