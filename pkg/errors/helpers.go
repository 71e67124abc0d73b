package errors

import (
	"context"
	"errors"
)

// CheckContext returns an error if the context is canceled or timed out.
// This provides a standardized way to check and wrap context errors.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return Wrap(err, Canceled, operation+" canceled")
	}
	return nil
}

// CodeOf extracts the error code from an error chain.
// Returns Unknown for errors that do not carry a code.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return Unknown
}

// IsTransient reports whether the error is worth retrying: provider
// throttling, timeouts, and unparseable generations all qualify.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case RateLimitExceeded, Timeout, InvalidResponse:
		return true
	}
	return false
}
