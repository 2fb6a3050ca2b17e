// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. Use cases return these errors (usually wrapped
// with context) and the HTTP layer maps them to status codes.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data or an operation already in flight.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated actor doesn't have permission.
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest indicates a remote provider rejected the request with a structured error.
	ErrBadRequest = errors.New("bad request")

	// ErrRemoteFailure indicates a remote provider failed in an unrecognized way.
	ErrRemoteFailure = errors.New("remote failure")

	// ErrRemoteUnavailable indicates the remote provider could not be reached or timed out.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrCrypto indicates a failure inside the encryption boundary.
	ErrCrypto = errors.New("crypto failure")

	// ErrApprovalRequired indicates a write was captured as an approval request instead of applied.
	ErrApprovalRequired = errors.New("approval required")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message while preserving the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsRetryable reports whether err came from a transport-level failure that is safe
// to retry for idempotent operations.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// maxRemoteMessage bounds provider messages carried in a RemoteError.
const maxRemoteMessage = 256

// RemoteError is a failure reported by, or while reaching, a remote credential system.
// Kind is one of ErrBadRequest, ErrRemoteFailure or ErrRemoteUnavailable. Message is
// safe to return to API callers.
type RemoteError struct {
	Provider string
	Message  string
	Kind     error
}

// NewRemoteError builds a RemoteError, truncating long provider messages.
func NewRemoteError(kind error, provider, message string) *RemoteError {
	if len(message) > maxRemoteMessage {
		message = message[:maxRemoteMessage] + "..."
	}
	return &RemoteError{Provider: provider, Message: message, Kind: kind}
}

func (e *RemoteError) Error() string {
	return e.Provider + ": " + e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Kind
}
