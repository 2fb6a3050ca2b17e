package domain

import (
	"github.com/allisson/rotator/internal/errors"
)

// Authentication and authorization errors.
var (
	// ErrClientNotFound indicates a client with the specified ID was not found.
	ErrClientNotFound = errors.Wrap(errors.ErrNotFound, "client not found")

	// ErrInvalidCredentials indicates an unknown client, a wrong secret or a malformed token.
	ErrInvalidCredentials = errors.Wrap(errors.ErrUnauthorized, "invalid client credentials")

	// ErrClientInactive indicates the client exists but may not authenticate.
	ErrClientInactive = errors.Wrap(errors.ErrForbidden, "client is inactive")
)
