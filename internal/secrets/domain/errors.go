// Package domain defines core domain models and errors for secrets.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/allisson/rotator/internal/errors"
)

// Secret-specific error definitions.
var (
	// ErrSecretNotFound indicates no secret exists under the requested scope and key.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrInvalidScope indicates a scope with missing project, environment or a malformed path.
	ErrInvalidScope = errors.Wrap(errors.ErrInvalidInput, "invalid secret scope")

	// ErrInvalidEntry indicates an entry without key or a duplicated key in one write.
	ErrInvalidEntry = errors.Wrap(errors.ErrInvalidInput, "invalid secret entry")

	// ErrVersionConflict indicates a concurrent write already took the next version.
	ErrVersionConflict = errors.Wrap(errors.ErrConflict, "secret version already exists")
)

// ApprovalRequiredError is returned when a user write was captured as an approval
// request instead of being applied.
type ApprovalRequiredError struct {
	RequestID uuid.UUID
	PolicyID  uuid.UUID
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("approval required: request %s pending under policy %s", e.RequestID, e.PolicyID)
}

func (e *ApprovalRequiredError) Unwrap() error {
	return errors.ErrApprovalRequired
}
