package domain

import (
	"github.com/allisson/rotator/internal/errors"
)

// Rotation-specific error definitions.
var (
	// ErrRotationNotFound indicates the rotation definition does not exist.
	ErrRotationNotFound = errors.Wrap(errors.ErrNotFound, "rotation not found")

	// ErrConnectionNotFound indicates the referenced connection does not exist.
	ErrConnectionNotFound = errors.Wrap(errors.ErrNotFound, "connection not found")

	// ErrRotationInProgress indicates another rotation of the same definition is in flight.
	ErrRotationInProgress = errors.Wrap(errors.ErrConflict, "rotation already in progress")

	// ErrRotationNameTaken indicates the name is already used in the project.
	ErrRotationNameTaken = errors.Wrap(errors.ErrConflict, "rotation name already exists")

	// ErrUnsupportedKind indicates an unknown credential kind.
	ErrUnsupportedKind = errors.Wrap(errors.ErrInvalidInput, "unsupported rotation kind")

	// ErrInvalidConfig indicates parameters or secrets mapping failed schema validation.
	ErrInvalidConfig = errors.Wrap(errors.ErrInvalidInput, "invalid rotation configuration")

	// ErrInvalidConnection indicates connection credentials failed validation.
	ErrInvalidConnection = errors.Wrap(errors.ErrInvalidInput, "invalid connection credentials")

	// ErrKindMismatch indicates the connection serves a different kind than the rotation.
	ErrKindMismatch = errors.Wrap(errors.ErrInvalidInput, "connection kind does not match rotation kind")

	// ErrInvalidCredentialSet indicates a credential set outside the 1..2 bound.
	ErrInvalidCredentialSet = errors.Wrap(errors.ErrInvalidInput, "invalid credential set")
)
