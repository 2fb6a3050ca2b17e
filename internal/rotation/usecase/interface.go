// Package usecase orchestrates credential rotation: it drives the per-kind factories,
// keeps the encrypted credential set and the mapped secrets in step, and exposes the
// rotation definition lifecycle to the API and the scheduler.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
	"github.com/allisson/rotator/internal/rotation/factory"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

// RotationRepository defines the interface for rotation definition persistence.
type RotationRepository interface {
	Create(ctx context.Context, rotation *rotationDomain.Rotation) error
	Get(ctx context.Context, id uuid.UUID) (*rotationDomain.Rotation, error)
	Update(ctx context.Context, rotation *rotationDomain.Rotation) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, projectID string, offset, limit int) ([]*rotationDomain.Rotation, error)
	// ListDue also returns definitions stuck in rotating since staleBefore.
	ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*rotationDomain.Rotation, error)
}

// ConnectionRepository defines the interface for connection persistence.
type ConnectionRepository interface {
	Create(ctx context.Context, conn *rotationDomain.Connection) error
	Get(ctx context.Context, id uuid.UUID) (*rotationDomain.Connection, error)
}

// EnvelopeService encrypts credential sets and connection credentials at rest.
type EnvelopeService interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, blob []byte) ([]byte, error)
}

// PermissionProvider resolves what an actor may do inside a project.
type PermissionProvider interface {
	GetProjectPermission(
		ctx context.Context,
		actor authDomain.Actor,
		projectID string,
	) (authDomain.Permission, error)
}

// SecretsWriter writes mapped credential values into the secrets store. Upsert must
// join a transaction carried by ctx.
type SecretsWriter interface {
	Upsert(
		ctx context.Context,
		actor authDomain.Actor,
		scope secretsDomain.Scope,
		entries []secretsDomain.Entry,
	) ([]*secretsDomain.Secret, error)
}

// FactoryBuilder creates the factory for a rotation. *factory.Registry implements it.
type FactoryBuilder interface {
	Build(
		conn rotationDomain.ConnectionConfig,
		cfg rotationDomain.Config,
		current rotationDomain.CredentialSet,
	) (factory.Factory, error)
}

// RotationUseCase defines the rotation definition lifecycle.
type RotationUseCase interface {
	// Create validates and persists a definition, then performs the first issuance. When
	// issuance fails the definition stays created with LastError set and the error is returned.
	Create(
		ctx context.Context,
		actor authDomain.Actor,
		input *rotationDomain.CreateRotationInput,
	) (*rotationDomain.Rotation, error)
	Update(
		ctx context.Context,
		actor authDomain.Actor,
		id uuid.UUID,
		input *rotationDomain.UpdateRotationInput,
	) (*rotationDomain.Rotation, error)
	Get(ctx context.Context, actor authDomain.Actor, id uuid.UUID) (*rotationDomain.Rotation, error)
	List(
		ctx context.Context,
		actor authDomain.Actor,
		projectID string,
		offset, limit int,
	) ([]*rotationDomain.Rotation, error)
	// Delete revokes every live remote credential before removing the definition.
	Delete(ctx context.Context, actor authDomain.Actor, id uuid.UUID) error
	// Rotate replaces the active credential. A concurrent rotation of the same
	// definition fails with ErrRotationInProgress.
	Rotate(ctx context.Context, actor authDomain.Actor, id uuid.UUID) (*rotationDomain.RotationResult, error)
}

// ConnectionUseCase manages connections to remote credential systems.
type ConnectionUseCase interface {
	Create(
		ctx context.Context,
		actor authDomain.Actor,
		input *rotationDomain.CreateConnectionInput,
	) (*rotationDomain.Connection, error)
	Get(ctx context.Context, actor authDomain.Actor, id uuid.UUID) (*rotationDomain.Connection, error)
}
