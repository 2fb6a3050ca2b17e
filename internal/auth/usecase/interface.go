// Package usecase defines business logic for API clients and project permissions.
package usecase

import (
	"context"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

// ClientRepository defines persistence operations for API clients.
// Implementations must join the transaction carried by ctx.
type ClientRepository interface {
	Create(ctx context.Context, client *authDomain.Client) error

	Update(ctx context.Context, client *authDomain.Client) error

	// Get returns ErrClientNotFound if the client does not exist.
	Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error)
}

// ClientUseCase manages API clients and authenticates bearer tokens.
type ClientUseCase interface {
	// Create generates a client with a random secret. The plain secret is returned
	// once and must be transmitted securely; only its Argon2id hash is stored.
	Create(ctx context.Context, input *authDomain.CreateClientInput) (*authDomain.CreateClientOutput, error)

	// Update changes name, active status and policies. The secret is preserved.
	Update(ctx context.Context, clientID uuid.UUID, input *authDomain.UpdateClientInput) error

	Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error)

	// Delete deactivates the client. The row is kept.
	Delete(ctx context.Context, clientID uuid.UUID) error

	// Authenticate validates "<clientId>.<secret>". Unknown clients and wrong secrets
	// both return ErrInvalidCredentials; inactive clients return ErrClientInactive.
	Authenticate(ctx context.Context, token string) (*authDomain.Client, error)
}

// PermissionUseCase resolves what an actor may do inside a project.
type PermissionUseCase interface {
	GetProjectPermission(ctx context.Context, actor authDomain.Actor, projectID string) (authDomain.Permission, error)
}
