// Package usecase manages approval policies and resolves which policy governs a write.
package usecase

import (
	"context"

	"github.com/google/uuid"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

// PolicyRepository defines approval policy persistence.
type PolicyRepository interface {
	Create(ctx context.Context, policy *approvalDomain.Policy) error
	Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Policy, error)
	ListByEnvironment(ctx context.Context, projectID, environment string) ([]*approvalDomain.Policy, error)
	List(ctx context.Context, projectID string, offset, limit int) ([]*approvalDomain.Policy, error)
}

// RequestRepository defines approval request persistence.
type RequestRepository interface {
	Create(ctx context.Context, req *approvalDomain.Request) error
	Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Request, error)
	// GetForUpdate must be called inside a transaction; the row stays locked until it ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*approvalDomain.Request, error)
	Update(ctx context.Context, req *approvalDomain.Request) error
}

// PermissionProvider resolves what an actor may do inside a project.
type PermissionProvider interface {
	GetProjectPermission(
		ctx context.Context,
		actor authDomain.Actor,
		projectID string,
	) (authDomain.Permission, error)
}

// Resolver returns the policy governing a secret path, or nil.
type Resolver interface {
	Resolve(ctx context.Context, projectID, environment, secretPath string) (*approvalDomain.Policy, error)
}

// PolicyUseCase exposes approval policies to API clients.
type PolicyUseCase interface {
	Create(
		ctx context.Context,
		actor authDomain.Actor,
		input approvalDomain.CreatePolicyInput,
	) (*approvalDomain.Policy, error)
	List(
		ctx context.Context,
		actor authDomain.Actor,
		projectID string,
		offset, limit int,
	) ([]*approvalDomain.Policy, error)
	// Resolve answers which policy would govern a write. A nil policy means user
	// writes are applied directly.
	Resolve(
		ctx context.Context,
		actor authDomain.Actor,
		projectID, environment, secretPath string,
	) (*approvalDomain.Policy, error)
}
