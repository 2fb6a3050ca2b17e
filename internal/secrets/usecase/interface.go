// Package usecase implements the secrets store: versioned, envelope encrypted values
// whose user writes may be held back by approval policies.
package usecase

import (
	"context"

	"github.com/google/uuid"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

// SecretRepository defines the interface for Secret persistence operations.
type SecretRepository interface {
	Create(ctx context.Context, secret *secretsDomain.Secret) error
	GetLatest(ctx context.Context, scope secretsDomain.Scope, key string) (*secretsDomain.Secret, error)
	ListLatest(ctx context.Context, scope secretsDomain.Scope) ([]*secretsDomain.Secret, error)
}

// PolicyGetter loads the policy an approval request was filed under.
type PolicyGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Policy, error)
}

// RequestRepository persists pending writes.
type RequestRepository interface {
	Create(ctx context.Context, req *approvalDomain.Request) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (*approvalDomain.Request, error)
	Update(ctx context.Context, req *approvalDomain.Request) error
}

// PolicyResolver returns the policy governing a path, or nil.
type PolicyResolver interface {
	Resolve(ctx context.Context, projectID, environment, secretPath string) (*approvalDomain.Policy, error)
}

// EnvelopeService encrypts values at rest.
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

// SecretUseCase defines the secrets store operations.
type SecretUseCase interface {
	// Upsert writes a new version of every entry. A user write governed by a policy
	// that requires approvals is stored as an approval request and returns an
	// *secretsDomain.ApprovalRequiredError. Upsert joins a transaction carried by ctx.
	Upsert(
		ctx context.Context,
		actor authDomain.Actor,
		scope secretsDomain.Scope,
		entries []secretsDomain.Entry,
	) ([]*secretsDomain.Secret, error)

	// Get returns the latest version of key with Plaintext populated. Callers must
	// zero Plaintext after use.
	Get(
		ctx context.Context,
		actor authDomain.Actor,
		scope secretsDomain.Scope,
		key string,
	) (*secretsDomain.Secret, error)

	// List returns the latest version of every key in scope, decrypted.
	List(ctx context.Context, actor authDomain.Actor, scope secretsDomain.Scope) ([]*secretsDomain.Secret, error)

	// ApproveRequest records actor's approval. Once the policy threshold is reached
	// the captured write is applied on behalf of the requester.
	ApproveRequest(
		ctx context.Context,
		actor authDomain.Actor,
		requestID uuid.UUID,
	) (*approvalDomain.Request, error)
}
