package usecase

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
)

type policyUseCase struct {
	policyRepo  PolicyRepository
	resolver    Resolver
	permissions PermissionProvider
	clock       clockwork.Clock
	logger      *slog.Logger
}

func (p *policyUseCase) require(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	capability authDomain.Capability,
) error {
	perm, err := p.permissions.GetProjectPermission(ctx, actor, projectID)
	if err != nil {
		return err
	}
	return perm.Require(capability, authDomain.SubjectApprovalPolicies)
}

func (p *policyUseCase) Create(
	ctx context.Context,
	actor authDomain.Actor,
	input approvalDomain.CreatePolicyInput,
) (*approvalDomain.Policy, error) {
	if err := p.require(ctx, actor, input.ProjectID, authDomain.WriteCapability); err != nil {
		return nil, err
	}

	policy, err := approvalDomain.NewPolicy(input, p.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := p.policyRepo.Create(ctx, policy); err != nil {
		return nil, err
	}

	p.logger.Info("approval policy created",
		slog.String("policy_id", policy.ID.String()),
		slog.String("project_id", policy.ProjectID),
		slog.String("environment", policy.Environment),
		slog.Int("approvals", policy.Approvals),
		slog.String("actor", actor.String()))
	return policy, nil
}

func (p *policyUseCase) List(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	offset, limit int,
) ([]*approvalDomain.Policy, error) {
	if err := p.require(ctx, actor, projectID, authDomain.ReadCapability); err != nil {
		return nil, err
	}
	return p.policyRepo.List(ctx, projectID, offset, limit)
}

func (p *policyUseCase) Resolve(
	ctx context.Context,
	actor authDomain.Actor,
	projectID, environment, secretPath string,
) (*approvalDomain.Policy, error) {
	if err := p.require(ctx, actor, projectID, authDomain.ReadCapability); err != nil {
		return nil, err
	}
	return p.resolver.Resolve(ctx, projectID, environment, secretPath)
}

// NewPolicyUseCase creates a PolicyUseCase.
func NewPolicyUseCase(
	policyRepo PolicyRepository,
	resolver Resolver,
	permissions PermissionProvider,
	clock clockwork.Clock,
	logger *slog.Logger,
) PolicyUseCase {
	return &policyUseCase{
		policyRepo:  policyRepo,
		resolver:    resolver,
		permissions: permissions,
		clock:       clock,
		logger:      logger,
	}
}
