package usecase

import (
	"context"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
)

type policyResolver struct {
	policyRepo PolicyRepository
}

// Resolve loads the environment's policies and keeps the most specific match.
func (r *policyResolver) Resolve(
	ctx context.Context,
	projectID, environment, secretPath string,
) (*approvalDomain.Policy, error) {
	policies, err := r.policyRepo.ListByEnvironment(ctx, projectID, environment)
	if err != nil {
		return nil, err
	}
	return approvalDomain.SelectPolicy(policies, secretPath), nil
}

// NewResolver creates a Resolver backed by the policy repository.
func NewResolver(policyRepo PolicyRepository) Resolver {
	return &policyResolver{policyRepo: policyRepo}
}
