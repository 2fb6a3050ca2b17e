package usecase

import (
	"context"
	"time"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
	"github.com/allisson/rotator/internal/metrics"
)

// policyUseCaseWithMetrics decorates PolicyUseCase with metrics instrumentation.
type policyUseCaseWithMetrics struct {
	next    PolicyUseCase
	metrics metrics.BusinessMetrics
}

// NewPolicyUseCaseWithMetrics wraps a PolicyUseCase with metrics recording.
func NewPolicyUseCaseWithMetrics(useCase PolicyUseCase, m metrics.BusinessMetrics) PolicyUseCase {
	return &policyUseCaseWithMetrics{next: useCase, metrics: m}
}

func (p *policyUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)
	p.metrics.RecordOperation(ctx, "approval", operation, status)
	p.metrics.RecordDuration(ctx, "approval", operation, time.Since(start), status)
}

func (p *policyUseCaseWithMetrics) Create(
	ctx context.Context,
	actor authDomain.Actor,
	input approvalDomain.CreatePolicyInput,
) (*approvalDomain.Policy, error) {
	start := time.Now()
	policy, err := p.next.Create(ctx, actor, input)
	p.record(ctx, "policy_create", start, err)
	return policy, err
}

func (p *policyUseCaseWithMetrics) List(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	offset, limit int,
) ([]*approvalDomain.Policy, error) {
	start := time.Now()
	policies, err := p.next.List(ctx, actor, projectID, offset, limit)
	p.record(ctx, "policy_list", start, err)
	return policies, err
}

func (p *policyUseCaseWithMetrics) Resolve(
	ctx context.Context,
	actor authDomain.Actor,
	projectID, environment, secretPath string,
) (*approvalDomain.Policy, error) {
	start := time.Now()
	policy, err := p.next.Resolve(ctx, actor, projectID, environment, secretPath)
	p.record(ctx, "policy_resolve", start, err)
	return policy, err
}
