package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	authDomain "github.com/allisson/rotator/internal/auth/domain"
	apperrors "github.com/allisson/rotator/internal/errors"
	"github.com/allisson/rotator/internal/metrics"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

// secretUseCaseWithMetrics decorates SecretUseCase with metrics instrumentation.
type secretUseCaseWithMetrics struct {
	next    SecretUseCase
	metrics metrics.BusinessMetrics
}

// NewSecretUseCaseWithMetrics wraps a SecretUseCase with metrics recording.
func NewSecretUseCaseWithMetrics(useCase SecretUseCase, m metrics.BusinessMetrics) SecretUseCase {
	return &secretUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// record reports held writes with status "approval_required".
func (s *secretUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)
	if apperrors.Is(err, apperrors.ErrApprovalRequired) {
		status = "approval_required"
	}
	s.metrics.RecordOperation(ctx, "secrets", operation, status)
	s.metrics.RecordDuration(ctx, "secrets", operation, time.Since(start), status)
}

func (s *secretUseCaseWithMetrics) Upsert(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	entries []secretsDomain.Entry,
) ([]*secretsDomain.Secret, error) {
	start := time.Now()
	secrets, err := s.next.Upsert(ctx, actor, scope, entries)
	s.record(ctx, "secret_upsert", start, err)
	return secrets, err
}

func (s *secretUseCaseWithMetrics) Get(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
	key string,
) (*secretsDomain.Secret, error) {
	start := time.Now()
	secret, err := s.next.Get(ctx, actor, scope, key)
	s.record(ctx, "secret_get", start, err)
	return secret, err
}

func (s *secretUseCaseWithMetrics) List(
	ctx context.Context,
	actor authDomain.Actor,
	scope secretsDomain.Scope,
) ([]*secretsDomain.Secret, error) {
	start := time.Now()
	secrets, err := s.next.List(ctx, actor, scope)
	s.record(ctx, "secret_list", start, err)
	return secrets, err
}

func (s *secretUseCaseWithMetrics) ApproveRequest(
	ctx context.Context,
	actor authDomain.Actor,
	requestID uuid.UUID,
) (*approvalDomain.Request, error) {
	start := time.Now()
	req, err := s.next.ApproveRequest(ctx, actor, requestID)
	s.record(ctx, "approval_request_approve", start, err)
	return req, err
}
