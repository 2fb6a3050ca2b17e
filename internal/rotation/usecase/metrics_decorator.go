package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	"github.com/allisson/rotator/internal/metrics"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (r *rotationUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)
	r.metrics.RecordOperation(ctx, "rotation", operation, status)
	r.metrics.RecordDuration(ctx, "rotation", operation, time.Since(start), status)
}

// Create records metrics for rotation creation, which includes the first issuance.
func (r *rotationUseCaseWithMetrics) Create(
	ctx context.Context,
	actor authDomain.Actor,
	input *rotationDomain.CreateRotationInput,
) (*rotationDomain.Rotation, error) {
	start := time.Now()
	rotation, err := r.next.Create(ctx, actor, input)
	r.record(ctx, "rotation_create", start, err)
	return rotation, err
}

// Update records metrics for rotation updates.
func (r *rotationUseCaseWithMetrics) Update(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
	input *rotationDomain.UpdateRotationInput,
) (*rotationDomain.Rotation, error) {
	start := time.Now()
	rotation, err := r.next.Update(ctx, actor, id, input)
	r.record(ctx, "rotation_update", start, err)
	return rotation, err
}

// Get records metrics for rotation retrieval.
func (r *rotationUseCaseWithMetrics) Get(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
) (*rotationDomain.Rotation, error) {
	start := time.Now()
	rotation, err := r.next.Get(ctx, actor, id)
	r.record(ctx, "rotation_get", start, err)
	return rotation, err
}

// List records metrics for rotation listing.
func (r *rotationUseCaseWithMetrics) List(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	offset, limit int,
) ([]*rotationDomain.Rotation, error) {
	start := time.Now()
	rotations, err := r.next.List(ctx, actor, projectID, offset, limit)
	r.record(ctx, "rotation_list", start, err)
	return rotations, err
}

// Delete records metrics for rotation deletion.
func (r *rotationUseCaseWithMetrics) Delete(ctx context.Context, actor authDomain.Actor, id uuid.UUID) error {
	start := time.Now()
	err := r.next.Delete(ctx, actor, id)
	r.record(ctx, "rotation_delete", start, err)
	return err
}

// Rotate records metrics for rotations. A rotation whose previous credential could not
// be revoked is also counted under rotation_revoke.
func (r *rotationUseCaseWithMetrics) Rotate(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
) (*rotationDomain.RotationResult, error) {
	start := time.Now()
	result, err := r.next.Rotate(ctx, actor, id)
	r.record(ctx, "rotation_rotate", start, err)
	if err == nil && result != nil && result.RevokeError != nil {
		r.metrics.RecordOperation(ctx, "rotation", "rotation_revoke", metrics.StatusError)
	}
	return result, err
}
