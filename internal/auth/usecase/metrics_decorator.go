package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	"github.com/allisson/rotator/internal/metrics"
)

// clientUseCaseWithMetrics decorates ClientUseCase with metrics instrumentation.
type clientUseCaseWithMetrics struct {
	next    ClientUseCase
	metrics metrics.BusinessMetrics
}

// NewClientUseCaseWithMetrics wraps a ClientUseCase with metrics recording.
func NewClientUseCaseWithMetrics(useCase ClientUseCase, m metrics.BusinessMetrics) ClientUseCase {
	return &clientUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (c *clientUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)
	c.metrics.RecordOperation(ctx, "auth", operation, status)
	c.metrics.RecordDuration(ctx, "auth", operation, time.Since(start), status)
}

// Create records metrics for client creation operations.
func (c *clientUseCaseWithMetrics) Create(
	ctx context.Context,
	input *authDomain.CreateClientInput,
) (*authDomain.CreateClientOutput, error) {
	start := time.Now()
	output, err := c.next.Create(ctx, input)
	c.record(ctx, "client_create", start, err)
	return output, err
}

// Update records metrics for client update operations.
func (c *clientUseCaseWithMetrics) Update(
	ctx context.Context,
	clientID uuid.UUID,
	input *authDomain.UpdateClientInput,
) error {
	start := time.Now()
	err := c.next.Update(ctx, clientID, input)
	c.record(ctx, "client_update", start, err)
	return err
}

// Get records metrics for client retrieval operations.
func (c *clientUseCaseWithMetrics) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	start := time.Now()
	client, err := c.next.Get(ctx, clientID)
	c.record(ctx, "client_get", start, err)
	return client, err
}

// Delete records metrics for client deactivation operations.
func (c *clientUseCaseWithMetrics) Delete(ctx context.Context, clientID uuid.UUID) error {
	start := time.Now()
	err := c.next.Delete(ctx, clientID)
	c.record(ctx, "client_delete", start, err)
	return err
}

// Authenticate records metrics for bearer token authentication.
func (c *clientUseCaseWithMetrics) Authenticate(ctx context.Context, token string) (*authDomain.Client, error) {
	start := time.Now()
	client, err := c.next.Authenticate(ctx, token)
	c.record(ctx, "client_authenticate", start, err)
	return client, err
}
