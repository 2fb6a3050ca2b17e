package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	apperrors "github.com/allisson/rotator/internal/errors"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

// connectionUseCase implements ConnectionUseCase. Credentials are validated against
// the kind's schema and stored only as an envelope blob.
type connectionUseCase struct {
	connectionRepo ConnectionRepository
	envelope       EnvelopeService
	permissions    PermissionProvider
}

func (c *connectionUseCase) authorize(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
	capability authDomain.Capability,
) error {
	permission, err := c.permissions.GetProjectPermission(ctx, actor, projectID)
	if err != nil {
		return err
	}
	return permission.Require(capability, authDomain.SubjectConnections)
}

// Create validates and stores a connection.
func (c *connectionUseCase) Create(
	ctx context.Context,
	actor authDomain.Actor,
	input *rotationDomain.CreateConnectionInput,
) (*rotationDomain.Connection, error) {
	if err := c.authorize(ctx, actor, input.ProjectID, authDomain.WriteCapability); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "name is required")
	}
	if err := rotationDomain.ValidateConnectionConfig(input.Kind, input.Credentials); err != nil {
		return nil, err
	}

	blob, err := c.envelope.Encrypt(ctx, input.Credentials)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt connection credentials")
	}

	now := time.Now().UTC()
	conn := &rotationDomain.Connection{
		ID:                   uuid.Must(uuid.NewV7()),
		ProjectID:            input.ProjectID,
		Kind:                 input.Kind,
		Name:                 input.Name,
		EncryptedCredentials: blob,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := c.connectionRepo.Create(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Get returns connection metadata. Credentials stay encrypted.
func (c *connectionUseCase) Get(
	ctx context.Context,
	actor authDomain.Actor,
	id uuid.UUID,
) (*rotationDomain.Connection, error) {
	conn, err := c.connectionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(ctx, actor, conn.ProjectID, authDomain.ReadCapability); err != nil {
		return nil, err
	}
	return conn, nil
}

// NewConnectionUseCase creates a connection use case.
func NewConnectionUseCase(
	connectionRepo ConnectionRepository,
	envelope EnvelopeService,
	permissions PermissionProvider,
) ConnectionUseCase {
	return &connectionUseCase{
		connectionRepo: connectionRepo,
		envelope:       envelope,
		permissions:    permissions,
	}
}
