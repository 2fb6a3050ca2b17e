package usecase

import (
	"context"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	apperrors "github.com/allisson/rotator/internal/errors"
)

// permissionUseCase resolves permissions from client policies. Clients are reloaded on
// every call so deactivation and policy edits apply to the next request.
type permissionUseCase struct {
	clientRepo ClientRepository
}

func (p *permissionUseCase) GetProjectPermission(
	ctx context.Context,
	actor authDomain.Actor,
	projectID string,
) (authDomain.Permission, error) {
	if projectID == "" {
		return authDomain.Permission{}, apperrors.Wrap(apperrors.ErrInvalidInput, "project id is required")
	}
	if actor.IsSystem() {
		return authDomain.SystemPermission(projectID), nil
	}

	clientID, err := uuid.Parse(actor.ID)
	if err != nil {
		return authDomain.Permission{}, apperrors.Wrapf(apperrors.ErrUnauthorized, "unknown actor %s", actor)
	}
	client, err := p.clientRepo.Get(ctx, clientID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return authDomain.Permission{}, apperrors.Wrapf(apperrors.ErrUnauthorized, "unknown actor %s", actor)
		}
		return authDomain.Permission{}, err
	}
	return authDomain.NewClientPermission(client, projectID), nil
}

// NewPermissionUseCase creates a PermissionUseCase backed by client policies.
func NewPermissionUseCase(clientRepo ClientRepository) PermissionUseCase {
	return &permissionUseCase{clientRepo: clientRepo}
}
