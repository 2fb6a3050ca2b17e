package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	authService "github.com/allisson/rotator/internal/auth/service"
	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
)

// clientUseCase implements ClientUseCase.
type clientUseCase struct {
	txManager   database.TxManager
	clientRepo  ClientRepository
	credentials authService.CredentialService
}

func (c *clientUseCase) Create(
	ctx context.Context,
	input *authDomain.CreateClientInput,
) (*authDomain.CreateClientOutput, error) {
	plainSecret, hashedSecret, err := c.credentials.GenerateSecret()
	if err != nil {
		return nil, err
	}

	client := &authDomain.Client{
		ID:        uuid.Must(uuid.NewV7()),
		Secret:    hashedSecret,
		Name:      input.Name,
		IsActive:  input.IsActive,
		Policies:  input.Policies,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}

	return &authDomain.CreateClientOutput{ID: client.ID, PlainSecret: plainSecret}, nil
}

func (c *clientUseCase) Update(
	ctx context.Context,
	clientID uuid.UUID,
	input *authDomain.UpdateClientInput,
) error {
	return c.txManager.WithTx(ctx, func(ctx context.Context) error {
		client, err := c.clientRepo.Get(ctx, clientID)
		if err != nil {
			return err
		}
		client.Name = input.Name
		client.IsActive = input.IsActive
		client.Policies = input.Policies
		return c.clientRepo.Update(ctx, client)
	})
}

func (c *clientUseCase) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	return c.clientRepo.Get(ctx, clientID)
}

func (c *clientUseCase) Delete(ctx context.Context, clientID uuid.UUID) error {
	return c.txManager.WithTx(ctx, func(ctx context.Context) error {
		client, err := c.clientRepo.Get(ctx, clientID)
		if err != nil {
			return err
		}
		client.IsActive = false
		return c.clientRepo.Update(ctx, client)
	})
}

func (c *clientUseCase) Authenticate(ctx context.Context, token string) (*authDomain.Client, error) {
	clientID, secret, err := c.credentials.ParseToken(token)
	if err != nil {
		return nil, err
	}

	client, err := c.clientRepo.Get(ctx, clientID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, authDomain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !c.credentials.CompareSecret(secret, client.Secret) {
		return nil, authDomain.ErrInvalidCredentials
	}
	if !client.IsActive {
		return nil, authDomain.ErrClientInactive
	}
	return client, nil
}

// NewClientUseCase creates a new ClientUseCase.
func NewClientUseCase(
	txManager database.TxManager,
	clientRepo ClientRepository,
	credentials authService.CredentialService,
) ClientUseCase {
	return &clientUseCase{
		txManager:   txManager,
		clientRepo:  clientRepo,
		credentials: credentials,
	}
}
