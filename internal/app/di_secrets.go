package app

import (
	"fmt"

	secretsRepository "github.com/allisson/rotator/internal/secrets/repository"
	secretsUseCase "github.com/allisson/rotator/internal/secrets/usecase"
)

// SecretRepository returns the versioned secret repository based on database driver.
func (c *Container) SecretRepository() (secretsUseCase.SecretRepository, error) {
	return resolve(c, &c.secretRepositoryInit, "secretRepository", &c.secretRepository, c.initSecretRepository)
}

// SecretUseCase returns the secret store use case. Rotations write through it as the
// system actor.
func (c *Container) SecretUseCase() (secretsUseCase.SecretUseCase, error) {
	return resolve(c, &c.secretUseCaseInit, "secretUseCase", &c.secretUseCase, c.initSecretUseCase)
}

func (c *Container) initSecretRepository() (secretsUseCase.SecretRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for secret repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return secretsRepository.NewMySQLSecretRepository(db), nil
	case "postgres":
		return secretsRepository.NewPostgreSQLSecretRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initSecretUseCase() (secretsUseCase.SecretUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for secret use case: %w", err)
	}

	secretRepository, err := c.SecretRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret repository for secret use case: %w", err)
	}

	policyRepository, err := c.PolicyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy repository for secret use case: %w", err)
	}

	requestRepository, err := c.RequestRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get request repository for secret use case: %w", err)
	}

	resolver, err := c.PolicyResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy resolver for secret use case: %w", err)
	}

	envelope, err := c.EnvelopeService()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope service for secret use case: %w", err)
	}

	permissions, err := c.PermissionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get permission use case for secret use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for secret use case: %w", err)
	}

	useCase := secretsUseCase.NewSecretUseCase(
		txManager,
		secretRepository,
		policyRepository,
		requestRepository,
		resolver,
		envelope,
		permissions,
		c.Clock(),
		c.Logger(),
	)
	return secretsUseCase.NewSecretUseCaseWithMetrics(useCase, businessMetrics), nil
}
