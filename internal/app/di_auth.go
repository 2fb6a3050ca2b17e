package app

import (
	"fmt"

	authHTTP "github.com/allisson/rotator/internal/auth/http"
	authRepository "github.com/allisson/rotator/internal/auth/repository"
	authService "github.com/allisson/rotator/internal/auth/service"
	authUseCase "github.com/allisson/rotator/internal/auth/usecase"
)

// ClientRepository returns the client repository based on database driver.
func (c *Container) ClientRepository() (authUseCase.ClientRepository, error) {
	return resolve(c, &c.clientRepositoryInit, "clientRepository", &c.clientRepository, c.initClientRepository)
}

// ClientUseCase returns the client use case.
func (c *Container) ClientUseCase() (authUseCase.ClientUseCase, error) {
	return resolve(c, &c.clientUseCaseInit, "clientUseCase", &c.clientUseCase, c.initClientUseCase)
}

// PermissionUseCase returns the project permission resolver shared by every domain.
func (c *Container) PermissionUseCase() (authUseCase.PermissionUseCase, error) {
	return resolve(c, &c.permissionUseCaseInit, "permissionUseCase", &c.permissionUseCase, c.initPermissionUseCase)
}

// RateLimiter returns the per-client rate limiter, or nil when rate limiting is disabled.
func (c *Container) RateLimiter() *authHTTP.RateLimiter {
	c.rateLimiterInit.Do(func() {
		if !c.config.RateLimitEnabled {
			return
		}
		c.rateLimiter = authHTTP.NewRateLimiter(authHTTP.RateLimitConfig{
			RequestsPerSecond: c.config.RateLimitRequestsPerSec,
			Burst:             c.config.RateLimitBurst,
			IdleTTL:           c.config.RateLimitIdleTTL,
		}, c.Clock())
	})
	return c.rateLimiter
}

func (c *Container) initClientRepository() (authUseCase.ClientRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for client repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return authRepository.NewMySQLClientRepository(db), nil
	case "postgres":
		return authRepository.NewPostgreSQLClientRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initClientUseCase() (authUseCase.ClientUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for client use case: %w", err)
	}

	clientRepository, err := c.ClientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get client repository for client use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for client use case: %w", err)
	}

	useCase := authUseCase.NewClientUseCase(txManager, clientRepository, authService.NewSecretService())
	return authUseCase.NewClientUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initPermissionUseCase() (authUseCase.PermissionUseCase, error) {
	clientRepository, err := c.ClientRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get client repository for permission use case: %w", err)
	}
	return authUseCase.NewPermissionUseCase(clientRepository), nil
}
