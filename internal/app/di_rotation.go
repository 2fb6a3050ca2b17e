package app

import (
	"fmt"

	approvalHTTP "github.com/allisson/rotator/internal/approval/http"
	"github.com/allisson/rotator/internal/http"
	"github.com/allisson/rotator/internal/rotation/factory"
	rotationHTTP "github.com/allisson/rotator/internal/rotation/http"
	rotationRepository "github.com/allisson/rotator/internal/rotation/repository"
	rotationUseCase "github.com/allisson/rotator/internal/rotation/usecase"
	secretsHTTP "github.com/allisson/rotator/internal/secrets/http"
)

// ConnectionRepository returns the connection repository based on database driver.
func (c *Container) ConnectionRepository() (rotationUseCase.ConnectionRepository, error) {
	return resolve(c, &c.connectionRepositoryInit, "connectionRepository", &c.connectionRepository, c.initConnectionRepository)
}

// RotationRepository returns the rotation repository based on database driver.
func (c *Container) RotationRepository() (rotationUseCase.RotationRepository, error) {
	return resolve(c, &c.rotationRepositoryInit, "rotationRepository", &c.rotationRepository, c.initRotationRepository)
}

// FactoryRegistry returns the registry of built-in credential factories.
func (c *Container) FactoryRegistry() *factory.Registry {
	c.factoryRegistryInit.Do(func() {
		clock := c.Clock()
		c.factoryRegistry = factory.NewRegistry(factory.Options{
			HTTPTimeout: c.config.RemoteHTTPTimeout,
			// The rotation use case owns retries of remote calls.
			HTTPRetryMax: 0,
			Logger:       c.Logger(),
			Now:          clock.Now,
		})
	})
	return c.factoryRegistry
}

// ConnectionUseCase returns the connection use case.
func (c *Container) ConnectionUseCase() (rotationUseCase.ConnectionUseCase, error) {
	return resolve(c, &c.connectionUseCaseInit, "connectionUseCase", &c.connectionUseCase, c.initConnectionUseCase)
}

// RotationUseCase returns the rotation orchestrator.
func (c *Container) RotationUseCase() (rotationUseCase.RotationUseCase, error) {
	return resolve(c, &c.rotationUseCaseInit, "rotationUseCase", &c.rotationUseCase, c.initRotationUseCase)
}

// Scheduler returns the automatic rotation scheduler.
func (c *Container) Scheduler() (*rotationUseCase.Scheduler, error) {
	return resolve(c, &c.schedulerInit, "scheduler", &c.scheduler, c.initScheduler)
}

// Handlers returns the HTTP handlers of every domain.
func (c *Container) Handlers() (http.Handlers, error) {
	return resolve(c, &c.handlersInit, "handlers", &c.handlers, c.initHandlers)
}

func (c *Container) initConnectionRepository() (rotationUseCase.ConnectionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for connection repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return rotationRepository.NewMySQLConnectionRepository(db), nil
	case "postgres":
		return rotationRepository.NewPostgreSQLConnectionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initRotationRepository() (rotationUseCase.RotationRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for rotation repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return rotationRepository.NewMySQLRotationRepository(db), nil
	case "postgres":
		return rotationRepository.NewPostgreSQLRotationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initConnectionUseCase() (rotationUseCase.ConnectionUseCase, error) {
	connectionRepository, err := c.ConnectionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection repository for connection use case: %w", err)
	}

	envelope, err := c.EnvelopeService()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope service for connection use case: %w", err)
	}

	permissions, err := c.PermissionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get permission use case for connection use case: %w", err)
	}

	return rotationUseCase.NewConnectionUseCase(connectionRepository, envelope, permissions), nil
}

func (c *Container) initRotationUseCase() (rotationUseCase.RotationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rotation use case: %w", err)
	}

	rotationRepository, err := c.RotationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation repository for rotation use case: %w", err)
	}

	connectionRepository, err := c.ConnectionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection repository for rotation use case: %w", err)
	}

	envelope, err := c.EnvelopeService()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope service for rotation use case: %w", err)
	}

	permissions, err := c.PermissionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get permission use case for rotation use case: %w", err)
	}

	secretUseCase, err := c.SecretUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret use case for rotation use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for rotation use case: %w", err)
	}

	useCase := rotationUseCase.NewRotationUseCase(
		txManager,
		rotationRepository,
		connectionRepository,
		envelope,
		permissions,
		secretUseCase,
		c.FactoryRegistry(),
		rotationUseCase.Options{
			Retry: rotationUseCase.RetryConfig{
				InitialInterval: c.config.RotationRetryInitialInterval,
				MaxInterval:     c.config.RotationRetryMaxInterval,
				MaxRetries:      uint64(max(c.config.RotationRetryMaxRetries, 0)),
			},
			Clock:  c.Clock(),
			Logger: c.Logger(),
		},
	)
	return rotationUseCase.NewRotationUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initScheduler() (*rotationUseCase.Scheduler, error) {
	rotationRepository, err := c.RotationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation repository for scheduler: %w", err)
	}

	useCase, err := c.RotationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation use case for scheduler: %w", err)
	}

	return rotationUseCase.NewScheduler(
		rotationUseCase.SchedulerConfig{
			Interval:   c.config.RotationSchedulerInterval,
			BatchSize:  c.config.RotationSchedulerBatchSize,
			StaleAfter: c.config.RotationSchedulerStaleAfter,
		},
		rotationRepository,
		useCase,
		c.Clock(),
		c.Logger(),
	), nil
}

func (c *Container) initHandlers() (http.Handlers, error) {
	logger := c.Logger()

	connectionUseCase, err := c.ConnectionUseCase()
	if err != nil {
		return http.Handlers{}, fmt.Errorf("failed to get connection use case for handlers: %w", err)
	}

	rotations, err := c.RotationUseCase()
	if err != nil {
		return http.Handlers{}, fmt.Errorf("failed to get rotation use case for handlers: %w", err)
	}

	policyUseCase, err := c.PolicyUseCase()
	if err != nil {
		return http.Handlers{}, fmt.Errorf("failed to get policy use case for handlers: %w", err)
	}

	secretUseCase, err := c.SecretUseCase()
	if err != nil {
		return http.Handlers{}, fmt.Errorf("failed to get secret use case for handlers: %w", err)
	}

	return http.Handlers{
		Connection: rotationHTTP.NewConnectionHandler(connectionUseCase, logger),
		Rotation:   rotationHTTP.NewRotationHandler(rotations, logger),
		Policy:     approvalHTTP.NewPolicyHandler(policyUseCase, logger),
		Secret:     secretsHTTP.NewSecretHandler(secretUseCase, logger),
	}, nil
}
