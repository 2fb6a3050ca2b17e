// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/metric"

	approvalUseCase "github.com/allisson/rotator/internal/approval/usecase"
	authHTTP "github.com/allisson/rotator/internal/auth/http"
	authUseCase "github.com/allisson/rotator/internal/auth/usecase"
	"github.com/allisson/rotator/internal/config"
	cryptoService "github.com/allisson/rotator/internal/crypto/service"
	"github.com/allisson/rotator/internal/database"
	"github.com/allisson/rotator/internal/hsm"
	"github.com/allisson/rotator/internal/http"
	"github.com/allisson/rotator/internal/license"
	"github.com/allisson/rotator/internal/metrics"
	"github.com/allisson/rotator/internal/rotation/factory"
	rotationUseCase "github.com/allisson/rotator/internal/rotation/usecase"
	secretsUseCase "github.com/allisson/rotator/internal/secrets/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	clock           clockwork.Clock
	db              *sql.DB
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Managers
	txManager database.TxManager

	// HSM and encryption
	hsmModule      hsm.Module
	sessionManager *hsm.SessionManager
	envelope       cryptoService.EnvelopeService

	// Repositories
	clientRepository     authUseCase.ClientRepository
	connectionRepository rotationUseCase.ConnectionRepository
	rotationRepository   rotationUseCase.RotationRepository
	policyRepository     approvalUseCase.PolicyRepository
	requestRepository    approvalUseCase.RequestRepository
	secretRepository     secretsUseCase.SecretRepository

	// Use Cases
	clientUseCase     authUseCase.ClientUseCase
	permissionUseCase authUseCase.PermissionUseCase
	policyResolver    approvalUseCase.Resolver
	policyUseCase     approvalUseCase.PolicyUseCase
	secretUseCase     secretsUseCase.SecretUseCase
	connectionUseCase rotationUseCase.ConnectionUseCase
	rotationUseCase   rotationUseCase.RotationUseCase

	// Rotation
	factoryRegistry *factory.Registry
	scheduler       *rotationUseCase.Scheduler

	// Licensing
	usageCollector *license.Collector

	// HTTP
	rateLimiter *authHTTP.RateLimiter
	handlers    http.Handlers

	// Servers and Workers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                       sync.Mutex
	loggerInit               sync.Once
	clockInit                sync.Once
	dbInit                   sync.Once
	metricsProviderInit      sync.Once
	businessMetricsInit      sync.Once
	txManagerInit            sync.Once
	hsmModuleInit            sync.Once
	sessionManagerInit       sync.Once
	envelopeInit             sync.Once
	clientRepositoryInit     sync.Once
	connectionRepositoryInit sync.Once
	rotationRepositoryInit   sync.Once
	policyRepositoryInit     sync.Once
	requestRepositoryInit    sync.Once
	secretRepositoryInit     sync.Once
	clientUseCaseInit        sync.Once
	permissionUseCaseInit    sync.Once
	policyResolverInit       sync.Once
	policyUseCaseInit        sync.Once
	secretUseCaseInit        sync.Once
	connectionUseCaseInit    sync.Once
	rotationUseCaseInit      sync.Once
	factoryRegistryInit      sync.Once
	schedulerInit            sync.Once
	usageCollectorInit       sync.Once
	rateLimiterInit          sync.Once
	handlersInit             sync.Once
	httpServerInit           sync.Once
	metricsServerInit        sync.Once
	initErrors               map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// resolve builds a component once. The first init error is remembered and returned
// on every later call.
func resolve[T any](c *Container, once *sync.Once, name string, slot *T, init func() (T, error)) (T, error) {
	once.Do(func() {
		value, err := init()
		if err != nil {
			c.initErrors[name] = err
			return
		}
		*slot = value
	})
	if err, failed := c.initErrors[name]; failed {
		var zero T
		return zero, err
	}
	return *slot, nil
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// Clock returns the clock shared by time-dependent components.
func (c *Container) Clock() clockwork.Clock {
	c.clockInit.Do(func() {
		if c.clock == nil {
			c.clock = clockwork.NewRealClock()
		}
	})
	return c.clock
}

// SetClock replaces the clock. It must be called before any component is built.
func (c *Container) SetClock(clock clockwork.Clock) {
	c.clockInit.Do(func() {
		c.clock = clock
	})
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	return resolve(c, &c.dbInit, "db", &c.db, c.initDB)
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	return resolve(c, &c.txManagerInit, "txManager", &c.txManager, c.initTxManager)
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	return resolve(c, &c.metricsProviderInit, "metricsProvider", &c.metricsProvider, c.initMetricsProvider)
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics
// are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	return resolve(c, &c.businessMetricsInit, "businessMetrics", &c.businessMetrics, c.initBusinessMetrics)
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	return resolve(c, &c.httpServerInit, "httpServer", &c.httpServer, c.initHTTPServer)
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return resolve(c, &c.metricsServerInit, "metricsServer", &c.metricsServer, c.initMetricsServer)
}

// Shutdown releases every component that was built, servers first and the database
// last. All steps run; their errors are joined.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	type step struct {
		name string
		fn   func() error
	}
	var steps []step
	add := func(name string, built bool, fn func() error) {
		if built {
			steps = append(steps, step{name, fn})
		}
	}

	add("http server shutdown", c.httpServer != nil, func() error { return c.httpServer.Shutdown(ctx) })
	add("metrics server shutdown", c.metricsServer != nil, func() error { return c.metricsServer.Shutdown(ctx) })
	// Closing the session manager logs out and finalizes the module.
	add("hsm close", c.sessionManager != nil, func() error { return c.sessionManager.Close() })
	add("metrics provider shutdown", c.metricsProvider != nil, func() error { return c.metricsProvider.Shutdown(ctx) })
	add("database close", c.db != nil, func() error { return c.db.Close() })

	var errs []error
	for _, step := range steps {
		if err := step.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the HTTP server and mounts every handler.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	envelope, err := c.EnvelopeService()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope service for http server: %w", err)
	}

	clientUseCase, err := c.ClientUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get client use case for http server: %w", err)
	}

	handlers, err := c.Handlers()
	if err != nil {
		return nil, fmt.Errorf("failed to get handlers for http server: %w", err)
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	var rateLimit gin.HandlerFunc
	if limiter := c.RateLimiter(); limiter != nil {
		rateLimit = limiter.Middleware(logger)
	}

	var meterProvider metric.MeterProvider
	if provider != nil {
		meterProvider = provider.MeterProvider()
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(
		c.config,
		envelope,
		handlers,
		authHTTP.AuthenticationMiddleware(clientUseCase, logger),
		rateLimit,
		meterProvider,
	)

	return server, nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
