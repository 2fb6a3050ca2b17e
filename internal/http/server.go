// Package http provides the API server, its router and the metrics server.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	approvalHTTP "github.com/allisson/rotator/internal/approval/http"
	"github.com/allisson/rotator/internal/config"
	"github.com/allisson/rotator/internal/metrics"
	rotationHTTP "github.com/allisson/rotator/internal/rotation/http"
	secretsHTTP "github.com/allisson/rotator/internal/secrets/http"
)

// EncryptionStatus reports whether the envelope encryption service passed its self-test.
type EncryptionStatus interface {
	IsActive() bool
}

// Handlers groups the domain handlers mounted under /v1.
type Handlers struct {
	Connection *rotationHTTP.ConnectionHandler
	Rotation   *rotationHTTP.RotationHandler
	Policy     *approvalHTTP.PolicyHandler
	Secret     *secretsHTTP.SecretHandler
}

// Server represents the HTTP server.
type Server struct {
	db         *sql.DB
	encryption EncryptionStatus
	server     *http.Server
	router     *gin.Engine
	logger     *slog.Logger
}

// NewServer creates a new HTTP server.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// SetupRouter builds the gin engine.
//
// Every /v1 route runs behind authentication and then the per-client rate limiter,
// so limits are keyed by the authenticated actor. A nil rateLimit or meterProvider
// disables that middleware.
func (s *Server) SetupRouter(
	cfg *config.Config,
	encryption EncryptionStatus,
	handlers Handlers,
	authentication gin.HandlerFunc,
	rateLimit gin.HandlerFunc,
	meterProvider metric.MeterProvider,
) {
	s.encryption = encryption

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(meterProvider, cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1", authentication)
	if rateLimit != nil {
		v1.Use(rateLimit)
	}

	connections := v1.Group("/connections")
	{
		connections.POST("", handlers.Connection.CreateHandler)
		connections.GET("/:id", handlers.Connection.GetHandler)
	}

	rotations := v1.Group("/rotations")
	{
		rotations.POST("", handlers.Rotation.CreateHandler)
		rotations.GET("", handlers.Rotation.ListHandler)
		rotations.GET("/:id", handlers.Rotation.GetHandler)
		rotations.PATCH("/:id", handlers.Rotation.UpdateHandler)
		rotations.DELETE("/:id", handlers.Rotation.DeleteHandler)
		rotations.POST("/:id/rotate", handlers.Rotation.RotateHandler)
	}

	policies := v1.Group("/approval-policies")
	{
		policies.POST("", handlers.Policy.CreateHandler)
		policies.GET("", handlers.Policy.ListHandler)
		policies.GET("/resolve", handlers.Policy.ResolveHandler)
	}

	v1.POST("/approval-requests/:id/approve", handlers.Secret.ApproveHandler)

	v1.PUT("/secrets", handlers.Secret.UpsertHandler)
	v1.GET("/secrets", handlers.Secret.GetHandler)

	s.router = router
}

// GetHandler returns the http.Handler, for tests.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start blocks until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router
	return listenAndServe(s.server, s.logger, "http")
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler fails when the database is unreachable or the encryption service
// is inactive. Secrets cannot be read or written in either case.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok", "encryption": "ok"}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness: database ping failed", slog.Any("error", err))
			components["database"] = "error"
			ready = false
		}
	}

	if s.encryption == nil || !s.encryption.IsActive() {
		components["encryption"] = "error"
		ready = false
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
