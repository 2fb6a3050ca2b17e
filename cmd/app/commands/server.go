package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/rotator/internal/app"
	"github.com/allisson/rotator/internal/config"
)

// RunServer starts the API server and its background workers, and blocks until
// SIGINT/SIGTERM or until one of them fails.
//
// The encryption self-test runs first. A failed self-test leaves the encryption
// service inactive and /ready reports it, but the server still starts.
//
// Workers: API server, metrics server, HSM idle monitor, rate limiter sweep and,
// when enabled, the rotation scheduler.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))
	defer closeContainer(container, logger)

	envelope, err := container.EnvelopeService()
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	if err := envelope.SelfTest(ctx); err != nil {
		logger.Error("encryption self-test failed, secret operations are disabled", slog.Any("error", err))
	}

	sessions, err := container.SessionManager()
	if err != nil {
		return fmt.Errorf("failed to initialize hsm session manager: %w", err)
	}

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.Start(groupCtx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		group.Go(func() error {
			if err := metricsServer.Start(groupCtx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		sessions.Start(groupCtx)
		return nil
	})

	if limiter := container.RateLimiter(); limiter != nil {
		group.Go(func() error {
			limiter.Run(groupCtx)
			return nil
		})
	}

	if cfg.RotationSchedulerEnabled {
		scheduler, err := container.Scheduler()
		if err != nil {
			cancel()
			return fmt.Errorf("failed to initialize rotation scheduler: %w", err)
		}
		group.Go(func() error {
			if err := scheduler.Start(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("rotation scheduler error: %w", err)
			}
			return nil
		})
	}

	// Servers block in ListenAndServe, so they are shut down explicitly once the
	// group context ends.
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()

		var shutdownErrors []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return group.Wait()
}
