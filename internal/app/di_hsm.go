package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/rotator/internal/config"
	cryptoService "github.com/allisson/rotator/internal/crypto/service"
	"github.com/allisson/rotator/internal/hsm"
	"github.com/allisson/rotator/internal/hsm/softhsm"
)

// HSMModule returns the hardware module selected by HSM_BACKEND.
func (c *Container) HSMModule(ctx context.Context) (hsm.Module, error) {
	return resolve(c, &c.hsmModuleInit, "hsmModule", &c.hsmModule, func() (hsm.Module, error) {
		return c.initHSMModule(ctx)
	})
}

// SessionManager returns the manager of the single shared HSM session.
func (c *Container) SessionManager() (*hsm.SessionManager, error) {
	return resolve(c, &c.sessionManagerInit, "sessionManager", &c.sessionManager, c.initSessionManager)
}

// EnvelopeService returns the envelope encryption service. A failed SelfTest
// deactivates it.
func (c *Container) EnvelopeService() (cryptoService.EnvelopeService, error) {
	return resolve(c, &c.envelopeInit, "envelope", &c.envelope, c.initEnvelopeService)
}

func (c *Container) initHSMModule(ctx context.Context) (hsm.Module, error) {
	if err := c.config.ValidateHSM(); err != nil {
		return nil, fmt.Errorf("invalid hsm configuration: %w", err)
	}

	logger := c.Logger()

	switch c.config.HSMBackend {
	case config.HSMBackendPKCS11:
		module, err := hsm.NewPKCS11Module(c.config.HSMLibraryPath, c.config.HSMSlot)
		if err != nil {
			return nil, fmt.Errorf("failed to load pkcs11 module: %w", err)
		}
		logger.Info("hsm backend loaded",
			slog.String("backend", config.HSMBackendPKCS11),
			slog.Uint64("slot", uint64(c.config.HSMSlot)),
		)
		return module, nil

	case config.HSMBackendSoft:
		if c.config.SoftHSMMasterKey == "" {
			module := softhsm.New(c.config.HSMPIN)
			if err := module.GenerateKey(c.config.HSMMasterKeyLabel); err != nil {
				return nil, fmt.Errorf("failed to generate soft hsm master key: %w", err)
			}
			logger.Warn("soft hsm uses an ephemeral master key; data written now is unreadable after restart")
			return module, nil
		}

		keeper, err := cryptoService.NewKMSService().OpenKeeper(ctx, c.config.SoftHSMKMSKeyURI)
		if err != nil {
			return nil, err
		}
		defer func() {
			if closeErr := keeper.Close(); closeErr != nil {
				logger.Warn("failed to close kms keeper", slog.Any("error", closeErr))
			}
		}()

		module, err := softhsm.Load(
			ctx,
			keeper,
			c.config.HSMMasterKeyLabel,
			c.config.SoftHSMMasterKey,
			c.config.HSMPIN,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load soft hsm: %w", err)
		}
		logger.Info("hsm backend loaded", slog.String("backend", config.HSMBackendSoft))
		return module, nil
	}

	return nil, fmt.Errorf("unsupported hsm backend: %s", c.config.HSMBackend)
}

func (c *Container) initSessionManager() (*hsm.SessionManager, error) {
	module, err := c.HSMModule(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get hsm module for session manager: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for session manager: %w", err)
	}

	return hsm.NewSessionManager(
		module,
		hsm.Config{
			PIN:             c.config.HSMPIN,
			IdleTimeout:     c.config.HSMIdleTimeout,
			MonitorInterval: c.config.HSMMonitorInterval,
		},
		c.Clock(),
		c.Logger(),
		businessMetrics,
	), nil
}

func (c *Container) initEnvelopeService() (cryptoService.EnvelopeService, error) {
	sessions, err := c.SessionManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get session manager for envelope service: %w", err)
	}
	return cryptoService.NewEnvelopeService(sessions, c.config.HSMMasterKeyLabel, c.Logger()), nil
}
