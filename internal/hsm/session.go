package hsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/allisson/rotator/internal/errors"
	"github.com/allisson/rotator/internal/metrics"
)

const (
	// DefaultIdleTimeout is how long an unused session stays open.
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultMonitorInterval is how often the idle monitor checks the session.
	DefaultMonitorInterval = 60 * time.Second

	// probeSize is the number of random bytes requested by the liveness probe.
	probeSize = 8
)

// Config holds session manager settings.
type Config struct {
	PIN             string
	IdleTimeout     time.Duration
	MonitorInterval time.Duration
}

// Session is a live module session handed to callers of WithSession. It is only
// valid inside the callback.
type Session struct {
	module Module
	handle SessionHandle
}

// Handle returns the underlying module session handle.
func (s Session) Handle() SessionHandle { return s.handle }

// GenerateRandom returns length random bytes from the module.
func (s Session) GenerateRandom(length int) ([]byte, error) {
	return s.module.GenerateRandom(s.handle, length)
}

// FindKeyByLabel returns the persistent secret key stored under label.
func (s Session) FindKeyByLabel(label string) (ObjectHandle, error) {
	return s.module.FindKeyByLabel(s.handle, label)
}

// GenerateDataKey creates a session-scoped data key.
func (s Session) GenerateDataKey() (ObjectHandle, error) {
	return s.module.GenerateDataKey(s.handle)
}

// WrapKey exports key encrypted under wrappingKey.
func (s Session) WrapKey(wrappingKey, key ObjectHandle) ([]byte, error) {
	return s.module.WrapKey(s.handle, wrappingKey, key)
}

// UnwrapKey imports wrapped as a session-scoped key using unwrappingKey.
func (s Session) UnwrapKey(unwrappingKey ObjectHandle, wrapped []byte) (ObjectHandle, error) {
	return s.module.UnwrapKey(s.handle, unwrappingKey, wrapped)
}

// EncryptGCM seals plaintext with AES-GCM under key and iv.
func (s Session) EncryptGCM(key ObjectHandle, iv, plaintext []byte) ([]byte, error) {
	return s.module.EncryptGCM(s.handle, key, iv, plaintext)
}

// DecryptGCM opens an AES-GCM ciphertext sealed under key and iv.
func (s Session) DecryptGCM(key ObjectHandle, iv, ciphertext []byte) ([]byte, error) {
	return s.module.DecryptGCM(s.handle, key, iv, ciphertext)
}

// DestroyObject removes a key object from the module.
func (s Session) DestroyObject(object ObjectHandle) error {
	return s.module.DestroyObject(s.handle, object)
}

// liveSession is the manager's record of the open session.
type liveSession struct {
	handle     SessionHandle
	lastUsedAt time.Time
}

// SessionManager owns at most one live session against the module.
//
// Every operation runs under a single mutex: session acquisition, the caller's
// cryptographic work and idle eviction. Hardware sessions are not safe for
// concurrent operations, and eviction must never close a session mid-call.
type SessionManager struct {
	module          Module
	pin             string
	idleTimeout     time.Duration
	monitorInterval time.Duration
	clock           clockwork.Clock
	logger          *slog.Logger
	metrics         metrics.BusinessMetrics

	mu      sync.Mutex
	session *liveSession
	closed  bool
}

// NewSessionManager creates a manager for module. A nil clock uses the real clock.
func NewSessionManager(
	module Module,
	cfg Config,
	clock clockwork.Clock,
	logger *slog.Logger,
	businessMetrics metrics.BusinessMetrics,
) *SessionManager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}

	return &SessionManager{
		module:          module,
		pin:             cfg.PIN,
		idleTimeout:     cfg.IdleTimeout,
		monitorInterval: cfg.MonitorInterval,
		clock:           clock,
		logger:          logger,
		metrics:         businessMetrics,
	}
}

// WithSession runs fn against the live session, creating one if needed. lastUsedAt is
// refreshed only when fn succeeds. A session the module reports as invalid is discarded
// so the next call starts over.
func (m *SessionManager) WithSession(ctx context.Context, fn func(Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.Wrap(errors.ErrCrypto, "hsm session manager closed")
	}

	handle, err := m.getSession(ctx)
	if err != nil {
		return err
	}

	if err := fn(Session{module: m.module, handle: handle}); err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			m.teardown(ctx, "session invalidated")
		}
		return err
	}

	m.session.lastUsedAt = m.clock.Now()
	return nil
}

// getSession returns a validated session handle. Callers must hold m.mu.
func (m *SessionManager) getSession(ctx context.Context) (SessionHandle, error) {
	if m.session != nil {
		if m.clock.Since(m.session.lastUsedAt) >= m.idleTimeout {
			m.teardown(ctx, "idle timeout")
		}
	}

	if m.session != nil {
		_, err := m.module.GenerateRandom(m.session.handle, probeSize)
		if err == nil {
			m.session.lastUsedAt = m.clock.Now()
			return m.session.handle, nil
		}
		m.logger.Warn("hsm liveness probe failed", slog.Any("error", err))
		m.teardown(ctx, "liveness probe failed")
	}

	handle, err := m.createSession()
	m.metrics.RecordOperation(ctx, "hsm", "session_create", metrics.StatusOf(err))
	if err != nil {
		return 0, err
	}

	m.session = &liveSession{handle: handle, lastUsedAt: m.clock.Now()}
	m.logger.Info("hsm session created", slog.Uint64("handle", uint64(handle)))
	return handle, nil
}

// createSession verifies the token, opens a session and logs in.
func (m *SessionManager) createSession() (SessionHandle, error) {
	present, err := m.module.TokenPresent()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read hsm slot")
	}
	if !present {
		return 0, ErrTokenNotPresent
	}

	handle, err := m.module.OpenSession()
	if err != nil {
		return 0, errors.Wrap(err, "failed to open hsm session")
	}

	if err := m.module.Login(handle, m.pin); err != nil {
		if !errors.Is(err, ErrAlreadyLoggedIn) {
			_ = m.module.CloseSession(handle)
			return 0, fmt.Errorf("failed to log in to hsm: %w", err)
		}
		m.logger.Debug("hsm user already logged in")
	}

	return handle, nil
}

// teardown logs out and closes the current session. Failures are logged because the
// handle is dropped either way. Callers must hold m.mu.
func (m *SessionManager) teardown(ctx context.Context, reason string) {
	if m.session == nil {
		return
	}

	handle := m.session.handle
	m.session = nil

	if err := m.module.Logout(handle); err != nil {
		m.logger.Debug("hsm logout failed", slog.Any("error", err))
	}
	if err := m.module.CloseSession(handle); err != nil {
		m.logger.Warn("hsm close session failed", slog.Any("error", err))
	}

	m.metrics.RecordOperation(ctx, "hsm", "session_close", metrics.StatusSuccess)
	m.logger.Info("hsm session closed",
		slog.Uint64("handle", uint64(handle)),
		slog.String("reason", reason),
	)
}

// evictIfIdle closes the session if it has been unused for the idle timeout.
func (m *SessionManager) evictIfIdle(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.clock.Since(m.session.lastUsedAt) < m.idleTimeout {
		return false
	}

	m.teardown(ctx, "idle timeout")
	return true
}

// HasSession reports whether a session is currently open.
func (m *SessionManager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Start runs the idle monitor until ctx is cancelled.
func (m *SessionManager) Start(ctx context.Context) {
	m.logger.Info("hsm idle monitor started",
		slog.Duration("interval", m.monitorInterval),
		slog.Duration("idle_timeout", m.idleTimeout),
	)

	ticker := m.clock.NewTicker(m.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("hsm idle monitor stopped")
			return
		case <-ticker.Chan():
			m.evictIfIdle(ctx)
		}
	}
}

// Close tears down the session and rejects further use.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardown(context.Background(), "shutdown")
	m.closed = true
	return nil
}
