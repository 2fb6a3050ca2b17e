// Package factory implements the per-kind credential strategies that issue, revoke and
// rotate credentials against remote systems.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/rotator/internal/rotation/domain"
)

// Factory issues and revokes credentials of one kind against one remote system.
type Factory interface {
	Kind() domain.Kind
	Ordering() domain.Ordering

	// IssueCredentials creates a new credential and returns it. The caller persists it
	// before making any further remote call.
	IssueCredentials(ctx context.Context, displayName string) (domain.GeneratedCredential, error)

	// RevokeCredentials revokes each credential that still exists remotely. Credentials
	// already gone are skipped, so the call is idempotent.
	RevokeCredentials(ctx context.Context, creds domain.CredentialSet) error

	// CredentialExists reports whether the credential is still live remotely.
	CredentialExists(ctx context.Context, cred domain.GeneratedCredential) (bool, error)

	// RotateCredentials revokes old and issues a replacement in the kind's order
	// without intermediate persistence.
	RotateCredentials(
		ctx context.Context,
		old domain.CredentialSet,
		displayName string,
	) (domain.GeneratedCredential, error)

	// ReconcileIssue removes whatever an issuance with unknown outcome may have left
	// behind under displayName.
	ReconcileIssue(ctx context.Context, displayName string) error

	// GetSecretsPayload maps the active credential to destination secret keys.
	GetSecretsPayload(set domain.CredentialSet) []domain.SecretPayload
}

// Builder creates a factory from decrypted connection credentials, the validated
// config and the credential set currently stored for the rotation.
type Builder func(
	conn domain.ConnectionConfig,
	cfg domain.Config,
	current domain.CredentialSet,
) (Factory, error)

// Options configures the built-in factories.
type Options struct {
	HTTPTimeout  time.Duration
	HTTPRetryMax int
	Logger       *slog.Logger
	// OpenDB opens database connections; sql.Open when nil.
	OpenDB DBOpener
	// DialSSH opens command runners; an x/crypto/ssh client when nil.
	DialSSH SSHDialer
	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// Registry maps kinds to builders.
type Registry struct {
	builders map[domain.Kind]Builder
}

// NewRegistry creates a registry with a builder for every kind.
func NewRegistry(opts Options) *Registry {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = DefaultHTTPTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OpenDB == nil {
		opts.OpenDB = openSQL
	}
	if opts.DialSSH == nil {
		opts.DialSSH = DialSSH
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Registry{builders: make(map[domain.Kind]Builder, len(domain.Kinds))}
	for _, kind := range domain.Kinds {
		switch kind {
		case domain.KindServiceToken:
			r.builders[kind] = serviceTokenBuilder(opts)
		case domain.KindDatabaseUser:
			r.builders[kind] = databaseUserBuilder(opts)
		case domain.KindUnixAccount:
			r.builders[kind] = unixAccountBuilder(opts)
		default:
			panic(fmt.Sprintf("no factory for rotation kind %q", string(kind)))
		}
	}
	return r
}

// Register replaces the builder of kind.
func (r *Registry) Register(kind domain.Kind, builder Builder) {
	r.builders[kind] = builder
}

// Build creates the factory for cfg's kind.
func (r *Registry) Build(
	conn domain.ConnectionConfig,
	cfg domain.Config,
	current domain.CredentialSet,
) (Factory, error) {
	if conn.Kind() != cfg.Kind() {
		return nil, domain.ErrKindMismatch
	}
	builder, ok := r.builders[cfg.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, string(cfg.Kind()))
	}
	return builder(conn, cfg, current)
}

// revokeEach runs the existence-checked revoke loop shared by every kind.
func revokeEach(
	ctx context.Context,
	f Factory,
	creds domain.CredentialSet,
	revoke func(context.Context, domain.GeneratedCredential) error,
	logger *slog.Logger,
) error {
	for _, cred := range creds {
		exists, err := f.CredentialExists(ctx, cred)
		if err != nil {
			return err
		}
		if !exists {
			logger.Debug("credential already revoked", slog.Any("credential", cred))
			continue
		}
		if err := revoke(ctx, cred); err != nil {
			return err
		}
		logger.Info("credential revoked", slog.Any("credential", cred))
	}
	return nil
}

// rotateInOrder replaces old with a new credential in f's declared order. For
// IssueThenRevoke kinds a revoke failure is returned together with the new credential,
// which is live and must be kept.
func rotateInOrder(
	ctx context.Context,
	f Factory,
	old domain.CredentialSet,
	displayName string,
) (domain.GeneratedCredential, error) {
	switch f.Ordering() {
	case domain.RevokeThenIssue:
		if err := f.RevokeCredentials(ctx, old); err != nil {
			return domain.GeneratedCredential{}, err
		}
		return f.IssueCredentials(ctx, displayName)
	case domain.IssueThenRevoke:
		cred, err := f.IssueCredentials(ctx, displayName)
		if err != nil {
			return domain.GeneratedCredential{}, err
		}
		return cred, f.RevokeCredentials(ctx, old)
	default:
		return domain.GeneratedCredential{}, fmt.Errorf("unhandled ordering %s", f.Ordering())
	}
}
