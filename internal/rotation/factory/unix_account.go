package factory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/allisson/rotator/internal/rotation/domain"
)

const unixAccountProvider = "unix-account"

var unixUsernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// unixAccountFactory resets the password of one account over SSH. The account holds a
// single password, so the old one is locked before the new one is set.
type unixAccountFactory struct {
	conn    domain.UnixConnection
	dial    SSHDialer
	timeout time.Duration
	params  domain.UnixAccountParameters
	mapping domain.UserPasswordMapping
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	runner CommandRunner
}

func unixAccountBuilder(opts Options) Builder {
	return func(conn domain.ConnectionConfig, cfg domain.Config, _ domain.CredentialSet) (Factory, error) {
		c, ok := conn.(domain.UnixConnection)
		if !ok {
			return nil, domain.ErrKindMismatch
		}
		config, ok := cfg.(domain.UnixAccountConfig)
		if !ok {
			return nil, domain.ErrKindMismatch
		}
		if !unixUsernamePattern.MatchString(config.Parameters.Username) {
			return nil, fmt.Errorf("%w: invalid username", domain.ErrInvalidConfig)
		}

		return &unixAccountFactory{
			conn:    c,
			dial:    opts.DialSSH,
			timeout: opts.HTTPTimeout,
			params:  config.Parameters,
			mapping: config.Mapping,
			logger:  opts.Logger.With(slog.String("kind", string(domain.KindUnixAccount))),
			now:     opts.Now,
		}, nil
	}
}

func (f *unixAccountFactory) Kind() domain.Kind { return domain.KindUnixAccount }

func (f *unixAccountFactory) Ordering() domain.Ordering { return domain.KindUnixAccount.Ordering() }

func (f *unixAccountFactory) session(ctx context.Context) (CommandRunner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.runner != nil {
		return f.runner, nil
	}
	runner, err := f.dial(ctx, f.conn, f.timeout)
	if err != nil {
		return nil, err
	}
	f.runner = runner
	return runner, nil
}

// Close releases the SSH connection.
func (f *unixAccountFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.runner == nil {
		return nil
	}
	err := f.runner.Close()
	f.runner = nil
	return err
}

// privileged prefixes commands that need root when the connection user is not root.
func (f *unixAccountFactory) privileged(cmd string) string {
	if f.conn.User == "root" {
		return cmd
	}
	return "sudo -n " + cmd
}

func (f *unixAccountFactory) run(ctx context.Context, cmd string, stdin string) (string, error) {
	runner, err := f.session(ctx)
	if err != nil {
		return "", err
	}

	var in io.Reader
	if stdin != "" {
		in = strings.NewReader(stdin)
	}

	stdout, stderr, err := runner.Run(ctx, f.privileged(cmd), in)
	if err != nil {
		return stdout, classifySSH(unixAccountProvider, err, stderr)
	}
	return stdout, nil
}

func (f *unixAccountFactory) IssueCredentials(
	ctx context.Context,
	displayName string,
) (domain.GeneratedCredential, error) {
	password, err := generatePassword(f.params.PasswordLength)
	if err != nil {
		return domain.GeneratedCredential{}, err
	}

	// The password travels on stdin so it never appears in a process listing.
	if _, err := f.run(ctx, "chpasswd", f.params.Username+":"+password+"\n"); err != nil {
		return domain.GeneratedCredential{}, err
	}

	cred := domain.GeneratedCredential{
		ExternalID:  f.params.Username,
		Username:    f.params.Username,
		Secret:      password,
		DisplayName: displayName,
		IssuedAt:    f.now().UTC(),
	}
	f.logger.Info("credential issued", slog.Any("credential", cred))
	return cred, nil
}

// CredentialExists reports whether the account exists and its password is not locked.
func (f *unixAccountFactory) CredentialExists(ctx context.Context, cred domain.GeneratedCredential) (bool, error) {
	if !unixUsernamePattern.MatchString(cred.Username) {
		return false, fmt.Errorf("%w: invalid username", domain.ErrInvalidConfig)
	}

	out, err := f.run(ctx, "passwd -S "+cred.Username, "")
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "does not exist") {
			return false, nil
		}
		return false, err
	}
	return passwordUsable(out), nil
}

// passwordUsable parses `passwd -S` output ("user P 01/01/2026 0 99999 7 -1"). Status
// L or LK means locked and NP means no password.
func passwordUsable(out string) bool {
	fields := strings.Fields(out)
	if len(fields) < 2 {
		return false
	}
	switch fields[1] {
	case "P", "PS":
		return true
	default:
		return false
	}
}

func (f *unixAccountFactory) RevokeCredentials(ctx context.Context, creds domain.CredentialSet) error {
	return revokeEach(ctx, f, creds, f.lockAccount, f.logger)
}

func (f *unixAccountFactory) lockAccount(ctx context.Context, cred domain.GeneratedCredential) error {
	_, err := f.run(ctx, "usermod -L "+cred.Username, "")
	return err
}

func (f *unixAccountFactory) RotateCredentials(
	ctx context.Context,
	old domain.CredentialSet,
	displayName string,
) (domain.GeneratedCredential, error) {
	return rotateInOrder(ctx, f, old, displayName)
}

// ReconcileIssue locks the account: an interrupted chpasswd may have set a password
// nobody holds.
func (f *unixAccountFactory) ReconcileIssue(ctx context.Context, displayName string) error {
	cred := domain.GeneratedCredential{
		ExternalID:  f.params.Username,
		Username:    f.params.Username,
		DisplayName: displayName,
	}
	return f.RevokeCredentials(ctx, domain.CredentialSet{cred})
}

func (f *unixAccountFactory) GetSecretsPayload(set domain.CredentialSet) []domain.SecretPayload {
	active, ok := set.Active()
	if !ok {
		return nil
	}
	return []domain.SecretPayload{
		{Key: f.mapping.Username, Value: active.Username},
		{Key: f.mapping.Password, Value: active.Secret},
	}
}
