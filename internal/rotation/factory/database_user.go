package factory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/allisson/rotator/internal/rotation/domain"
)

const (
	databaseUserProvider = "database-user"

	driverPostgres = "postgres"
	driverMySQL    = "mysql"

	// mysqlUserHost is the host part of rotated MySQL accounts.
	mysqlUserHost = "%"
)

// DBOpener opens a database handle for a connection.
type DBOpener func(driver, dsn string) (*sql.DB, error)

func openSQL(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// databaseUserFactory alternates two pre-existing database users. Issuing enables the
// standby user with a fresh password; revoking disables login and scrambles the
// password, so a revoked user no longer counts as an existing credential.
type databaseUserFactory struct {
	driver  string
	dsn     string
	open    DBOpener
	params  domain.DatabaseUserParameters
	mapping domain.UserPasswordMapping
	current domain.CredentialSet
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex
	db *sql.DB
}

func databaseUserBuilder(opts Options) Builder {
	return func(conn domain.ConnectionConfig, cfg domain.Config, current domain.CredentialSet) (Factory, error) {
		c, ok := conn.(domain.DatabaseConnection)
		if !ok {
			return nil, domain.ErrKindMismatch
		}
		config, ok := cfg.(domain.DatabaseUserConfig)
		if !ok {
			return nil, domain.ErrKindMismatch
		}
		if c.Driver != driverPostgres && c.Driver != driverMySQL {
			return nil, fmt.Errorf("%w: unsupported driver %q", domain.ErrInvalidConnection, c.Driver)
		}

		return &databaseUserFactory{
			driver:  c.Driver,
			dsn:     c.DSN,
			open:    opts.OpenDB,
			params:  config.Parameters,
			mapping: config.Mapping,
			current: current,
			logger:  opts.Logger.With(slog.String("kind", string(domain.KindDatabaseUser))),
			now:     opts.Now,
		}, nil
	}
}

func (f *databaseUserFactory) Kind() domain.Kind { return domain.KindDatabaseUser }

func (f *databaseUserFactory) Ordering() domain.Ordering { return domain.KindDatabaseUser.Ordering() }

// conn lazily opens the database handle.
func (f *databaseUserFactory) conn() (*sql.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.db != nil {
		return f.db, nil
	}
	db, err := f.open(f.driver, f.dsn)
	if err != nil {
		return nil, classifySQL(databaseUserProvider, err)
	}
	f.db = db
	return db, nil
}

// Close releases the database handle.
func (f *databaseUserFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

// standbyUser is the user not holding the active credential.
func (f *databaseUserFactory) standbyUser() string {
	if active, ok := f.current.Active(); ok && active.Username == f.params.Username1 {
		return f.params.Username2
	}
	return f.params.Username1
}

func (f *databaseUserFactory) IssueCredentials(
	ctx context.Context,
	displayName string,
) (domain.GeneratedCredential, error) {
	username := f.standbyUser()
	password, err := generatePassword(f.params.PasswordLength)
	if err != nil {
		return domain.GeneratedCredential{}, err
	}

	if err := f.exec(ctx, f.enableStatement(username, password)); err != nil {
		return domain.GeneratedCredential{}, err
	}

	cred := domain.GeneratedCredential{
		ExternalID:  username,
		Username:    username,
		Secret:      password,
		DisplayName: displayName,
		IssuedAt:    f.now().UTC(),
	}
	f.logger.Info("credential issued", slog.Any("credential", cred))
	return cred, nil
}

func (f *databaseUserFactory) CredentialExists(ctx context.Context, cred domain.GeneratedCredential) (bool, error) {
	db, err := f.conn()
	if err != nil {
		return false, err
	}

	var query string
	var args []any
	switch f.driver {
	case driverPostgres:
		query = "SELECT rolcanlogin FROM pg_roles WHERE rolname = $1"
		args = []any{cred.Username}
	default:
		query = "SELECT account_locked = 'N' FROM mysql.user WHERE User = ? AND Host = ?"
		args = []any{cred.Username, mysqlUserHost}
	}

	var canLogin bool
	err = db.QueryRowContext(ctx, query, args...).Scan(&canLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classifySQL(databaseUserProvider, err)
	}
	return canLogin, nil
}

func (f *databaseUserFactory) RevokeCredentials(ctx context.Context, creds domain.CredentialSet) error {
	return revokeEach(ctx, f, creds, f.disableUser, f.logger)
}

func (f *databaseUserFactory) disableUser(ctx context.Context, cred domain.GeneratedCredential) error {
	scramble, err := generatePassword(f.params.PasswordLength)
	if err != nil {
		return err
	}
	return f.exec(ctx, f.disableStatement(cred.Username, scramble))
}

func (f *databaseUserFactory) RotateCredentials(
	ctx context.Context,
	old domain.CredentialSet,
	displayName string,
) (domain.GeneratedCredential, error) {
	return rotateInOrder(ctx, f, old, displayName)
}

// ReconcileIssue disables the standby user: an issuance with unknown outcome may have
// left it enabled with a password nobody holds.
func (f *databaseUserFactory) ReconcileIssue(ctx context.Context, displayName string) error {
	standby := domain.GeneratedCredential{
		ExternalID:  f.standbyUser(),
		Username:    f.standbyUser(),
		DisplayName: displayName,
	}
	return f.RevokeCredentials(ctx, domain.CredentialSet{standby})
}

func (f *databaseUserFactory) GetSecretsPayload(set domain.CredentialSet) []domain.SecretPayload {
	active, ok := set.Active()
	if !ok {
		return nil
	}
	return []domain.SecretPayload{
		{Key: f.mapping.Username, Value: active.Username},
		{Key: f.mapping.Password, Value: active.Secret},
	}
}

func (f *databaseUserFactory) exec(ctx context.Context, statement string) error {
	db, err := f.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, statement); err != nil {
		return classifySQL(databaseUserProvider, err)
	}
	return nil
}

// Password management statements take no bind parameters, so identifiers and literals
// are quoted here.
func (f *databaseUserFactory) enableStatement(username, password string) string {
	if f.driver == driverPostgres {
		return fmt.Sprintf(
			"ALTER ROLE %s WITH LOGIN PASSWORD %s",
			pq.QuoteIdentifier(username), pq.QuoteLiteral(password),
		)
	}
	return fmt.Sprintf(
		"ALTER USER %s IDENTIFIED BY %s ACCOUNT UNLOCK",
		mysqlAccount(username), mysqlLiteral(password),
	)
}

func (f *databaseUserFactory) disableStatement(username, scramble string) string {
	if f.driver == driverPostgres {
		return fmt.Sprintf(
			"ALTER ROLE %s WITH NOLOGIN PASSWORD %s",
			pq.QuoteIdentifier(username), pq.QuoteLiteral(scramble),
		)
	}
	return fmt.Sprintf(
		"ALTER USER %s IDENTIFIED BY %s ACCOUNT LOCK",
		mysqlAccount(username), mysqlLiteral(scramble),
	)
}

func mysqlAccount(username string) string {
	return mysqlLiteral(username) + "@" + mysqlLiteral(mysqlUserHost)
}

func mysqlLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
