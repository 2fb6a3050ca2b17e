package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

// MySQLSecretRepository implements Secret persistence for MySQL databases. UUIDs are
// stored as BINARY(16).
type MySQLSecretRepository struct {
	db *sql.DB
}

// Create inserts a new secret version. A duplicate version returns ErrVersionConflict.
func (m *MySQLSecretRepository) Create(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO secrets (` + secretColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := secret.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal secret id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		secret.ProjectID,
		secret.Environment,
		secret.Path,
		secret.Key,
		secret.Version,
		secret.Ciphertext,
		secret.CreatedBy,
		secret.CreatedAt,
	)
	if err != nil {
		if isMySQLUniqueViolation(err) {
			return secretsDomain.ErrVersionConflict
		}
		return apperrors.Wrap(err, "failed to create secret")
	}
	return nil
}

// GetLatest retrieves the highest version of key inside scope.
func (m *MySQLSecretRepository) GetLatest(
	ctx context.Context,
	scope secretsDomain.Scope,
	key string,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + secretColumns + ` FROM secrets
			  WHERE project_id = ? AND environment = ? AND path = ? AND secret_key = ?
			  ORDER BY version DESC
			  LIMIT 1`

	secret, err := scanMySQLSecret(querier.QueryRowContext(ctx, query, scope.ProjectID, scope.Environment, scope.Path, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, secretsDomain.ErrSecretNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret")
	}
	return secret, nil
}

// ListLatest returns the current version of every key inside scope ordered by key.
func (m *MySQLSecretRepository) ListLatest(
	ctx context.Context,
	scope secretsDomain.Scope,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT s.id, s.project_id, s.environment, s.path, s.secret_key, s.version,
			  s.ciphertext, s.created_by, s.created_at
			  FROM secrets s
			  JOIN (
			    SELECT secret_key, MAX(version) AS version FROM secrets
			    WHERE project_id = ? AND environment = ? AND path = ?
			    GROUP BY secret_key
			  ) latest ON latest.secret_key = s.secret_key AND latest.version = s.version
			  WHERE s.project_id = ? AND s.environment = ? AND s.path = ?
			  ORDER BY s.secret_key`

	rows, err := querier.QueryContext(ctx, query,
		scope.ProjectID, scope.Environment, scope.Path,
		scope.ProjectID, scope.Environment, scope.Path,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secrets")
	}
	defer func() {
		_ = rows.Close()
	}()

	secrets := make([]*secretsDomain.Secret, 0)
	for rows.Next() {
		secret, err := scanMySQLSecret(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret")
		}
		secrets = append(secrets, secret)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secrets")
	}
	return secrets, nil
}

func scanMySQLSecret(row rowScanner) (*secretsDomain.Secret, error) {
	var secret secretsDomain.Secret
	var id []byte
	err := row.Scan(
		&id,
		&secret.ProjectID,
		&secret.Environment,
		&secret.Path,
		&secret.Key,
		&secret.Version,
		&secret.Ciphertext,
		&secret.CreatedBy,
		&secret.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := secret.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal secret id")
	}
	return &secret, nil
}

// isMySQLUniqueViolation checks if the error is a MySQL duplicate entry error (1062).
func isMySQLUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate entry")
}

// NewMySQLSecretRepository creates a new MySQL Secret repository instance.
func NewMySQLSecretRepository(db *sql.DB) *MySQLSecretRepository {
	return &MySQLSecretRepository{db: db}
}
