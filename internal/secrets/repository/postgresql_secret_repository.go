// Package repository implements data persistence for versioned secrets.
// Every write inserts a row; the highest version per scope and key is the current value.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

const secretColumns = `id, project_id, environment, path, secret_key, version, ciphertext, created_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLSecretRepository implements Secret persistence for PostgreSQL databases.
type PostgreSQLSecretRepository struct {
	db *sql.DB
}

// Create inserts a new secret version. A duplicate version returns ErrVersionConflict.
func (p *PostgreSQLSecretRepository) Create(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secrets (` + secretColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		secret.ID,
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
		if isPostgreSQLUniqueViolation(err) {
			return secretsDomain.ErrVersionConflict
		}
		return apperrors.Wrap(err, "failed to create secret")
	}
	return nil
}

// GetLatest retrieves the highest version of key inside scope.
func (p *PostgreSQLSecretRepository) GetLatest(
	ctx context.Context,
	scope secretsDomain.Scope,
	key string,
) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretColumns + ` FROM secrets
			  WHERE project_id = $1 AND environment = $2 AND path = $3 AND secret_key = $4
			  ORDER BY version DESC
			  LIMIT 1`

	secret, err := scanSecret(querier.QueryRowContext(ctx, query, scope.ProjectID, scope.Environment, scope.Path, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, secretsDomain.ErrSecretNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret")
	}
	return secret, nil
}

// ListLatest returns the current version of every key inside scope ordered by key.
func (p *PostgreSQLSecretRepository) ListLatest(
	ctx context.Context,
	scope secretsDomain.Scope,
) ([]*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT DISTINCT ON (secret_key) ` + secretColumns + ` FROM secrets
			  WHERE project_id = $1 AND environment = $2 AND path = $3
			  ORDER BY secret_key, version DESC`

	rows, err := querier.QueryContext(ctx, query, scope.ProjectID, scope.Environment, scope.Path)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secrets")
	}
	return collectSecrets(rows)
}

func scanSecret(row rowScanner) (*secretsDomain.Secret, error) {
	var secret secretsDomain.Secret
	err := row.Scan(
		&secret.ID,
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
	return &secret, nil
}

func collectSecrets(rows *sql.Rows) ([]*secretsDomain.Secret, error) {
	defer func() {
		_ = rows.Close()
	}()

	secrets := make([]*secretsDomain.Secret, 0)
	for rows.Next() {
		secret, err := scanSecret(rows)
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

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique constraint violation
func isPostgreSQLUniqueViolation(err error) bool {
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "unique constraint")
}

// NewPostgreSQLSecretRepository creates a new PostgreSQL Secret repository instance.
func NewPostgreSQLSecretRepository(db *sql.DB) *PostgreSQLSecretRepository {
	return &PostgreSQLSecretRepository{db: db}
}
