// Package repository implements persistence for rotation definitions and connections.
// Repositories support both PostgreSQL and MySQL and join the caller's transaction
// through database.GetTx.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

const rotationColumns = `id, project_id, environment, secret_path, name, kind, connection_id,
	parameters, secrets_mapping, status, encrypted_credentials, pending_issue, auto_rotate,
	rotation_interval_seconds, last_rotated_at, next_rotation_at, last_error, created_at, updated_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// PostgreSQLRotationRepository implements Rotation persistence for PostgreSQL databases.
type PostgreSQLRotationRepository struct {
	db *sql.DB
}

// Create inserts a new rotation definition.
func (p *PostgreSQLRotationRepository) Create(ctx context.Context, rotation *rotationDomain.Rotation) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO rotations (` + rotationColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := querier.ExecContext(
		ctx,
		query,
		rotation.ID,
		rotation.ProjectID,
		rotation.Environment,
		rotation.SecretPath,
		rotation.Name,
		string(rotation.Kind),
		rotation.ConnectionID,
		[]byte(rotation.Parameters),
		[]byte(rotation.SecretsMapping),
		string(rotation.Status),
		rotation.EncryptedCredentials,
		rotation.PendingIssue,
		rotation.AutoRotate,
		int64(rotation.RotationInterval/time.Second),
		rotation.LastRotatedAt,
		rotation.NextRotationAt,
		rotation.LastError,
		rotation.CreatedAt,
		rotation.UpdatedAt,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return rotationDomain.ErrRotationNameTaken
		}
		return apperrors.Wrap(err, "failed to create rotation")
	}
	return nil
}

// Get retrieves a rotation definition by ID.
func (p *PostgreSQLRotationRepository) Get(ctx context.Context, id uuid.UUID) (*rotationDomain.Rotation, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rotationColumns + ` FROM rotations WHERE id = $1`

	rotation, err := scanPostgreSQLRotation(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rotationDomain.ErrRotationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get rotation")
	}
	return rotation, nil
}

// Update overwrites the mutable state of a rotation definition.
func (p *PostgreSQLRotationRepository) Update(ctx context.Context, rotation *rotationDomain.Rotation) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE rotations
			  SET parameters = $1, secrets_mapping = $2, status = $3, encrypted_credentials = $4,
			      pending_issue = $5, auto_rotate = $6, rotation_interval_seconds = $7,
			      last_rotated_at = $8, next_rotation_at = $9, last_error = $10, updated_at = $11
			  WHERE id = $12`

	result, err := querier.ExecContext(
		ctx,
		query,
		[]byte(rotation.Parameters),
		[]byte(rotation.SecretsMapping),
		string(rotation.Status),
		rotation.EncryptedCredentials,
		rotation.PendingIssue,
		rotation.AutoRotate,
		int64(rotation.RotationInterval/time.Second),
		rotation.LastRotatedAt,
		rotation.NextRotationAt,
		rotation.LastError,
		rotation.UpdatedAt,
		rotation.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update rotation")
	}
	return requireRowAffected(result, rotationDomain.ErrRotationNotFound)
}

// Delete removes a rotation definition.
func (p *PostgreSQLRotationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM rotations WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete rotation")
	}
	return requireRowAffected(result, rotationDomain.ErrRotationNotFound)
}

// List returns the rotation definitions of a project ordered by name.
func (p *PostgreSQLRotationRepository) List(
	ctx context.Context,
	projectID string,
	offset, limit int,
) ([]*rotationDomain.Rotation, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rotationColumns + ` FROM rotations
			  WHERE project_id = $1
			  ORDER BY name ASC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rotations")
	}
	return collectRotations(rows, scanPostgreSQLRotation)
}

// ListDue returns active auto-rotating definitions whose next rotation is at or before
// now, plus definitions left rotating since staleBefore by an attempt that never
// finished.
func (p *PostgreSQLRotationRepository) ListDue(
	ctx context.Context,
	now, staleBefore time.Time,
	limit int,
) ([]*rotationDomain.Rotation, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + rotationColumns + ` FROM rotations
			  WHERE (status = $1 AND auto_rotate = TRUE AND next_rotation_at <= $2)
			     OR (status = $3 AND updated_at <= $4)
			  ORDER BY COALESCE(next_rotation_at, updated_at) ASC
			  LIMIT $5`

	rows, err := querier.QueryContext(ctx, query,
		string(rotationDomain.StatusActive), now,
		string(rotationDomain.StatusRotating), staleBefore,
		limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due rotations")
	}
	return collectRotations(rows, scanPostgreSQLRotation)
}

func scanPostgreSQLRotation(row scanner) (*rotationDomain.Rotation, error) {
	var rotation rotationDomain.Rotation
	var kind, status string
	var parameters, mapping []byte
	var intervalSeconds int64

	err := row.Scan(
		&rotation.ID,
		&rotation.ProjectID,
		&rotation.Environment,
		&rotation.SecretPath,
		&rotation.Name,
		&kind,
		&rotation.ConnectionID,
		&parameters,
		&mapping,
		&status,
		&rotation.EncryptedCredentials,
		&rotation.PendingIssue,
		&rotation.AutoRotate,
		&intervalSeconds,
		&rotation.LastRotatedAt,
		&rotation.NextRotationAt,
		&rotation.LastError,
		&rotation.CreatedAt,
		&rotation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rotation.Kind = rotationDomain.Kind(kind)
	rotation.Status = rotationDomain.Status(status)
	rotation.Parameters = parameters
	rotation.SecretsMapping = mapping
	rotation.RotationInterval = time.Duration(intervalSeconds) * time.Second
	return &rotation, nil
}

func collectRotations(
	rows *sql.Rows,
	scan func(scanner) (*rotationDomain.Rotation, error),
) ([]*rotationDomain.Rotation, error) {
	defer func() { _ = rows.Close() }()

	rotations := make([]*rotationDomain.Rotation, 0)
	for rows.Next() {
		rotation, err := scan(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan rotation")
		}
		rotations = append(rotations, rotation)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate rotations")
	}
	return rotations, nil
}

func requireRowAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique constraint violation
func isPostgreSQLUniqueViolation(err error) bool {
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "unique constraint")
}

// NewPostgreSQLRotationRepository creates a new PostgreSQL Rotation repository instance.
func NewPostgreSQLRotationRepository(db *sql.DB) *PostgreSQLRotationRepository {
	return &PostgreSQLRotationRepository{db: db}
}
