package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

// MySQLRotationRepository implements Rotation persistence for MySQL databases. UUIDs
// are stored as BINARY(16).
type MySQLRotationRepository struct {
	db *sql.DB
}

// Create inserts a new rotation definition.
func (m *MySQLRotationRepository) Create(ctx context.Context, rotation *rotationDomain.Rotation) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO rotations (` + rotationColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := rotation.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal rotation id")
	}
	connectionID, err := rotation.ConnectionID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal connection id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		rotation.ProjectID,
		rotation.Environment,
		rotation.SecretPath,
		rotation.Name,
		string(rotation.Kind),
		connectionID,
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
		if isMySQLUniqueViolation(err) {
			return rotationDomain.ErrRotationNameTaken
		}
		return apperrors.Wrap(err, "failed to create rotation")
	}
	return nil
}

// Get retrieves a rotation definition by ID.
func (m *MySQLRotationRepository) Get(ctx context.Context, id uuid.UUID) (*rotationDomain.Rotation, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal rotation id")
	}

	query := `SELECT ` + rotationColumns + ` FROM rotations WHERE id = ?`

	rotation, err := scanMySQLRotation(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rotationDomain.ErrRotationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get rotation")
	}
	return rotation, nil
}

// Update overwrites the mutable state of a rotation definition.
func (m *MySQLRotationRepository) Update(ctx context.Context, rotation *rotationDomain.Rotation) error {
	querier := database.GetTx(ctx, m.db)

	id, err := rotation.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal rotation id")
	}

	query := `UPDATE rotations
			  SET parameters = ?, secrets_mapping = ?, status = ?, encrypted_credentials = ?,
			      pending_issue = ?, auto_rotate = ?, rotation_interval_seconds = ?,
			      last_rotated_at = ?, next_rotation_at = ?, last_error = ?, updated_at = ?
			  WHERE id = ?`

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
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update rotation")
	}
	// MySQL reports zero affected rows when nothing changed, so existence is checked
	// separately.
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		if _, err := m.Get(ctx, rotation.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a rotation definition.
func (m *MySQLRotationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal rotation id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM rotations WHERE id = ?`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete rotation")
	}
	return requireRowAffected(result, rotationDomain.ErrRotationNotFound)
}

// List returns the rotation definitions of a project ordered by name.
func (m *MySQLRotationRepository) List(
	ctx context.Context,
	projectID string,
	offset, limit int,
) ([]*rotationDomain.Rotation, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + rotationColumns + ` FROM rotations
			  WHERE project_id = ?
			  ORDER BY name ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list rotations")
	}
	return collectRotations(rows, scanMySQLRotation)
}

// ListDue returns active auto-rotating definitions whose next rotation is at or before
// now, plus definitions left rotating since staleBefore by an attempt that never
// finished.
func (m *MySQLRotationRepository) ListDue(
	ctx context.Context,
	now, staleBefore time.Time,
	limit int,
) ([]*rotationDomain.Rotation, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + rotationColumns + ` FROM rotations
			  WHERE (status = ? AND auto_rotate = TRUE AND next_rotation_at <= ?)
			     OR (status = ? AND updated_at <= ?)
			  ORDER BY COALESCE(next_rotation_at, updated_at) ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query,
		string(rotationDomain.StatusActive), now,
		string(rotationDomain.StatusRotating), staleBefore,
		limit,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list due rotations")
	}
	return collectRotations(rows, scanMySQLRotation)
}

func scanMySQLRotation(row scanner) (*rotationDomain.Rotation, error) {
	var rotation rotationDomain.Rotation
	var id, connectionID, parameters, mapping []byte
	var kind, status string
	var intervalSeconds int64

	err := row.Scan(
		&id,
		&rotation.ProjectID,
		&rotation.Environment,
		&rotation.SecretPath,
		&rotation.Name,
		&kind,
		&connectionID,
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

	if err := rotation.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal rotation id")
	}
	if err := rotation.ConnectionID.UnmarshalBinary(connectionID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal connection id")
	}

	rotation.Kind = rotationDomain.Kind(kind)
	rotation.Status = rotationDomain.Status(status)
	rotation.Parameters = parameters
	rotation.SecretsMapping = mapping
	rotation.RotationInterval = time.Duration(intervalSeconds) * time.Second
	return &rotation, nil
}

// isMySQLUniqueViolation checks if the error is a MySQL duplicate entry error (1062).
func isMySQLUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate entry")
}

// NewMySQLRotationRepository creates a new MySQL Rotation repository instance.
func NewMySQLRotationRepository(db *sql.DB) *MySQLRotationRepository {
	return &MySQLRotationRepository{db: db}
}
