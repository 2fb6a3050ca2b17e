package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

// MySQLConnectionRepository implements Connection persistence for MySQL databases.
type MySQLConnectionRepository struct {
	db *sql.DB
}

// Create inserts a new connection.
func (m *MySQLConnectionRepository) Create(ctx context.Context, conn *rotationDomain.Connection) error {
	querier := database.GetTx(ctx, m.db)

	id, err := conn.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal connection id")
	}

	query := `INSERT INTO connections (id, project_id, kind, name, encrypted_credentials, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		conn.ProjectID,
		string(conn.Kind),
		conn.Name,
		conn.EncryptedCredentials,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		if isMySQLUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "connection name already exists")
		}
		return apperrors.Wrap(err, "failed to create connection")
	}
	return nil
}

// Get retrieves a connection by ID.
func (m *MySQLConnectionRepository) Get(ctx context.Context, id uuid.UUID) (*rotationDomain.Connection, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal connection id")
	}

	query := `SELECT id, project_id, kind, name, encrypted_credentials, created_at, updated_at
			  FROM connections WHERE id = ?`

	var conn rotationDomain.Connection
	var rawID []byte
	var kind string
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(
		&rawID,
		&conn.ProjectID,
		&kind,
		&conn.Name,
		&conn.EncryptedCredentials,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rotationDomain.ErrConnectionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get connection")
	}

	if err := conn.ID.UnmarshalBinary(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal connection id")
	}
	conn.Kind = rotationDomain.Kind(kind)
	return &conn, nil
}

// NewMySQLConnectionRepository creates a new MySQL Connection repository instance.
func NewMySQLConnectionRepository(db *sql.DB) *MySQLConnectionRepository {
	return &MySQLConnectionRepository{db: db}
}
