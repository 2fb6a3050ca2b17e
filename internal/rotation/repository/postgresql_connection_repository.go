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

// PostgreSQLConnectionRepository implements Connection persistence for PostgreSQL databases.
type PostgreSQLConnectionRepository struct {
	db *sql.DB
}

// Create inserts a new connection.
func (p *PostgreSQLConnectionRepository) Create(ctx context.Context, conn *rotationDomain.Connection) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO connections (id, project_id, kind, name, encrypted_credentials, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		conn.ID,
		conn.ProjectID,
		string(conn.Kind),
		conn.Name,
		conn.EncryptedCredentials,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "connection name already exists")
		}
		return apperrors.Wrap(err, "failed to create connection")
	}
	return nil
}

// Get retrieves a connection by ID.
func (p *PostgreSQLConnectionRepository) Get(ctx context.Context, id uuid.UUID) (*rotationDomain.Connection, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, project_id, kind, name, encrypted_credentials, created_at, updated_at
			  FROM connections WHERE id = $1`

	var conn rotationDomain.Connection
	var kind string
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&conn.ID,
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

	conn.Kind = rotationDomain.Kind(kind)
	return &conn, nil
}

// NewPostgreSQLConnectionRepository creates a new PostgreSQL Connection repository instance.
func NewPostgreSQLConnectionRepository(db *sql.DB) *PostgreSQLConnectionRepository {
	return &PostgreSQLConnectionRepository{db: db}
}
