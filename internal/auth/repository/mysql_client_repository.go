package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
)

// MySQLClientRepository stores API clients in MySQL, with ids as BINARY(16).
type MySQLClientRepository struct {
	db *sql.DB
}

// NewMySQLClientRepository creates a MySQLClientRepository.
func NewMySQLClientRepository(db *sql.DB) *MySQLClientRepository {
	return &MySQLClientRepository{db: db}
}

func binaryID(id uuid.UUID) ([]byte, error) {
	raw, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal client id")
	}
	return raw, nil
}

func (m *MySQLClientRepository) Create(ctx context.Context, client *authDomain.Client) error {
	id, err := binaryID(client.ID)
	if err != nil {
		return err
	}
	policies, err := marshalPolicies(client)
	if err != nil {
		return err
	}

	_, err = database.GetTx(ctx, m.db).ExecContext(ctx,
		`INSERT INTO clients (`+clientSelectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, client.Secret, client.Name, client.IsActive, policies, client.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create client")
	}
	return nil
}

// Update replaces secret, name, active flag and policies. MySQL counts only changed
// rows as affected, so a zero count falls back to an existence check.
func (m *MySQLClientRepository) Update(ctx context.Context, client *authDomain.Client) error {
	id, err := binaryID(client.ID)
	if err != nil {
		return err
	}
	policies, err := marshalPolicies(client)
	if err != nil {
		return err
	}

	result, err := database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE clients SET secret = ?, name = ?, is_active = ?, policies = ? WHERE id = ?`,
		client.Secret, client.Name, client.IsActive, policies, id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update client")
	}
	updated, err := checkUpdated(result)
	if err != nil || updated {
		return err
	}
	_, err = m.Get(ctx, client.ID)
	return err
}

func (m *MySQLClientRepository) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	id, err := binaryID(clientID)
	if err != nil {
		return nil, err
	}
	row := database.GetTx(ctx, m.db).QueryRowContext(ctx,
		`SELECT `+clientSelectColumns+` FROM clients WHERE id = ?`, id)

	var rawID []byte
	return scanClient(row, &rawID, func(client *authDomain.Client) error {
		return client.ID.UnmarshalBinary(rawID)
	})
}
