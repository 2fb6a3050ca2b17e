// Package repository implements client persistence for PostgreSQL and MySQL.
//
// PostgreSQL uses native UUID and JSONB types, MySQL uses BINARY(16) and JSON.
// Every query runs inside the transaction carried by ctx, if any.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
)

// PostgreSQLClientRepository stores API clients in PostgreSQL.
type PostgreSQLClientRepository struct {
	db *sql.DB
}

// NewPostgreSQLClientRepository creates a PostgreSQLClientRepository.
func NewPostgreSQLClientRepository(db *sql.DB) *PostgreSQLClientRepository {
	return &PostgreSQLClientRepository{db: db}
}

func (p *PostgreSQLClientRepository) Create(ctx context.Context, client *authDomain.Client) error {
	policies, err := marshalPolicies(client)
	if err != nil {
		return err
	}

	_, err = database.GetTx(ctx, p.db).ExecContext(ctx,
		`INSERT INTO clients (`+clientSelectColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		client.ID, client.Secret, client.Name, client.IsActive, policies, client.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create client")
	}
	return nil
}

// Update replaces secret, name, active flag and policies.
func (p *PostgreSQLClientRepository) Update(ctx context.Context, client *authDomain.Client) error {
	policies, err := marshalPolicies(client)
	if err != nil {
		return err
	}

	result, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE clients SET secret = $1, name = $2, is_active = $3, policies = $4 WHERE id = $5`,
		client.Secret, client.Name, client.IsActive, policies, client.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update client")
	}
	updated, err := checkUpdated(result)
	if err != nil {
		return err
	}
	if !updated {
		return authDomain.ErrClientNotFound
	}
	return nil
}

func (p *PostgreSQLClientRepository) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	row := database.GetTx(ctx, p.db).QueryRowContext(ctx,
		`SELECT `+clientSelectColumns+` FROM clients WHERE id = $1`, clientID)

	var id uuid.UUID
	return scanClient(row, &id, func(client *authDomain.Client) error {
		client.ID = id
		return nil
	})
}
