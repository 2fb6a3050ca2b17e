// Package repository implements approval policy and request persistence for
// PostgreSQL and MySQL. Approver lists are stored as JSON arrays.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
)

const policyColumns = `id, project_id, environment, secret_path, approvals, approver_ids, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLPolicyRepository implements approval policy persistence for PostgreSQL.
type PostgreSQLPolicyRepository struct {
	db *sql.DB
}

// Create inserts a new policy.
func (p *PostgreSQLPolicyRepository) Create(ctx context.Context, policy *approvalDomain.Policy) error {
	querier := database.GetTx(ctx, p.db)

	approvers, err := json.Marshal(policy.ApproverIDs)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal approver ids")
	}

	query := `INSERT INTO approval_policies (` + policyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = querier.ExecContext(
		ctx,
		query,
		policy.ID,
		policy.ProjectID,
		policy.Environment,
		nullString(policy.SecretPath),
		policy.Approvals,
		approvers,
		policy.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create approval policy")
	}
	return nil
}

// Get retrieves a policy by ID.
func (p *PostgreSQLPolicyRepository) Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Policy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + policyColumns + ` FROM approval_policies WHERE id = $1`

	policy, err := scanPolicy(querier.QueryRowContext(ctx, query, id), parseUUIDText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, approvalDomain.ErrPolicyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get approval policy")
	}
	return policy, nil
}

// ListByEnvironment returns every policy of a project environment ordered by creation.
func (p *PostgreSQLPolicyRepository) ListByEnvironment(
	ctx context.Context,
	projectID, environment string,
) ([]*approvalDomain.Policy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + policyColumns + ` FROM approval_policies
			  WHERE project_id = $1 AND environment = $2
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, projectID, environment)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list approval policies")
	}
	return collectPolicies(rows, parseUUIDText)
}

// List returns a page of a project's policies.
func (p *PostgreSQLPolicyRepository) List(
	ctx context.Context,
	projectID string,
	offset, limit int,
) ([]*approvalDomain.Policy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + policyColumns + ` FROM approval_policies
			  WHERE project_id = $1
			  ORDER BY environment ASC, created_at ASC, id ASC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list approval policies")
	}
	return collectPolicies(rows, parseUUIDText)
}

// parseUUIDText decodes ids stored as PostgreSQL uuid.
func parseUUIDText(raw []byte) (uuid.UUID, error) {
	return uuid.ParseBytes(raw)
}

// parseUUIDBinary decodes ids stored as MySQL BINARY(16).
func parseUUIDBinary(raw []byte) (uuid.UUID, error) {
	return uuid.FromBytes(raw)
}

func scanPolicy(row rowScanner, parseID func([]byte) (uuid.UUID, error)) (*approvalDomain.Policy, error) {
	var policy approvalDomain.Policy
	var rawID []byte
	var secretPath sql.NullString
	var approvers []byte

	if err := row.Scan(
		&rawID,
		&policy.ProjectID,
		&policy.Environment,
		&secretPath,
		&policy.Approvals,
		&approvers,
		&policy.CreatedAt,
	); err != nil {
		return nil, err
	}

	id, err := parseID(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse approval policy id")
	}
	policy.ID = id
	if secretPath.Valid {
		path := secretPath.String
		policy.SecretPath = &path
	}
	if err := json.Unmarshal(approvers, &policy.ApproverIDs); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal approver ids")
	}
	return &policy, nil
}

func collectPolicies(rows *sql.Rows, parseID func([]byte) (uuid.UUID, error)) ([]*approvalDomain.Policy, error) {
	defer func() {
		_ = rows.Close()
	}()

	policies := make([]*approvalDomain.Policy, 0)
	for rows.Next() {
		policy, err := scanPolicy(rows, parseID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan approval policy")
		}
		policies = append(policies, policy)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate approval policies")
	}
	return policies, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NewPostgreSQLPolicyRepository creates a new PostgreSQL approval policy repository.
func NewPostgreSQLPolicyRepository(db *sql.DB) *PostgreSQLPolicyRepository {
	return &PostgreSQLPolicyRepository{db: db}
}
