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

// MySQLPolicyRepository implements approval policy persistence for MySQL. IDs are BINARY(16).
type MySQLPolicyRepository struct {
	db *sql.DB
}

// Create inserts a new policy.
func (m *MySQLPolicyRepository) Create(ctx context.Context, policy *approvalDomain.Policy) error {
	querier := database.GetTx(ctx, m.db)

	id, err := policy.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal approval policy id")
	}
	approvers, err := json.Marshal(policy.ApproverIDs)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal approver ids")
	}

	query := `INSERT INTO approval_policies (` + policyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLPolicyRepository) Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Policy, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal approval policy id")
	}

	query := `SELECT ` + policyColumns + ` FROM approval_policies WHERE id = ?`

	policy, err := scanPolicy(querier.QueryRowContext(ctx, query, idBytes), parseUUIDBinary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, approvalDomain.ErrPolicyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get approval policy")
	}
	return policy, nil
}

// ListByEnvironment returns every policy of a project environment ordered by creation.
func (m *MySQLPolicyRepository) ListByEnvironment(
	ctx context.Context,
	projectID, environment string,
) ([]*approvalDomain.Policy, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + policyColumns + ` FROM approval_policies
			  WHERE project_id = ? AND environment = ?
			  ORDER BY created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, projectID, environment)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list approval policies")
	}
	return collectPolicies(rows, parseUUIDBinary)
}

// List returns a page of a project's policies.
func (m *MySQLPolicyRepository) List(
	ctx context.Context,
	projectID string,
	offset, limit int,
) ([]*approvalDomain.Policy, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + policyColumns + ` FROM approval_policies
			  WHERE project_id = ?
			  ORDER BY environment ASC, created_at ASC, id ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list approval policies")
	}
	return collectPolicies(rows, parseUUIDBinary)
}

// NewMySQLPolicyRepository creates a new MySQL approval policy repository.
func NewMySQLPolicyRepository(db *sql.DB) *MySQLPolicyRepository {
	return &MySQLPolicyRepository{db: db}
}
