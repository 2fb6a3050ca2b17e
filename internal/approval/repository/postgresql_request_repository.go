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

const requestColumns = `id, policy_id, project_id, environment, secret_path, requested_by, payload,
	status, approved_by, created_at, updated_at`

// PostgreSQLRequestRepository implements approval request persistence for PostgreSQL.
type PostgreSQLRequestRepository struct {
	db *sql.DB
}

// Create inserts a new request.
func (p *PostgreSQLRequestRepository) Create(ctx context.Context, req *approvalDomain.Request) error {
	querier := database.GetTx(ctx, p.db)

	approvedBy, err := marshalApprovedBy(req.ApprovedBy)
	if err != nil {
		return err
	}

	query := `INSERT INTO approval_requests (` + requestColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = querier.ExecContext(
		ctx,
		query,
		req.ID,
		req.PolicyID,
		req.ProjectID,
		req.Environment,
		req.SecretPath,
		req.RequestedBy,
		req.Payload,
		string(req.Status),
		approvedBy,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create approval request")
	}
	return nil
}

// Get retrieves a request by ID.
func (p *PostgreSQLRequestRepository) Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Request, error) {
	return p.get(ctx, id, "")
}

// GetForUpdate retrieves a request and locks its row until the surrounding
// transaction ends, so concurrent approvals are applied once.
func (p *PostgreSQLRequestRepository) GetForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*approvalDomain.Request, error) {
	return p.get(ctx, id, " FOR UPDATE")
}

func (p *PostgreSQLRequestRepository) get(
	ctx context.Context,
	id uuid.UUID,
	lock string,
) (*approvalDomain.Request, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = $1` + lock

	req, err := scanRequest(querier.QueryRowContext(ctx, query, id), parseUUIDText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, approvalDomain.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get approval request")
	}
	return req, nil
}

// Update stores status and approvals.
func (p *PostgreSQLRequestRepository) Update(ctx context.Context, req *approvalDomain.Request) error {
	querier := database.GetTx(ctx, p.db)

	approvedBy, err := marshalApprovedBy(req.ApprovedBy)
	if err != nil {
		return err
	}

	query := `UPDATE approval_requests SET status = $1, approved_by = $2, updated_at = $3 WHERE id = $4`

	result, err := querier.ExecContext(ctx, query, string(req.Status), approvedBy, req.UpdatedAt, req.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update approval request")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return approvalDomain.ErrRequestNotFound
	}
	return nil
}

func marshalApprovedBy(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal approvals")
	}
	return raw, nil
}

func scanRequest(row rowScanner, parseID func([]byte) (uuid.UUID, error)) (*approvalDomain.Request, error) {
	var req approvalDomain.Request
	var rawID, rawPolicyID, approvedBy []byte
	var status string

	if err := row.Scan(
		&rawID,
		&rawPolicyID,
		&req.ProjectID,
		&req.Environment,
		&req.SecretPath,
		&req.RequestedBy,
		&req.Payload,
		&status,
		&approvedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if req.ID, err = parseID(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse approval request id")
	}
	if req.PolicyID, err = parseID(rawPolicyID); err != nil {
		return nil, apperrors.Wrap(err, "failed to parse approval policy id")
	}
	req.Status = approvalDomain.RequestStatus(status)
	if err := json.Unmarshal(approvedBy, &req.ApprovedBy); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal approvals")
	}
	return &req, nil
}

// NewPostgreSQLRequestRepository creates a new PostgreSQL approval request repository.
func NewPostgreSQLRequestRepository(db *sql.DB) *PostgreSQLRequestRepository {
	return &PostgreSQLRequestRepository{db: db}
}
