package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	"github.com/allisson/rotator/internal/database"
	apperrors "github.com/allisson/rotator/internal/errors"
)

// MySQLRequestRepository implements approval request persistence for MySQL.
type MySQLRequestRepository struct {
	db *sql.DB
}

// Create inserts a new request.
func (m *MySQLRequestRepository) Create(ctx context.Context, req *approvalDomain.Request) error {
	querier := database.GetTx(ctx, m.db)

	id, err := req.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal approval request id")
	}
	policyID, err := req.PolicyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal approval policy id")
	}
	approvedBy, err := marshalApprovedBy(req.ApprovedBy)
	if err != nil {
		return err
	}

	query := `INSERT INTO approval_requests (` + requestColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		policyID,
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
func (m *MySQLRequestRepository) Get(ctx context.Context, id uuid.UUID) (*approvalDomain.Request, error) {
	return m.get(ctx, id, "")
}

// GetForUpdate retrieves a request and locks its row until the surrounding transaction ends.
func (m *MySQLRequestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*approvalDomain.Request, error) {
	return m.get(ctx, id, " FOR UPDATE")
}

func (m *MySQLRequestRepository) get(
	ctx context.Context,
	id uuid.UUID,
	lock string,
) (*approvalDomain.Request, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal approval request id")
	}

	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = ?` + lock

	req, err := scanRequest(querier.QueryRowContext(ctx, query, idBytes), parseUUIDBinary)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, approvalDomain.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get approval request")
	}
	return req, nil
}

// Update stores status and approvals. MySQL reports zero affected rows when nothing
// changed, so a missing row is detected with Get.
func (m *MySQLRequestRepository) Update(ctx context.Context, req *approvalDomain.Request) error {
	querier := database.GetTx(ctx, m.db)

	id, err := req.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal approval request id")
	}
	approvedBy, err := marshalApprovedBy(req.ApprovedBy)
	if err != nil {
		return err
	}

	query := `UPDATE approval_requests SET status = ?, approved_by = ?, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, string(req.Status), approvedBy, req.UpdatedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update approval request")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		_, err := m.Get(ctx, req.ID)
		return err
	}
	return nil
}

// NewMySQLRequestRepository creates a new MySQL approval request repository.
func NewMySQLRequestRepository(db *sql.DB) *MySQLRequestRepository {
	return &MySQLRequestRepository{db: db}
}
