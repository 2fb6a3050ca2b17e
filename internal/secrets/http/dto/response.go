package dto

import (
	"time"

	"github.com/google/uuid"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

// SecretResponse represents a secret version in API responses.
// Value holds plaintext and is only set on reads.
type SecretResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Environment string    `json:"environment"`
	Path        string    `json:"path"`
	Key         string    `json:"key"`
	Version     uint      `json:"version"`
	Value       []byte    `json:"value,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func mapSecret(secret *secretsDomain.Secret, withValue bool) SecretResponse {
	resp := SecretResponse{
		ID:          secret.ID.String(),
		ProjectID:   secret.ProjectID,
		Environment: secret.Environment,
		Path:        secret.Path,
		Key:         secret.Key,
		Version:     secret.Version,
		CreatedBy:   secret.CreatedBy,
		CreatedAt:   secret.CreatedAt,
	}
	if withValue {
		resp.Value = secret.Plaintext
	}
	return resp
}

// MapSecretToGetResponse includes the plaintext value. The caller must zero the
// domain plaintext once the response is written.
func MapSecretToGetResponse(secret *secretsDomain.Secret) SecretResponse {
	return mapSecret(secret, true)
}

// ListSecretsResponse wraps secret versions.
type ListSecretsResponse struct {
	Data []SecretResponse `json:"data"`
}

// MapSecretsToWriteResponse lists written versions without values.
func MapSecretsToWriteResponse(secrets []*secretsDomain.Secret) ListSecretsResponse {
	return mapList(secrets, false)
}

// MapSecretsToListResponse lists the latest versions with their values.
func MapSecretsToListResponse(secrets []*secretsDomain.Secret) ListSecretsResponse {
	return mapList(secrets, true)
}

func mapList(secrets []*secretsDomain.Secret, withValue bool) ListSecretsResponse {
	data := make([]SecretResponse, 0, len(secrets))
	for _, s := range secrets {
		data = append(data, mapSecret(s, withValue))
	}
	return ListSecretsResponse{Data: data}
}

// ApprovalPendingResponse is returned with 202 Accepted when a write was held back.
type ApprovalPendingResponse struct {
	RequestID string `json:"request_id"`
	PolicyID  string `json:"policy_id"`
	Status    string `json:"status"`
}

// MapApprovalRequired converts a held write to a response.
func MapApprovalRequired(requestID, policyID uuid.UUID) ApprovalPendingResponse {
	return ApprovalPendingResponse{
		RequestID: requestID.String(),
		PolicyID:  policyID.String(),
		Status:    string(approvalDomain.RequestPending),
	}
}

// ApprovalRequestResponse represents an approval request. The sealed payload is
// never returned.
type ApprovalRequestResponse struct {
	ID          string    `json:"id"`
	PolicyID    string    `json:"policy_id"`
	ProjectID   string    `json:"project_id"`
	Environment string    `json:"environment"`
	SecretPath  string    `json:"secret_path"`
	RequestedBy string    `json:"requested_by"`
	Status      string    `json:"status"`
	ApprovedBy  []string  `json:"approved_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MapApprovalRequestToResponse converts a domain request to an API response.
func MapApprovalRequestToResponse(req *approvalDomain.Request) ApprovalRequestResponse {
	approvedBy := req.ApprovedBy
	if approvedBy == nil {
		approvedBy = []string{}
	}
	return ApprovalRequestResponse{
		ID:          req.ID.String(),
		PolicyID:    req.PolicyID.String(),
		ProjectID:   req.ProjectID,
		Environment: req.Environment,
		SecretPath:  req.SecretPath,
		RequestedBy: req.RequestedBy,
		Status:      string(req.Status),
		ApprovedBy:  approvedBy,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}
