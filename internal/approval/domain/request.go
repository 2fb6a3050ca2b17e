package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	RequestPending RequestStatus = "pending"
	RequestApplied RequestStatus = "applied"
)

// Request is a user write held back by a policy. Payload is the envelope
// encrypted list of entries; it is decrypted only when the write is applied.
type Request struct {
	ID          uuid.UUID
	PolicyID    uuid.UUID
	ProjectID   string
	Environment string
	SecretPath  string
	RequestedBy string
	Payload     []byte
	Status      RequestStatus
	ApprovedBy  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRequest creates a pending request under policy.
func NewRequest(policy *Policy, secretPath, requestedBy string, payload []byte, now time.Time) *Request {
	now = now.UTC()
	return &Request{
		ID:          uuid.Must(uuid.NewV7()),
		PolicyID:    policy.ID,
		ProjectID:   policy.ProjectID,
		Environment: policy.Environment,
		SecretPath:  secretPath,
		RequestedBy: requestedBy,
		Payload:     payload,
		Status:      RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Approve records approverID's sign-off and reports whether the policy threshold
// is reached. Approving twice is a no-op.
func (r *Request) Approve(policy *Policy, approverID string, now time.Time) (bool, error) {
	if r.Status != RequestPending {
		return false, ErrRequestNotPending
	}
	if policy.ID != r.PolicyID {
		return false, ErrPolicyMismatch
	}
	if !policy.IsApprover(approverID) {
		return false, ErrNotApprover
	}
	if approverID == r.RequestedBy {
		return false, ErrSelfApproval
	}

	for _, id := range r.ApprovedBy {
		if id == approverID {
			return r.countFor(policy) >= policy.Approvals, nil
		}
	}
	r.ApprovedBy = append(r.ApprovedBy, approverID)
	r.UpdatedAt = now.UTC()
	return r.countFor(policy) >= policy.Approvals, nil
}

// countFor counts approvals from people still listed as approvers.
func (r *Request) countFor(policy *Policy) int {
	n := 0
	for _, id := range r.ApprovedBy {
		if policy.IsApprover(id) {
			n++
		}
	}
	return n
}

// MarkApplied closes the request after its payload was written.
func (r *Request) MarkApplied(now time.Time) {
	r.Status = RequestApplied
	r.UpdatedAt = now.UTC()
}
