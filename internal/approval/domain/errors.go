package domain

import (
	"github.com/allisson/rotator/internal/errors"
)

var (
	// ErrPolicyNotFound indicates no approval policy exists with the given ID.
	ErrPolicyNotFound = errors.Wrap(errors.ErrNotFound, "approval policy not found")

	// ErrRequestNotFound indicates no approval request exists with the given ID.
	ErrRequestNotFound = errors.Wrap(errors.ErrNotFound, "approval request not found")

	// ErrInvalidPolicy indicates missing scope fields, a relative path or a blank approver.
	ErrInvalidPolicy = errors.Wrap(errors.ErrInvalidInput, "invalid approval policy")

	// ErrTooManyApprovals indicates a policy asking for more approvals than it has approvers.
	ErrTooManyApprovals = errors.Wrap(errors.ErrInvalidInput, "approvals exceed number of approvers")

	// ErrRequestNotPending indicates the request was already applied.
	ErrRequestNotPending = errors.Wrap(errors.ErrConflict, "approval request is not pending")

	// ErrPolicyMismatch indicates a request evaluated against a policy it was not created under.
	ErrPolicyMismatch = errors.Wrap(errors.ErrConflict, "approval request belongs to another policy")

	// ErrNotApprover indicates the actor is not listed as approver of the policy.
	ErrNotApprover = errors.Wrap(errors.ErrForbidden, "actor is not an approver of this policy")

	// ErrSelfApproval indicates an approver tried to approve their own request.
	ErrSelfApproval = errors.Wrap(errors.ErrForbidden, "requester cannot approve own request")
)
