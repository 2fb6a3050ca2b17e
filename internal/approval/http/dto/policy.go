// Package dto provides data transfer objects for the approval endpoints.
package dto

import (
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	approvalDomain "github.com/allisson/rotator/internal/approval/domain"
	customValidation "github.com/allisson/rotator/internal/validation"
)

// pathPatternRule accepts exact paths and glob patterns such as "/db/*".
var pathPatternRule = validation.By(func(value interface{}) error {
	s, ok := value.(*string)
	if !ok || s == nil {
		return nil
	}
	if !strings.HasPrefix(*s, "/") || strings.ContainsAny(*s, " \t\n") {
		return validation.NewError("validation_path_pattern", "must be an absolute path or glob pattern")
	}
	return nil
})

// CreatePolicyRequest gates writes in an environment. SecretPath is optional: when
// omitted the policy covers the whole environment.
type CreatePolicyRequest struct {
	ProjectID   string   `json:"project_id"`
	Environment string   `json:"environment"`
	SecretPath  *string  `json:"secret_path"`
	Approvals   int      `json:"approvals"`
	ApproverIDs []string `json:"approver_ids"`
}

// Validate checks if the create policy request is valid.
func (r *CreatePolicyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectID, validation.Required, customValidation.Slug),
		validation.Field(&r.Environment, validation.Required, customValidation.Slug),
		validation.Field(&r.SecretPath, pathPatternRule),
		validation.Field(&r.Approvals, validation.Min(0)),
		validation.Field(&r.ApproverIDs, validation.Each(validation.Required, customValidation.NotBlank)),
	)
}

// ToInput converts a validated request into the domain input.
func (r *CreatePolicyRequest) ToInput() approvalDomain.CreatePolicyInput {
	return approvalDomain.CreatePolicyInput{
		ProjectID:   r.ProjectID,
		Environment: r.Environment,
		SecretPath:  r.SecretPath,
		Approvals:   r.Approvals,
		ApproverIDs: r.ApproverIDs,
	}
}

// PolicyResponse represents an approval policy in API responses.
type PolicyResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Environment string    `json:"environment"`
	SecretPath  *string   `json:"secret_path"`
	Approvals   int       `json:"approvals"`
	ApproverIDs []string  `json:"approver_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// MapPolicyToResponse converts a domain policy to an API response.
func MapPolicyToResponse(p *approvalDomain.Policy) PolicyResponse {
	approvers := p.ApproverIDs
	if approvers == nil {
		approvers = []string{}
	}
	return PolicyResponse{
		ID:          p.ID.String(),
		ProjectID:   p.ProjectID,
		Environment: p.Environment,
		SecretPath:  p.SecretPath,
		Approvals:   p.Approvals,
		ApproverIDs: approvers,
		CreatedAt:   p.CreatedAt,
	}
}

// ListPoliciesResponse wraps a page of policies.
type ListPoliciesResponse struct {
	Data []PolicyResponse `json:"data"`
}

// MapPoliciesToListResponse converts domain policies to a list response.
func MapPoliciesToListResponse(policies []*approvalDomain.Policy) ListPoliciesResponse {
	data := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		data = append(data, MapPolicyToResponse(p))
	}
	return ListPoliciesResponse{Data: data}
}

// ResolvePolicyResponse reports the governing policy. Policy is null when writes
// to the path are applied directly.
type ResolvePolicyResponse struct {
	Policy           *PolicyResponse `json:"policy"`
	RequiresApproval bool            `json:"requires_approval"`
}

// MapResolvedPolicy converts a resolver result, possibly nil, to a response.
func MapResolvedPolicy(p *approvalDomain.Policy) ResolvePolicyResponse {
	if p == nil {
		return ResolvePolicyResponse{}
	}
	resp := MapPolicyToResponse(p)
	return ResolvePolicyResponse{Policy: &resp, RequiresApproval: p.RequiresApproval()}
}
