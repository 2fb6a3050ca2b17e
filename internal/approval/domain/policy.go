// Package domain defines approval policies and the write requests they hold back.
//
// A policy governs writes into one project environment, either env-wide (no secret
// path) or for a secret path that may contain '*' globs. When several policies
// match a path the most specific one governs: exact path, then glob, then env-wide.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ryanuber/go-glob"
)

// Match scores, higher is more specific.
const (
	ScoreEnvironment = 0
	ScoreGlob        = 1
	ScoreExact       = 2
)

// Policy requires Approvals distinct approvers to sign off a user write.
type Policy struct {
	ID          uuid.UUID
	ProjectID   string
	Environment string
	// SecretPath is nil for an env-wide policy.
	SecretPath  *string
	Approvals   int
	ApproverIDs []string
	CreatedAt   time.Time
}

// CreatePolicyInput contains the fields of a new policy.
type CreatePolicyInput struct {
	ProjectID   string
	Environment string
	SecretPath  *string
	Approvals   int
	ApproverIDs []string
}

// NewPolicy validates input and builds a policy. Approvals may not exceed the number of
// distinct approvers, otherwise a governed write could never be applied.
func NewPolicy(input CreatePolicyInput, now time.Time) (*Policy, error) {
	if input.ProjectID == "" || input.Environment == "" {
		return nil, ErrInvalidPolicy
	}
	if input.SecretPath != nil && !strings.HasPrefix(*input.SecretPath, "/") {
		return nil, ErrInvalidPolicy
	}
	if input.Approvals < 0 {
		return nil, ErrInvalidPolicy
	}

	approvers := make([]string, 0, len(input.ApproverIDs))
	seen := make(map[string]struct{}, len(input.ApproverIDs))
	for _, id := range input.ApproverIDs {
		if id == "" {
			return nil, ErrInvalidPolicy
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		approvers = append(approvers, id)
	}
	if input.Approvals > len(approvers) {
		return nil, ErrTooManyApprovals
	}

	return &Policy{
		ID:          uuid.Must(uuid.NewV7()),
		ProjectID:   input.ProjectID,
		Environment: input.Environment,
		SecretPath:  input.SecretPath,
		Approvals:   input.Approvals,
		ApproverIDs: approvers,
		CreatedAt:   now.UTC(),
	}, nil
}

// Score reports whether the policy applies to secretPath and how specifically.
// Matching is case-sensitive and a trailing slash on either side is ignored. In a
// glob, '*' matches within one path segment and a "**" segment matches any number of
// segments. A pattern containing '*' always scores as a glob, even when it equals
// secretPath literally.
func (p *Policy) Score(secretPath string) (int, bool) {
	if p.SecretPath == nil {
		return ScoreEnvironment, true
	}
	pattern := *p.SecretPath
	if strings.Contains(pattern, "*") {
		if matchSegments(splitPath(pattern), splitPath(secretPath)) {
			return ScoreGlob, true
		}
		return 0, false
	}
	if strings.TrimSuffix(pattern, "/") == strings.TrimSuffix(secretPath, "/") {
		return ScoreExact, true
	}
	return 0, false
}

func splitPath(p string) []string {
	return strings.Split(strings.TrimSuffix(p, "/"), "/")
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) == 0 {
		return len(segments) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segments); i++ {
			if matchSegments(pattern[1:], segments[i:]) {
				return true
			}
		}
		return false
	}
	if len(segments) == 0 || !glob.Glob(pattern[0], segments[0]) {
		return false
	}
	return matchSegments(pattern[1:], segments[1:])
}

// IsApprover reports whether actorID may approve requests under this policy.
func (p *Policy) IsApprover(actorID string) bool {
	for _, id := range p.ApproverIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether user writes under this policy must be approved.
func (p *Policy) RequiresApproval() bool {
	return p != nil && p.Approvals > 0
}

// SelectPolicy returns the policy that governs secretPath, or nil when none applies.
// Candidates are ordered by descending score, then earliest CreatedAt, then ID, so the
// result does not depend on the order policies were loaded in.
func SelectPolicy(policies []*Policy, secretPath string) *Policy {
	type candidate struct {
		policy *Policy
		score  int
	}
	candidates := make([]candidate, 0, len(policies))
	for _, p := range policies {
		if score, ok := p.Score(secretPath); ok {
			candidates = append(candidates, candidate{policy: p, score: score})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.policy.CreatedAt.Equal(b.policy.CreatedAt) {
			return a.policy.CreatedAt.Before(b.policy.CreatedAt)
		}
		return a.policy.ID.String() < b.policy.ID.String()
	})
	return candidates[0].policy
}
