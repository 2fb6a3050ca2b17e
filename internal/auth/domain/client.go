package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PolicyDocument grants capabilities on a permission path pattern such as
// "/projects/billing/*" or "/projects/*/secrets".
type PolicyDocument struct {
	Path         string       `json:"path"`
	Capabilities []Capability `json:"capabilities"`
}

// Client is an API caller. Secret holds the Argon2id hash, never the plain value.
type Client struct {
	ID        uuid.UUID
	Secret    string //nolint:gosec // hashed client secret
	Name      string
	IsActive  bool
	Policies  []PolicyDocument
	CreatedAt time.Time
}

// matchPath reports whether path satisfies pattern:
//   - "*" matches everything
//   - a pattern without "*" must match exactly
//   - "prefix/*" matches anything below prefix
//   - otherwise each "*" matches exactly one segment
func matchPath(pattern, path string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return pattern == path
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && !strings.Contains(prefix, "*") {
		return strings.HasPrefix(path, prefix+"/")
	}

	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")
	if len(patternParts) != len(pathParts) {
		return false
	}
	for i, part := range patternParts {
		if part != "*" && part != pathParts[i] {
			return false
		}
	}
	return true
}

// IsAllowed reports whether any policy matching path grants capability.
// Matching is case-sensitive.
func (c *Client) IsAllowed(path string, capability Capability) bool {
	if path == "" || capability == "" {
		return false
	}
	for _, policy := range c.Policies {
		if matchPath(policy.Path, path) && slices.Contains(policy.Capabilities, capability) {
			return true
		}
	}
	return false
}

// CreateClientInput holds the fields of a new client. The secret is generated.
type CreateClientInput struct {
	Name     string
	IsActive bool
	Policies []PolicyDocument
}

// CreateClientOutput is returned once at creation. PlainSecret is never stored.
type CreateClientOutput struct {
	ID          uuid.UUID
	PlainSecret string
}

// Token renders the bearer credential "<clientId>.<secret>".
func (o *CreateClientOutput) Token() string {
	return o.ID.String() + "." + o.PlainSecret
}

// UpdateClientInput holds the mutable fields of a client.
type UpdateClientInput struct {
	Name     string
	IsActive bool
	Policies []PolicyDocument
}
