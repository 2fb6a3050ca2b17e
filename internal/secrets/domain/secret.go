// Package domain defines the core domain models and types for secret management.
// Secrets are versioned per scope and key: every write creates a new row with an
// incremented version and the latest version wins on read.
package domain

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scope addresses a folder of secrets: a path inside a project environment.
type Scope struct {
	ProjectID   string
	Environment string
	Path        string
}

// Validate checks the scope fields. Path must be absolute and must not end with a slash
// unless it is the root.
func (s Scope) Validate() error {
	if s.ProjectID == "" || s.Environment == "" {
		return ErrInvalidScope
	}
	if !strings.HasPrefix(s.Path, "/") {
		return ErrInvalidScope
	}
	if len(s.Path) > 1 && strings.HasSuffix(s.Path, "/") {
		return ErrInvalidScope
	}
	return nil
}

// Entry is a key and plaintext value submitted for a write.
type Entry struct {
	Key   string
	Value []byte
}

// LogValue keeps values out of logs.
func (e Entry) LogValue() slog.Value {
	return slog.GroupValue(slog.String("key", e.Key), slog.String("value", "[REDACTED]"))
}

// ValidateEntries rejects empty and duplicated keys.
func ValidateEntries(entries []Entry) error {
	if len(entries) == 0 {
		return ErrInvalidEntry
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Key == "" {
			return ErrInvalidEntry
		}
		if _, ok := seen[entry.Key]; ok {
			return ErrInvalidEntry
		}
		seen[entry.Key] = struct{}{}
	}
	return nil
}

// Secret is one version of an encrypted secret value.
type Secret struct {
	ID          uuid.UUID
	ProjectID   string
	Environment string
	Path        string
	Key         string
	// Version is the monotonically increasing version number for the scope and key.
	Version uint
	// Ciphertext is the envelope blob of the value.
	Ciphertext []byte
	// Plaintext holds the decrypted value in memory only; must be zeroed after use.
	Plaintext []byte `json:"-"`
	CreatedBy string
	CreatedAt time.Time
}

// Scope returns the scope the secret belongs to.
func (s *Secret) Scope() Scope {
	return Scope{ProjectID: s.ProjectID, Environment: s.Environment, Path: s.Path}
}
