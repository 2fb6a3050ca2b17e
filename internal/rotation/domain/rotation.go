package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a rotation definition.
type Status string

const (
	// StatusCreated is a definition that has never issued a credential.
	StatusCreated Status = "created"
	// StatusActive is a definition with a live credential set.
	StatusActive Status = "active"
	// StatusRotating is a definition with a rotation in flight.
	StatusRotating Status = "rotating"
)

// Rotation is a rotation definition and its current state.
type Rotation struct {
	ID          uuid.UUID
	ProjectID   string
	Environment string
	// SecretPath is the folder in the secrets store that receives the mapped values.
	SecretPath   string
	Name         string
	Kind         Kind
	ConnectionID uuid.UUID
	// Parameters and SecretsMapping are kind-specific JSON validated by DecodeConfig.
	Parameters     json.RawMessage
	SecretsMapping json.RawMessage
	Status         Status
	// EncryptedCredentials is the envelope blob of the CredentialSet; empty while created.
	EncryptedCredentials []byte
	// PendingIssue is the display name of an issuance whose remote outcome is unknown.
	PendingIssue     string
	AutoRotate       bool
	RotationInterval time.Duration
	LastRotatedAt    *time.Time
	NextRotationAt   *time.Time
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Config decodes the kind-specific configuration.
func (r *Rotation) Config() (Config, error) {
	return DecodeConfig(r.Kind, r.Parameters, r.SecretsMapping)
}

// MarkRotated records a successful rotation at now and schedules the next one.
func (r *Rotation) MarkRotated(now time.Time) {
	r.Status = StatusActive
	r.PendingIssue = ""
	r.LastRotatedAt = &now
	r.Schedule(now)
}

// Schedule computes NextRotationAt from now. Definitions without auto rotation have none.
func (r *Rotation) Schedule(now time.Time) {
	if !r.AutoRotate || r.RotationInterval <= 0 {
		r.NextRotationAt = nil
		return
	}
	next := now.Add(r.RotationInterval)
	r.NextRotationAt = &next
}

// DisplayName builds the remote name of a credential issued at now.
func (r *Rotation) DisplayName(now time.Time) string {
	return r.Name + "-" + now.UTC().Format("20060102T150405Z")
}

// CreateRotationInput holds the fields of a new rotation definition.
type CreateRotationInput struct {
	ProjectID        string
	Environment      string
	SecretPath       string
	Name             string
	Kind             Kind
	ConnectionID     uuid.UUID
	Parameters       json.RawMessage
	SecretsMapping   json.RawMessage
	AutoRotate       bool
	RotationInterval time.Duration
}

// UpdateRotationInput holds the mutable fields of a rotation definition. Nil fields are
// left unchanged. Kind is never mutable.
type UpdateRotationInput struct {
	Parameters       json.RawMessage
	SecretsMapping   json.RawMessage
	AutoRotate       *bool
	RotationInterval *time.Duration
}

// CreateConnectionInput holds the fields of a new connection. Credentials is the
// plaintext kind-specific JSON.
type CreateConnectionInput struct {
	ProjectID   string
	Kind        Kind
	Name        string
	Credentials json.RawMessage
}

// RotationResult reports the outcome of a rotation. RevokeError is set when the new
// credential is live but the previous one could not be revoked.
type RotationResult struct {
	Rotation    *Rotation
	RevokeError error
}
