// Package dto provides data transfer objects for the connection and rotation endpoints.
package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
	customValidation "github.com/allisson/rotator/internal/validation"
)

var kindRule = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := rotationDomain.ParseKind(s); err != nil {
		return validation.NewError("validation_kind", "must be one of service-token, database-user, unix-account")
	}
	return nil
})

var uuidRule = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
})

// CreateConnectionRequest registers a remote system. Credentials is the kind-specific
// JSON document; it is validated against the kind's schema by the use case.
type CreateConnectionRequest struct {
	ProjectID   string          `json:"project_id"`
	Kind        string          `json:"kind"`
	Name        string          `json:"name"`
	Credentials json.RawMessage `json:"credentials"`
}

// Validate checks if the create connection request is valid.
func (r *CreateConnectionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectID, validation.Required, customValidation.Slug),
		validation.Field(&r.Kind, validation.Required, kindRule),
		validation.Field(&r.Name, validation.Required, customValidation.NotBlank, validation.Length(1, 255)),
		validation.Field(&r.Credentials, validation.Required),
	)
}

// ToInput converts a validated request into the domain input.
func (r *CreateConnectionRequest) ToInput() *rotationDomain.CreateConnectionInput {
	kind, _ := rotationDomain.ParseKind(r.Kind)
	return &rotationDomain.CreateConnectionInput{
		ProjectID:   r.ProjectID,
		Kind:        kind,
		Name:        r.Name,
		Credentials: r.Credentials,
	}
}

// CreateRotationRequest defines a rotation.
type CreateRotationRequest struct {
	ProjectID        string          `json:"project_id"`
	Environment      string          `json:"environment"`
	SecretPath       string          `json:"secret_path"`
	Name             string          `json:"name"`
	Kind             string          `json:"kind"`
	ConnectionID     string          `json:"connection_id"`
	Parameters       json.RawMessage `json:"parameters"`
	SecretsMapping   json.RawMessage `json:"secrets_mapping"`
	AutoRotate       bool            `json:"auto_rotate"`
	RotationInterval string          `json:"rotation_interval"` // Go duration, e.g. "720h"
}

// Validate checks if the create rotation request is valid.
func (r *CreateRotationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectID, validation.Required, customValidation.Slug),
		validation.Field(&r.Environment, validation.Required, customValidation.Slug),
		validation.Field(&r.SecretPath, validation.Required, customValidation.SecretPath),
		validation.Field(&r.Name,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 128),
		),
		validation.Field(&r.Kind, validation.Required, kindRule),
		validation.Field(&r.ConnectionID, validation.Required, uuidRule),
		validation.Field(&r.Parameters, validation.Required),
		validation.Field(&r.SecretsMapping, validation.Required),
		validation.Field(&r.RotationInterval,
			validation.When(r.AutoRotate, validation.Required),
			customValidation.PositiveDuration,
		),
	)
}

// ToInput converts a validated request into the domain input.
func (r *CreateRotationRequest) ToInput() *rotationDomain.CreateRotationInput {
	kind, _ := rotationDomain.ParseKind(r.Kind)
	interval, _ := time.ParseDuration(r.RotationInterval)
	return &rotationDomain.CreateRotationInput{
		ProjectID:        r.ProjectID,
		Environment:      r.Environment,
		SecretPath:       r.SecretPath,
		Name:             r.Name,
		Kind:             kind,
		ConnectionID:     uuid.MustParse(r.ConnectionID),
		Parameters:       r.Parameters,
		SecretsMapping:   r.SecretsMapping,
		AutoRotate:       r.AutoRotate,
		RotationInterval: interval,
	}
}

// UpdateRotationRequest changes a definition. Omitted fields are left as they are.
type UpdateRotationRequest struct {
	Parameters       json.RawMessage `json:"parameters,omitempty"`
	SecretsMapping   json.RawMessage `json:"secrets_mapping,omitempty"`
	AutoRotate       *bool           `json:"auto_rotate,omitempty"`
	RotationInterval *string         `json:"rotation_interval,omitempty"`
}

// Validate checks if the update rotation request is valid.
func (r *UpdateRotationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RotationInterval, validation.NilOrNotEmpty, customValidation.PositiveDuration),
	)
}

// ToInput converts a validated request into the domain input.
func (r *UpdateRotationRequest) ToInput() *rotationDomain.UpdateRotationInput {
	input := &rotationDomain.UpdateRotationInput{
		Parameters:     r.Parameters,
		SecretsMapping: r.SecretsMapping,
		AutoRotate:     r.AutoRotate,
	}
	if r.RotationInterval != nil {
		interval, _ := time.ParseDuration(*r.RotationInterval)
		input.RotationInterval = &interval
	}
	return input
}
