// Package dto provides data transfer objects for the secrets endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
	customValidation "github.com/allisson/rotator/internal/validation"
)

// EntryRequest is one key and value. Value is base64 encoded in JSON.
type EntryRequest struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Validate checks if the entry is valid.
func (e EntryRequest) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Key,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 255),
		),
		validation.Field(&e.Value, validation.Required),
	)
}

// UpsertSecretsRequest writes a new version of each entry under one scope.
type UpsertSecretsRequest struct {
	ProjectID   string         `json:"project_id"`
	Environment string         `json:"environment"`
	Path        string         `json:"path"`
	Entries     []EntryRequest `json:"entries"`
}

// Validate checks if the upsert request is valid.
func (r *UpsertSecretsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProjectID, validation.Required, customValidation.Slug),
		validation.Field(&r.Environment, validation.Required, customValidation.Slug),
		validation.Field(&r.Path, validation.Required, customValidation.SecretPath),
		validation.Field(&r.Entries, validation.Required, validation.Length(1, 100)),
	)
}

// Scope returns the addressed scope.
func (r *UpsertSecretsRequest) Scope() secretsDomain.Scope {
	return secretsDomain.Scope{ProjectID: r.ProjectID, Environment: r.Environment, Path: r.Path}
}

// ToEntries converts the request entries to domain entries.
func (r *UpsertSecretsRequest) ToEntries() []secretsDomain.Entry {
	entries := make([]secretsDomain.Entry, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, secretsDomain.Entry{Key: e.Key, Value: e.Value})
	}
	return entries
}
