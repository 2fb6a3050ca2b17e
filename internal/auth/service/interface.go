// Package service provides technical services for client authentication: secret
// generation, Argon2id hashing and bearer token parsing.
package service

import "github.com/google/uuid"

// SecretService defines operations for client secret generation and validation.
type SecretService interface {
	// GenerateSecret returns a random secret and its hash. The plain secret is shown
	// once and never stored.
	GenerateSecret() (plainSecret string, hashedSecret string, err error)

	// HashSecret hashes a plain secret.
	HashSecret(plainSecret string) (hashedSecret string, err error)

	// CompareSecret reports whether plainSecret matches hashedSecret in constant time.
	CompareSecret(plainSecret string, hashedSecret string) bool
}

// TokenParser splits a bearer credential "<clientId>.<secret>".
type TokenParser interface {
	ParseToken(token string) (clientID uuid.UUID, secret string, err error)
}

// CredentialService combines secret handling and token parsing.
type CredentialService interface {
	SecretService
	TokenParser
}
