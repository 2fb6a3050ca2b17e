// Package service implements envelope encryption on top of the HSM session manager:
// a fresh data key per operation, wrapped under a hardware-held master key.
package service

import (
	"context"

	"github.com/allisson/rotator/internal/hsm"
)

// SessionRunner runs work against a live HSM session. *hsm.SessionManager implements it.
type SessionRunner interface {
	WithSession(ctx context.Context, fn func(hsm.Session) error) error
}

// EnvelopeService encrypts and decrypts payloads with per-operation data keys.
type EnvelopeService interface {
	// Encrypt returns wrappedKey(40) || iv(16) || ciphertext+tag.
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)

	// Decrypt splits a blob by its fixed offsets and returns the plaintext.
	Decrypt(ctx context.Context, blob []byte) ([]byte, error)

	// SelfTest round-trips random data and deactivates the service on failure.
	SelfTest(ctx context.Context) error

	// IsActive reports whether the last self-test passed.
	IsActive() bool
}
