package domain

import (
	"github.com/allisson/rotator/internal/errors"
)

// Cryptographic operation error definitions.
//
// All of them wrap errors.ErrCrypto so the HTTP layer answers with a generic
// internal error and never leaks which step failed.
var (
	// ErrInvalidBlob indicates a persisted blob is shorter than the fixed layout allows.
	ErrInvalidBlob = errors.Wrap(errors.ErrCrypto, "invalid encrypted blob")

	// ErrDecryptionFailed indicates the authentication tag did not verify or the
	// wrapped key could not be unwrapped.
	ErrDecryptionFailed = errors.Wrap(errors.ErrCrypto, "decryption failed")

	// ErrEncryptionFailed indicates the HSM refused to generate, wrap or encrypt.
	ErrEncryptionFailed = errors.Wrap(errors.ErrCrypto, "encryption failed")

	// ErrMasterKeyNotFound indicates no key with the configured label exists in the HSM.
	ErrMasterKeyNotFound = errors.Wrap(errors.ErrCrypto, "master key not found")

	// ErrEncryptionInactive indicates the startup self-test failed and the
	// encryption subsystem refuses to operate.
	ErrEncryptionInactive = errors.Wrap(errors.ErrCrypto, "encryption subsystem inactive")

	// ErrInvalidKeySize indicates a key of the wrong length was supplied.
	ErrInvalidKeySize = errors.Wrap(errors.ErrCrypto, "invalid key size")
)
