// Package hsm manages the single cryptographic session the service holds against a
// hardware security module and exposes the PKCS#11 operations envelope encryption needs.
package hsm

import (
	"github.com/allisson/rotator/internal/errors"
)

// SessionHandle identifies an open session inside the module.
type SessionHandle uint

// ObjectHandle identifies a key object inside the module.
type ObjectHandle uint

// Module is the subset of a PKCS#11 token used by the service. Implementations are not
// required to be safe for concurrent use; SessionManager serializes every call.
type Module interface {
	// TokenPresent reports whether the configured slot holds a token.
	TokenPresent() (bool, error)
	// OpenSession opens a read/write serial session.
	OpenSession() (SessionHandle, error)
	// Login authenticates the session as the normal user. It returns an error wrapping
	// ErrAlreadyLoggedIn when the token already has a logged-in user.
	Login(session SessionHandle, pin string) error
	Logout(session SessionHandle) error
	CloseSession(session SessionHandle) error

	GenerateRandom(session SessionHandle, length int) ([]byte, error)
	// FindKeyByLabel returns the secret key carrying label or an error wrapping ErrKeyNotFound.
	FindKeyByLabel(session SessionHandle, label string) (ObjectHandle, error)
	// GenerateDataKey creates an extractable, session-scoped AES-256 key.
	GenerateDataKey(session SessionHandle) (ObjectHandle, error)
	// WrapKey wraps key under wrappingKey with AES-KEY-WRAP-PAD.
	WrapKey(session SessionHandle, wrappingKey, key ObjectHandle) ([]byte, error)
	// UnwrapKey imports a wrapped AES-256 key as a session object.
	UnwrapKey(session SessionHandle, unwrappingKey ObjectHandle, wrapped []byte) (ObjectHandle, error)
	EncryptGCM(session SessionHandle, key ObjectHandle, iv, plaintext []byte) ([]byte, error)
	DecryptGCM(session SessionHandle, key ObjectHandle, iv, ciphertext []byte) ([]byte, error)
	DestroyObject(session SessionHandle, object ObjectHandle) error

	// Finalize releases the module library.
	Finalize() error
}

// Module error definitions.
var (
	// ErrAlreadyLoggedIn is the one login failure treated as success.
	ErrAlreadyLoggedIn = errors.New("hsm user already logged in")

	// ErrTokenNotPresent indicates the configured slot reports no token.
	ErrTokenNotPresent = errors.Wrap(errors.ErrCrypto, "hsm token not present")

	// ErrKeyNotFound indicates no key object matched the lookup.
	ErrKeyNotFound = errors.Wrap(errors.ErrCrypto, "hsm key not found")

	// ErrSessionInvalid indicates the module no longer recognizes the session handle.
	ErrSessionInvalid = errors.Wrap(errors.ErrCrypto, "hsm session invalid")

	// ErrPinIncorrect indicates the login PIN was rejected.
	ErrPinIncorrect = errors.Wrap(errors.ErrCrypto, "hsm pin incorrect")
)
