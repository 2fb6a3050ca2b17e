// Package softhsm provides an in-process hsm.Module for development and tests.
//
// Key material never sits in plain Go memory between calls: master keys and session
// keys live in memguard enclaves and are opened only for the duration of a single
// operation. Key wrapping uses AES-KWP (RFC 5649) so blobs produced here have exactly
// the layout a hardware module emits.
package softhsm

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/tink-crypto/tink-go/v2/kwp/subtle"

	cryptoDomain "github.com/allisson/rotator/internal/crypto/domain"
	cryptoService "github.com/allisson/rotator/internal/crypto/service"
	"github.com/allisson/rotator/internal/errors"
	"github.com/allisson/rotator/internal/hsm"
)

// keyObject is a secret key stored inside the module.
type keyObject struct {
	label   string
	enclave *memguard.Enclave
	// owner is the session that created the object; zero for token objects.
	owner hsm.SessionHandle
}

// Module emulates a single-slot PKCS#11 token.
type Module struct {
	mu sync.Mutex

	pin          string
	tokenPresent bool
	loggedIn     bool

	sessions   map[hsm.SessionHandle]struct{}
	objects    map[hsm.ObjectHandle]*keyObject
	nextHandle uint
}

// New creates an empty token protected by pin.
func New(pin string) *Module {
	return &Module{
		pin:          pin,
		tokenPresent: true,
		sessions:     make(map[hsm.SessionHandle]struct{}),
		objects:      make(map[hsm.ObjectHandle]*keyObject),
	}
}

// Load creates a token whose master key is delivered encrypted by an external KMS.
// encodedKey is the base64 ciphertext produced by keeper.Encrypt over the raw 32-byte key.
func Load(
	ctx context.Context,
	keeper cryptoDomain.KMSKeeper,
	label string,
	encodedKey string,
	pin string,
) (*Module, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}

	key, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt master key: %w", err)
	}
	defer cryptoDomain.Zero(key)

	module := New(pin)
	if err := module.ImportKey(label, key); err != nil {
		return nil, err
	}
	return module, nil
}

// ImportKey stores a persistent 32-byte secret key under label. key is wiped.
func (m *Module) ImportKey(label string, key []byte) error {
	if len(key) != cryptoDomain.DataKeySize {
		return cryptoDomain.ErrInvalidKeySize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.storeLocked(label, key, 0)
	return nil
}

// GenerateKey creates a random persistent master key under label.
func (m *Module) GenerateKey(label string) error {
	key := make([]byte, cryptoDomain.DataKeySize)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	return m.ImportKey(label, key)
}

// SetTokenPresent simulates token insertion and removal.
func (m *Module) SetTokenPresent(present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenPresent = present
}

// storeLocked moves key into an enclave and returns its handle. Callers must hold m.mu.
func (m *Module) storeLocked(label string, key []byte, owner hsm.SessionHandle) hsm.ObjectHandle {
	m.nextHandle++
	handle := hsm.ObjectHandle(m.nextHandle)
	m.objects[handle] = &keyObject{
		label:   label,
		enclave: memguard.NewEnclave(key),
		owner:   owner,
	}
	return handle
}

// checkSession validates the session and login state. Callers must hold m.mu.
func (m *Module) checkSession(session hsm.SessionHandle) error {
	if _, ok := m.sessions[session]; !ok {
		return hsm.ErrSessionInvalid
	}
	if !m.tokenPresent {
		return hsm.ErrTokenNotPresent
	}
	return nil
}

// openKey returns the key bytes for handle inside a locked buffer the caller must destroy.
func (m *Module) openKey(handle hsm.ObjectHandle) (*memguard.LockedBuffer, error) {
	obj, ok := m.objects[handle]
	if !ok {
		return nil, hsm.ErrKeyNotFound
	}
	buf, err := obj.enclave.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCrypto, "failed to open key enclave")
	}
	return buf, nil
}

// TokenPresent reports whether the token is inserted.
func (m *Module) TokenPresent() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenPresent, nil
}

// OpenSession opens a new, logged-out session on the token.
func (m *Module) OpenSession() (hsm.SessionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.tokenPresent {
		return 0, hsm.ErrTokenNotPresent
	}

	m.nextHandle++
	handle := hsm.SessionHandle(m.nextHandle)
	m.sessions[handle] = struct{}{}
	return handle, nil
}

// Login follows PKCS#11 semantics: login state belongs to the token, so a second
// login from any session reports ErrAlreadyLoggedIn.
func (m *Module) Login(session hsm.SessionHandle, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return err
	}
	if m.loggedIn {
		return hsm.ErrAlreadyLoggedIn
	}
	if pin != m.pin {
		return hsm.ErrPinIncorrect
	}
	m.loggedIn = true
	return nil
}

// Logout ends the token login started through session.
func (m *Module) Logout(session hsm.SessionHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return err
	}
	m.loggedIn = false
	return nil
}

// CloseSession destroys the session and every object it created.
func (m *Module) CloseSession(session hsm.SessionHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session]; !ok {
		return hsm.ErrSessionInvalid
	}
	delete(m.sessions, session)

	for handle, obj := range m.objects {
		if obj.owner == session {
			delete(m.objects, handle)
		}
	}
	if len(m.sessions) == 0 {
		m.loggedIn = false
	}
	return nil
}

// GenerateRandom returns length bytes from crypto/rand.
func (m *Module) GenerateRandom(session hsm.SessionHandle, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// FindKeyByLabel returns the handle of the persistent key stored under label.
func (m *Module) FindKeyByLabel(session hsm.SessionHandle, label string) (hsm.ObjectHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return 0, err
	}

	for handle, obj := range m.objects {
		if obj.owner == 0 && obj.label == label {
			return handle, nil
		}
	}
	return 0, fmt.Errorf("%w: label %q", hsm.ErrKeyNotFound, label)
}

// GenerateDataKey creates a random data key owned by session.
func (m *Module) GenerateDataKey(session hsm.SessionHandle) (hsm.ObjectHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return 0, err
	}

	key := make([]byte, cryptoDomain.DataKeySize)
	if _, err := rand.Read(key); err != nil {
		return 0, err
	}
	return m.storeLocked("", key, session), nil
}

// WrapKey wraps key under wrappingKey with AES-KWP.
func (m *Module) WrapKey(session hsm.SessionHandle, wrappingKey, key hsm.ObjectHandle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return nil, err
	}

	kek, err := m.openKey(wrappingKey)
	if err != nil {
		return nil, err
	}
	defer kek.Destroy()

	target, err := m.openKey(key)
	if err != nil {
		return nil, err
	}
	defer target.Destroy()

	kwp, err := subtle.NewKWP(kek.Bytes())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCrypto, err.Error())
	}
	return kwp.Wrap(target.Bytes())
}

// UnwrapKey unwraps an AES-KWP blob into a key owned by session.
func (m *Module) UnwrapKey(
	session hsm.SessionHandle,
	unwrappingKey hsm.ObjectHandle,
	wrapped []byte,
) (hsm.ObjectHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return 0, err
	}

	kek, err := m.openKey(unwrappingKey)
	if err != nil {
		return 0, err
	}
	defer kek.Destroy()

	kwp, err := subtle.NewKWP(kek.Bytes())
	if err != nil {
		return 0, errors.Wrap(errors.ErrCrypto, err.Error())
	}

	key, err := kwp.Unwrap(wrapped)
	if err != nil {
		return 0, cryptoDomain.ErrDecryptionFailed
	}
	if len(key) != cryptoDomain.DataKeySize {
		cryptoDomain.Zero(key)
		return 0, cryptoDomain.ErrInvalidKeySize
	}
	return m.storeLocked("", key, session), nil
}

// EncryptGCM seals plaintext with AES-GCM under key and iv.
func (m *Module) EncryptGCM(session hsm.SessionHandle, key hsm.ObjectHandle, iv, plaintext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return nil, err
	}

	buf, err := m.openKey(key)
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	gcm, err := cryptoService.NewAESGCM(buf.Bytes(), len(iv))
	if err != nil {
		return nil, err
	}
	return gcm.Seal(iv, plaintext, nil)
}

// DecryptGCM opens ciphertext sealed by EncryptGCM.
func (m *Module) DecryptGCM(session hsm.SessionHandle, key hsm.ObjectHandle, iv, ciphertext []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return nil, err
	}

	buf, err := m.openKey(key)
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	gcm, err := cryptoService.NewAESGCM(buf.Bytes(), len(iv))
	if err != nil {
		return nil, err
	}
	return gcm.Open(iv, ciphertext, nil)
}

// DestroyObject removes a key object from the token.
func (m *Module) DestroyObject(session hsm.SessionHandle, object hsm.ObjectHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSession(session); err != nil {
		return err
	}
	if _, ok := m.objects[object]; !ok {
		return hsm.ErrKeyNotFound
	}
	delete(m.objects, object)
	return nil
}

// ObjectCount returns the number of key objects held, persistent and session-scoped.
func (m *Module) ObjectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Finalize drops every session and key object and resets the login state.
func (m *Module) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[hsm.SessionHandle]struct{})
	m.objects = make(map[hsm.ObjectHandle]*keyObject)
	m.loggedIn = false
	return nil
}
