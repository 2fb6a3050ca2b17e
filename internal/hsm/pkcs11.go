package hsm

import (
	"errors"
	"fmt"

	"github.com/miekg/pkcs11"
)

// gcmTagBits is the AES-GCM tag length requested from the module.
const gcmTagBits = 128

type pkcs11Module struct {
	ctx  *pkcs11.Ctx
	slot uint
}

// NewPKCS11Module loads the vendor PKCS#11 library at libPath and binds it to slot.
func NewPKCS11Module(libPath string, slot uint) (Module, error) {
	ctx := pkcs11.New(libPath)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load pkcs11 library %q", libPath)
	}

	if err := ctx.Initialize(); err != nil && !isCode(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
		ctx.Destroy()
		return nil, fmt.Errorf("failed to initialize pkcs11 library: %w", err)
	}

	return &pkcs11Module{ctx: ctx, slot: slot}, nil
}

// isCode reports whether err is the PKCS#11 return value code.
func isCode(err error, code uint) bool {
	var p11Err pkcs11.Error
	return errors.As(err, &p11Err) && uint(p11Err) == code
}

// translate maps PKCS#11 return values onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isCode(err, pkcs11.CKR_SESSION_HANDLE_INVALID), isCode(err, pkcs11.CKR_SESSION_CLOSED):
		return fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	case isCode(err, pkcs11.CKR_TOKEN_NOT_PRESENT):
		return fmt.Errorf("%w: %v", ErrTokenNotPresent, err)
	case isCode(err, pkcs11.CKR_PIN_INCORRECT):
		return fmt.Errorf("%w: %v", ErrPinIncorrect, err)
	default:
		return err
	}
}

func (m *pkcs11Module) TokenPresent() (bool, error) {
	info, err := m.ctx.GetSlotInfo(m.slot)
	if err != nil {
		return false, translate(err)
	}
	return info.Flags&pkcs11.CKF_TOKEN_PRESENT != 0, nil
}

func (m *pkcs11Module) OpenSession() (SessionHandle, error) {
	sh, err := m.ctx.OpenSession(m.slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return 0, translate(err)
	}
	return SessionHandle(sh), nil
}

func (m *pkcs11Module) Login(session SessionHandle, pin string) error {
	err := m.ctx.Login(pkcs11.SessionHandle(session), pkcs11.CKU_USER, pin)
	if isCode(err, pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
		return ErrAlreadyLoggedIn
	}
	return translate(err)
}

func (m *pkcs11Module) Logout(session SessionHandle) error {
	return translate(m.ctx.Logout(pkcs11.SessionHandle(session)))
}

func (m *pkcs11Module) CloseSession(session SessionHandle) error {
	return translate(m.ctx.CloseSession(pkcs11.SessionHandle(session)))
}

func (m *pkcs11Module) GenerateRandom(session SessionHandle, length int) ([]byte, error) {
	buf, err := m.ctx.GenerateRandom(pkcs11.SessionHandle(session), length)
	return buf, translate(err)
}

func (m *pkcs11Module) FindKeyByLabel(session SessionHandle, label string) (ObjectHandle, error) {
	sh := pkcs11.SessionHandle(session)
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}

	if err := m.ctx.FindObjectsInit(sh, template); err != nil {
		return 0, translate(err)
	}
	objects, _, err := m.ctx.FindObjects(sh, 1)
	finalErr := m.ctx.FindObjectsFinal(sh)
	if err != nil {
		return 0, translate(err)
	}
	if finalErr != nil {
		return 0, translate(finalErr)
	}
	if len(objects) == 0 {
		return 0, fmt.Errorf("%w: label %q", ErrKeyNotFound, label)
	}

	return ObjectHandle(objects[0]), nil
}

// dataKeyTemplate describes a non-persistent AES-256 key that may leave the module only wrapped.
func dataKeyTemplate() []*pkcs11.Attribute {
	return []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_AES),
		pkcs11.NewAttribute(pkcs11.CKA_VALUE_LEN, 32),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, true),
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
	}
}

func (m *pkcs11Module) GenerateDataKey(session SessionHandle) (ObjectHandle, error) {
	key, err := m.ctx.GenerateKey(
		pkcs11.SessionHandle(session),
		[]*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_KEY_GEN, nil)},
		dataKeyTemplate(),
	)
	if err != nil {
		return 0, translate(err)
	}
	return ObjectHandle(key), nil
}

func (m *pkcs11Module) WrapKey(session SessionHandle, wrappingKey, key ObjectHandle) ([]byte, error) {
	wrapped, err := m.ctx.WrapKey(
		pkcs11.SessionHandle(session),
		[]*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_KEY_WRAP_PAD, nil)},
		pkcs11.ObjectHandle(wrappingKey),
		pkcs11.ObjectHandle(key),
	)
	return wrapped, translate(err)
}

func (m *pkcs11Module) UnwrapKey(
	session SessionHandle,
	unwrappingKey ObjectHandle,
	wrapped []byte,
) (ObjectHandle, error) {
	key, err := m.ctx.UnwrapKey(
		pkcs11.SessionHandle(session),
		[]*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_KEY_WRAP_PAD, nil)},
		pkcs11.ObjectHandle(unwrappingKey),
		wrapped,
		dataKeyTemplate(),
	)
	if err != nil {
		return 0, translate(err)
	}
	return ObjectHandle(key), nil
}

func (m *pkcs11Module) EncryptGCM(session SessionHandle, key ObjectHandle, iv, plaintext []byte) ([]byte, error) {
	sh := pkcs11.SessionHandle(session)
	params := pkcs11.NewGCMParams(iv, nil, gcmTagBits)
	defer params.Free()

	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_GCM, params)}
	if err := m.ctx.EncryptInit(sh, mech, pkcs11.ObjectHandle(key)); err != nil {
		return nil, translate(err)
	}
	ciphertext, err := m.ctx.Encrypt(sh, plaintext)
	return ciphertext, translate(err)
}

func (m *pkcs11Module) DecryptGCM(session SessionHandle, key ObjectHandle, iv, ciphertext []byte) ([]byte, error) {
	sh := pkcs11.SessionHandle(session)
	params := pkcs11.NewGCMParams(iv, nil, gcmTagBits)
	defer params.Free()

	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_GCM, params)}
	if err := m.ctx.DecryptInit(sh, mech, pkcs11.ObjectHandle(key)); err != nil {
		return nil, translate(err)
	}
	plaintext, err := m.ctx.Decrypt(sh, ciphertext)
	return plaintext, translate(err)
}

func (m *pkcs11Module) DestroyObject(session SessionHandle, object ObjectHandle) error {
	return translate(m.ctx.DestroyObject(pkcs11.SessionHandle(session), pkcs11.ObjectHandle(object)))
}

func (m *pkcs11Module) Finalize() error {
	err := m.ctx.Finalize()
	m.ctx.Destroy()
	return err
}
