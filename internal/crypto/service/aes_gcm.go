package service

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	cryptoDomain "github.com/allisson/rotator/internal/crypto/domain"
)

// AESGCMCipher performs AES-256-GCM with a caller-supplied initialization vector.
//
// Envelope blobs carry a 16-byte IV (not the 12-byte GCM default), matching what
// hardware modules produce for CKM_AES_GCM. The IV size is therefore chosen at
// construction and enforced on every call.
//
// Security properties:
//   - 256-bit key size
//   - 16-byte authentication tag appended to the ciphertext
//   - The IV must never repeat under the same key; every envelope operation uses a
//     fresh data key, so a fresh random IV per call is sufficient
//
// Thread safety:
//
//	The cipher instance is stateless and safe for concurrent use.
type AESGCMCipher struct {
	aead   cipher.AEAD
	ivSize int
}

// NewAESGCM creates an AES-256-GCM cipher accepting IVs of ivSize bytes.
//
// Parameters:
//   - key: A 32-byte (256-bit) encryption key
//   - ivSize: The IV length every Seal/Open call must use
//
// Returns:
//   - A cipher ready for encryption/decryption
//   - ErrInvalidKeySize if the key is not 32 bytes
func NewAESGCM(key []byte, ivSize int) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.DataKeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead, ivSize: ivSize}, nil
}

// Seal encrypts plaintext under iv and returns ciphertext with the tag appended.
func (a *AESGCMCipher) Seal(iv, plaintext, aad []byte) ([]byte, error) {
	if len(iv) != a.ivSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", cryptoDomain.ErrEncryptionFailed, a.ivSize)
	}
	return a.aead.Seal(nil, iv, plaintext, aad), nil
}

// Open verifies the tag and decrypts. No plaintext is returned when verification fails.
func (a *AESGCMCipher) Open(iv, ciphertext, aad []byte) ([]byte, error) {
	if len(iv) != a.ivSize {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	plaintext, err := a.aead.Open(nil, iv, ciphertext, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
