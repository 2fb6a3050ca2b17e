package domain

import (
	"fmt"
)

// EncryptedBlob is the persisted form of envelope-encrypted data.
//
// Layout on disk and in the database:
//
//	wrappedKey (40 bytes) | iv (16 bytes) | ciphertext+tag (N bytes)
//
// The layout is part of the storage contract and must not change; rows written by
// earlier releases are decrypted with the same offsets.
type EncryptedBlob struct {
	WrappedKey []byte
	IV         []byte
	Ciphertext []byte
}

// NewEncryptedBlob validates the component sizes and assembles a blob.
func NewEncryptedBlob(wrappedKey, iv, ciphertext []byte) (*EncryptedBlob, error) {
	if len(wrappedKey) != WrappedKeySize {
		return nil, fmt.Errorf("%w: wrapped key is %d bytes", ErrInvalidBlob, len(wrappedKey))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes", ErrInvalidBlob, len(iv))
	}
	if len(ciphertext) < TagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", ErrInvalidBlob)
	}
	return &EncryptedBlob{WrappedKey: wrappedKey, IV: iv, Ciphertext: ciphertext}, nil
}

// ParseEncryptedBlob splits raw bytes by the fixed offsets. The returned slices alias data.
func ParseEncryptedBlob(data []byte) (*EncryptedBlob, error) {
	if len(data) < MinBlobSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBlob, len(data))
	}

	return &EncryptedBlob{
		WrappedKey: data[:WrappedKeySize],
		IV:         data[WrappedKeySize : WrappedKeySize+IVSize],
		Ciphertext: data[WrappedKeySize+IVSize:],
	}, nil
}

// Bytes serializes the blob as wrappedKey || iv || ciphertext.
func (b *EncryptedBlob) Bytes() []byte {
	out := make([]byte, 0, len(b.WrappedKey)+len(b.IV)+len(b.Ciphertext))
	out = append(out, b.WrappedKey...)
	out = append(out, b.IV...)
	out = append(out, b.Ciphertext...)
	return out
}
