package domain

import "context"

// KMSKeeper is the subset of a gocloud.dev secrets keeper used to unwrap key material
// delivered encrypted by an external KMS. *secrets.Keeper satisfies it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
