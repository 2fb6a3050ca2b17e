package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync/atomic"

	cryptoDomain "github.com/allisson/rotator/internal/crypto/domain"
	"github.com/allisson/rotator/internal/errors"
	"github.com/allisson/rotator/internal/hsm"
)

// selfTestSize is the length of the random plaintext used by SelfTest.
const selfTestSize = 64

type envelopeService struct {
	sessions       SessionRunner
	masterKeyLabel string
	logger         *slog.Logger
	active         atomic.Bool
}

// NewEnvelopeService creates an envelope encryption service. The service starts active;
// a failed SelfTest deactivates it.
func NewEnvelopeService(sessions SessionRunner, masterKeyLabel string, logger *slog.Logger) EnvelopeService {
	s := &envelopeService{
		sessions:       sessions,
		masterKeyLabel: masterKeyLabel,
		logger:         logger,
	}
	s.active.Store(true)
	return s
}

// findMasterKey looks the master key up by label. It is called on every operation so an
// externally rotated key is picked up without restarting.
func (s *envelopeService) findMasterKey(sess hsm.Session) (hsm.ObjectHandle, error) {
	handle, err := sess.FindKeyByLabel(s.masterKeyLabel)
	if err != nil {
		if errors.Is(err, hsm.ErrKeyNotFound) {
			return 0, fmt.Errorf("%w: %w", cryptoDomain.ErrMasterKeyNotFound, err)
		}
		return 0, fmt.Errorf("%w: %w", cryptoDomain.ErrEncryptionFailed, err)
	}
	return handle, nil
}

// destroy releases a session-scoped key object.
func (s *envelopeService) destroy(sess hsm.Session, key hsm.ObjectHandle) {
	if err := sess.DestroyObject(key); err != nil {
		s.logger.Warn("failed to destroy data key", slog.Any("error", err))
	}
}

// Encrypt generates a fresh IV and data key, wraps the key under the master key and
// seals plaintext with AES-GCM. The data key never leaves the module unwrapped.
func (s *envelopeService) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if !s.IsActive() {
		return nil, cryptoDomain.ErrEncryptionInactive
	}
	return s.seal(ctx, plaintext)
}

func (s *envelopeService) seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	var out []byte
	err := s.sessions.WithSession(ctx, func(sess hsm.Session) error {
		masterKey, err := s.findMasterKey(sess)
		if err != nil {
			return err
		}

		iv, err := sess.GenerateRandom(cryptoDomain.IVSize)
		if err != nil {
			return fmt.Errorf("%w: %w", cryptoDomain.ErrEncryptionFailed, err)
		}

		dataKey, err := sess.GenerateDataKey()
		if err != nil {
			return fmt.Errorf("%w: %w", cryptoDomain.ErrEncryptionFailed, err)
		}
		defer s.destroy(sess, dataKey)

		wrapped, err := sess.WrapKey(masterKey, dataKey)
		if err != nil {
			return fmt.Errorf("%w: %w", cryptoDomain.ErrEncryptionFailed, err)
		}

		ciphertext, err := sess.EncryptGCM(dataKey, iv, plaintext)
		if err != nil {
			return fmt.Errorf("%w: %w", cryptoDomain.ErrEncryptionFailed, err)
		}

		blob, err := cryptoDomain.NewEncryptedBlob(wrapped, iv, ciphertext)
		if err != nil {
			return err
		}
		out = blob.Bytes()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Decrypt unwraps the blob's data key under the master key and opens the ciphertext.
func (s *envelopeService) Decrypt(ctx context.Context, data []byte) ([]byte, error) {
	if !s.IsActive() {
		return nil, cryptoDomain.ErrEncryptionInactive
	}
	return s.open(ctx, data)
}

func (s *envelopeService) open(ctx context.Context, data []byte) ([]byte, error) {
	blob, err := cryptoDomain.ParseEncryptedBlob(data)
	if err != nil {
		return nil, err
	}

	var plaintext []byte
	err = s.sessions.WithSession(ctx, func(sess hsm.Session) error {
		masterKey, err := s.findMasterKey(sess)
		if err != nil {
			return err
		}

		dataKey, err := sess.UnwrapKey(masterKey, blob.WrappedKey)
		if err != nil {
			return fmt.Errorf("%w: %w", cryptoDomain.ErrDecryptionFailed, err)
		}
		defer s.destroy(sess, dataKey)

		plaintext, err = sess.DecryptGCM(dataKey, blob.IV, blob.Ciphertext)
		if err != nil {
			return fmt.Errorf("%w: %w", cryptoDomain.ErrDecryptionFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// SelfTest encrypts and decrypts random data and compares the result. A failure is
// logged and deactivates the service; the error is returned for callers that want it.
func (s *envelopeService) SelfTest(ctx context.Context) error {
	err := s.selfTest(ctx)
	if err != nil {
		s.active.Store(false)
		s.logger.Error("envelope encryption self-test failed, encryption disabled",
			slog.Any("error", err),
		)
		return err
	}

	s.active.Store(true)
	s.logger.Info("envelope encryption self-test passed",
		slog.String("master_key_label", s.masterKeyLabel),
	)
	return nil
}

func (s *envelopeService) selfTest(ctx context.Context) error {
	sample := make([]byte, selfTestSize)
	if _, err := rand.Read(sample); err != nil {
		return err
	}

	// The round trip bypasses the active flag; callers stay rejected until it passes.
	blob, err := s.seal(ctx, sample)
	if err != nil {
		return err
	}
	decrypted, err := s.open(ctx, blob)
	if err != nil {
		return err
	}
	if !bytes.Equal(sample, decrypted) {
		return errors.Wrap(errors.ErrCrypto, "self-test round trip mismatch")
	}
	return nil
}

func (s *envelopeService) IsActive() bool {
	return s.active.Load()
}
