package service

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/allisson/go-pwdhash"
	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	apperrors "github.com/allisson/rotator/internal/errors"
)

// secretSize is the number of random bytes in a generated client secret.
const secretSize = 32

// secretService implements SecretService and TokenParser using Argon2id.
type secretService struct {
	hasher *pwdhash.PasswordHasher
}

func (s *secretService) GenerateSecret() (string, string, error) {
	raw := make([]byte, secretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate random secret")
	}

	// RawURLEncoding keeps the secret free of "." so tokens split unambiguously.
	plainSecret := base64.RawURLEncoding.EncodeToString(raw)
	hashedSecret, err := s.HashSecret(plainSecret)
	if err != nil {
		return "", "", err
	}
	return plainSecret, hashedSecret, nil
}

func (s *secretService) HashSecret(plainSecret string) (string, error) {
	hashed, err := s.hasher.Hash([]byte(plainSecret))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash secret")
	}
	return hashed, nil
}

func (s *secretService) CompareSecret(plainSecret string, hashedSecret string) bool {
	ok, err := s.hasher.Verify([]byte(plainSecret), hashedSecret)
	return err == nil && ok
}

// ParseToken splits "<clientId>.<secret>". Any malformed token yields ErrInvalidCredentials.
func (s *secretService) ParseToken(token string) (uuid.UUID, string, error) {
	rawID, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return uuid.Nil, "", authDomain.ErrInvalidCredentials
	}
	clientID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", authDomain.ErrInvalidCredentials
	}
	return clientID, secret, nil
}

// NewSecretService creates the Argon2id secret service with the moderate policy.
func NewSecretService() CredentialService {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		// Only an invalid built-in policy can fail here.
		panic(err)
	}
	return &secretService{hasher: hasher}
}
