package factory

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const passwordChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// generatePassword returns a cryptographically secure random password over [A-Za-z0-9].
// The alphabet needs no quoting in SQL literals or chpasswd input.
func generatePassword(length int) (string, error) {
	if length < 1 {
		return "", errors.New("length must be at least 1")
	}
	if length > 255 {
		return "", errors.New("length must not exceed 255")
	}

	password := make([]byte, length)
	charsLen := big.NewInt(int64(len(passwordChars)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, charsLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random character: %w", err)
		}
		password[i] = passwordChars[n.Int64()]
	}

	return string(password), nil
}
