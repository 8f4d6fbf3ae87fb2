// Package secrets generates and verifies invitation tokens. The plaintext
// token leaves the process exactly once, inside the invitation notification;
// the store only ever sees the bcrypt hash.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "firmo/pkg/domain-errors"
)

// GenerateToken creates a cryptographically secure random invitation token,
// base64-encoded for safe embedding in links.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken creates a bcrypt hash of the token for storage.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "token is too long")
		}
		return "", fmt.Errorf("could not hash invitation token: %w", err)
	}
	return string(hashed), nil
}

// VerifyToken checks a plaintext token against a stored hash.
func VerifyToken(token, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidInput, "invalid invitation token")
		}
		return fmt.Errorf("could not verify invitation token: %w", err)
	}
	return nil
}
