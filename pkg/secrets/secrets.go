// Package secrets covers the two kinds of credential lockgate stores:
// bcrypt password hashes and SHA-256 digests of single-use reset tokens.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "lockgate/pkg/domain-errors"
)

// TokenBytes is the entropy of a reset token (256 bits).
const TokenBytes = 32

// NewToken returns a random URL-safe token for embedding in a reset link.
// Only its Digest is ever persisted.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Digest is the lookup key for a reset token: hex SHA-256 of the raw value.
// Tokens carry full entropy, so an unsalted fast hash is enough.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HashPassword bcrypts password at cost. Inputs over bcrypt's 72 byte limit
// are rejected rather than silently truncated.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeValidation, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	switch {
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return "", dErrors.New(dErrors.CodeValidation, "password is too long")
	case err != nil:
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// VerifyPassword compares password with a stored hash. A mismatch is
// CodeUnauthorized; a corrupt hash is CodeInternal so callers fail closed
// instead of counting it as a wrong guess.
func VerifyPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return dErrors.New(dErrors.CodeUnauthorized, "password mismatch")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}
}
