// Package identity password hashing (bcrypt).
//
// Public surface:
//
//   - DefaultBcryptCost
//   - HashPassword
//   - VerifyPassword
//
// bcrypt is used with a fixed cost factor; the salt is embedded in the
// encoded hash and comparison is constant-time inside the library.
package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the fixed work factor for new password hashes.
const DefaultBcryptCost = 10

// HashPassword returns a bcrypt hash of the password.
//
// Security contract:
// - Enforces the package password policy before hashing.
// - The plaintext is never stored or logged.
func HashPassword(passwordPlain string) (string, error) {
	if msg := ValidatePassword(passwordPlain); msg != "" {
		return "", OpError{Op: "identity.HashPassword", Kind: ErrInvalidInput, Msg: "password " + msg}
	}

	b, err := bcrypt.GenerateFromPassword([]byte(passwordPlain), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword checks a password against a stored bcrypt hash.
// It returns (false, nil) on mismatch and reserves the error return for
// malformed hashes or infrastructure failures.
func VerifyPassword(passwordPlain string, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(passwordPlain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
