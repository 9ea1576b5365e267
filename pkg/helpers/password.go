package helpers

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes the plain text password using bcrypt with a fresh
// random salt at the default cost (10 rounds).
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// A normal mismatch is (false, nil); any other failure, such as a malformed
// stored hash, is returned as an error and must not be treated as a wrong
// password.
func VerifyPassword(hash string, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
