package application

import (
	"errors"
	"regexp"
	"unicode/utf8"
)

// Client-fault errors surfaced by credential validation. The HTTP layer maps
// these to 400 responses; everything else is a server fault.
var (
	ErrMissingField = errors.New("all fields are required")
	ErrInvalidEmail = errors.New("invalid email")
	ErrWeakPassword = errors.New("password too short")
)

// MinPasswordLength is the password length floor.
const MinPasswordLength = 8

// emailShape accepts local@domain.tld shaped addresses: non-space characters
// around an @ with at least one dot in the domain part.
var emailShape = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidateCredentials checks name, email, and password and reports only the
// first failure. The order is fixed: field presence, then email shape, then
// password length.
func ValidateCredentials(name, email, password string) error {
	if name == "" || email == "" || password == "" {
		return ErrMissingField
	}
	if !emailShape.MatchString(email) {
		return ErrInvalidEmail
	}
	// Length is counted in characters, not bytes; a multibyte password of
	// seven characters is still too short.
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
