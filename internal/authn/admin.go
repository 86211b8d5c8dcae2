package authn

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when the supplied admin token
// doesn't match the configured hash.
var ErrInvalidCredentials = errors.New("authn: invalid admin token")

// HashToken bcrypt-hashes an admin token for storage in configuration,
// the same way the teacher hashes account passwords.
func HashToken(token string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckToken verifies a presented admin token against the configured
// bcrypt hash.
func CheckToken(hash, token string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
