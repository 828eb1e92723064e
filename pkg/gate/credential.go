package gate

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credential decides whether an entered PIN grants access.
type Credential interface {
	Match(pin string) bool
}

// Plain is a PIN kept in clear text, compared in constant time.
type Plain string

// Match implements Credential.
func (p Plain) Match(pin string) bool {
	return subtle.ConstantTimeCompare([]byte(p), []byte(pin)) == 1
}

// Hashed is a bcrypt hash of the PIN.
type Hashed []byte

// NewHashed validates a bcrypt hash string.
func NewHashed(hash string) (Hashed, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid credential hash: %w", err)
	}
	return Hashed(hash), nil
}

// HashPIN returns a bcrypt hash suitable for the credential_hash setting.
func HashPIN(pin string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(h), nil
}

// Match implements Credential.
func (h Hashed) Match(pin string) bool {
	return bcrypt.CompareHashAndPassword(h, []byte(pin)) == nil
}
