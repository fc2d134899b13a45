package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// GenerateMasterKey returns a fresh random 32-byte master key wrapped in a
// Secret.
func GenerateMasterKey() (*Secret, error) {
	b := make([]byte, KeySize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return NewSecret(b), nil
}

// GenerateSalt returns a fresh random 16-byte salt for password hashing.
func GenerateSalt() ([]byte, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return b, nil
}

// GenerateNoncePrefix returns a fresh random nonce prefix sized for the
// given algorithm, as stored in a file header or keyslot.
func GenerateNoncePrefix(algorithm Algorithm) ([]byte, error) {
	if !algorithm.Valid() {
		return nil, ErrUnsupportedAlgorithm
	}
	b := make([]byte, algorithm.NonceLen())
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return b, nil
}

// ConstantTimeCompare reports whether a and b hold the same bytes, in time
// independent of where they first differ. Unlike bytes.Equal it must not be
// used to short-circuit on differing lengths for secret comparisons that
// are derived from user input of variable length; callers comparing
// passwords or derived keys of fixed length should prefer this helper.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
