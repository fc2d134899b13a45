package service

import (
	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
)

// AEADManagerService implements AEADManager, instantiating the AEAD cipher
// appropriate for an Algorithm.
type AEADManagerService struct{}

// NewAEADManager creates a new AEADManagerService instance.
func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher creates an AEAD cipher instance based on the specified
// algorithm. The key must be exactly 32 bytes (256 bits) for both
// supported algorithms.
func (am *AEADManagerService) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	switch alg {
	case cryptoDomain.Aes256Gcm:
		return NewAESGCM(key)
	case cryptoDomain.XChaCha20Poly1305:
		return NewChaCha20Poly1305(key)
	default:
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
}
