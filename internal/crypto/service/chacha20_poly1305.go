package service

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
)

// ChaCha20Poly1305Cipher implements AEAD using XChaCha20-Poly1305, the
// extended-nonce variant that lets random nonces be used safely.
type ChaCha20Poly1305Cipher struct {
	aead cipher.AEAD
}

// NewChaCha20Poly1305 creates a new XChaCha20-Poly1305 cipher instance.
// Returns an error if key is not exactly 32 bytes.
func NewChaCha20Poly1305(key []byte) (*ChaCha20Poly1305Cipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XChaCha20-Poly1305 cipher: %w", err)
	}

	return &ChaCha20Poly1305Cipher{aead: aead}, nil
}

// Encrypt encrypts plaintext using XChaCha20-Poly1305 with optional AAD.
func (c *ChaCha20Poly1305Cipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = c.aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using XChaCha20-Poly1305 with the provided nonce and AAD.
func (c *ChaCha20Poly1305Cipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// NonceSize returns the size of the nonce required by the XChaCha20-Poly1305 cipher.
func (c *ChaCha20Poly1305Cipher) NonceSize() int {
	return c.aead.NonceSize()
}

// SealWithNonce encrypts plaintext using a caller-supplied nonce instead of
// generating one, for use by the STREAM construction, which derives its
// nonces from a block counter rather than crypto/rand.
func (c *ChaCha20Poly1305Cipher) SealWithNonce(nonce, plaintext, aad []byte) []byte {
	return c.aead.Seal(nil, nonce, plaintext, aad)
}

// OpenWithNonce decrypts ciphertext using a caller-supplied nonce, the
// counterpart to SealWithNonce.
func (c *ChaCha20Poly1305Cipher) OpenWithNonce(nonce, ciphertext, aad []byte) ([]byte, error) {
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
