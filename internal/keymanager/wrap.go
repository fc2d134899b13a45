package keymanager

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/service"
)

// recordKeyInfo is the HKDF info string binding a derived record key to its
// purpose, so the same (root key, salt) pair can never be reused as key
// material anywhere else.
const recordKeyInfo = "filevault-keymanager-record-key"

// deriveRecordKey derives a per-record wrapping key from the root key and a
// record's content salt via HKDF-SHA256, so every stored key's master key is
// wrapped under a distinct key even though all records share one root key.
func deriveRecordKey(rootKey *cryptoDomain.Secret, contentSalt []byte) (*cryptoDomain.Secret, error) {
	reader := hkdf.New(sha256.New, rootKey.Expose(), contentSalt, []byte(recordKeyInfo))
	key := make([]byte, cryptoDomain.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return cryptoDomain.NewSecret(key), nil
}

// sealWith one-shot AEAD-encrypts plaintext under key using algorithm,
// returning the ciphertext and the randomly generated nonce.
func sealWith(
	manager service.AEADManager,
	key *cryptoDomain.Secret,
	algorithm cryptoDomain.Algorithm,
	plaintext, aad []byte,
) (ciphertext, nonce []byte, err error) {
	cipher, err := manager.CreateCipher(key.Expose(), algorithm)
	if err != nil {
		return nil, nil, err
	}
	return cipher.Encrypt(plaintext, aad)
}

// openWith is the inverse of sealWith.
func openWith(
	manager service.AEADManager,
	key *cryptoDomain.Secret,
	algorithm cryptoDomain.Algorithm,
	ciphertext, nonce, aad []byte,
) ([]byte, error) {
	cipher, err := manager.CreateCipher(key.Expose(), algorithm)
	if err != nil {
		return nil, err
	}
	return cipher.Decrypt(ciphertext, nonce, aad)
}
