// Package keyslot implements password-wrapped master keys: a Keyslot binds
// a file's master key to one password by hashing that password into AEAD
// key material and sealing the master key with it. A file header holds a
// fixed-size array of keyslots so that several passwords (or, in the key
// manager's terms, a content key plus a root-key-derived key) can each
// independently unlock the same file.
package keyslot

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"lukechampine.com/blake3"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
	"github.com/allisson/filevault/internal/crypto/service"
)

// LatestVersion is the keyslot format version written by New.
const LatestVersion uint8 = 1

// SaltSize is the size, in bytes, of a keyslot's password salt.
const SaltSize = 16

// WrappedKeySize is the size, in bytes, of a keyslot's wrapped master key:
// the 32-byte key plus a 16-byte AEAD tag.
const WrappedKeySize = cryptoDomain.KeySize + cryptoDomain.AEADTagSize

// MaxNonceSize is the widest AEAD nonce any supported algorithm produces
// (XChaCha20-Poly1305's 24 bytes), used to size the fixed nonce field in
// the serialized keyslot.
const MaxNonceSize = 24

// CheckSize is the size, in bytes, of a keyslot's hashed password check
// value.
const CheckSize = 32

// checkLabel domain-separates the password check derivation from the AEAD
// key itself, so HashedPasswordCheck never leaks key-equivalent material.
const checkLabel = "filevault-keyslot-password-check-v1"

// Keyslot is a single password-wrapped copy of a file's master key.
type Keyslot struct {
	Version             uint8
	Algorithm           cryptoDomain.Algorithm
	HashingAlgorithm    hashing.Algorithm
	HashingTier         hashing.Tier
	Salt                []byte
	HashedPasswordCheck []byte
	Nonce               []byte
	WrappedKey          []byte
}

// derivePasswordCheck computes the one-way password check value from a
// hashed-password key, so a wrong password can be rejected without
// attempting an AEAD decryption of the wrapped master key.
func derivePasswordCheck(hashedKey []byte) []byte {
	h := blake3.New(CheckSize, nil)
	h.Write([]byte(checkLabel))
	h.Write(hashedKey)
	return h.Sum(nil)
}

// New hashes password with a freshly generated salt and seals masterKey
// under the resulting key, producing a Keyslot ready to be stored in a
// file header.
func New(
	algorithm cryptoDomain.Algorithm,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
	password []byte,
	masterKey *cryptoDomain.Secret,
) (*Keyslot, error) {
	salt, err := cryptoDomain.GenerateSalt()
	if err != nil {
		return nil, err
	}

	params, err := hashing.ParamsFor(hashingAlgorithm, hashingTier)
	if err != nil {
		return nil, err
	}

	hashed, err := hashing.Hash(password, salt, params)
	if err != nil {
		return nil, err
	}
	defer hashed.Close()

	manager := service.NewAEADManager()
	cipher, err := manager.CreateCipher(hashed.Expose(), algorithm)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, cipher.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate keyslot nonce: %w", err)
	}

	wrapped, err := sealWithNonce(cipher, nonce, masterKey.Expose(), nil)
	if err != nil {
		return nil, err
	}

	return &Keyslot{
		Version:             LatestVersion,
		Algorithm:           algorithm,
		HashingAlgorithm:    hashingAlgorithm,
		HashingTier:         hashingTier,
		Salt:                salt,
		HashedPasswordCheck: derivePasswordCheck(hashed.Expose()),
		Nonce:               nonce,
		WrappedKey:          wrapped,
	}, nil
}

// Unlock attempts to recover the master key sealed in the Keyslot using
// password. A wrong password and a corrupted keyslot are indistinguishable
// to the caller: both return ErrIncorrectPassword.
func (k *Keyslot) Unlock(password []byte) (*cryptoDomain.Secret, error) {
	params, err := hashing.ParamsFor(k.HashingAlgorithm, k.HashingTier)
	if err != nil {
		return nil, cryptoDomain.ErrIncorrectPassword
	}

	hashed, err := hashing.Hash(password, k.Salt, params)
	if err != nil {
		return nil, cryptoDomain.ErrIncorrectPassword
	}
	defer hashed.Close()

	if subtle.ConstantTimeCompare(derivePasswordCheck(hashed.Expose()), k.HashedPasswordCheck) != 1 {
		return nil, cryptoDomain.ErrIncorrectPassword
	}

	manager := service.NewAEADManager()
	cipher, err := manager.CreateCipher(hashed.Expose(), k.Algorithm)
	if err != nil {
		return nil, cryptoDomain.ErrIncorrectPassword
	}

	plaintext, err := cipher.Decrypt(k.WrappedKey, k.Nonce, nil)
	if err != nil {
		return nil, cryptoDomain.ErrIncorrectPassword
	}

	return cryptoDomain.NewSecret(plaintext), nil
}

// IsEmpty reports whether this is a zero-value slot, used to detect unused
// entries in a file header's fixed-size keyslot array.
func (k *Keyslot) IsEmpty() bool {
	return k == nil || k.Version == 0
}

// sealWithNonce seals plaintext under an explicit nonce rather than one
// generated by the cipher, so the nonce can be persisted verbatim
// alongside the wrapped key.
func sealWithNonce(cipher service.AEAD, nonce, plaintext, aad []byte) ([]byte, error) {
	sealer, ok := cipher.(interface {
		SealWithNonce(nonce, plaintext, aad []byte) []byte
	})
	if !ok {
		return nil, cryptoDomain.ErrStreamModeInit
	}
	return sealer.SealWithNonce(nonce, plaintext, aad), nil
}
