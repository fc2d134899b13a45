// Package domain defines the core cryptographic models shared by the
// streaming AEAD codec, the encrypted file header, and the key manager:
// algorithms, sentinel errors, and the zeroizing Secret container.
package domain

import (
	"github.com/allisson/filevault/internal/errors"
)

// Cryptographic operation errors.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key size is invalid (must be 32 bytes).
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrEncryptionFailed indicates an AEAD seal operation failed.
	ErrEncryptionFailed = errors.Wrap(errors.ErrInvalidInput, "encryption failed")

	// ErrDecryptionFailed indicates decryption failed due to wrong key or corrupted data.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrNonceLengthMismatch indicates a nonce does not match the length required by an algorithm.
	ErrNonceLengthMismatch = errors.Wrap(errors.ErrInvalidInput, "nonce length mismatch")

	// ErrStreamModeInit indicates a STREAM encryptor or decryptor failed to initialize.
	ErrStreamModeInit = errors.Wrap(errors.ErrInvalidInput, "failed to initialize stream mode")

	// ErrStreamAlreadyFinalized indicates a final STREAM block has already been written.
	ErrStreamAlreadyFinalized = errors.Wrap(errors.ErrInvalidInput, "stream has already been finalized")

	// ErrIncorrectPassword indicates a keyslot could not be unlocked with the given password.
	// Deliberately generic: it must never distinguish "wrong password" from "corrupted slot".
	ErrIncorrectPassword = errors.Wrap(errors.ErrInvalidInput, "incorrect password")

	// ErrInvalidFileHeader indicates a serialized file header is malformed or truncated.
	ErrInvalidFileHeader = errors.Wrap(errors.ErrInvalidInput, "invalid file header")

	// ErrUnsupportedVersion indicates a file header or keyslot version is not supported.
	ErrUnsupportedVersion = errors.Wrap(errors.ErrInvalidInput, "unsupported version")

	// ErrMetadataNotFound indicates a file header has no embedded metadata section.
	ErrMetadataNotFound = errors.Wrap(errors.ErrNotFound, "no metadata present in header")

	// ErrPreviewMediaNotFound indicates a file header has no embedded preview media section.
	ErrPreviewMediaNotFound = errors.Wrap(errors.ErrNotFound, "no preview media present in header")

	// ErrTooManyKeyslots indicates a file header cannot hold any more keyslots.
	ErrTooManyKeyslots = errors.Wrap(errors.ErrInvalidInput, "no keyslots available in file header")

	// ErrNotUnlocked indicates a key manager operation requires the root key but it is not present.
	ErrNotUnlocked = errors.Wrap(errors.ErrLocked, "key manager is not unlocked")

	// ErrNoMasterPassword indicates the key manager has not completed onboarding.
	ErrNoMasterPassword = errors.Wrap(errors.ErrInvalidInput, "no master password has been set")

	// ErrAlreadyOnboarded indicates onboarding was attempted on an already-initialized key manager.
	ErrAlreadyOnboarded = errors.Wrap(errors.ErrConflict, "master password has already been set")

	// ErrKeyNotFound indicates a stored key with the given identifier does not exist.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "key not found")

	// ErrDuplicateUUID indicates a key with the given identifier is already present in the keystore.
	ErrDuplicateUUID = errors.Wrap(errors.ErrConflict, "a key with this uuid already exists")

	// ErrKeyMemoryOnly indicates an operation requiring database persistence was attempted on a
	// memory-only key.
	ErrKeyMemoryOnly = errors.Wrap(errors.ErrInvalidInput, "key is memory-only and is not persisted")

	// ErrKeyNotMounted indicates an operation requiring a mounted key was attempted on an
	// unmounted one.
	ErrKeyNotMounted = errors.Wrap(errors.ErrInvalidInput, "key is not mounted")
)
