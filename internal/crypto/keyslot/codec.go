package keyslot

import (
	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
)

// Size is the fixed on-disk size, in bytes, of a single serialized
// keyslot, independent of which algorithm or hashing function it uses.
// Every slot in a file header's keyslot array occupies exactly Size
// bytes, so unused slots can be distinguished purely by an all-zero
// Version byte.
const Size = 1 /* version */ + 1 /* algorithm */ + 1 /* hashing algorithm */ + 1 /* hashing tier */ +
	SaltSize + CheckSize + 1 /* nonce len */ + MaxNonceSize + WrappedKeySize

// AlgorithmCodes maps an Algorithm to its on-the-wire tag
// (0=XChaCha20Poly1305, 1=Aes256Gcm), shared with the file header so both
// serialize the same algorithm the same way.
var AlgorithmCodes = map[cryptoDomain.Algorithm]byte{
	cryptoDomain.XChaCha20Poly1305: 0,
	cryptoDomain.Aes256Gcm:         1,
}

// AlgorithmByCode is the inverse of AlgorithmCodes.
var AlgorithmByCode = map[byte]cryptoDomain.Algorithm{
	0: cryptoDomain.XChaCha20Poly1305,
	1: cryptoDomain.Aes256Gcm,
}

// algorithmCodes/algorithmByCode are local aliases kept so the rest of this
// file reads the same as before the shared maps were introduced.
var algorithmCodes = AlgorithmCodes
var algorithmByCode = AlgorithmByCode

var hashingAlgorithmCodes = map[hashing.Algorithm]byte{
	hashing.Argon2id:      1,
	hashing.BalloonBlake3: 2,
}

var hashingAlgorithmByCode = map[byte]hashing.Algorithm{
	1: hashing.Argon2id,
	2: hashing.BalloonBlake3,
}

var hashingTierCodes = map[hashing.Tier]byte{
	hashing.Standard: 1,
	hashing.Hardened: 2,
	hashing.Paranoid: 3,
}

var hashingTierByCode = map[byte]hashing.Tier{
	1: hashing.Standard,
	2: hashing.Hardened,
	3: hashing.Paranoid,
}

// Marshal encodes the keyslot into a fixed Size-byte buffer. A nil or
// empty keyslot encodes as an all-zero buffer.
func (k *Keyslot) Marshal() ([]byte, error) {
	buf := make([]byte, Size)
	if k.IsEmpty() {
		return buf, nil
	}

	algCode, ok := algorithmCodes[k.Algorithm]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	hashCode, ok := hashingAlgorithmCodes[k.HashingAlgorithm]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	tierCode, ok := hashingTierCodes[k.HashingTier]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	if len(k.Salt) != SaltSize {
		return nil, cryptoDomain.ErrInvalidFileHeader
	}
	if len(k.HashedPasswordCheck) != CheckSize {
		return nil, cryptoDomain.ErrInvalidFileHeader
	}
	if len(k.Nonce) > MaxNonceSize {
		return nil, cryptoDomain.ErrInvalidFileHeader
	}
	if len(k.WrappedKey) != WrappedKeySize {
		return nil, cryptoDomain.ErrInvalidFileHeader
	}

	offset := 0
	buf[offset] = k.Version
	offset++
	buf[offset] = algCode
	offset++
	buf[offset] = hashCode
	offset++
	buf[offset] = tierCode
	offset++

	copy(buf[offset:offset+SaltSize], k.Salt)
	offset += SaltSize

	copy(buf[offset:offset+CheckSize], k.HashedPasswordCheck)
	offset += CheckSize

	buf[offset] = byte(len(k.Nonce))
	offset++

	copy(buf[offset:offset+MaxNonceSize], k.Nonce)
	offset += MaxNonceSize

	copy(buf[offset:offset+WrappedKeySize], k.WrappedKey)

	return buf, nil
}

// Unmarshal decodes a Size-byte buffer into the Keyslot. An all-zero
// buffer decodes to an empty (IsEmpty true) Keyslot.
func (k *Keyslot) Unmarshal(buf []byte) error {
	if len(buf) != Size {
		return cryptoDomain.ErrInvalidFileHeader
	}

	offset := 0
	version := buf[offset]
	offset++

	if version == 0 {
		*k = Keyslot{}
		return nil
	}

	algCode := buf[offset]
	offset++
	hashCode := buf[offset]
	offset++
	tierCode := buf[offset]
	offset++

	algorithm, ok := algorithmByCode[algCode]
	if !ok {
		return cryptoDomain.ErrUnsupportedAlgorithm
	}
	hashingAlgorithm, ok := hashingAlgorithmByCode[hashCode]
	if !ok {
		return cryptoDomain.ErrUnsupportedAlgorithm
	}
	hashingTier, ok := hashingTierByCode[tierCode]
	if !ok {
		return cryptoDomain.ErrUnsupportedAlgorithm
	}

	salt := make([]byte, SaltSize)
	copy(salt, buf[offset:offset+SaltSize])
	offset += SaltSize

	check := make([]byte, CheckSize)
	copy(check, buf[offset:offset+CheckSize])
	offset += CheckSize

	nonceLen := int(buf[offset])
	offset++
	if nonceLen > MaxNonceSize {
		return cryptoDomain.ErrInvalidFileHeader
	}
	nonce := make([]byte, nonceLen)
	copy(nonce, buf[offset:offset+nonceLen])
	offset += MaxNonceSize

	wrappedKey := make([]byte, WrappedKeySize)
	copy(wrappedKey, buf[offset:offset+WrappedKeySize])

	*k = Keyslot{
		Version:             version,
		Algorithm:           algorithm,
		HashingAlgorithm:    hashingAlgorithm,
		HashingTier:         hashingTier,
		Salt:                salt,
		HashedPasswordCheck: check,
		Nonce:               nonce,
		WrappedKey:          wrappedKey,
	}
	return nil
}
