package domain

// Algorithm identifies the AEAD construction used to protect a master key,
// a keyslot, or a stream of file data.
//
// Both algorithms provide 256-bit security and are interchangeable at the
// stream level: the algorithm recorded in a file header determines how its
// body and keyslots must be decrypted.
type Algorithm string

const (
	// XChaCha20Poly1305 combines the XChaCha20 stream cipher with a Poly1305
	// MAC. Its extended 24-byte nonce allows the nonce prefix to be chosen
	// at random without risk of collision, which is why it is the default.
	XChaCha20Poly1305 Algorithm = "xchacha20-poly1305"

	// Aes256Gcm is AES-256 in Galois/Counter Mode, preferred on hardware
	// with AES-NI acceleration.
	Aes256Gcm Algorithm = "aes-256-gcm"
)

// NonceLen returns the length, in bytes, of the random nonce prefix stored
// for this algorithm in a file header or keyslot. The prefix is combined
// with a 4-byte block counter to build the full AEAD nonce consumed by the
// underlying cipher, so NonceLen()+4 always equals the cipher's native
// nonce size (24 for XChaCha20Poly1305, 12 for Aes256Gcm).
func (a Algorithm) NonceLen() int {
	switch a {
	case XChaCha20Poly1305:
		return 20
	case Aes256Gcm:
		return 8
	default:
		return 0
	}
}

// Valid reports whether the algorithm is one this package knows how to use.
func (a Algorithm) Valid() bool {
	switch a {
	case XChaCha20Poly1305, Aes256Gcm:
		return true
	default:
		return false
	}
}

// KeySize is the size, in bytes, of every symmetric key used by this
// package: master keys, hashed passwords, and root keys.
const KeySize = 32

// BlockSize is the plaintext chunk size used by the streaming AEAD
// construction, matching the block size used everywhere a file body is
// framed into STREAM blocks.
const BlockSize = 1024 * 1024

// AEADTagSize is the size, in bytes, of the authentication tag appended to
// every encrypted STREAM block.
const AEADTagSize = 16
