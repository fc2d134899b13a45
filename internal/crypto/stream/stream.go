// Package stream implements the LE31 STREAM construction for encrypting an
// arbitrarily long body with a single key: a random nonce prefix is
// combined with a 4-byte little-endian block counter (31 bits of counter
// plus a 1-bit "last block" flag) to derive a unique per-block AEAD nonce,
// so that truncation, reordering, or block-splicing of the ciphertext is
// detected.
package stream

import (
	"encoding/binary"
	"io"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/service"
)

// counterSize is the size, in bytes, of the STREAM block counter appended
// to the nonce prefix.
const counterSize = 4

// streamCounter tracks the LE31 block counter and last-block flag shared
// by Encryptor and Decryptor.
type streamCounter struct {
	prefix []byte
	value  uint32
	done   bool
}

func newStreamCounter(algorithm cryptoDomain.Algorithm, prefix []byte) (*streamCounter, error) {
	if len(prefix) != algorithm.NonceLen() {
		return nil, cryptoDomain.ErrNonceLengthMismatch
	}
	return &streamCounter{prefix: prefix}, nil
}

// nonce returns the full AEAD nonce for the current block and, if last is
// true, marks the stream as finalized.
func (c *streamCounter) nonce(last bool) ([]byte, error) {
	if c.done {
		return nil, cryptoDomain.ErrStreamAlreadyFinalized
	}

	suffix := make([]byte, counterSize)
	v := c.value << 1
	if last {
		v |= 1
	}
	binary.LittleEndian.PutUint32(suffix, v)

	nonce := make([]byte, 0, len(c.prefix)+counterSize)
	nonce = append(nonce, c.prefix...)
	nonce = append(nonce, suffix...)

	if last {
		c.done = true
	} else {
		c.value++
	}
	return nonce, nil
}

// Encryptor encrypts a plaintext body block by block under the LE31
// STREAM construction. Every instance must be used to encrypt exactly one
// body: after the final block is written, the Encryptor must be
// discarded.
type Encryptor struct {
	aead    service.AEAD
	counter *streamCounter
}

// NewEncryptor builds an Encryptor for the given key, nonce prefix, and
// algorithm. nonce must be exactly algorithm.NonceLen() bytes, typically
// produced by domain.GenerateNoncePrefix.
func NewEncryptor(manager service.AEADManager, key, nonce []byte, algorithm cryptoDomain.Algorithm) (*Encryptor, error) {
	counter, err := newStreamCounter(algorithm, nonce)
	if err != nil {
		return nil, err
	}

	aead, err := manager.CreateCipher(key, algorithm)
	if err != nil {
		return nil, err
	}

	return &Encryptor{aead: aead, counter: counter}, nil
}

// EncryptNext encrypts a non-final block of plaintext.
func (e *Encryptor) EncryptNext(plaintext, aad []byte) ([]byte, error) {
	nonce, err := e.counter.nonce(false)
	if err != nil {
		return nil, err
	}
	ciphertext, _, err := encryptWithNonce(e.aead, plaintext, aad, nonce)
	if err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// EncryptLast encrypts the final block of plaintext, which may be empty.
// After calling EncryptLast the Encryptor must not be used again.
func (e *Encryptor) EncryptLast(plaintext, aad []byte) ([]byte, error) {
	nonce, err := e.counter.nonce(true)
	if err != nil {
		return nil, err
	}
	ciphertext, _, err := encryptWithNonce(e.aead, plaintext, aad, nonce)
	if err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// encryptWithNonce seals plaintext under the counter-derived nonce rather
// than letting the cipher generate its own.
func encryptWithNonce(aead service.AEAD, plaintext, aad, nonce []byte) ([]byte, []byte, error) {
	sealer, ok := aead.(nonceSealer)
	if !ok {
		return nil, nil, cryptoDomain.ErrStreamModeInit
	}
	ciphertext := sealer.SealWithNonce(nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// nonceSealer is implemented by the service.AEAD ciphers in this module to
// allow STREAM to supply its own deterministic, counter-derived nonce
// instead of a randomly generated one.
type nonceSealer interface {
	SealWithNonce(nonce, plaintext, aad []byte) []byte
	OpenWithNonce(nonce, ciphertext, aad []byte) ([]byte, error)
}

// Decryptor decrypts a ciphertext body block by block under the LE31
// STREAM construction, mirroring Encryptor.
type Decryptor struct {
	aead    service.AEAD
	counter *streamCounter
}

// NewDecryptor builds a Decryptor for the given key, nonce prefix, and
// algorithm.
func NewDecryptor(manager service.AEADManager, key, nonce []byte, algorithm cryptoDomain.Algorithm) (*Decryptor, error) {
	counter, err := newStreamCounter(algorithm, nonce)
	if err != nil {
		return nil, err
	}

	aead, err := manager.CreateCipher(key, algorithm)
	if err != nil {
		return nil, err
	}

	return &Decryptor{aead: aead, counter: counter}, nil
}

// DecryptNext decrypts a non-final block of ciphertext.
func (d *Decryptor) DecryptNext(ciphertext, aad []byte) ([]byte, error) {
	nonce, err := d.counter.nonce(false)
	if err != nil {
		return nil, err
	}
	return decryptWithNonce(d.aead, ciphertext, aad, nonce)
}

// DecryptLast decrypts the final block of ciphertext, which may decrypt
// to an empty plaintext. After calling DecryptLast the Decryptor must not
// be used again.
func (d *Decryptor) DecryptLast(ciphertext, aad []byte) ([]byte, error) {
	nonce, err := d.counter.nonce(true)
	if err != nil {
		return nil, err
	}
	return decryptWithNonce(d.aead, ciphertext, aad, nonce)
}

func decryptWithNonce(aead service.AEAD, ciphertext, aad, nonce []byte) ([]byte, error) {
	sealer, ok := aead.(nonceSealer)
	if !ok {
		return nil, cryptoDomain.ErrStreamModeInit
	}
	return sealer.OpenWithNonce(nonce, ciphertext, aad)
}

// EncryptStreams reads r in BlockSize plaintext chunks, encrypts each one
// (the last, possibly short or empty, chunk via EncryptLast) and writes
// the resulting ciphertext blocks to w. aad is authenticated with every
// block, binding the stream to its file header.
func EncryptStreams(e *Encryptor, r io.Reader, w io.Writer, aad []byte) error {
	buf := make([]byte, cryptoDomain.BlockSize)
	for {
		n, err := io.ReadFull(r, buf)
		switch {
		case err == nil:
			block, encErr := e.EncryptNext(buf[:n], aad)
			if encErr != nil {
				return encErr
			}
			if _, werr := w.Write(block); werr != nil {
				return werr
			}
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			block, encErr := e.EncryptLast(buf[:n], aad)
			if encErr != nil {
				return encErr
			}
			if _, werr := w.Write(block); werr != nil {
				return werr
			}
			return nil
		default:
			return err
		}
	}
}

// DecryptStreams reads r in (BlockSize+AEADTagSize) ciphertext chunks,
// decrypting each one and writing the recovered plaintext to w. The final
// chunk is detected the same way EncryptStreams produces it: whenever a
// short read (including a zero-length one) is returned by r.
func DecryptStreams(d *Decryptor, r io.Reader, w io.Writer, aad []byte) error {
	buf := make([]byte, cryptoDomain.BlockSize+cryptoDomain.AEADTagSize)
	for {
		n, err := io.ReadFull(r, buf)
		switch {
		case err == nil:
			block, decErr := d.DecryptNext(buf[:n], aad)
			if decErr != nil {
				return decErr
			}
			if _, werr := w.Write(block); werr != nil {
				return werr
			}
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			block, decErr := d.DecryptLast(buf[:n], aad)
			if decErr != nil {
				return decErr
			}
			if _, werr := w.Write(block); werr != nil {
				return werr
			}
			return nil
		default:
			return err
		}
	}
}
