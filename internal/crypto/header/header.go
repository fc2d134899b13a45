// Package header implements the self-describing encrypted file header:
// magic bytes, a version and algorithm tag, the body's STREAM nonce
// prefix, a fixed-size array of password-wrapped keyslots, and optional
// encrypted metadata and preview-media sections. The header's fixed prefix
// (magic, version, algorithm, body nonce and keyslot array) is used as the
// additional authenticated data (AAD) for the body stream, so that prefix
// cannot be swapped onto a different file's body without detection; the
// metadata and preview sections are not part of the body AAD.
package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/keyslot"
	"github.com/allisson/filevault/internal/crypto/service"
)

// Magic identifies a filevault-encrypted file.
var Magic = [4]byte{'F', 'V', 'L', 'T'}

// LatestVersion is the file header format version written by New.
const LatestVersion uint8 = 1

// MaxKeyslots is the number of keyslot entries reserved in every file
// header, regardless of how many are actually in use.
const MaxKeyslots = 8

const (
	flagMetadataPresent byte = 1 << 0
	flagPreviewPresent  byte = 1 << 1
)

// MetadataVersion identifies the format of an embedded metadata section's
// plaintext payload.
type MetadataVersion uint8

// V1 is the only metadata payload version currently defined.
const V1 MetadataVersion = 1

// section is a one-shot AEAD-encrypted blob embedded in a file header
// (used for both the metadata and preview-media sections).
type section struct {
	Version    uint8
	Algorithm  cryptoDomain.Algorithm
	Nonce      []byte
	Ciphertext []byte
}

// FileHeader is the self-describing header prepended to every encrypted
// file.
type FileHeader struct {
	Version   uint8
	Algorithm cryptoDomain.Algorithm
	Nonce     []byte
	Keyslots  [MaxKeyslots]keyslot.Keyslot

	metadata *section
	preview  *section
}

// New creates a FileHeader for algorithm with a freshly generated body
// nonce prefix and the given keyslots. At most MaxKeyslots keyslots may be
// supplied.
func New(algorithm cryptoDomain.Algorithm, keyslots []*keyslot.Keyslot) (*FileHeader, error) {
	if len(keyslots) > MaxKeyslots {
		return nil, cryptoDomain.ErrTooManyKeyslots
	}

	nonce, err := cryptoDomain.GenerateNoncePrefix(algorithm)
	if err != nil {
		return nil, err
	}

	h := &FileHeader{
		Version:   LatestVersion,
		Algorithm: algorithm,
		Nonce:     nonce,
	}
	for i, ks := range keyslots {
		h.Keyslots[i] = *ks
	}
	return h, nil
}

// AddKeyslot inserts ks into the first empty slot. It returns
// ErrTooManyKeyslots if every slot is already occupied.
func (h *FileHeader) AddKeyslot(ks *keyslot.Keyslot) error {
	for i := range h.Keyslots {
		if h.Keyslots[i].IsEmpty() {
			h.Keyslots[i] = *ks
			return nil
		}
	}
	return cryptoDomain.ErrTooManyKeyslots
}

// UnlockedKeyslots returns the non-empty keyslots in this header, in slot
// order.
func (h *FileHeader) UnlockedKeyslots() []*keyslot.Keyslot {
	var out []*keyslot.Keyslot
	for i := range h.Keyslots {
		if !h.Keyslots[i].IsEmpty() {
			out = append(out, &h.Keyslots[i])
		}
	}
	return out
}

// DecryptMasterKey tries every keyslot in order with password and returns
// the master key from the first one that unlocks. It returns
// ErrIncorrectPassword if none do.
func (h *FileHeader) DecryptMasterKey(password []byte) (*cryptoDomain.Secret, error) {
	for i := range h.Keyslots {
		if h.Keyslots[i].IsEmpty() {
			continue
		}
		masterKey, err := h.Keyslots[i].Unlock(password)
		if err == nil {
			return masterKey, nil
		}
	}
	return nil, cryptoDomain.ErrIncorrectPassword
}

// AddMetadata encrypts payload under masterKey and embeds it as this
// header's metadata section. The AAD binds the section to the header's
// fixed prefix: magic, version, algorithm, body nonce and keyslot array.
func (h *FileHeader) AddMetadata(version MetadataVersion, algorithm cryptoDomain.Algorithm, masterKey *cryptoDomain.Secret, payload []byte) error {
	sec, err := h.sealSection(uint8(version), algorithm, masterKey, payload)
	if err != nil {
		return err
	}
	h.metadata = sec
	return nil
}

// DecryptMetadata decrypts this header's metadata section using masterKey.
// It returns ErrMetadataNotFound if no metadata section is present.
func (h *FileHeader) DecryptMetadata(masterKey *cryptoDomain.Secret) ([]byte, error) {
	if h.metadata == nil {
		return nil, cryptoDomain.ErrMetadataNotFound
	}
	return h.openSection(h.metadata, masterKey)
}

// AddPreviewMedia encrypts payload under masterKey and embeds it as this
// header's preview-media section (e.g. a thumbnail).
func (h *FileHeader) AddPreviewMedia(algorithm cryptoDomain.Algorithm, masterKey *cryptoDomain.Secret, payload []byte) error {
	sec, err := h.sealSection(1, algorithm, masterKey, payload)
	if err != nil {
		return err
	}
	h.preview = sec
	return nil
}

// DecryptPreviewMedia decrypts this header's preview-media section using
// masterKey. It returns ErrPreviewMediaNotFound if none is present.
func (h *FileHeader) DecryptPreviewMedia(masterKey *cryptoDomain.Secret) ([]byte, error) {
	if h.preview == nil {
		return nil, cryptoDomain.ErrPreviewMediaNotFound
	}
	return h.openSection(h.preview, masterKey)
}

func (h *FileHeader) sealSection(version uint8, algorithm cryptoDomain.Algorithm, masterKey *cryptoDomain.Secret, payload []byte) (*section, error) {
	manager := service.NewAEADManager()
	cipher, err := manager.CreateCipher(masterKey.Expose(), algorithm)
	if err != nil {
		return nil, err
	}

	aad, err := h.fixedPrefixBytes()
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := cipher.Encrypt(payload, aad)
	if err != nil {
		return nil, err
	}

	return &section{Version: version, Algorithm: algorithm, Nonce: nonce, Ciphertext: ciphertext}, nil
}

func (h *FileHeader) openSection(sec *section, masterKey *cryptoDomain.Secret) ([]byte, error) {
	manager := service.NewAEADManager()
	cipher, err := manager.CreateCipher(masterKey.Expose(), sec.Algorithm)
	if err != nil {
		return nil, err
	}

	aad, err := h.fixedPrefixBytes()
	if err != nil {
		return nil, err
	}

	plaintext, err := cipher.Decrypt(sec.Ciphertext, sec.Nonce, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// fixedPrefixBytes serializes the magic, version, algorithm, body nonce,
// and keyslot array -- the part of the header that never changes once
// metadata or preview sections are added.
func (h *FileHeader) fixedPrefixBytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(h.Version)

	algCode, ok := algorithmCodes[h.Algorithm]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	buf.WriteByte(algCode)

	if len(h.Nonce) != h.Algorithm.NonceLen() {
		return nil, cryptoDomain.ErrInvalidFileHeader
	}
	buf.Write(h.Nonce)

	for i := range h.Keyslots {
		encoded, err := h.Keyslots[i].Marshal()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}

	return buf.Bytes(), nil
}

// GenerateAAD returns the additional authenticated data to use for the
// body stream: the fixed prefix only, so tampering with the optional
// metadata or preview sections cannot break body decryption.
func (h *FileHeader) GenerateAAD() ([]byte, error) {
	return h.fixedPrefixBytes()
}

// Write serializes the complete header, including metadata and preview
// sections if present, to w.
func (h *FileHeader) Write(w io.Writer) error {
	prefix, err := h.fixedPrefixBytes()
	if err != nil {
		return err
	}
	if _, err := w.Write(prefix); err != nil {
		return err
	}

	var flags byte
	if h.metadata != nil {
		flags |= flagMetadataPresent
	}
	if h.preview != nil {
		flags |= flagPreviewPresent
	}
	if _, err := w.Write([]byte{flags}); err != nil {
		return err
	}

	if h.metadata != nil {
		if err := writeSection(w, h.metadata); err != nil {
			return err
		}
	}
	if h.preview != nil {
		if err := writeSection(w, h.preview); err != nil {
			return err
		}
	}
	return nil
}

func writeSection(w io.Writer, sec *section) error {
	algCode, ok := algorithmCodes[sec.Algorithm]
	if !ok {
		return cryptoDomain.ErrUnsupportedAlgorithm
	}
	if len(sec.Nonce) > 255 {
		return cryptoDomain.ErrInvalidFileHeader
	}

	header := []byte{sec.Version, algCode, byte(len(sec.Nonce))}
	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(sec.Nonce); err != nil {
		return err
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(sec.Ciphertext)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(sec.Ciphertext)
	return err
}

func readSection(r io.Reader) (*section, error) {
	var prefix [3]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
	}

	algorithm, ok := algorithmByCode[prefix[1]]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}

	nonceLen := int(prefix[2])
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
	}
	ciphertext := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(r, ciphertext); err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
	}

	return &section{Version: prefix[0], Algorithm: algorithm, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Deserialize reads and validates a FileHeader from r, returning it
// alongside the exact byte count consumed so callers can position r at the
// start of the encrypted body.
func Deserialize(r io.Reader) (*FileHeader, int64, error) {
	counting := &countingReader{r: r}

	var magic [4]byte
	if _, err := io.ReadFull(counting, magic[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
	}
	if magic != Magic {
		return nil, 0, cryptoDomain.ErrInvalidFileHeader
	}

	var versionAlg [2]byte
	if _, err := io.ReadFull(counting, versionAlg[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
	}
	version := versionAlg[0]
	if version != LatestVersion {
		return nil, 0, cryptoDomain.ErrUnsupportedVersion
	}

	algorithm, ok := algorithmByCode[versionAlg[1]]
	if !ok {
		return nil, 0, cryptoDomain.ErrUnsupportedAlgorithm
	}

	nonce := make([]byte, algorithm.NonceLen())
	if _, err := io.ReadFull(counting, nonce); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
	}

	h := &FileHeader{Version: version, Algorithm: algorithm, Nonce: nonce}

	slotBuf := make([]byte, keyslot.Size)
	for i := 0; i < MaxKeyslots; i++ {
		if _, err := io.ReadFull(counting, slotBuf); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
		}
		if err := h.Keyslots[i].Unmarshal(slotBuf); err != nil {
			return nil, 0, err
		}
	}

	var flags [1]byte
	if _, err := io.ReadFull(counting, flags[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidFileHeader, err)
	}

	if flags[0]&flagMetadataPresent != 0 {
		sec, err := readSection(counting)
		if err != nil {
			return nil, 0, err
		}
		h.metadata = sec
	}
	if flags[0]&flagPreviewPresent != 0 {
		sec, err := readSection(counting)
		if err != nil {
			return nil, 0, err
		}
		h.preview = sec
	}

	return h, counting.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var algorithmCodes = keyslot.AlgorithmCodes

var algorithmByCode = keyslot.AlgorithmByCode
