package header

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
	"github.com/allisson/filevault/internal/crypto/keyslot"
)

func buildHeader(t *testing.T) (*FileHeader, *cryptoDomain.Secret, []byte) {
	t.Helper()

	masterKey, err := cryptoDomain.GenerateMasterKey()
	require.NoError(t, err)

	password := []byte("hunter2")
	ks, err := keyslot.New(cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, password, masterKey)
	require.NoError(t, err)

	h, err := New(cryptoDomain.XChaCha20Poly1305, []*keyslot.Keyslot{ks})
	require.NoError(t, err)

	return h, masterKey, password
}

func TestFileHeader_WriteDeserializeRoundTrip(t *testing.T) {
	h, _, _ := buildHeader(t)

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	decoded, n, err := Deserialize(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, h.Version, decoded.Version)
	assert.Equal(t, h.Algorithm, decoded.Algorithm)
	assert.Equal(t, h.Nonce, decoded.Nonce)
	assert.Len(t, decoded.UnlockedKeyslots(), 1)
}

func TestFileHeader_DecryptMasterKey(t *testing.T) {
	h, masterKey, password := buildHeader(t)
	defer masterKey.Close()

	recovered, err := h.DecryptMasterKey(password)
	require.NoError(t, err)
	defer recovered.Close()

	assert.Equal(t, masterKey.Expose(), recovered.Expose())
}

func TestFileHeader_DecryptMasterKey_WrongPassword(t *testing.T) {
	h, masterKey, _ := buildHeader(t)
	defer masterKey.Close()

	_, err := h.DecryptMasterKey([]byte("wrong password"))
	assert.ErrorIs(t, err, cryptoDomain.ErrIncorrectPassword)
}

func TestFileHeader_MetadataRoundTrip(t *testing.T) {
	h, masterKey, _ := buildHeader(t)
	defer masterKey.Close()

	payload := []byte(`{"file_name":"photo.png"}`)
	require.NoError(t, h.AddMetadata(V1, cryptoDomain.XChaCha20Poly1305, masterKey, payload))

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	decoded, _, err := Deserialize(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	recovered, err := decoded.DecryptMetadata(masterKey)
	require.NoError(t, err)
	assert.Equal(t, payload, recovered)
}

func TestFileHeader_MetadataNotFound(t *testing.T) {
	h, masterKey, _ := buildHeader(t)
	defer masterKey.Close()

	_, err := h.DecryptMetadata(masterKey)
	assert.ErrorIs(t, err, cryptoDomain.ErrMetadataNotFound)
}

func TestFileHeader_PreviewMediaRoundTrip(t *testing.T) {
	h, masterKey, _ := buildHeader(t)
	defer masterKey.Close()

	thumbnail := bytes.Repeat([]byte{0xFF, 0xD8, 0xFF}, 64)
	require.NoError(t, h.AddPreviewMedia(cryptoDomain.XChaCha20Poly1305, masterKey, thumbnail))

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	decoded, _, err := Deserialize(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	recovered, err := decoded.DecryptPreviewMedia(masterKey)
	require.NoError(t, err)
	assert.Equal(t, thumbnail, recovered)
}

func TestFileHeader_GenerateAAD_BindsToHeaderBytes(t *testing.T) {
	h1, _, _ := buildHeader(t)
	h2, _, _ := buildHeader(t)

	aad1, err := h1.GenerateAAD()
	require.NoError(t, err)
	aad2, err := h2.GenerateAAD()
	require.NoError(t, err)

	assert.NotEqual(t, aad1, aad2)
}

func TestFileHeader_GenerateAAD_UnaffectedByMetadataOrPreview(t *testing.T) {
	h, masterKey, _ := buildHeader(t)
	defer masterKey.Close()

	before, err := h.GenerateAAD()
	require.NoError(t, err)

	require.NoError(t, h.AddMetadata(V1, cryptoDomain.XChaCha20Poly1305, masterKey, []byte(`{"file_name":"photo.png"}`)))
	require.NoError(t, h.AddPreviewMedia(cryptoDomain.XChaCha20Poly1305, masterKey, []byte("thumbnail bytes")))

	after, err := h.GenerateAAD()
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestFileHeader_GenerateAAD_SurvivesMetadataTampering(t *testing.T) {
	h, masterKey, _ := buildHeader(t)
	defer masterKey.Close()

	require.NoError(t, h.AddMetadata(V1, cryptoDomain.XChaCha20Poly1305, masterKey, []byte(`{"file_name":"photo.png"}`)))

	wantAAD, err := h.GenerateAAD()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	tampered := buf.Bytes()
	tampered[len(tampered)-1] ^= 0xff // flip a byte inside the metadata ciphertext

	decoded, _, err := Deserialize(bytes.NewReader(tampered))
	require.NoError(t, err)

	gotAAD, err := decoded.GenerateAAD()
	require.NoError(t, err)
	assert.Equal(t, wantAAD, gotAAD, "tampering with metadata ciphertext must not change the body AAD")

	_, err = decoded.DecryptMetadata(masterKey)
	assert.Error(t, err, "the tampered metadata section itself must still fail to decrypt")
}

func TestFileHeader_AddKeyslot_TooMany(t *testing.T) {
	masterKey, err := cryptoDomain.GenerateMasterKey()
	require.NoError(t, err)
	defer masterKey.Close()

	h, err := New(cryptoDomain.Aes256Gcm, nil)
	require.NoError(t, err)

	for i := 0; i < MaxKeyslots; i++ {
		ks, err := keyslot.New(cryptoDomain.Aes256Gcm, hashing.BalloonBlake3, hashing.Standard, []byte("pw"), masterKey)
		require.NoError(t, err)
		require.NoError(t, h.AddKeyslot(ks))
	}

	extra, err := keyslot.New(cryptoDomain.Aes256Gcm, hashing.BalloonBlake3, hashing.Standard, []byte("pw"), masterKey)
	require.NoError(t, err)
	err = h.AddKeyslot(extra)
	assert.ErrorIs(t, err, cryptoDomain.ErrTooManyKeyslots)
}

func TestDeserialize_RejectsBadMagic(t *testing.T) {
	_, _, err := Deserialize(bytes.NewReader([]byte("not-a-filevault-header-at-all")))
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidFileHeader)
}
