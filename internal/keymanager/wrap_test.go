package keymanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/service"
)

func TestDeriveRecordKey_DifferentSaltsDiffer(t *testing.T) {
	rootKey := cryptoDomain.NewSecret([]byte("0123456789abcdef0123456789abcdef"))
	defer rootKey.Close()

	salt1, err := cryptoDomain.GenerateSalt()
	require.NoError(t, err)
	salt2, err := cryptoDomain.GenerateSalt()
	require.NoError(t, err)

	key1, err := deriveRecordKey(rootKey, salt1)
	require.NoError(t, err)
	defer key1.Close()

	key2, err := deriveRecordKey(rootKey, salt2)
	require.NoError(t, err)
	defer key2.Close()

	assert.NotEqual(t, key1.Expose(), key2.Expose())
}

func TestSealAndOpenWith(t *testing.T) {
	key := cryptoDomain.NewSecret(make([]byte, cryptoDomain.KeySize))
	defer key.Close()
	manager := service.NewAEADManager()

	ciphertext, nonce, err := sealWith(manager, key, cryptoDomain.XChaCha20Poly1305, []byte("plaintext"), nil)
	require.NoError(t, err)

	plaintext, err := openWith(manager, key, cryptoDomain.XChaCha20Poly1305, ciphertext, nonce, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext"), plaintext)
}

func TestOpenWith_WrongKeyFails(t *testing.T) {
	key := cryptoDomain.NewSecret(make([]byte, cryptoDomain.KeySize))
	defer key.Close()
	wrongKey := cryptoDomain.NewSecret(append(make([]byte, cryptoDomain.KeySize-1), 1))
	defer wrongKey.Close()
	manager := service.NewAEADManager()

	ciphertext, nonce, err := sealWith(manager, key, cryptoDomain.XChaCha20Poly1305, []byte("plaintext"), nil)
	require.NoError(t, err)

	_, err = openWith(manager, wrongKey, cryptoDomain.XChaCha20Poly1305, ciphertext, nonce, nil)
	assert.Error(t, err)
}
