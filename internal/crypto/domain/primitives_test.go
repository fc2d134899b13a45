package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateMasterKey(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)
	assert.Equal(t, KeySize, key.Len())

	other, err := GenerateMasterKey()
	require.NoError(t, err)
	assert.NotEqual(t, key.Expose(), other.Expose())
}

func TestGenerateSalt(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 16)
}

func TestGenerateNoncePrefix(t *testing.T) {
	t.Run("xchacha20-poly1305", func(t *testing.T) {
		nonce, err := GenerateNoncePrefix(XChaCha20Poly1305)
		require.NoError(t, err)
		assert.Len(t, nonce, 20)
	})

	t.Run("aes-256-gcm", func(t *testing.T) {
		nonce, err := GenerateNoncePrefix(Aes256Gcm)
		require.NoError(t, err)
		assert.Len(t, nonce, 8)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := GenerateNoncePrefix(Algorithm("rot13"))
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})
}

func TestConstantTimeCompare(t *testing.T) {
	t.Run("equal", func(t *testing.T) {
		assert.True(t, ConstantTimeCompare([]byte("abc"), []byte("abc")))
	})

	t.Run("different length", func(t *testing.T) {
		assert.False(t, ConstantTimeCompare([]byte("abc"), []byte("abcd")))
	})

	t.Run("different contents", func(t *testing.T) {
		assert.False(t, ConstantTimeCompare([]byte("abc"), []byte("abd")))
	})
}
