package keymanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
)

func TestManager_ChangeMasterPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_PreservesUserKeyMaterial", func(t *testing.T) {
		m, _, _ := onboardedManager(t)
		userKey := []byte("a-very-secret-user-key")
		id, err := m.AddToKeystore(ctx, userKey, cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)

		require.NoError(t, m.ChangeMasterPassword(ctx, "new-password", "new-secret-key", hashing.Argon2id, hashing.Standard))

		require.NoError(t, m.Mount(id))
		got, err := m.GetKey(id)
		require.NoError(t, err)
		assert.Equal(t, userKey, got)
	})

	t.Run("Success_OldCredentialsNoLongerUnlock", func(t *testing.T) {
		m, password, secretKey := onboardedManager(t)
		require.NoError(t, m.ChangeMasterPassword(ctx, "new-password", "new-secret-key", hashing.Argon2id, hashing.Standard))

		m.ClearRootKey()
		err := m.SetMasterPassword(ctx, password, secretKey)
		assert.ErrorIs(t, err, cryptoDomain.ErrIncorrectPassword)

		require.NoError(t, m.SetMasterPassword(ctx, "new-password", "new-secret-key"))
	})

	t.Run("Error_NotUnlocked", func(t *testing.T) {
		m := newTestManager(t)
		err := m.ChangeMasterPassword(ctx, "new-password", "new-secret-key", hashing.Argon2id, hashing.Standard)
		assert.ErrorIs(t, err, cryptoDomain.ErrNotUnlocked)
	})
}
