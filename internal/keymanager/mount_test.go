package keymanager

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
)

func TestManager_Mount(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RecoversUserKey", func(t *testing.T) {
		m, _, _ := onboardedManager(t)
		userKey := []byte("a-very-secret-user-key")
		id, err := m.AddToKeystore(ctx, userKey, cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)

		require.NoError(t, m.Mount(id))
		got, err := m.GetKey(id)
		require.NoError(t, err)
		assert.Equal(t, userKey, got)
	})

	t.Run("Success_MountingTwiceIsNoOp", func(t *testing.T) {
		m, _, _ := onboardedManager(t)
		id, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)

		require.NoError(t, m.Mount(id))
		require.NoError(t, m.Mount(id))
		assert.Len(t, m.ListMounted(), 1)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		m, _, _ := onboardedManager(t)
		err := m.Mount(uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
	})

	t.Run("Error_NotUnlocked", func(t *testing.T) {
		m := newTestManager(t)
		err := m.Mount(uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrNotUnlocked)
	})
}

func TestManager_Unmount(t *testing.T) {
	ctx := context.Background()
	m, _, _ := onboardedManager(t)
	id, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, m.Mount(id))

	m.Unmount(id)
	_, err = m.GetKey(id)
	assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotMounted)

	// Unmounting an already-unmounted key is a no-op.
	m.Unmount(id)
}

func TestManager_UnmountAll(t *testing.T) {
	ctx := context.Background()
	m, _, _ := onboardedManager(t)
	id1, err := m.AddToKeystore(ctx, []byte("key-1"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
	require.NoError(t, err)
	id2, err := m.AddToKeystore(ctx, []byte("key-2"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, m.Mount(id1))
	require.NoError(t, m.Mount(id2))

	m.UnmountAll()
	assert.Empty(t, m.ListMounted())
}

func TestManager_GetKey(t *testing.T) {
	m, _, _ := onboardedManager(t)

	t.Run("Error_NotMounted", func(t *testing.T) {
		_, err := m.GetKey(uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotMounted)
	})

	t.Run("Success_ReturnsACopy", func(t *testing.T) {
		userKey := []byte("a-user-key")
		id, err := m.AddToKeystore(context.Background(), userKey, cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)
		require.NoError(t, m.Mount(id))

		got, err := m.GetKey(id)
		require.NoError(t, err)
		got[0] ^= 0xFF

		gotAgain, err := m.GetKey(id)
		require.NoError(t, err)
		assert.Equal(t, userKey, gotAgain)
	})
}
