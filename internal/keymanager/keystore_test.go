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

func onboardedManager(t *testing.T) (*Manager, string, string) {
	t.Helper()
	m := newTestManager(t)
	password, secretKey, err := m.Onboard(context.Background(), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard)
	require.NoError(t, err)
	return m, password, secretKey
}

func TestManager_AddToKeystore(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_Persisted", func(t *testing.T) {
		m, _, _ := onboardedManager(t)

		id, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)

		rec, err := m.AccessKeystore(id)
		require.NoError(t, err)
		assert.False(t, rec.MemoryOnly)
	})

	t.Run("Success_MemoryOnlyNotInRepository", func(t *testing.T) {
		m, _, _ := onboardedManager(t)

		id, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, true, false, nil)
		require.NoError(t, err)

		rows, err := m.repo.FindMany(ctx, false)
		require.NoError(t, err)
		for _, row := range rows {
			assert.NotEqual(t, id, row.UUID)
		}
	})

	t.Run("Success_CallerSuppliedID", func(t *testing.T) {
		m, _, _ := onboardedManager(t)
		want := uuid.Must(uuid.NewV7())

		got, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, &want)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Error_DuplicateUUID", func(t *testing.T) {
		m, _, _ := onboardedManager(t)
		id := uuid.Must(uuid.NewV7())
		_, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, &id)
		require.NoError(t, err)

		_, err = m.AddToKeystore(ctx, []byte("another-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, &id)
		assert.ErrorIs(t, err, cryptoDomain.ErrDuplicateUUID)
	})

	t.Run("Error_NotUnlocked", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrNotUnlocked)
	})
}

func TestManager_AccessKeystore(t *testing.T) {
	m, _, _ := onboardedManager(t)

	t.Run("Error_NotFound", func(t *testing.T) {
		_, err := m.AccessKeystore(uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
	})
}

func TestManager_DumpKeystore(t *testing.T) {
	ctx := context.Background()
	m, _, _ := onboardedManager(t)

	id, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
	require.NoError(t, err)

	records := m.DumpKeystore()
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].UUID)

	for _, rec := range m.List() {
		assert.NotEqual(t, verificationKeyName, rec.Name)
	}
}

func TestManager_SaveToDatabase(t *testing.T) {
	ctx := context.Background()
	m, _, _ := onboardedManager(t)

	id, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, true, false, nil)
	require.NoError(t, err)

	require.NoError(t, m.SaveToDatabase(ctx, id))

	rows, err := m.repo.FindMany(ctx, false)
	require.NoError(t, err)
	found := false
	for _, row := range rows {
		if row.UUID == id {
			found = true
		}
	}
	assert.True(t, found)

	t.Run("Error_NotFound", func(t *testing.T) {
		err := m.SaveToDatabase(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
	})
}

func TestManager_SetDefault(t *testing.T) {
	ctx := context.Background()
	m, _, _ := onboardedManager(t)

	id1, err := m.AddToKeystore(ctx, []byte("key-1"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
	require.NoError(t, err)
	id2, err := m.AddToKeystore(ctx, []byte("key-2"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
	require.NoError(t, err)

	require.NoError(t, m.SetDefault(ctx, id1))
	require.Equal(t, id1, *m.GetDefault())

	require.NoError(t, m.SetDefault(ctx, id2))
	require.Equal(t, id2, *m.GetDefault())

	rec1, err := m.AccessKeystore(id1)
	require.NoError(t, err)
	assert.False(t, rec1.IsDefault)

	t.Run("Error_NotFound", func(t *testing.T) {
		err := m.SetDefault(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
	})
}

func TestManager_ChangeAutomountStatus(t *testing.T) {
	ctx := context.Background()
	m, _, _ := onboardedManager(t)

	id, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
	require.NoError(t, err)

	require.NoError(t, m.ChangeAutomountStatus(ctx, id, true))
	rec, err := m.AccessKeystore(id)
	require.NoError(t, err)
	assert.True(t, rec.Automount)

	t.Run("Error_MemoryOnly", func(t *testing.T) {
		memID, err := m.AddToKeystore(ctx, []byte("mem-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, true, false, nil)
		require.NoError(t, err)
		err = m.ChangeAutomountStatus(ctx, memID, true)
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyMemoryOnly)
	})
}

func TestManager_RemoveKey(t *testing.T) {
	ctx := context.Background()
	m, _, _ := onboardedManager(t)

	id, err := m.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, m.Mount(id))
	require.NoError(t, m.SetDefault(ctx, id))

	require.NoError(t, m.RemoveKey(ctx, id))

	_, err = m.AccessKeystore(id)
	assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
	assert.Nil(t, m.GetDefault())
	assert.NotContains(t, m.ListMounted(), id)

	t.Run("Error_NotFound", func(t *testing.T) {
		err := m.RemoveKey(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyNotFound)
	})
}
