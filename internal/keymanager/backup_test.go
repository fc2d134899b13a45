package keymanager

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
	"github.com/allisson/filevault/internal/keymanager/repository"
)

// failOnNthUpsertRepository wraps a KeystoreRepository and fails the nth
// call to Upsert, succeeding on every call before it. It is used to prove
// that a mid-batch repository failure leaves the destination keystore
// untouched rather than partially populated.
type failOnNthUpsertRepository struct {
	repository.KeystoreRepository
	failAt int
	calls  int
}

var errUpsertFailed = errors.New("upsert failed")

func (r *failOnNthUpsertRepository) Upsert(ctx context.Context, row repository.StoredKeyRow) error {
	r.calls++
	if r.calls == r.failAt {
		return errUpsertFailed
	}
	return r.KeystoreRepository.Upsert(ctx, row)
}

func TestManager_BackupAndImport(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RoundTripsUserKeyMaterial", func(t *testing.T) {
		source, password, secretKey := onboardedManager(t)
		userKey := []byte("a-very-secret-user-key")
		id, err := source.AddToKeystore(ctx, userKey, cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)

		data, err := source.BackupKeystore()
		require.NoError(t, err)

		dest := New(repository.NewInMemoryKeystoreRepository(), hashing.Argon2id, hashing.Standard)
		require.NoError(t, dest.Hydrate(ctx))
		_, _, err = dest.Onboard(ctx, cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard)
		require.NoError(t, err)

		installed, skipped, err := dest.ImportKeystoreBackup(ctx, data, password, secretKey)
		require.NoError(t, err)
		assert.Equal(t, 1, installed)
		assert.Equal(t, 0, skipped)

		require.NoError(t, dest.Mount(id))
		got, err := dest.GetKey(id)
		require.NoError(t, err)
		assert.Equal(t, userKey, got)
	})

	t.Run("Success_SkipsAlreadyPresentUUIDs", func(t *testing.T) {
		source, password, secretKey := onboardedManager(t)
		id, err := source.AddToKeystore(ctx, []byte("a-user-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)
		data, err := source.BackupKeystore()
		require.NoError(t, err)

		dest := New(repository.NewInMemoryKeystoreRepository(), hashing.Argon2id, hashing.Standard)
		require.NoError(t, dest.Hydrate(ctx))
		_, _, err = dest.Onboard(ctx, cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard)
		require.NoError(t, err)
		_, err = dest.AddToKeystore(ctx, []byte("unrelated"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, &id)
		require.NoError(t, err)

		installed, skipped, err := dest.ImportKeystoreBackup(ctx, data, password, secretKey)
		require.NoError(t, err)
		assert.Equal(t, 0, installed)
		assert.Equal(t, 1, skipped)
	})

	t.Run("Error_WrongCredentials", func(t *testing.T) {
		source, _, _ := onboardedManager(t)
		data, err := source.BackupKeystore()
		require.NoError(t, err)

		dest := New(repository.NewInMemoryKeystoreRepository(), hashing.Argon2id, hashing.Standard)
		require.NoError(t, dest.Hydrate(ctx))
		_, _, err = dest.Onboard(ctx, cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard)
		require.NoError(t, err)

		_, _, err = dest.ImportKeystoreBackup(ctx, data, "wrong-password", "wrong-secret-key")
		assert.ErrorIs(t, err, cryptoDomain.ErrIncorrectPassword)
	})

	t.Run("Success_ExcludesMemoryOnlyRecords", func(t *testing.T) {
		source, _, _ := onboardedManager(t)
		_, err := source.AddToKeystore(ctx, []byte("mem-key"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, true, false, nil)
		require.NoError(t, err)

		data, err := source.BackupKeystore()
		require.NoError(t, err)

		var doc struct {
			Records []struct {
				Name string `json:"name"`
			} `json:"records"`
		}
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Len(t, doc.Records, 1) // only the verification record
	})

	t.Run("Error_MidBatchUpsertFailureLeavesKeystoreUntouched", func(t *testing.T) {
		source, password, secretKey := onboardedManager(t)
		_, err := source.AddToKeystore(ctx, []byte("user-key-one"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)
		_, err = source.AddToKeystore(ctx, []byte("user-key-two"), cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard, false, false, nil)
		require.NoError(t, err)
		data, err := source.BackupKeystore()
		require.NoError(t, err)

		failingRepo := &failOnNthUpsertRepository{KeystoreRepository: repository.NewInMemoryKeystoreRepository(), failAt: 2}
		dest := New(failingRepo, hashing.Argon2id, hashing.Standard)
		require.NoError(t, dest.Hydrate(ctx))
		_, _, err = dest.Onboard(ctx, cryptoDomain.XChaCha20Poly1305, hashing.Argon2id, hashing.Standard)
		require.NoError(t, err)

		installed, skipped, err := dest.ImportKeystoreBackup(ctx, data, password, secretKey)
		assert.ErrorIs(t, err, errUpsertFailed)
		assert.Equal(t, 0, installed)
		assert.Equal(t, 0, skipped)

		// Neither of the two imported records was installed into the live
		// keystore, regardless of which one the repository failed on: the
		// keystore is only mutated after every Upsert in the batch succeeds.
		backupDoc := struct {
			Records []struct {
				UUID uuid.UUID `json:"uuid"`
				Name string    `json:"name"`
			} `json:"records"`
		}{}
		require.NoError(t, json.Unmarshal(data, &backupDoc))
		for _, rec := range backupDoc.Records {
			if rec.Name == verificationKeyName {
				continue
			}
			mountErr := dest.Mount(rec.UUID)
			assert.ErrorIs(t, mountErr, cryptoDomain.ErrKeyNotFound, "record from the failed batch must not be present")
		}
	})
}
