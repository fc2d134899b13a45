package keymanager

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
	"github.com/allisson/filevault/internal/keymanager/repository"
)

// ChangeMasterPassword replaces the root key with one derived from a new
// (password, secretKey) pair, rewrapping every record's master key under the
// new root key. Every record's master key plaintext, and therefore every
// EncryptedKey it wraps, is preserved bit-for-bit: only the outer wrapping
// under the root-derived record key changes.
//
// The new state is built in a scratch map before anything is committed. The
// persisted Upsert calls run inside a single database transaction when the
// manager has a TxManager attached (see WithTxManager), so a repository
// error partway through rolls back every row already written in this call
// and leaves the existing keystore and root key completely untouched.
func (m *Manager) ChangeMasterPassword(
	ctx context.Context,
	newPassword, newSecretKey string,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUnlocked {
		return cryptoDomain.ErrNotUnlocked
	}

	newSalt, err := cryptoDomain.GenerateSalt()
	if err != nil {
		return err
	}
	newRootKey, err := deriveRootKey([]byte(newPassword), []byte(newSecretKey), newSalt, hashingAlgorithm, hashingTier)
	if err != nil {
		return err
	}

	rewrapped := make(map[uuid.UUID]repository.StoredKeyRow, len(m.keystore))
	for id, rec := range m.keystore {
		// The verification record's content salt doubles as the root key's
		// own KDF salt; every other record gets an independent fresh one.
		recordSalt := newSalt
		if id != m.verificationUUID {
			recordSalt, err = cryptoDomain.GenerateSalt()
			if err != nil {
				newRootKey.Close()
				return err
			}
		}
		row, err := m.rewrapRecord(rec.StoredKeyRow, newRootKey, recordSalt, hashingAlgorithm, hashingTier)
		if err != nil {
			newRootKey.Close()
			return err
		}
		rewrapped[id] = row
	}

	upsertAll := func(ctx context.Context) error {
		for id, row := range rewrapped {
			if m.keystore[id].MemoryOnly {
				continue
			}
			if err := m.repo.Upsert(ctx, row); err != nil {
				return err
			}
		}
		return nil
	}
	if m.txManager != nil {
		err = m.txManager.WithTx(ctx, upsertAll)
	} else {
		err = upsertAll(ctx)
	}
	if err != nil {
		newRootKey.Close()
		return err
	}

	for id, row := range rewrapped {
		m.keystore[id].StoredKeyRow = row
	}

	m.rootKey.Close()
	m.rootKey = newRootKey
	return nil
}

// rewrapRecord decrypts row's master key under the current root key and
// re-encrypts it under a record key derived from newRootKey and newSalt. The
// record's own content salt is replaced by newSalt so its record key is
// bound to the new root key, matching what SetMasterPassword will derive on
// the next unlock.
func (m *Manager) rewrapRecord(
	row repository.StoredKeyRow,
	newRootKey *cryptoDomain.Secret,
	newSalt []byte,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
) (repository.StoredKeyRow, error) {
	algorithm, err := parseAlgorithm(row.Algorithm)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}

	oldRecordKey, err := deriveRecordKey(m.rootKey, row.ContentSalt)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}
	masterKeyBytes, err := openWith(m.aeadManager, oldRecordKey, algorithm, row.EncryptedMasterKey, row.MasterKeyNonce, nil)
	oldRecordKey.Close()
	if err != nil {
		return repository.StoredKeyRow{}, cryptoDomain.ErrDecryptionFailed
	}
	masterKey := cryptoDomain.NewSecret(masterKeyBytes)
	defer masterKey.Close()

	newRecordKey, err := deriveRecordKey(newRootKey, newSalt)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}
	defer newRecordKey.Close()

	encMasterKey, masterNonce, err := sealWith(m.aeadManager, newRecordKey, algorithm, masterKey.Expose(), nil)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}

	row.ContentSalt = newSalt
	row.HashingAlgorithm = encodeHashingSpec(hashingAlgorithm, hashingTier)
	row.MasterKeyNonce = masterNonce
	row.EncryptedMasterKey = encMasterKey
	return row, nil
}
