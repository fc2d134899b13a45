package keymanager

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/keymanager/repository"
)

// backupRow is the JSON wire shape of a single keystore record inside a
// backup file. It mirrors repository.StoredKeyRow field for field; the
// separate type exists so the wire format is not silently affected by
// unrelated changes to the repository struct's tags.
type backupRow struct {
	UUID               uuid.UUID `json:"uuid"`
	Algorithm          string    `json:"algorithm"`
	HashingAlgorithm   string    `json:"hashing_algorithm"`
	ContentSalt        []byte    `json:"content_salt"`
	MasterKeyNonce     []byte    `json:"master_key_nonce"`
	EncryptedMasterKey []byte    `json:"encrypted_master_key"`
	KeyNonce           []byte    `json:"key_nonce"`
	EncryptedKey       []byte    `json:"encrypted_key"`
	Salt               []byte    `json:"salt"`
	Automount          bool      `json:"automount"`
	Favorite           bool      `json:"favorite"`
	Name               string    `json:"name"`
	IsDefault          bool      `json:"is_default"`
	Version            int       `json:"version"`
}

// keystoreBackup is the top-level JSON document produced by BackupKeystore.
type keystoreBackup struct {
	Records []backupRow `json:"records"`
}

func toBackupRow(row repository.StoredKeyRow) backupRow {
	return backupRow{
		UUID:               row.UUID,
		Algorithm:          row.Algorithm,
		HashingAlgorithm:   row.HashingAlgorithm,
		ContentSalt:        row.ContentSalt,
		MasterKeyNonce:     row.MasterKeyNonce,
		EncryptedMasterKey: row.EncryptedMasterKey,
		KeyNonce:           row.KeyNonce,
		EncryptedKey:       row.EncryptedKey,
		Salt:               row.Salt,
		Automount:          row.Automount,
		Favorite:           row.Favorite,
		Name:               row.Name,
		IsDefault:          row.IsDefault,
		Version:            row.Version,
	}
}

func fromBackupRow(row backupRow) repository.StoredKeyRow {
	return repository.StoredKeyRow{
		UUID:               row.UUID,
		Algorithm:          row.Algorithm,
		HashingAlgorithm:   row.HashingAlgorithm,
		ContentSalt:        row.ContentSalt,
		MasterKeyNonce:     row.MasterKeyNonce,
		EncryptedMasterKey: row.EncryptedMasterKey,
		KeyNonce:           row.KeyNonce,
		EncryptedKey:       row.EncryptedKey,
		Salt:               row.Salt,
		Automount:          row.Automount,
		Favorite:           row.Favorite,
		Name:               row.Name,
		IsDefault:          row.IsDefault,
		Version:            row.Version,
	}
}

// BackupKeystore serializes every non-memory-only record, including the
// verification record, to a portable JSON document. A memory-only record has
// no durable identity to restore into, so it is silently excluded.
func (m *Manager) BackupKeystore() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	backup := keystoreBackup{Records: make([]backupRow, 0, len(m.keystore))}
	for _, rec := range m.keystore {
		if rec.MemoryOnly {
			continue
		}
		backup.Records = append(backup.Records, toBackupRow(rec.StoredKeyRow))
	}
	return json.Marshal(backup)
}

// ImportKeystoreBackup restores records from a backup produced by
// BackupKeystore that was encrypted under a different (password, secretKey)
// pair. It verifies that pair against the backup's own embedded verification
// record, then decrypts each record's master key under the backup's root key
// and re-wraps it under this manager's current root key. Records whose uuid
// already exists in the keystore are skipped, and their count is reported
// alongside the number actually installed.
//
// Every record in the batch is re-wrapped into a scratch map before any
// repository write happens; if re-wrapping any one record fails (corrupted
// backup data, wrong credentials surfacing late), the function returns
// before touching the repository or the live keystore. The persisted writes
// that follow run inside a single database transaction when the manager has
// a TxManager attached (see WithTxManager), so a mid-batch repository error
// leaves both the database and the in-memory keystore exactly as they were.
func (m *Manager) ImportKeystoreBackup(
	ctx context.Context,
	data []byte,
	oldPassword, oldSecretKey string,
) (installed, skipped int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUnlocked {
		return 0, 0, cryptoDomain.ErrNotUnlocked
	}

	var backup keystoreBackup
	if err := json.Unmarshal(data, &backup); err != nil {
		return 0, 0, cryptoDomain.ErrInvalidFileHeader
	}

	var verification *backupRow
	for i := range backup.Records {
		if backup.Records[i].Name == verificationKeyName {
			verification = &backup.Records[i]
			break
		}
	}
	if verification == nil {
		return 0, 0, cryptoDomain.ErrNoMasterPassword
	}

	algorithm, err := parseAlgorithm(verification.Algorithm)
	if err != nil {
		return 0, 0, cryptoDomain.ErrIncorrectPassword
	}
	hashingAlgorithm, hashingTier, err := parseHashingSpec(verification.HashingAlgorithm)
	if err != nil {
		return 0, 0, cryptoDomain.ErrIncorrectPassword
	}

	oldRootKey, err := deriveRootKey([]byte(oldPassword), []byte(oldSecretKey), verification.ContentSalt, hashingAlgorithm, hashingTier)
	if err != nil {
		return 0, 0, cryptoDomain.ErrIncorrectPassword
	}
	defer oldRootKey.Close()

	oldVerRecordKey, err := deriveRecordKey(oldRootKey, verification.ContentSalt)
	if err != nil {
		return 0, 0, cryptoDomain.ErrIncorrectPassword
	}
	_, err = openWith(m.aeadManager, oldVerRecordKey, algorithm, verification.EncryptedMasterKey, verification.MasterKeyNonce, nil)
	oldVerRecordKey.Close()
	if err != nil {
		return 0, 0, cryptoDomain.ErrIncorrectPassword
	}

	rewrapped := make(map[uuid.UUID]repository.StoredKeyRow)
	for _, row := range backup.Records {
		if row.Name == verificationKeyName {
			continue
		}
		if _, exists := m.keystore[row.UUID]; exists {
			skipped++
			continue
		}

		newRow, err := m.reWrapUnderCurrentRoot(fromBackupRow(row), oldRootKey)
		if err != nil {
			return 0, 0, err
		}
		rewrapped[row.UUID] = newRow
	}

	upsertAll := func(ctx context.Context) error {
		for _, row := range rewrapped {
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
		return 0, 0, err
	}

	for id, row := range rewrapped {
		m.keystore[id] = &keyRecord{StoredKeyRow: row}
		installed++
	}

	return installed, skipped, nil
}

// reWrapUnderCurrentRoot decrypts row's master key under oldRootKey and
// re-encrypts it under a fresh record key derived from the manager's current
// root key and a newly generated content salt.
func (m *Manager) reWrapUnderCurrentRoot(row repository.StoredKeyRow, oldRootKey *cryptoDomain.Secret) (repository.StoredKeyRow, error) {
	algorithm, err := parseAlgorithm(row.Algorithm)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}

	oldRecordKey, err := deriveRecordKey(oldRootKey, row.ContentSalt)
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

	newSalt, err := cryptoDomain.GenerateSalt()
	if err != nil {
		return repository.StoredKeyRow{}, err
	}
	newRecordKey, err := deriveRecordKey(m.rootKey, newSalt)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}
	defer newRecordKey.Close()

	encMasterKey, masterNonce, err := sealWith(m.aeadManager, newRecordKey, algorithm, masterKey.Expose(), nil)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}

	row.ContentSalt = newSalt
	row.HashingAlgorithm = encodeHashingSpec(m.hashingAlgorithm, m.hashingTier)
	row.MasterKeyNonce = masterNonce
	row.EncryptedMasterKey = encMasterKey
	row.IsDefault = false
	return row, nil
}
