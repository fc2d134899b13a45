package keymanager

import (
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
)

// Mount recovers a stored key's user key material and makes it available
// through GetKey. Mounting an already-mounted key is a no-op. Requires the
// manager to be Unlocked.
func (m *Manager) Mount(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mountLocked(id)
}

// mountLocked performs the mount; callers must already hold m.mu for
// writing.
func (m *Manager) mountLocked(id uuid.UUID) error {
	if m.state != StateUnlocked {
		return cryptoDomain.ErrNotUnlocked
	}
	if _, ok := m.keymount[id]; ok {
		return nil
	}

	rec, ok := m.keystore[id]
	if !ok {
		return cryptoDomain.ErrKeyNotFound
	}

	algorithm, err := parseAlgorithm(rec.Algorithm)
	if err != nil {
		return err
	}

	recordKey, err := deriveRecordKey(m.rootKey, rec.ContentSalt)
	if err != nil {
		return err
	}
	defer recordKey.Close()

	masterKeyBytes, err := openWith(m.aeadManager, recordKey, algorithm, rec.EncryptedMasterKey, rec.MasterKeyNonce, nil)
	if err != nil {
		return cryptoDomain.ErrDecryptionFailed
	}
	masterKey := cryptoDomain.NewSecret(masterKeyBytes)
	defer masterKey.Close()

	userKeyBytes, err := openWith(m.aeadManager, masterKey, algorithm, rec.EncryptedKey, rec.KeyNonce, nil)
	if err != nil {
		return cryptoDomain.ErrDecryptionFailed
	}

	m.keymount[id] = cryptoDomain.NewSecret(userKeyBytes)
	return nil
}

// Unmount drops a key from the mount table and zeroizes its recovered key
// material. Unmounting an already-unmounted key is a no-op.
func (m *Manager) Unmount(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmountLocked(id)
}

func (m *Manager) unmountLocked(id uuid.UUID) {
	if secret, ok := m.keymount[id]; ok {
		secret.Close()
		delete(m.keymount, id)
	}
}

// UnmountAll drops every mounted key and zeroizes its recovered key
// material.
func (m *Manager) UnmountAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.keymount {
		m.unmountLocked(id)
	}
}

// GetKey returns a copy of the recovered user key material for a mounted
// id. The caller owns the returned slice and is responsible for clearing it
// once done.
func (m *Manager) GetKey(id uuid.UUID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	secret, ok := m.keymount[id]
	if !ok {
		return nil, cryptoDomain.ErrKeyNotMounted
	}
	out := make([]byte, secret.Len())
	copy(out, secret.Expose())
	return out, nil
}

// ListMounted returns the ids of every currently mounted key.
func (m *Manager) ListMounted() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(m.keymount))
	for id := range m.keymount {
		ids = append(ids, id)
	}
	return ids
}
