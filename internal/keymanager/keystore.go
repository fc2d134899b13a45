package keymanager

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
)

// AddToKeystore wraps userKey under a fresh master key, itself wrapped
// under the root key, and stores the resulting record under a generated
// uuid (or the caller-supplied one, if id is non-nil). A memory-only record
// is never passed to the repository. Requires the manager to be Unlocked.
func (m *Manager) AddToKeystore(
	ctx context.Context,
	userKey []byte,
	algorithm cryptoDomain.Algorithm,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
	memoryOnly, automount bool,
	id *uuid.UUID,
) (uuid.UUID, error) {
	if !algorithm.Valid() {
		return uuid.Nil, cryptoDomain.ErrUnsupportedAlgorithm
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUnlocked {
		return uuid.Nil, cryptoDomain.ErrNotUnlocked
	}

	newID := uuid.Must(uuid.NewV7())
	if id != nil {
		newID = *id
	}
	if _, exists := m.keystore[newID]; exists {
		return uuid.Nil, cryptoDomain.ErrDuplicateUUID
	}

	contentSalt, err := cryptoDomain.GenerateSalt()
	if err != nil {
		return uuid.Nil, err
	}

	row, err := m.wrapNewRecord(newID, "", algorithm, hashingAlgorithm, hashingTier, m.rootKey, contentSalt, userKey, nil)
	if err != nil {
		return uuid.Nil, err
	}
	row.Automount = automount

	if !memoryOnly {
		if err := m.repo.Upsert(ctx, row); err != nil {
			return uuid.Nil, err
		}
	}

	m.keystore[newID] = &keyRecord{StoredKeyRow: row, MemoryOnly: memoryOnly}
	return newID, nil
}

// AccessKeystore returns a read-only view of a single stored record. It
// never exposes plaintext key material.
func (m *Manager) AccessKeystore(id uuid.UUID) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.keystore[id]
	if !ok {
		return Record{}, cryptoDomain.ErrKeyNotFound
	}
	return newRecord(rec), nil
}

// DumpKeystore (and its alias List) returns every stored record except the
// verification key, which is never user-visible outside of a backup.
func (m *Manager) DumpKeystore() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]Record, 0, len(m.keystore))
	for id, rec := range m.keystore {
		if id == m.verificationUUID {
			continue
		}
		records = append(records, newRecord(rec))
	}
	return records
}

// List is an alias for DumpKeystore, matching the outer operation surface's
// naming.
func (m *Manager) List() []Record {
	return m.DumpKeystore()
}

// SaveToDatabase promotes a memory-only record to persistent storage.
func (m *Manager) SaveToDatabase(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.keystore[id]
	if !ok {
		return cryptoDomain.ErrKeyNotFound
	}
	if err := m.repo.Upsert(ctx, rec.StoredKeyRow); err != nil {
		return err
	}
	rec.MemoryOnly = false
	return nil
}

// GetDefault returns the id of the current default key, if one is set.
func (m *Manager) GetDefault() *uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.defaultUUID == nil {
		return nil
	}
	id := *m.defaultUUID
	return &id
}

// SetDefault marks id as the single default key, clearing the previous
// default if one existed.
func (m *Manager) SetDefault(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.keystore[id]
	if !ok {
		return cryptoDomain.ErrKeyNotFound
	}

	if m.defaultUUID != nil && *m.defaultUUID != id {
		if prev, ok := m.keystore[*m.defaultUUID]; ok {
			prev.IsDefault = false
			if !prev.MemoryOnly {
				no := false
				if err := m.repo.Update(ctx, prev.UUID, nil, &no, nil); err != nil {
					return err
				}
			}
		}
	}

	rec.IsDefault = true
	if !rec.MemoryOnly {
		yes := true
		if err := m.repo.Update(ctx, id, nil, &yes, nil); err != nil {
			return err
		}
	}
	m.defaultUUID = &id
	return nil
}

// ChangeAutomountStatus updates whether a key is mounted automatically on
// unlock. It fails on memory-only records, which have nowhere persistent to
// record the flag.
func (m *Manager) ChangeAutomountStatus(ctx context.Context, id uuid.UUID, automount bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.keystore[id]
	if !ok {
		return cryptoDomain.ErrKeyNotFound
	}
	if rec.MemoryOnly {
		return cryptoDomain.ErrKeyMemoryOnly
	}
	if err := m.repo.Update(ctx, id, &automount, nil, nil); err != nil {
		return err
	}
	rec.Automount = automount
	return nil
}

// RemoveKey unmounts (if mounted) and removes a stored key, deleting it from
// the repository unless it is memory-only.
func (m *Manager) RemoveKey(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.keystore[id]
	if !ok {
		return cryptoDomain.ErrKeyNotFound
	}

	m.unmountLocked(id)

	if !rec.MemoryOnly {
		if err := m.repo.Delete(ctx, id); err != nil {
			return err
		}
	}

	delete(m.keystore, id)
	if m.defaultUUID != nil && *m.defaultUUID == id {
		m.defaultUUID = nil
	}
	if m.verificationUUID == id {
		m.verificationUUID = uuid.Nil
	}
	return nil
}
