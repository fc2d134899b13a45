package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/allisson/filevault/internal/errors"
)

// InMemoryKeystoreRepository is a non-persistent KeystoreRepository used by
// tests and by the CLI when no database is configured.
type InMemoryKeystoreRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]StoredKeyRow
}

// NewInMemoryKeystoreRepository creates an empty in-memory repository.
func NewInMemoryKeystoreRepository() *InMemoryKeystoreRepository {
	return &InMemoryKeystoreRepository{rows: make(map[uuid.UUID]StoredKeyRow)}
}

// Upsert inserts or replaces the row keyed by row.UUID.
func (r *InMemoryKeystoreRepository) Upsert(_ context.Context, row StoredKeyRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.UUID] = row
	return nil
}

// Delete removes the row with the given id, if present.
func (r *InMemoryKeystoreRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

// FindMany returns every row, or only automount=true rows when automountOnly
// is set.
func (r *InMemoryKeystoreRepository) FindMany(_ context.Context, automountOnly bool) ([]StoredKeyRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]StoredKeyRow, 0, len(r.rows))
	for _, row := range r.rows {
		if automountOnly && !row.Automount {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Update patches automount, default status, and/or name on an existing row.
func (r *InMemoryKeystoreRepository) Update(
	_ context.Context,
	id uuid.UUID,
	automount, isDefault *bool,
	name *string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if automount != nil {
		row.Automount = *automount
	}
	if isDefault != nil {
		row.IsDefault = *isDefault
	}
	if name != nil {
		row.Name = *name
	}
	r.rows[id] = row
	return nil
}
