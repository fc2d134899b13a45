// Package repository defines the persistence collaborator for the key
// manager: a store of stored-key rows indexed by uuid, implemented for
// PostgreSQL and MySQL, plus an in-memory variant for tests and no-database
// use. The key manager treats this collaborator as authoritative for every
// record with MemoryOnly false; memory-only records are never passed to it.
package repository

import (
	"context"

	"github.com/google/uuid"
)

// StoredKeyRow is the persistable form of a key manager record. It never
// carries a memory-only flag: callers filter memory-only records out before
// calling Upsert.
type StoredKeyRow struct {
	UUID               uuid.UUID
	Algorithm          string
	HashingAlgorithm   string
	ContentSalt        []byte
	MasterKeyNonce     []byte
	EncryptedMasterKey []byte
	KeyNonce           []byte
	EncryptedKey       []byte
	Salt               []byte
	Automount          bool
	Favorite           bool
	Name               string
	IsDefault          bool
	Version            int
}

// KeystoreRepository persists StoredKeyRow records.
type KeystoreRepository interface {
	// Upsert inserts or updates a single row, keyed by UUID.
	Upsert(ctx context.Context, row StoredKeyRow) error

	// Delete removes a row by id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindMany returns every stored row, or only automount=true rows when
	// automountOnly is set.
	FindMany(ctx context.Context, automountOnly bool) ([]StoredKeyRow, error)

	// Update patches automount, default status, and/or name on an existing
	// row. A nil pointer leaves the corresponding column untouched.
	Update(ctx context.Context, id uuid.UUID, automount, isDefault *bool, name *string) error
}
