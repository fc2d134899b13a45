package keymanager

import (
	"github.com/allisson/filevault/internal/keymanager/repository"
)

// verificationKeyName is the reserved record name used for the distinguished
// stored-key record whose successful unwrap proves a (password, secret key)
// pair derives the correct root key. It is excluded from List/DumpKeystore
// but always present in a keystore backup.
const verificationKeyName = "__verification__"

// keyRecord is the key manager's in-memory mirror of a stored key: a
// persistable StoredKeyRow plus the memory_only flag, which is never itself
// persisted (a memory-only record is simply never passed to the repository).
type keyRecord struct {
	repository.StoredKeyRow
	MemoryOnly bool
}

// Record is the read-only view of a stored key returned by AccessKeystore,
// DumpKeystore, and List. It never carries plaintext key material: the
// master key is sealed under a record key derived from the root key, and
// the user key is sealed under that master key.
type Record struct {
	repository.StoredKeyRow
	MemoryOnly bool
}

func newRecord(rec *keyRecord) Record {
	return Record{StoredKeyRow: rec.StoredKeyRow, MemoryOnly: rec.MemoryOnly}
}
