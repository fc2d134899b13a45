package keymanager

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
)

// KeyManager is the operation surface of *Manager, extracted so that
// instrumentation (see NewKeyManagerWithMetrics) can wrap any implementation.
type KeyManager interface {
	Hydrate(ctx context.Context) error
	State() State
	HasMasterPassword() bool
	Close()

	Onboard(ctx context.Context, algorithm cryptoDomain.Algorithm, hashingAlgorithm hashing.Algorithm, hashingTier hashing.Tier) (masterPassword, secretKey string, err error)
	SetMasterPassword(ctx context.Context, password, secretKey string) error
	ClearRootKey()
	ChangeMasterPassword(ctx context.Context, newPassword, newSecretKey string, hashingAlgorithm hashing.Algorithm, hashingTier hashing.Tier) error

	AddToKeystore(ctx context.Context, userKey []byte, algorithm cryptoDomain.Algorithm, hashingAlgorithm hashing.Algorithm, hashingTier hashing.Tier, memoryOnly, automount bool, id *uuid.UUID) (uuid.UUID, error)
	AccessKeystore(id uuid.UUID) (Record, error)
	DumpKeystore() []Record
	List() []Record
	SaveToDatabase(ctx context.Context, id uuid.UUID) error
	GetDefault() *uuid.UUID
	SetDefault(ctx context.Context, id uuid.UUID) error
	ChangeAutomountStatus(ctx context.Context, id uuid.UUID, automount bool) error
	RemoveKey(ctx context.Context, id uuid.UUID) error

	Mount(id uuid.UUID) error
	Unmount(id uuid.UUID)
	UnmountAll()
	GetKey(id uuid.UUID) ([]byte, error)
	ListMounted() []uuid.UUID

	BackupKeystore() ([]byte, error)
	ImportKeystoreBackup(ctx context.Context, data []byte, oldPassword, oldSecretKey string) (installed, skipped int, err error)
}

var _ KeyManager = (*Manager)(nil)
