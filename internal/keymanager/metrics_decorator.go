package keymanager

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
	"github.com/allisson/filevault/internal/metrics"
)

// keyManagerWithMetrics decorates KeyManager with business metrics,
// recording an operation counter and a duration histogram for every
// ctx-carrying, fallible operation. It never records a password, key,
// secret key, or uuid as a metric attribute.
type keyManagerWithMetrics struct {
	KeyManager
	metrics metrics.BusinessMetrics
}

// NewKeyManagerWithMetrics wraps next with metrics recording under the
// "keymanager" domain.
func NewKeyManagerWithMetrics(next KeyManager, m metrics.BusinessMetrics) KeyManager {
	return &keyManagerWithMetrics{KeyManager: next, metrics: m}
}

func (k *keyManagerWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	k.metrics.RecordOperation(ctx, "keymanager", operation, status)
	k.metrics.RecordDuration(ctx, "keymanager", operation, time.Since(start), status)
}

func (k *keyManagerWithMetrics) Hydrate(ctx context.Context) error {
	start := time.Now()
	err := k.KeyManager.Hydrate(ctx)
	k.record(ctx, "hydrate", start, err)
	return err
}

func (k *keyManagerWithMetrics) Onboard(
	ctx context.Context,
	algorithm cryptoDomain.Algorithm,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
) (string, string, error) {
	start := time.Now()
	password, secretKey, err := k.KeyManager.Onboard(ctx, algorithm, hashingAlgorithm, hashingTier)
	k.record(ctx, "onboard", start, err)
	return password, secretKey, err
}

func (k *keyManagerWithMetrics) SetMasterPassword(ctx context.Context, password, secretKey string) error {
	start := time.Now()
	err := k.KeyManager.SetMasterPassword(ctx, password, secretKey)
	k.record(ctx, "set_master_password", start, err)
	return err
}

func (k *keyManagerWithMetrics) ChangeMasterPassword(
	ctx context.Context,
	newPassword, newSecretKey string,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
) error {
	start := time.Now()
	err := k.KeyManager.ChangeMasterPassword(ctx, newPassword, newSecretKey, hashingAlgorithm, hashingTier)
	k.record(ctx, "change_master_password", start, err)
	return err
}

func (k *keyManagerWithMetrics) AddToKeystore(
	ctx context.Context,
	userKey []byte,
	algorithm cryptoDomain.Algorithm,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
	memoryOnly, automount bool,
	id *uuid.UUID,
) (uuid.UUID, error) {
	start := time.Now()
	newID, err := k.KeyManager.AddToKeystore(ctx, userKey, algorithm, hashingAlgorithm, hashingTier, memoryOnly, automount, id)
	k.record(ctx, "add_to_keystore", start, err)
	return newID, err
}

func (k *keyManagerWithMetrics) SaveToDatabase(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := k.KeyManager.SaveToDatabase(ctx, id)
	k.record(ctx, "save_to_database", start, err)
	return err
}

func (k *keyManagerWithMetrics) SetDefault(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := k.KeyManager.SetDefault(ctx, id)
	k.record(ctx, "set_default", start, err)
	return err
}

func (k *keyManagerWithMetrics) ChangeAutomountStatus(ctx context.Context, id uuid.UUID, automount bool) error {
	start := time.Now()
	err := k.KeyManager.ChangeAutomountStatus(ctx, id, automount)
	k.record(ctx, "change_automount_status", start, err)
	return err
}

func (k *keyManagerWithMetrics) RemoveKey(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := k.KeyManager.RemoveKey(ctx, id)
	k.record(ctx, "remove_key", start, err)
	return err
}

func (k *keyManagerWithMetrics) ImportKeystoreBackup(
	ctx context.Context,
	data []byte,
	oldPassword, oldSecretKey string,
) (int, int, error) {
	start := time.Now()
	installed, skipped, err := k.KeyManager.ImportKeystoreBackup(ctx, data, oldPassword, oldSecretKey)
	k.record(ctx, "import_keystore_backup", start, err)
	return installed, skipped, err
}
