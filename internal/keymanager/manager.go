// Package keymanager implements the root-key lifecycle, in-memory keystore,
// and mount table described by the cryptographic core: onboarding a fresh
// vault, unlocking it with a master password and secret key, wrapping and
// unwrapping per-record master keys under the root key, mounting recovered
// user keys for use, and rekeying or backing up the whole keystore.
//
// A Manager is constructed per vault open and destroyed at vault close via
// Close; it is never a package-level singleton.
package keymanager

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
	"github.com/allisson/filevault/internal/crypto/service"
	"github.com/allisson/filevault/internal/database"
	"github.com/allisson/filevault/internal/keymanager/repository"
)

// State is a key manager's position in its Uninitialized -> Locked ->
// Unlocked lifecycle.
type State int

const (
	// StateUninitialized means no verification key has been persisted yet.
	// Onboard is the only operation allowed.
	StateUninitialized State = iota

	// StateLocked means a verification key exists but no root key is held
	// in memory. SetMasterPassword is allowed; ImportKeystoreBackup re-wraps
	// records under the current root key and returns ErrNotUnlocked here.
	StateLocked

	// StateUnlocked means the root key is held in memory. Every operation
	// is allowed.
	StateUnlocked
)

// credentialSecretSize is the byte length of a generated master password
// and secret key, before base64 encoding.
const credentialSecretSize = 32

// Manager holds a vault's root key, keystore, and mount table. All exported
// methods are safe for concurrent use: reads take a shared lock, mutations
// take an exclusive one, and the rekey and backup-import paths build their
// replacement state in a scratch map under the exclusive lock before
// swapping it in, so a failure partway through never mutates existing state.
type Manager struct {
	mu sync.RWMutex

	state            State
	rootKey          *cryptoDomain.Secret
	keystore         map[uuid.UUID]*keyRecord
	keymount         map[uuid.UUID]*cryptoDomain.Secret
	defaultUUID      *uuid.UUID
	verificationUUID uuid.UUID

	aeadManager      service.AEADManager
	hashingAlgorithm hashing.Algorithm
	hashingTier      hashing.Tier
	repo             repository.KeystoreRepository
	txManager        database.TxManager
}

// New creates a Manager in the Uninitialized state. Call Hydrate to load any
// previously persisted records before use.
func New(repo repository.KeystoreRepository, hashingAlgorithm hashing.Algorithm, hashingTier hashing.Tier) *Manager {
	return &Manager{
		state:            StateUninitialized,
		keystore:         make(map[uuid.UUID]*keyRecord),
		keymount:         make(map[uuid.UUID]*cryptoDomain.Secret),
		aeadManager:      service.NewAEADManager(),
		hashingAlgorithm: hashingAlgorithm,
		hashingTier:      hashingTier,
		repo:             repo,
	}
}

// WithTxManager attaches a database.TxManager used to wrap the multi-row
// repository writes issued by ChangeMasterPassword and ImportKeystoreBackup
// in a single SQL transaction. Callers backed by a real database should set
// this right after New; it is left nil for the in-memory repository used by
// tests and the CLI's no-database mode, where each Upsert is already a
// single atomic map write.
func (m *Manager) WithTxManager(tx database.TxManager) *Manager {
	m.txManager = tx
	return m
}

// Hydrate loads every persisted record from the repository into the
// keystore. It should be called once, right after New, before the vault
// accepts any operation.
func (m *Manager) Hydrate(ctx context.Context) error {
	rows, err := m.repo.FindMany(ctx, false)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range rows {
		m.keystore[row.UUID] = &keyRecord{StoredKeyRow: row}
		if row.Name == verificationKeyName {
			m.verificationUUID = row.UUID
		}
		if row.IsDefault {
			id := row.UUID
			m.defaultUUID = &id
		}
	}
	if m.verificationUUID != uuid.Nil {
		m.state = StateLocked
	}
	return nil
}

// State reports the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// HasMasterPassword reports whether onboarding has completed, i.e. whether a
// verification key has been persisted.
func (m *Manager) HasMasterPassword() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verificationUUID != uuid.Nil
}

// Close zeroizes the root key and every mounted key. Call it when the vault
// closes; the Manager must not be used afterward.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rootKey != nil {
		m.rootKey.Close()
		m.rootKey = nil
	}
	for id, secret := range m.keymount {
		secret.Close()
		delete(m.keymount, id)
	}
	m.state = StateUninitialized
}

// Onboard initializes a brand new vault: it generates a random master
// password and secret key, derives the root key from them, and wraps a fresh
// verification master key under it. It can only be called once; afterward
// the manager is Unlocked and the caller must show the returned password and
// secret key to the user exactly once, since neither is stored anywhere.
func (m *Manager) Onboard(
	ctx context.Context,
	algorithm cryptoDomain.Algorithm,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
) (masterPassword, secretKey string, err error) {
	if !algorithm.Valid() {
		return "", "", cryptoDomain.ErrUnsupportedAlgorithm
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUninitialized {
		return "", "", cryptoDomain.ErrAlreadyOnboarded
	}

	masterPassword, err = randomCredential()
	if err != nil {
		return "", "", err
	}
	secretKey, err = randomCredential()
	if err != nil {
		return "", "", err
	}

	salt, err := cryptoDomain.GenerateSalt()
	if err != nil {
		return "", "", err
	}

	rootKey, err := deriveRootKey([]byte(masterPassword), []byte(secretKey), salt, hashingAlgorithm, hashingTier)
	if err != nil {
		return "", "", err
	}

	verificationMasterKey, err := cryptoDomain.GenerateMasterKey()
	if err != nil {
		rootKey.Close()
		return "", "", err
	}
	defer verificationMasterKey.Close()

	row, err := m.wrapNewRecord(
		uuid.Must(uuid.NewV7()), verificationKeyName,
		algorithm, hashingAlgorithm, hashingTier,
		rootKey, salt, verificationMasterKey.Expose(), []byte(verificationKeyName),
	)
	if err != nil {
		rootKey.Close()
		return "", "", err
	}

	if err := m.repo.Upsert(ctx, row); err != nil {
		rootKey.Close()
		return "", "", err
	}

	m.keystore[row.UUID] = &keyRecord{StoredKeyRow: row}
	m.verificationUUID = row.UUID
	m.rootKey = rootKey
	m.state = StateUnlocked

	return masterPassword, secretKey, nil
}

// wrapNewRecord builds a StoredKeyRow wrapping userKey under a fresh
// per-record master key, itself wrapped under rootKey using contentSalt.
func (m *Manager) wrapNewRecord(
	id uuid.UUID,
	name string,
	algorithm cryptoDomain.Algorithm,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
	rootKey *cryptoDomain.Secret,
	contentSalt []byte,
	userKey []byte,
	saltField []byte,
) (repository.StoredKeyRow, error) {
	masterKey, err := cryptoDomain.GenerateMasterKey()
	if err != nil {
		return repository.StoredKeyRow{}, err
	}
	defer masterKey.Close()

	recordKey, err := deriveRecordKey(rootKey, contentSalt)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}
	defer recordKey.Close()

	encMasterKey, masterNonce, err := sealWith(m.aeadManager, recordKey, algorithm, masterKey.Expose(), nil)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}

	encKey, keyNonce, err := sealWith(m.aeadManager, masterKey, algorithm, userKey, nil)
	if err != nil {
		return repository.StoredKeyRow{}, err
	}

	if saltField == nil {
		saltField, err = cryptoDomain.GenerateSalt()
		if err != nil {
			return repository.StoredKeyRow{}, err
		}
	}

	return repository.StoredKeyRow{
		UUID:               id,
		Algorithm:          string(algorithm),
		HashingAlgorithm:   encodeHashingSpec(hashingAlgorithm, hashingTier),
		ContentSalt:        contentSalt,
		MasterKeyNonce:     masterNonce,
		EncryptedMasterKey: encMasterKey,
		KeyNonce:           keyNonce,
		EncryptedKey:       encKey,
		Salt:               saltField,
		Name:               name,
		Version:            1,
	}, nil
}

// SetMasterPassword derives a candidate root key from password and
// secretKey and attempts to unwrap the verification key with it. On success
// the manager transitions to Unlocked and mounts every automount=true key;
// if no verification key exists it returns ErrNoMasterPassword, and on any
// other failure it returns ErrIncorrectPassword and remains Locked.
func (m *Manager) SetMasterPassword(ctx context.Context, password, secretKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.verificationUUID == uuid.Nil {
		return cryptoDomain.ErrNoMasterPassword
	}

	verRec := m.keystore[m.verificationUUID]

	algorithm, err := parseAlgorithm(verRec.Algorithm)
	if err != nil {
		return cryptoDomain.ErrIncorrectPassword
	}
	hashingAlgorithm, hashingTier, err := parseHashingSpec(verRec.HashingAlgorithm)
	if err != nil {
		return cryptoDomain.ErrIncorrectPassword
	}

	candidateRootKey, err := deriveRootKey([]byte(password), []byte(secretKey), verRec.ContentSalt, hashingAlgorithm, hashingTier)
	if err != nil {
		return cryptoDomain.ErrIncorrectPassword
	}

	recordKey, err := deriveRecordKey(candidateRootKey, verRec.ContentSalt)
	if err != nil {
		candidateRootKey.Close()
		return cryptoDomain.ErrIncorrectPassword
	}

	_, err = openWith(m.aeadManager, recordKey, algorithm, verRec.EncryptedMasterKey, verRec.MasterKeyNonce, nil)
	recordKey.Close()
	if err != nil {
		candidateRootKey.Close()
		return cryptoDomain.ErrIncorrectPassword
	}

	if m.rootKey != nil {
		m.rootKey.Close()
	}
	m.rootKey = candidateRootKey
	m.state = StateUnlocked

	for id, rec := range m.keystore {
		if id == m.verificationUUID || !rec.Automount {
			continue
		}
		_ = m.mountLocked(id)
	}

	return nil
}

// ClearRootKey drops the root key from memory, returning the manager to
// Locked. The mount table is deliberately left untouched: already-mounted
// keys remain usable until explicitly unmounted.
func (m *Manager) ClearRootKey() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rootKey != nil {
		m.rootKey.Close()
		m.rootKey = nil
	}
	if m.verificationUUID != uuid.Nil {
		m.state = StateLocked
	} else {
		m.state = StateUninitialized
	}
}

// randomCredential generates a URL-safe base64 string from a fresh
// cryptographically random byte buffer, used for the onboarding master
// password and secret key.
func randomCredential() (string, error) {
	buf := make([]byte, credentialSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// deriveRootKey derives the process-memory root key from a master password
// and secret key pair using salt, the content salt of the verification
// record. A record written at one hashing tier must be unlocked with that
// same tier.
func deriveRootKey(
	password, secretKey, salt []byte,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
) (*cryptoDomain.Secret, error) {
	params, err := hashing.ParamsFor(hashingAlgorithm, hashingTier)
	if err != nil {
		return nil, err
	}
	material := make([]byte, 0, len(password)+len(secretKey))
	material = append(material, password...)
	material = append(material, secretKey...)
	return hashing.Hash(material, salt, params)
}
