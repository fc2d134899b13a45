// Package commands implements the filevaultctl subcommands: one file per
// command, each a RunXxx(ctx, ...) function that opens a vault, performs a
// single key-manager operation, and persists the result.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/allisson/filevault/internal/config"
	cryptoDomain "github.com/allisson/filevault/internal/crypto/domain"
	"github.com/allisson/filevault/internal/crypto/hashing"
	"github.com/allisson/filevault/internal/database"
	"github.com/allisson/filevault/internal/keymanager"
	"github.com/allisson/filevault/internal/keymanager/repository"
	"github.com/allisson/filevault/internal/metrics"
)

// DefaultStatePath is the local JSON keystore file used when no database
// connection is configured.
const DefaultStatePath = "filevault.json"

// Vault bundles an open key manager together with the collaborators
// needed to persist its state back out when the command finishes. Manager
// is a KeyManager rather than a concrete *keymanager.Manager so that
// METRICS_NAMESPACE can transparently substitute the metrics-decorated
// implementation without every command needing to know about it.
type Vault struct {
	Manager         keymanager.KeyManager
	Logger          *slog.Logger
	repo            repository.KeystoreRepository
	statePath       string
	sqlHandle       closer
	shutdownMetrics func()
}

type closer interface {
	Close() error
}

// stateFile is the on-disk shape of the local JSON keystore used when no
// database is configured.
type stateFile struct {
	Rows []repository.StoredKeyRow `json:"rows"`
}

// OpenVault loads configuration, connects to a database when one is
// configured, or falls back to a local JSON file backing an in-memory
// repository, constructs a key manager, and hydrates it.
func OpenVault(ctx context.Context, statePath string) (*Vault, error) {
	cfg := config.Load()
	logger := newLogger(cfg)

	hashingAlgorithm, hashingTier, err := defaultHashingSpec(cfg)
	if err != nil {
		return nil, err
	}

	if os.Getenv("DB_CONNECTION_STRING") != "" || statePath == "" {
		return openDatabaseVault(ctx, cfg, logger, hashingAlgorithm, hashingTier)
	}
	return openFileVault(ctx, cfg, logger, hashingAlgorithm, hashingTier, statePath)
}

func openDatabaseVault(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
) (*Vault, error) {
	db, err := database.Connect(database.Config{
		Driver:             cfg.DBDriver,
		ConnectionString:   cfg.DBConnectionString,
		MaxOpenConnections: cfg.DBMaxOpenConnections,
		MaxIdleConnections: cfg.DBMaxIdleConnections,
		ConnMaxLifetime:    cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var repo repository.KeystoreRepository
	switch cfg.DBDriver {
	case "mysql":
		repo = repository.NewMySQLKeystoreRepository(db)
	default:
		repo = repository.NewPostgreSQLKeystoreRepository(db)
	}

	km := keymanager.New(repo, hashingAlgorithm, hashingTier).WithTxManager(database.NewTxManager(db))
	manager, shutdownMetrics, err := wrapWithMetrics(km)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := manager.Hydrate(ctx); err != nil {
		_ = db.Close()
		shutdownMetrics()
		return nil, fmt.Errorf("failed to hydrate keystore: %w", err)
	}

	return &Vault{Manager: manager, Logger: logger, repo: repo, sqlHandle: db, shutdownMetrics: shutdownMetrics}, nil
}

func openFileVault(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	hashingAlgorithm hashing.Algorithm,
	hashingTier hashing.Tier,
	statePath string,
) (*Vault, error) {
	repo := repository.NewInMemoryKeystoreRepository()

	if data, err := os.ReadFile(statePath); err == nil {
		var sf stateFile
		if err := json.Unmarshal(data, &sf); err != nil {
			return nil, fmt.Errorf("failed to parse state file %s: %w", statePath, err)
		}
		for _, row := range sf.Rows {
			if err := repo.Upsert(ctx, row); err != nil {
				return nil, err
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read state file %s: %w", statePath, err)
	}

	manager, shutdownMetrics, err := wrapWithMetrics(keymanager.New(repo, hashingAlgorithm, hashingTier))
	if err != nil {
		return nil, err
	}
	if err := manager.Hydrate(ctx); err != nil {
		shutdownMetrics()
		return nil, fmt.Errorf("failed to hydrate keystore: %w", err)
	}

	return &Vault{Manager: manager, Logger: logger, repo: repo, statePath: statePath, shutdownMetrics: shutdownMetrics}, nil
}

// wrapWithMetrics decorates manager with the OpenTelemetry-backed metrics
// recorder when METRICS_NAMESPACE is set, returning a no-op shutdown
// otherwise.
func wrapWithMetrics(manager *keymanager.Manager) (keymanager.KeyManager, func(), error) {
	namespace := os.Getenv("METRICS_NAMESPACE")
	if namespace == "" {
		return manager, func() {}, nil
	}

	provider, err := metrics.NewProvider(namespace)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), namespace)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	shutdown := func() {
		_ = provider.Shutdown(context.Background())
	}
	return keymanager.NewKeyManagerWithMetrics(manager, businessMetrics), shutdown, nil
}

// Close persists the in-memory keystore back to its state file (when not
// database-backed), shuts down the key manager, and releases the
// underlying database connection, if any.
func (v *Vault) Close(ctx context.Context) {
	if v.statePath != "" {
		if err := v.save(ctx); err != nil {
			v.Logger.Error("failed to save vault state", slog.Any("error", err))
		}
	}
	v.Manager.Close()
	if v.sqlHandle != nil {
		if err := v.sqlHandle.Close(); err != nil {
			v.Logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}
	if v.shutdownMetrics != nil {
		v.shutdownMetrics()
	}
}

func (v *Vault) save(ctx context.Context) error {
	rows, err := v.repo.FindMany(ctx, false)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(stateFile{Rows: rows}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(v.statePath, data, 0600)
}

// defaultHashingSpec resolves the Argon2id cost tier cfg selects, always
// paired with the Argon2id algorithm; BalloonBlake3 is opt-in per command
// via --hashing-algorithm.
func defaultHashingSpec(cfg *config.Config) (hashing.Algorithm, hashing.Tier, error) {
	tier := hashing.Tier(cfg.DefaultHashingTier)
	if _, err := hashing.ParamsFor(hashing.Argon2id, tier); err != nil {
		return "", "", fmt.Errorf("invalid DEFAULT_HASHING_TIER %q: %w", cfg.DefaultHashingTier, err)
	}
	return hashing.Argon2id, tier, nil
}

// parseUUID translates a CLI uuid flag value, reporting a command-friendly
// error on malformed input.
func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return id, nil
}

// parseAlgorithm translates a CLI --algorithm flag value into the domain
// Algorithm type.
func parseAlgorithm(s string) (cryptoDomain.Algorithm, error) {
	switch s {
	case "xchacha20-poly1305", "xchacha20", "":
		return cryptoDomain.XChaCha20Poly1305, nil
	case "aes-256-gcm", "aes-gcm":
		return cryptoDomain.Aes256Gcm, nil
	default:
		return "", fmt.Errorf("invalid algorithm: %s (valid options: xchacha20-poly1305, aes-256-gcm)", s)
	}
}

// parseHashingAlgorithm translates a CLI --hashing-algorithm flag value.
func parseHashingAlgorithm(s string) (hashing.Algorithm, error) {
	switch s {
	case "argon2id", "":
		return hashing.Argon2id, nil
	case "balloon-blake3":
		return hashing.BalloonBlake3, nil
	default:
		return "", fmt.Errorf("invalid hashing algorithm: %s (valid options: argon2id, balloon-blake3)", s)
	}
}

// parseHashingTier translates a CLI --hashing-tier flag value.
func parseHashingTier(s string) (hashing.Tier, error) {
	switch hashing.Tier(s) {
	case hashing.Standard, hashing.Hardened, hashing.Paranoid:
		return hashing.Tier(s), nil
	case "":
		return hashing.Standard, nil
	default:
		return "", fmt.Errorf("invalid hashing tier: %s (valid options: standard, hardened, paranoid)", s)
	}
}
