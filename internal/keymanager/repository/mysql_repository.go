package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/filevault/internal/database"
	apperrors "github.com/allisson/filevault/internal/errors"
)

// MySQLKeystoreRepository implements KeystoreRepository for MySQL, using
// BINARY(16) for the uuid column and BLOB for binary columns. It supports
// transaction-aware operations via database.GetTx.
type MySQLKeystoreRepository struct {
	db *sql.DB
}

// NewMySQLKeystoreRepository creates a new MySQL keystore repository.
func NewMySQLKeystoreRepository(db *sql.DB) *MySQLKeystoreRepository {
	return &MySQLKeystoreRepository{db: db}
}

// Upsert inserts or updates a stored key row.
func (m *MySQLKeystoreRepository) Upsert(ctx context.Context, row StoredKeyRow) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO keystore (
			uuid, algorithm, hashing_algorithm, content_salt, master_key_nonce,
			encrypted_master_key, key_nonce, encrypted_key, salt, automount,
			favorite, name, is_default, version
		  ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		  ON DUPLICATE KEY UPDATE
			algorithm = VALUES(algorithm),
			hashing_algorithm = VALUES(hashing_algorithm),
			content_salt = VALUES(content_salt),
			master_key_nonce = VALUES(master_key_nonce),
			encrypted_master_key = VALUES(encrypted_master_key),
			key_nonce = VALUES(key_nonce),
			encrypted_key = VALUES(encrypted_key),
			salt = VALUES(salt),
			automount = VALUES(automount),
			favorite = VALUES(favorite),
			name = VALUES(name),
			is_default = VALUES(is_default),
			version = VALUES(version)`

	binUUID, err := row.UUID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal uuid")
	}

	_, err = querier.ExecContext(
		ctx, query,
		binUUID, row.Algorithm, row.HashingAlgorithm, row.ContentSalt, row.MasterKeyNonce,
		row.EncryptedMasterKey, row.KeyNonce, row.EncryptedKey, row.Salt, row.Automount,
		row.Favorite, row.Name, row.IsDefault, row.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert keystore row")
	}
	return nil
}

// Delete removes a stored key row by id.
func (m *MySQLKeystoreRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	binUUID, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal uuid")
	}

	_, err = querier.ExecContext(ctx, `DELETE FROM keystore WHERE uuid = ?`, binUUID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete keystore row")
	}
	return nil
}

// FindMany returns every stored row, or only automount=true rows when
// automountOnly is set.
func (m *MySQLKeystoreRepository) FindMany(ctx context.Context, automountOnly bool) ([]StoredKeyRow, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT uuid, algorithm, hashing_algorithm, content_salt, master_key_nonce,
			encrypted_master_key, key_nonce, encrypted_key, salt, automount,
			favorite, name, is_default, version
		  FROM keystore`
	if automountOnly {
		query += ` WHERE automount = true`
	}

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query keystore rows")
	}
	defer rows.Close()

	var out []StoredKeyRow
	for rows.Next() {
		var row StoredKeyRow
		var binUUID []byte
		if err := rows.Scan(
			&binUUID, &row.Algorithm, &row.HashingAlgorithm, &row.ContentSalt, &row.MasterKeyNonce,
			&row.EncryptedMasterKey, &row.KeyNonce, &row.EncryptedKey, &row.Salt, &row.Automount,
			&row.Favorite, &row.Name, &row.IsDefault, &row.Version,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan keystore row")
		}
		if err := row.UUID.UnmarshalBinary(binUUID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal uuid")
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate keystore rows")
	}
	return out, nil
}

// Update patches automount, default status, and/or name on an existing row.
func (m *MySQLKeystoreRepository) Update(
	ctx context.Context,
	id uuid.UUID,
	automount, isDefault *bool,
	name *string,
) error {
	querier := database.GetTx(ctx, m.db)

	binUUID, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal uuid")
	}

	result, err := querier.ExecContext(
		ctx,
		`UPDATE keystore SET
			automount = COALESCE(?, automount),
			is_default = COALESCE(?, is_default),
			name = COALESCE(?, name)
		  WHERE uuid = ?`,
		automount, isDefault, name, binUUID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update keystore row")
	}
	return checkAffected(result)
}
