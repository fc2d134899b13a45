package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/filevault/internal/database"
	apperrors "github.com/allisson/filevault/internal/errors"
)

// PostgreSQLKeystoreRepository implements KeystoreRepository for PostgreSQL,
// using the native UUID type and BYTEA for binary columns. It supports
// transaction-aware operations via database.GetTx.
type PostgreSQLKeystoreRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeystoreRepository creates a new PostgreSQL keystore repository.
func NewPostgreSQLKeystoreRepository(db *sql.DB) *PostgreSQLKeystoreRepository {
	return &PostgreSQLKeystoreRepository{db: db}
}

// Upsert inserts or updates a stored key row.
func (p *PostgreSQLKeystoreRepository) Upsert(ctx context.Context, row StoredKeyRow) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO keystore (
			uuid, algorithm, hashing_algorithm, content_salt, master_key_nonce,
			encrypted_master_key, key_nonce, encrypted_key, salt, automount,
			favorite, name, is_default, version
		  ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		  ON CONFLICT (uuid) DO UPDATE SET
			algorithm = EXCLUDED.algorithm,
			hashing_algorithm = EXCLUDED.hashing_algorithm,
			content_salt = EXCLUDED.content_salt,
			master_key_nonce = EXCLUDED.master_key_nonce,
			encrypted_master_key = EXCLUDED.encrypted_master_key,
			key_nonce = EXCLUDED.key_nonce,
			encrypted_key = EXCLUDED.encrypted_key,
			salt = EXCLUDED.salt,
			automount = EXCLUDED.automount,
			favorite = EXCLUDED.favorite,
			name = EXCLUDED.name,
			is_default = EXCLUDED.is_default,
			version = EXCLUDED.version`

	_, err := querier.ExecContext(
		ctx, query,
		row.UUID, row.Algorithm, row.HashingAlgorithm, row.ContentSalt, row.MasterKeyNonce,
		row.EncryptedMasterKey, row.KeyNonce, row.EncryptedKey, row.Salt, row.Automount,
		row.Favorite, row.Name, row.IsDefault, row.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert keystore row")
	}
	return nil
}

// Delete removes a stored key row by id.
func (p *PostgreSQLKeystoreRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM keystore WHERE uuid = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete keystore row")
	}
	return nil
}

// FindMany returns every stored row, or only automount=true rows when
// automountOnly is set.
func (p *PostgreSQLKeystoreRepository) FindMany(ctx context.Context, automountOnly bool) ([]StoredKeyRow, error) {
	querier := database.GetTx(ctx, p.db)

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

	return scanRows(rows)
}

// Update patches automount, default status, and/or name on an existing row.
func (p *PostgreSQLKeystoreRepository) Update(
	ctx context.Context,
	id uuid.UUID,
	automount, isDefault *bool,
	name *string,
) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE keystore SET
			automount = COALESCE($1, automount),
			is_default = COALESCE($2, is_default),
			name = COALESCE($3, name)
		  WHERE uuid = $4`,
		automount, isDefault, name, id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update keystore row")
	}
	return checkAffected(result)
}

func scanRows(rows *sql.Rows) ([]StoredKeyRow, error) {
	var out []StoredKeyRow
	for rows.Next() {
		var row StoredKeyRow
		if err := rows.Scan(
			&row.UUID, &row.Algorithm, &row.HashingAlgorithm, &row.ContentSalt, &row.MasterKeyNonce,
			&row.EncryptedMasterKey, &row.KeyNonce, &row.EncryptedKey, &row.Salt, &row.Automount,
			&row.Favorite, &row.Name, &row.IsDefault, &row.Version,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan keystore row")
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate keystore rows")
	}
	return out, nil
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
