package commands

import (
	"context"
	"fmt"
	"io"
	"os"
)

// RunBackup writes the vault's full keystore backup (including the
// verification record, excluding memory-only records) to backupPath.
func RunBackup(ctx context.Context, statePath, backupPath string, out io.Writer) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	data, err := vault.Manager.BackupKeystore()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup file %s: %w", backupPath, err)
	}

	fmt.Fprintf(out, "backup written to %s\n", backupPath)
	return nil
}

// RunRestore imports a backup produced by RunBackup that was encrypted
// under a different (password, secretKey) pair, re-wrapping every record
// under the current vault's root key.
func RunRestore(ctx context.Context, statePath, backupPath, oldPassword, oldSecretKey string, out io.Writer) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file %s: %w", backupPath, err)
	}

	installed, skipped, err := vault.Manager.ImportKeystoreBackup(ctx, data, oldPassword, oldSecretKey)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Fprintf(out, "restored %d keys, skipped %d already present\n", installed, skipped)
	return nil
}
