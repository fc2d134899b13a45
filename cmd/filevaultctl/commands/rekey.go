package commands

import (
	"context"
	"fmt"
	"io"
)

// RunRekey replaces the vault's root key with one derived from a new
// (password, secretKey) pair, rewrapping every stored record in place.
func RunRekey(ctx context.Context, statePath, newPassword, newSecretKey, hashingAlgorithmStr, hashingTierStr string, out io.Writer) error {
	hashingAlgorithm, err := parseHashingAlgorithm(hashingAlgorithmStr)
	if err != nil {
		return err
	}
	hashingTier, err := parseHashingTier(hashingTierStr)
	if err != nil {
		return err
	}

	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	if err := vault.Manager.ChangeMasterPassword(ctx, newPassword, newSecretKey, hashingAlgorithm, hashingTier); err != nil {
		return fmt.Errorf("rekey failed: %w", err)
	}

	fmt.Fprintln(out, "vault rekeyed")
	return nil
}
