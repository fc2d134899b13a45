package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	validation "github.com/jellydator/validation"

	appvalidation "github.com/allisson/filevault/internal/validation"
)

// RunAdd wraps a base64-encoded user key under the vault's root key and
// stores it under a generated uuid, printing the new uuid to out. The
// vault must be Unlocked.
func RunAdd(
	ctx context.Context,
	statePath, userKeyB64, algorithmStr, hashingAlgorithmStr, hashingTierStr string,
	memoryOnly, automount bool,
	out io.Writer,
) error {
	if err := validation.Validate(userKeyB64, validation.Required, appvalidation.NotBlank, appvalidation.Base64); err != nil {
		return appvalidation.WrapValidationError(err)
	}
	userKey, err := base64.StdEncoding.DecodeString(userKeyB64)
	if err != nil {
		return fmt.Errorf("invalid --key: %w", err)
	}

	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}
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

	id, err := vault.Manager.AddToKeystore(ctx, userKey, algorithm, hashingAlgorithm, hashingTier, memoryOnly, automount, nil)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}

	fmt.Fprintf(out, "added key %s\n", id)
	return nil
}

// RunSaveToDatabase promotes a memory-only record to persistent storage.
func RunSaveToDatabase(ctx context.Context, statePath string, id string) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	keyID, err := parseUUID(id)
	if err != nil {
		return err
	}
	if err := vault.Manager.SaveToDatabase(ctx, keyID); err != nil {
		return fmt.Errorf("save failed: %w", err)
	}
	return nil
}

// RunRemove unmounts (if mounted) and deletes a stored key.
func RunRemove(ctx context.Context, statePath, id string) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	keyID, err := parseUUID(id)
	if err != nil {
		return err
	}
	if err := vault.Manager.RemoveKey(ctx, keyID); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	return nil
}
