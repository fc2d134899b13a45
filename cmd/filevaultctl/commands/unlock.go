package commands

import (
	"context"
	"fmt"
)

// RunUnlock derives the root key from password and secretKey and, on
// success, mounts every automount=true key in the keystore.
func RunUnlock(ctx context.Context, statePath, password, secretKey string) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	if err := vault.Manager.SetMasterPassword(ctx, password, secretKey); err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}
	return nil
}

// RunLock drops the root key from memory. Already-mounted keys remain
// usable until explicitly unmounted.
func RunLock(ctx context.Context, statePath string) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	vault.Manager.ClearRootKey()
	return nil
}
