package commands

import (
	"context"
	"fmt"
	"io"
)

// RunSetDefault marks id as the vault's single default key.
func RunSetDefault(ctx context.Context, statePath, id string) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	keyID, err := parseUUID(id)
	if err != nil {
		return err
	}
	if err := vault.Manager.SetDefault(ctx, keyID); err != nil {
		return fmt.Errorf("set-default failed: %w", err)
	}
	return nil
}

// RunGetDefault prints the id of the current default key, if one is set.
func RunGetDefault(ctx context.Context, statePath string, out io.Writer) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	id := vault.Manager.GetDefault()
	if id == nil {
		fmt.Fprintln(out, "no default key set")
		return nil
	}
	fmt.Fprintln(out, id)
	return nil
}

// RunChangeAutomount updates whether a key is mounted automatically on
// unlock.
func RunChangeAutomount(ctx context.Context, statePath, id string, automount bool) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	keyID, err := parseUUID(id)
	if err != nil {
		return err
	}
	if err := vault.Manager.ChangeAutomountStatus(ctx, keyID, automount); err != nil {
		return fmt.Errorf("automount update failed: %w", err)
	}
	return nil
}
