package commands

import (
	"context"
	"fmt"
	"io"
)

// RunMount recovers a stored key's user key material into the mount table.
func RunMount(ctx context.Context, statePath, id string) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	keyID, err := parseUUID(id)
	if err != nil {
		return err
	}
	if err := vault.Manager.Mount(keyID); err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	return nil
}

// RunUnmount drops a key from the mount table.
func RunUnmount(ctx context.Context, statePath, id string, all bool) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	if all {
		vault.Manager.UnmountAll()
		return nil
	}

	keyID, err := parseUUID(id)
	if err != nil {
		return err
	}
	vault.Manager.Unmount(keyID)
	return nil
}

// RunList prints every stored record (excluding the verification record).
func RunList(ctx context.Context, statePath string, out io.Writer) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	for _, rec := range vault.Manager.List() {
		defaultMarker := ""
		if rec.IsDefault {
			defaultMarker = " (default)"
		}
		fmt.Fprintf(out, "%s  name=%q algorithm=%s automount=%t%s\n", rec.UUID, rec.Name, rec.Algorithm, rec.Automount, defaultMarker)
	}
	return nil
}

// RunListMounted prints every currently mounted key id.
func RunListMounted(ctx context.Context, statePath string, out io.Writer) error {
	vault, err := OpenVault(ctx, statePath)
	if err != nil {
		return err
	}
	defer vault.Close(ctx)

	for _, id := range vault.Manager.ListMounted() {
		fmt.Fprintln(out, id)
	}
	return nil
}
