package commands

import (
	"context"
	"fmt"
	"io"
)

// RunOnboard initializes a brand new vault and prints the generated master
// password and secret key to out exactly once; neither is stored anywhere,
// so losing this output means losing access to the vault.
func RunOnboard(ctx context.Context, statePath, algorithmStr, hashingAlgorithmStr, hashingTierStr string, out io.Writer) error {
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

	password, secretKey, err := vault.Manager.Onboard(ctx, algorithm, hashingAlgorithm, hashingTier)
	if err != nil {
		return fmt.Errorf("onboard failed: %w", err)
	}

	fmt.Fprintln(out, "Vault onboarded. Store these values now -- they are never shown again:")
	fmt.Fprintf(out, "  master password: %s\n", password)
	fmt.Fprintf(out, "  secret key:      %s\n", secretKey)
	return nil
}
