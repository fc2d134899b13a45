package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunUnlockAndLock(t *testing.T) {
	ctx := context.Background()
	statePath := withTempState(t)

	vault, err := OpenVault(ctx, statePath)
	require.NoError(t, err)
	password, secretKey := onboardVault(t, ctx, vault)
	vault.Close(ctx)

	require.NoError(t, RunLock(ctx, statePath))
	require.NoError(t, RunUnlock(ctx, statePath, password, secretKey))

	t.Run("Error_WrongPassword", func(t *testing.T) {
		require.NoError(t, RunLock(ctx, statePath))
		err := RunUnlock(ctx, statePath, "wrong-password", secretKey)
		require.Error(t, err)
	})
}
