package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRekey(t *testing.T) {
	ctx := context.Background()
	statePath := withTempState(t)

	vault, err := OpenVault(ctx, statePath)
	require.NoError(t, err)
	password, secretKey := onboardVault(t, ctx, vault)
	vault.Close(ctx)

	var out bytes.Buffer
	require.NoError(t, RunRekey(ctx, statePath, "a-new-master-password", "a-new-secret-key", "", "", &out))
	assert.Contains(t, out.String(), "vault rekeyed")

	require.NoError(t, RunLock(ctx, statePath))
	require.NoError(t, RunUnlock(ctx, statePath, "a-new-master-password", "a-new-secret-key"))

	t.Run("Error_OldCredentialsNoLongerUnlock", func(t *testing.T) {
		require.NoError(t, RunLock(ctx, statePath))
		err := RunUnlock(ctx, statePath, password, secretKey)
		assert.Error(t, err)
	})
}
