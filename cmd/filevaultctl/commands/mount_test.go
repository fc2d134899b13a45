package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addedKeyID(t *testing.T, ctx context.Context, vault *Vault, memoryOnly, automount bool) string {
	t.Helper()
	algorithm, err := parseAlgorithm("")
	require.NoError(t, err)
	hashingAlgorithm, err := parseHashingAlgorithm("")
	require.NoError(t, err)
	hashingTier, err := parseHashingTier("")
	require.NoError(t, err)
	id, err := vault.Manager.AddToKeystore(ctx, []byte("a-mountable-user-key"), algorithm, hashingAlgorithm, hashingTier, memoryOnly, automount, nil)
	require.NoError(t, err)
	return id.String()
}

func TestRunMountAndUnmount(t *testing.T) {
	ctx := context.Background()
	statePath := withTempState(t)

	vault, err := OpenVault(ctx, statePath)
	require.NoError(t, err)
	onboardVault(t, ctx, vault)
	id := addedKeyID(t, ctx, vault, false, false)
	vault.Close(ctx)

	require.NoError(t, RunMount(ctx, statePath, id))

	var out bytes.Buffer
	require.NoError(t, RunListMounted(ctx, statePath, &out))
	assert.Contains(t, out.String(), id)

	require.NoError(t, RunUnmount(ctx, statePath, id, false))

	out.Reset()
	require.NoError(t, RunListMounted(ctx, statePath, &out))
	assert.NotContains(t, out.String(), id)
}

func TestRunUnmount_All(t *testing.T) {
	ctx := context.Background()
	statePath := withTempState(t)

	vault, err := OpenVault(ctx, statePath)
	require.NoError(t, err)
	onboardVault(t, ctx, vault)
	idA := addedKeyID(t, ctx, vault, false, true)
	idB := addedKeyID(t, ctx, vault, false, true)
	vault.Close(ctx)

	require.NoError(t, RunMount(ctx, statePath, idA))
	require.NoError(t, RunMount(ctx, statePath, idB))
	require.NoError(t, RunUnmount(ctx, statePath, "", true))

	var out bytes.Buffer
	require.NoError(t, RunListMounted(ctx, statePath, &out))
	assert.Empty(t, strings.TrimSpace(out.String()))
}

func TestRunList(t *testing.T) {
	ctx := context.Background()
	statePath := withTempState(t)

	vault, err := OpenVault(ctx, statePath)
	require.NoError(t, err)
	onboardVault(t, ctx, vault)
	id := addedKeyID(t, ctx, vault, false, false)
	vault.Close(ctx)

	var out bytes.Buffer
	require.NoError(t, RunList(ctx, statePath, &out))
	assert.Contains(t, out.String(), id)
}
