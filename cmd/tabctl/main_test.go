package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes tabctl against a JSON file store shared by all calls in a test.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func useFileStore(t *testing.T) {
	t.Helper()
	t.Setenv("DRINKTAB_STORAGE_ADAPTER", "file")
	t.Setenv("DRINKTAB_STORAGE_FILE_PATH", filepath.Join(t.TempDir(), "tab.json"))
}

func TestTabctlFlow(t *testing.T) {
	useFileStore(t)

	out, err := run(t, "users", "create", "Alice", "--name", "Alice A.")
	require.NoError(t, err)
	assert.Contains(t, out, "created alice")

	_, err = run(t, "items", "put", "mate", "--name", "Club Mate", "--price", "1.20", "--stock", "3", "--category", "softdrink")
	require.NoError(t, err)

	out, err = run(t, "deposit", "alice", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "balance 20.00")
	assert.Contains(t, out, "unlocked: Sparschwein")

	out, err = run(t, "purchase", "alice", "mate")
	require.NoError(t, err)
	assert.Contains(t, out, "balance 18.80")
	assert.Contains(t, out, "unlocked: Erster Schluck")

	out, err = run(t, "items", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Club Mate")

	out, err = run(t, "users", "show", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "balance: 18.80")

	out, err = run(t, "badges", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "[x]")

	out, err = run(t, "stats", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "purchases: 1 (1.20)")

	out, err = run(t, "evaluate", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "no new achievements")
}

func TestTabctlErrors(t *testing.T) {
	useFileStore(t)

	_, err := run(t, "purchase", "ghost", "mate")
	assert.Error(t, err)

	_, err = run(t, "deposit", "ghost", "abc")
	assert.Error(t, err)

	_, err = run(t, "items", "restock", "mate", "x")
	assert.Error(t, err)

	_, err = run(t, "--log-level", "loud", "users", "list")
	assert.Error(t, err)
}

func TestItemsPutRequiresPrice(t *testing.T) {
	cmd := putItemCmd(&rootOptions{})
	flag := cmd.Flag("price")
	require.NotNil(t, flag)
	assert.Equal(t, "other", cmd.Flag("category").DefValue)
}
