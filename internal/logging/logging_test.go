package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitPicksFirstWritablePath(t *testing.T) {
	dir := t.TempDir()
	unwritable := filepath.Join(dir, "missing-subdir", "bt_sync.log")
	writable := filepath.Join(dir, "bt_sync.log")

	log, path := Init(Options{Paths: []string{unwritable, writable}})
	require.Equal(t, writable, path)

	log.Info("hello from the test", "k", "v")

	data, err := os.ReadFile(writable)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")
	assert.Contains(t, string(data), "k=v")
}

func TestInitTruncatesPreviousLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bt_sync.log")
	require.NoError(t, os.WriteFile(path, []byte("old run contents\n"), 0o644))

	_, chosen := Init(Options{Paths: []string{path}})
	require.Equal(t, path, chosen)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "old run contents"))
}

func TestInitFallsBackToStderr(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "bt.log")
	log, path := Init(Options{Paths: []string{missing}})
	assert.Empty(t, path)
	require.NotNil(t, log)
}
