package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFiles(t *testing.T) {
	root := t.TempDir()
	WriteFiles(t, root, map[string]string{
		"rivers.network": "a -> b\n",
		"nodes/a.txt":    "area = 1\n",
	})

	got, err := os.ReadFile(filepath.Join(root, "nodes", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "area = 1\n", string(got))
	assert.FileExists(t, filepath.Join(root, "rivers.network"))
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
	logger.Debug("loaded", "nodes", 3)
}
