package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadi-hydro/nadi/internal/network"
)

func TestInitCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		files   []string
		absent  []string
		contain []string
	}{
		{
			name:    "minimal",
			files:   []string{"nadi.yaml", ".gitignore", "nodes/.gitkeep"},
			absent:  []string{"rivers.network", "flows"},
			contain: []string{"## config", "NADI project initialized!"},
		},
		{
			name:    "example",
			args:    []string{"--example"},
			files:   []string{"nadi.yaml", "rivers.network", "nodes/outlet.yaml", "nodes/confluence.txt", "flows/upper_fork.csv", "functions/hydro.star"},
			contain: []string{"## network", "## flows", "## functions", "nadi fill rivers.network"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "basin")
			out, _, err := runCommand(t, NewInitCommand(), append([]string{dir}, tt.args...)...)
			require.NoError(t, err)

			for _, f := range tt.files {
				assert.FileExists(t, filepath.Join(dir, f))
			}
			for _, f := range tt.absent {
				assert.NoFileExists(t, filepath.Join(dir, f))
			}
			for _, s := range tt.contain {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestInitCommand_ExampleLoads(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runCommand(t, NewInitCommand(), dir, "--example")
	require.NoError(t, err)

	net, err := network.Load(filepath.Join(dir, "rivers.network"), network.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, net.Len())
	assert.Equal(t, "outlet", net.Outlet().Name)
}

func TestInitCommand_Force(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "nadi.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("custom: true\n"), 0o600))

	_, _, err := runCommand(t, NewInitCommand(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, "custom: true\n", string(data))

	_, _, err = runCommand(t, NewInitCommand(), dir, "--force")
	require.NoError(t, err)
	data, err = os.ReadFile(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, "custom: true\n", string(data))
}

func TestInitCommand_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runCommand(t, NewInitCommand(), dir, "--example")
	require.NoError(t, err)

	netFile := filepath.Join(dir, "rivers.network")
	require.NoError(t, os.WriteFile(netFile, []byte("x -> y\n"), 0o600))
	require.NoError(t, os.Remove(filepath.Join(dir, "nadi.yaml")))

	out, _, err := runCommand(t, NewInitCommand(), dir, "--example")
	require.NoError(t, err)
	assert.Contains(t, out, "rivers.network")
	assert.Contains(t, out, "exists")

	data, err := os.ReadFile(netFile)
	require.NoError(t, err)
	assert.Equal(t, "x -> y\n", string(data))
}

func TestGroupTemplateFiles(t *testing.T) {
	groups := groupTemplateFiles([]string{"nadi.yaml", ".gitignore", "rivers.network", "nodes/.gitkeep", "nodes/a.txt", "flows/a.csv", "functions/hydro.star"})
	assert.Equal(t, []string{"nadi.yaml", ".gitignore"}, groups["config"])
	assert.Equal(t, []string{"rivers.network"}, groups["network"])
	assert.Equal(t, []string{"nodes/a.txt"}, groups["nodes"])
	assert.Equal(t, []string{"flows/a.csv"}, groups["flows"])
	assert.Equal(t, []string{"functions/hydro.star"}, groups["functions"])
}

func TestDotfileName(t *testing.T) {
	assert.Equal(t, ".gitignore", dotfileName("gitignore"))
	assert.Equal(t, "nodes/.gitignore", dotfileName("nodes/gitignore"))
	assert.Equal(t, "nadi.yaml", dotfileName("nadi.yaml"))
}
