package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/nadi-hydro/nadi/internal/cli/config"
	"github.com/nadi-hydro/nadi/internal/cli/testutil"
)

// runCommand executes cmd with args and returns stdout and stderr.
// No configuration is loaded, so commands use the environment fallback.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	return runCommandContext(t, context.Background(), cmd, args...)
}

// runCommandContext is runCommand with a caller-provided context, used to
// pass a state store.
func runCommandContext(t *testing.T, ctx context.Context, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	cmd.SetContext(ctx)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func setupProject(t *testing.T) (dir, networkFile string) {
	t.Helper()
	dir = testutil.SetupTestProject(t)
	return dir, filepath.Join(dir, testutil.NetworkFile)
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewNetworkCommand(), "network <connection-file>", []string{"graphviz", "direction", "label-template", "cumulate", "latex-table", "debug-print", "sort-by", "set", "table"}},
		{NewEvalCommand(), "eval <connection-file> [expression]", []string{"interactive", "node", "set"}},
		{NewTimeseriesCommand(), "timeseries <csv-file>", []string{"date-range", "date-col", "value-col", "table", "plot", "file", "command", "args"}},
		{NewFillCommand(), "fill <connection-file>", []string{"dir", "out-dir", "method", "arg", "prop", "dry-run"}},
		{NewUSGSCommand(), "usgs", []string{"site-no", "geo-info", "output-dir", "force"}},
		{NewConnectionCommand(), "connection <points.geojson> <streams.geojson>", []string{"points-field", "streams-field", "file", "geojson", "list-fields"}},
		{NewServeCommand(), "serve <connection-file>", []string{"host", "port", "watch"}},
		{NewFunctionsCommand(), "functions", nil},
		{NewHistoryCommand(), "history", []string{"limit", "downloads"}},
		{NewDoctorCommand(), "doctor <connection-file>", nil},
		{NewInitCommand(), "init [directory]", []string{"force", "example"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"0.1.0", "NADI v0.1.0"},
		{"dev", "NADI vdev"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			out, _, err := runCommand(t, NewVersionCommand(BuildInfo{Version: tt.version, Commit: "abc123", Date: "2026-01-01"}))
			assert.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestNewVersionCommand_JSON(t *testing.T) {
	t.Setenv("NADI_OUTPUT", "json")
	out, _, err := runCommand(t, NewVersionCommand(BuildInfo{Version: "0.1.0", Commit: "abc123"}))
	assert.NoError(t, err)
	assert.Contains(t, out, `"version": "0.1.0"`)
	assert.Contains(t, out, `"commit": "abc123"`)
	assert.Contains(t, out, `"go": "go`)
}
