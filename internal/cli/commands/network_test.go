package commands

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadi-hydro/nadi/internal/cli/testutil"
	"github.com/nadi-hydro/nadi/internal/template"
)

func TestNetworkCommand(t *testing.T) {
	_, file := setupProject(t)

	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name:     "markdown tree",
			args:     []string{file, "-l", "{name}"},
			contains: []string{"# Network (4 nodes)", "```", "  a\n", "  d\n"},
		},
		{
			name:     "graphviz",
			args:     []string{file, "-g", "-d", "lr", "-n", "{name}"},
			contains: []string{"digraph network {", " -> "},
		},
		{
			name:     "debug print",
			args:     []string{file, "-D", "-l", "{name}={area}"},
			contains: []string{"a=10\n", "d=40\n"},
		},
		{
			name:     "cumulate",
			args:     []string{file, "-c", "area", "-D", "-l", "{name} {cum_area}"},
			contains: []string{"a 10\n", "c 60\n", "d 100\n"},
		},
		{
			name:     "set attribute",
			args:     []string{file, "-e", "double = area * 2", "-D", "-l", "{name} {double}"},
			contains: []string{"b 40\n", "d 80\n"},
		},
		{
			name:     "latex",
			args:     []string{file, "-L", "Name:{name};Area:{area}"},
			contains: []string{`\begin{tabular}`, "Area", `\TikzNode`},
		},
		{
			name:     "formatted label",
			args:     []string{file, "-D", "-l", "{name} ({area:%.1f})"},
			contains: []string{"a (10.0)\n", "d (40.0)\n"},
		},
		{
			name:     "latex with fallbacks",
			args:     []string{file, "-L", `Name:{basin?name};Area:{area?"-"}`},
			contains: []string{`\begin{tabular}`, "Name & Area"},
		},
		{
			name:     "markdown table",
			args:     []string{file, "-t", "--columns", "name,area"},
			contains: []string{"| name | area |", "| a | 10 |"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCommand(t, NewNetworkCommand(), tt.args...)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			testutil.AssertNoANSI(t, out)
			testutil.AssertValidMarkdown(t, out)
		})
	}
}

func TestNetworkCommand_JSON(t *testing.T) {
	_, file := setupProject(t)
	t.Setenv("NADI_OUTPUT", "json")

	out, _, err := runCommand(t, NewNetworkCommand(), file)
	require.NoError(t, err)

	var nodes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	assert.Len(t, nodes, 4)
}

func TestNetworkCommand_Errors(t *testing.T) {
	_, file := setupProject(t)

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{"missing file", []string{file + ".missing"}, "failed to read network file"},
		{"bad template", []string{file, "-l", "{name"}, "label-template"},
		{"bad direction", []string{file, "-g", "-d", "up"}, "unknown direction"},
		{"cumulate missing attribute", []string{file, "-c", "volume"}, "failed to cumulate"},
		{"bad assignment", []string{file, "-e", "area"}, "invalid assignment"},
		{"bad latex column", []string{file, "-L", "Name"}, "header should be followed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCommand(t, NewNetworkCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNetworkCommand_ExampleTemplates(t *testing.T) {
	flagArg := regexp.MustCompile(`-([lL]) '([^']*)'`)
	matches := flagArg.FindAllStringSubmatch(networkExample, -1)
	require.Len(t, matches, 3)

	for _, m := range matches {
		t.Run(m[2], func(t *testing.T) {
			if m[1] == "L" {
				cols, err := latexColumns([]string{m[2]})
				require.NoError(t, err)
				assert.Len(t, cols, 2)
				return
			}
			_, err := template.Parse(m[2])
			require.NoError(t, err)
		})
	}
}
