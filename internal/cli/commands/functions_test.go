package commands

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/plugin"
	"github.com/nadi-hydro/nadi/internal/starlark"
	"github.com/nadi-hydro/nadi/internal/testutil"
)

const hydroStar = `
def share(part, whole):
    """Fraction of whole contributed by part."""
    return part / whole

def double(x):
    return x * 2
`

// setupFunctions writes functions/hydro.star into dir and points
// NADI_FUNCTIONS_DIR at it.
func setupFunctions(t *testing.T, dir string) string {
	t.Helper()
	testutil.WriteFiles(t, dir, map[string]string{"functions/hydro.star": hydroStar})
	fnDir := filepath.Join(dir, "functions")
	t.Setenv("NADI_FUNCTIONS_DIR", fnDir)
	return fnDir
}

func TestFunctionsCommand_Markdown(t *testing.T) {
	dir, _ := setupProject(t)
	setupFunctions(t, dir)

	out, _, err := runCommand(t, NewFunctionsCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "# Functions (1 modules)")
	assert.Contains(t, out, "## hydro")
	assert.Contains(t, out, "- `hydro.share(part, whole)`: Fraction of whole contributed by part.")
	assert.Contains(t, out, "- `hydro.double(x)`\n")
}

func TestFunctionsCommand_JSON(t *testing.T) {
	dir, _ := setupProject(t)
	fnDir := setupFunctions(t, dir)
	t.Setenv("NADI_OUTPUT", "json")

	out, _, err := runCommand(t, NewFunctionsCommand())
	require.NoError(t, err)

	var modules []FunctionModule
	require.NoError(t, json.Unmarshal([]byte(out), &modules))
	require.Len(t, modules, 1)
	assert.Equal(t, "hydro", modules[0].Namespace)
	assert.Equal(t, filepath.Join(fnDir, "hydro.star"), modules[0].Path)
	require.Len(t, modules[0].Functions, 2)
	assert.Equal(t, []string{"part", "whole"}, modules[0].Functions[0].Args)
}

func TestFunctionsCommand_Text(t *testing.T) {
	t.Setenv("NADI_OUTPUT", "text")
	t.Setenv("NADI_FUNCTIONS_DIR", filepath.Join(t.TempDir(), "functions"))

	out, _, err := runCommand(t, NewFunctionsCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "No function files in")
}

func TestFunctionsCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"functions/bad.star": "def f(:\n"})
	t.Setenv("NADI_FUNCTIONS_DIR", filepath.Join(dir, "functions"))

	_, _, err := runCommand(t, NewFunctionsCommand())
	assert.ErrorContains(t, err, "functions/bad.star")
}

func TestEvalCommand_UserFunctions(t *testing.T) {
	dir, file := setupProject(t)
	setupFunctions(t, dir)

	out, _, err := runCommand(t, NewEvalCommand(), file, "-n", "c", "hydro.share(area, output_of('area'))")
	require.NoError(t, err)
	assert.Contains(t, out, "- **c:** 0.75")

	out, _, err = runCommand(t, NewNetworkCommand(), file, "-e", "twice = hydro.double(area)", "-l", "{name} {twice}")
	require.NoError(t, err)
	assert.Contains(t, out, "a 20")
	assert.Contains(t, out, "d 80")
}

func TestEvalSession_Functions(t *testing.T) {
	dir, file := setupProject(t)
	fnDir := setupFunctions(t, dir)

	net, err := network.Load(file, network.LoadOptions{})
	require.NoError(t, err)
	registry, err := plugin.LoadDir(fnDir, nil)
	require.NoError(t, err)

	s, out, errOut := newTestSession(t)
	s.net = net
	s.node, _ = net.Node("a")
	s.opts = starlark.Options{Globals: registry.Globals()}
	s.functions = registry.Modules()

	s.handle("hydro.double(area)")
	s.handle(".functions")
	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "20\n")
	assert.Contains(t, out.String(), "hydro.share(part, whole)  Fraction of whole contributed by part.\n")
}
