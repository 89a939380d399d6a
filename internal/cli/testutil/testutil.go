// Package testutil provides fixtures and output assertions for CLI tests.
package testutil

import (
	"regexp"
	"strings"
	"testing"

	"github.com/nadi-hydro/nadi/internal/testutil"
)

// NetworkFile is the connection file created by SetupTestProject.
const NetworkFile = "rivers.network"

// SetupTestProject creates a temporary project with a four node network:
// a and b drain into c, which drains into the outlet d. Every node has an
// area attribute (10, 20, 30, 40) and a, c and d have a flows/<name>.csv
// timeseries with gaps.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"nadi.yaml":    "nodes_dir: nodes\nstate_path: .nadi/state.db\n",
		NetworkFile:    "a -> c\nb -> c\nc -> d\n",
		"nodes/a.txt":  "area = 10\nstation = Alpha\n",
		"nodes/b.txt":  "area = 20\nstation = Bravo\n",
		"nodes/c.txt":  "area = 30\nstation = Charlie\n",
		"nodes/d.yaml": "area: 40\nstation: Delta\n",
		"flows/a.csv":  "date,flow\n2020-01-01,1\n2020-01-02,2\n2020-01-03,3\n2020-01-04,4\n",
		"flows/c.csv":  "date,flow\n2020-01-01,3\n2020-01-02,NA\n2020-01-03,NA\n2020-01-04,12\n",
		"flows/d.csv":  "date,flow\n2020-01-01,4\n2020-01-02,8\n2020-01-03,12\n2020-01-04,16\n",
	})
	return dir
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails the test when s contains terminal escape codes, which
// piped output must never carry.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if loc := ansiEscape.FindStringIndex(s); loc != nil {
		t.Errorf("output contains ANSI escape %q at offset %d", s[loc[0]:loc[1]], loc[0])
	}
}

// AssertValidMarkdown fails the test on unbalanced code fences or headers
// without text.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()
	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences: %d fence markers", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.Trim(trimmed, "# ") == "" {
			t.Errorf("line %d: empty header %q", i+1, line)
		}
	}
}
