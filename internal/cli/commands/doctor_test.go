package commands

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/state"
	"github.com/nadi-hydro/nadi/internal/testutil"
)

func loadTestNetwork(t *testing.T, connections string, attrs map[string]map[string]string) *network.Network {
	t.Helper()
	g, err := network.ParseConnections(strings.NewReader(connections))
	require.NoError(t, err)
	net, err := network.New(g, nil)
	require.NoError(t, err)
	for name, kv := range attrs {
		node, ok := net.Node(name)
		require.True(t, ok, "node %s", name)
		for k, v := range kv {
			require.NoError(t, node.SetAttr(k, network.ParseAttr(v)))
		}
	}
	return net
}

func findCheck(t *testing.T, checks []HealthCheck, id string) HealthCheck {
	t.Helper()
	for _, c := range checks {
		if c.RuleID == id {
			return c
		}
	}
	t.Fatalf("check %s not found", id)
	return HealthCheck{}
}

func TestNetworkChecks(t *testing.T) {
	tests := []struct {
		name        string
		connections string
		attrs       map[string]map[string]string
		want        map[string]int // rule id -> issue count
	}{
		{
			name:        "healthy",
			connections: "a -> b\n",
			attrs:       map[string]map[string]string{"a": {"area": "1"}, "b": {"area": "2"}},
			want:        map[string]int{"N001": 0, "N002": 0, "A001": 0, "A002": 0},
		},
		{
			name:        "two outlets",
			connections: "a -> b\nc -> d\n",
			attrs:       map[string]map[string]string{"a": {"x": "1"}, "b": {"x": "1"}, "c": {"x": "1"}, "d": {"x": "1"}},
			want:        map[string]int{"N001": 2, "N002": 0, "A001": 0, "A002": 0},
		},
		{
			name:        "missing attributes",
			connections: "a -> c\nb -> c\n",
			attrs:       map[string]map[string]string{"a": {"area": "1", "name2": "x"}, "c": {"area": "3"}},
			want:        map[string]int{"N001": 0, "N002": 0, "A001": 1, "A002": 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks := networkChecks(loadTestNetwork(t, tt.connections, tt.attrs))
			for id, count := range tt.want {
				c := findCheck(t, checks, id)
				assert.Equal(t, count, c.IssueCount, id)
				if count == 0 {
					assert.Equal(t, statusPass, c.Status, id)
				} else {
					assert.Equal(t, statusWarn, c.Status, id)
				}
			}
		})
	}
}

func TestNetworkChecks_PartialDetails(t *testing.T) {
	net := loadTestNetwork(t, "a -> b\n", map[string]map[string]string{"a": {"area": "1"}, "b": {"area": "2", "gauge": "x"}})
	c := findCheck(t, networkChecks(net), "A002")
	assert.Equal(t, []string{"gauge: set on 1 of 2 nodes"}, c.Details)
}

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		nodes  int
		want   int
	}{
		{"all pass", []HealthCheck{{Status: statusPass}}, 10, 100},
		{"one warning small network", []HealthCheck{{Status: statusWarn, IssueCount: 1}}, 2, 90},
		{"one warning large network", []HealthCheck{{Status: statusWarn, IssueCount: 1}}, 100, 99},
		{"error", []HealthCheck{{Status: statusError, IssueCount: 1}}, 10, 75},
		{"error ignores issue count", []HealthCheck{{Status: statusError, IssueCount: 4}}, 10, 75},
		{"two errors", []HealthCheck{{Status: statusError, IssueCount: 1}, {Status: statusError, IssueCount: 2}}, 10, 50},
		{"clamped", []HealthCheck{{Status: statusWarn, IssueCount: 50}}, 1, 0},
		{"empty network", nil, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks, tt.nodes))
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	checks := []HealthCheck{
		{RuleID: "N001", Status: statusWarn},
		{RuleID: "A001", Status: statusPass},
		{RuleID: "S001", Status: statusError},
	}
	recs := generateRecommendations(checks)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0], "outlets")
	assert.Contains(t, recs[1], "state_path")
}

func TestDoctorCommand_Markdown(t *testing.T) {
	_, file := setupProject(t)

	out, _, err := runCommand(t, NewDoctorCommand(), file)
	require.NoError(t, err)
	assert.Contains(t, out, "# NADI Network Health Report")
	assert.Contains(t, out, "- **Nodes**: 4")
	assert.Contains(t, out, "### Structure")
	// no state store in the context
	assert.Contains(t, out, "- **[ERROR]** S001: State database")
	assert.Contains(t, out, "**75/100**")
}

func TestDoctorCommand_JSON(t *testing.T) {
	dir, file := setupProject(t)
	t.Setenv("NADI_OUTPUT", "json")

	store, err := state.Open(context.Background(), filepath.Join(dir, ".nadi", "state.db"), nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := WithStore(context.Background(), store)
	out, _, err := runCommandContext(t, ctx, NewDoctorCommand(), file)
	require.NoError(t, err)

	var res DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, NetworkSummary{Nodes: 4, Edges: 3, Outlets: 1, Headwaters: 2, Depth: 2, Attributes: 2}, res.Summary)
	assert.Equal(t, 100, res.Score)
	assert.Zero(t, res.IssueCount)
	assert.Empty(t, res.Recommendations)
}

func TestDoctorCommand_BrokenFunctions(t *testing.T) {
	dir, file := setupProject(t)
	testutil.WriteFiles(t, dir, map[string]string{"functions/bad.star": "x = 1 / 0\n"})
	t.Setenv("NADI_FUNCTIONS_DIR", filepath.Join(dir, "functions"))

	out, _, err := runCommand(t, NewDoctorCommand(), file)
	require.NoError(t, err)
	assert.Contains(t, out, "### Functions")
	assert.Contains(t, out, "- **[ERROR]** F001: Function files load")
	assert.Contains(t, out, "functions/bad.star")
}
