package starlark

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/testutil"
)

func sampleNetwork(t *testing.T) *network.Network {
	t.Helper()
	g, err := network.ParseConnections(strings.NewReader("a -> c\nb -> c\nc -> e\nd -> e\n"))
	require.NoError(t, err)
	net, err := network.New(g, nil)
	require.NoError(t, err)
	for name, area := range map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5} {
		require.NoError(t, net.SetAttr(name, "area", network.IntAttr(area)))
	}
	return net
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantExpr string
		wantErr  bool
	}{
		{"ratio = area / 2", "ratio", "area / 2", false},
		{"big=area >= 3", "big", "area >= 3", false},
		{"same = order == 1", "same", "order == 1", false},
		{"area == 3", "", "", true},
		{"1x = 2", "", "", true},
		{"empty =", "", "", true},
		{"no assignment", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAssignment(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAssignment)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantExpr, got.Expr)
		})
	}
}

func TestEvalNodes(t *testing.T) {
	net := sampleNetwork(t)

	assignments := []Assignment{
		{Name: "double", Expr: "area * 2"},
		{Name: "upstream_area", Expr: "sum(inputs_of('area'))"},
		{Name: "down", Expr: "output_of('name', 'none')"},
		{Name: "label", Expr: "name.upper() + '-' + str(double)"},
		{Name: "root", Expr: "math.sqrt(area * 1.0)"},
	}
	require.NoError(t, EvalNodes(net, assignments, Options{Concurrency: 2, Logger: testutil.NewTestLogger(t)}))

	c, _ := net.Node("c")
	vars := c.TemplateVars()
	assert.Equal(t, "6", vars["double"])
	assert.Equal(t, "3", vars["upstream_area"])
	assert.Equal(t, "e", vars["down"])
	assert.Equal(t, "C-6", vars["label"])

	e := net.Outlet()
	assert.Equal(t, "none", e.TemplateVars()["down"])
	assert.Equal(t, "7", e.TemplateVars()["upstream_area"])

	root, ok := e.Attr("root")
	require.True(t, ok)
	f, _ := root.Float()
	assert.InDelta(t, 2.2360679, f, 1e-6)
}

func TestEvalNodes_Errors(t *testing.T) {
	net := sampleNetwork(t)

	err := EvalNodes(net, []Assignment{{Name: "x", Expr: "missing_attr + 1"}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node e")
	assert.Contains(t, err.Error(), "x = missing_attr + 1")

	err = EvalNodes(net, []Assignment{{Name: "order", Expr: "1"}}, Options{})
	assert.ErrorIs(t, err, network.ErrReadOnlyAttr)

	err = EvalNodes(net, []Assignment{{Name: "y", Expr: "attr('basin') + 1"}}, Options{})
	assert.ErrorContains(t, err, "unknown binary op")
}

func TestEvalAllAndNode(t *testing.T) {
	net := sampleNetwork(t)

	results, err := EvalAll(net, "order * 10", Options{})
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "e", results[0].Name)
	assert.Equal(t, "50", results[0].Value.String())

	a, _ := net.Node("a")
	v, err := EvalNode(net, a, "attr('basin', 'unknown')", Options{})
	require.NoError(t, err)
	assert.Equal(t, `"unknown"`, v.String())

	_, err = EvalAll(net, "1/0", Options{})
	assert.ErrorContains(t, err, "node e")
}

func TestOptions_Globals(t *testing.T) {
	net := sampleNetwork(t)
	globals := starlark.StringDict{
		"scale": starlark.MakeInt(3),
	}

	results, err := EvalAll(net, "order * scale", Options{Globals: globals})
	require.NoError(t, err)
	assert.Equal(t, "15", results[0].Value.String())

	a, _ := net.Node("a")
	v, err := EvalNode(net, a, "scale // 2", Options{Globals: globals})
	require.NoError(t, err)
	assert.Equal(t, "1", v.String())

	require.NoError(t, EvalNodes(net, []Assignment{{Name: "scaled", Expr: "scale + 1"}}, Options{Globals: globals}))
	got, ok := a.Attr("scaled")
	require.True(t, ok)
	assert.Equal(t, "4", got.String())
}
