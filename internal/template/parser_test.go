package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_TextAndVariables(t *testing.T) {
	tmpl, err := Parse("{name}: {area:%.2f} km2")
	require.NoError(t, err)

	require.Len(t, tmpl.Nodes, 4)

	v, ok := tmpl.Nodes[0].(*VarNode)
	require.True(t, ok, "expected *VarNode, got %T", tmpl.Nodes[0])
	assert.Equal(t, []Choice{{Name: "name"}}, v.Choices)
	assert.Empty(t, v.Format)

	text, ok := tmpl.Nodes[1].(*TextNode)
	require.True(t, ok, "expected *TextNode, got %T", tmpl.Nodes[1])
	assert.Equal(t, ": ", text.Text)

	area := tmpl.Nodes[2].(*VarNode)
	assert.Equal(t, "%.2f", area.Format)
}

func TestParse_Choices(t *testing.T) {
	tmpl, err := Parse(`{ basin ? station ? "unknown: n/a" }`)
	require.NoError(t, err)
	require.Len(t, tmpl.Nodes, 1)

	v := tmpl.Nodes[0].(*VarNode)
	assert.Equal(t, []Choice{
		{Name: "basin"},
		{Name: "station"},
		{Literal: "unknown: n/a", IsLiteral: true},
	}, v.Choices)
	assert.Empty(t, v.Format, "colon inside a literal is not a format")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"empty reference", "{}", "empty variable name"},
		{"empty choice", "{a?}", "empty variable name"},
		{"literal not last", `{"x"?a}`, "must be the last choice"},
		{"bad format", "{a:.2f}", "invalid format"},
		{"unknown verb", "{a:%.2z}", "invalid format"},
		{"space in name", "{a b}", "invalid variable name"},
		{"pipe in name", "{name|x}", "invalid variable name"},
		{"quote in name", `{a"b}`, "invalid variable name"},
		{"python format spec", "{area:.1f}", "invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, parseErr.Error(), tt.wantMsg)
		})
	}
}

func TestParse_NameCharacters(t *testing.T) {
	tmpl, err := Parse("{cum_area} {station-id} {gage.2}")
	require.NoError(t, err)
	assert.Equal(t, []string{"cum_area", "station-id", "gage.2"}, tmpl.Variables())
}

func TestParse_Variables(t *testing.T) {
	tmpl, err := Parse(`{a} {b?a} {c?"x"} {{d}}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, tmpl.Variables())
}
