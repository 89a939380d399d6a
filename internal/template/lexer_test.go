package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_PlainText(t *testing.T) {
	input := "Station at the outlet"
	lexer := NewLexer(input, "label.tmpl")

	tokens, err := lexer.Tokenize()
	require.NoError(t, err, "unexpected error")

	require.Len(t, tokens, 2, "expected 2 tokens") // TEXT + EOF

	assert.Equal(t, TokenText, tokens[0].Type, "expected TEXT")
	assert.Equal(t, input, tokens[0].Value, "expected input value")
	assert.Equal(t, TokenEOF, tokens[1].Type, "expected EOF")
}

func TestLexer_References(t *testing.T) {
	input := `{name} (area {area:%.1f}) {basin?"none"}`
	lexer := NewLexer(input, "label.tmpl")

	tokens, err := lexer.Tokenize()
	require.NoError(t, err, "unexpected error")

	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenVar, "name"},
		{TokenText, " (area "},
		{TokenVar, "area:%.1f"},
		{TokenText, ") "},
		{TokenVar, `basin?"none"`},
		{TokenEOF, ""},
	}

	require.Len(t, tokens, len(expected), "wrong number of tokens")

	for i, exp := range expected {
		assert.Equal(t, exp.typ, tokens[i].Type, "token[%d] type", i)
		if exp.typ != TokenEOF {
			assert.Equal(t, exp.val, tokens[i].Value, "token[%d] value", i)
		}
	}
}

func TestLexer_EscapedBraces(t *testing.T) {
	tokens, err := NewLexer("{{literal}} and {x}", "").Tokenize()
	require.NoError(t, err)

	require.Len(t, tokens, 3)
	assert.Equal(t, TokenText, tokens[0].Type)
	assert.Equal(t, "{literal} and ", tokens[0].Value)
	assert.Equal(t, TokenVar, tokens[1].Type)
	assert.Equal(t, "x", tokens[1].Value)
}

func TestLexer_BraceInsideLiteral(t *testing.T) {
	tokens, err := NewLexer(`{a?"}"}`, "").Tokenize()
	require.NoError(t, err)

	require.Len(t, tokens, 2)
	assert.Equal(t, `a?"}"`, tokens[0].Value)
}

func TestLexer_Positions(t *testing.T) {
	tokens, err := NewLexer("first line\n  {name}", "label.tmpl").Tokenize()
	require.NoError(t, err)

	require.Len(t, tokens, 3)
	assert.Equal(t, Position{File: "label.tmpl", Line: 1, Column: 1}, tokens[0].Pos)
	assert.Equal(t, Position{File: "label.tmpl", Line: 2, Column: 3}, tokens[1].Pos)
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"unclosed reference", "abc {name", "missing '}'"},
		{"unterminated literal", `{a?"oops}`, "unterminated string literal"},
		{"nested brace", "{a{b}}", "nested '{'"},
		{"newline", "{a\n}", "newline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer(tt.input, "").Tokenize()
			require.Error(t, err)

			var lexErr *LexError
			require.ErrorAs(t, err, &lexErr)
			assert.Contains(t, lexErr.Error(), tt.wantMsg)
		})
	}
}

func TestLexer_ErrorPosition(t *testing.T) {
	_, err := NewLexer("abc {name", "label.tmpl").Tokenize()
	require.Error(t, err)

	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 1, lexErr.Position().Line)
	assert.Equal(t, 5, lexErr.Position().Column)
	assert.Equal(t, "label.tmpl:1:5: unclosed variable reference (missing '}')", lexErr.Error())
}
