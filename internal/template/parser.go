package template

import (
	"strconv"
	"strings"
	"unicode"
)

// Parse parses template source into a Template.
func Parse(src string) (*Template, error) {
	return ParseFile(src, "")
}

// ParseFile parses template source, using file in error positions.
func ParseFile(src, file string) (*Template, error) {
	tokens, err := NewLexer(src, file).Tokenize()
	if err != nil {
		return nil, err
	}

	tmpl := &Template{Source: src, File: file}
	for _, tok := range tokens {
		switch tok.Type {
		case TokenText:
			if tok.Value == "" {
				continue
			}
			tmpl.Nodes = append(tmpl.Nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenVar:
			v, err := parseReference(tok.Value, tok.Pos)
			if err != nil {
				return nil, err
			}
			tmpl.Nodes = append(tmpl.Nodes, v)
		case TokenEOF:
		}
	}
	return tmpl, nil
}

// parseReference parses the content of a {a?b?"lit":fmt} reference.
func parseReference(content string, pos Position) (*VarNode, error) {
	body, format := splitOutside(content, ':')
	if format != nil {
		f := strings.TrimSpace(*format)
		if !validFormat(f) {
			return nil, NewParseErrorf(pos, "invalid format %q (expected a printf verb such as %%.2f)", f)
		}
	}

	node := &VarNode{nodeBase: nodeBase{pos: pos}}
	if format != nil {
		node.Format = strings.TrimSpace(*format)
	}

	parts := splitAll(body, '?')
	for i, part := range parts {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
			return nil, NewParseErrorf(pos, "empty variable name in {%s}", content)
		case strings.HasPrefix(part, `"`):
			lit, err := strconv.Unquote(part)
			if err != nil {
				return nil, NewParseErrorf(pos, "invalid string literal %s", part)
			}
			if i != len(parts)-1 {
				return nil, NewParseErrorf(pos, "string literal %s must be the last choice", part)
			}
			node.Choices = append(node.Choices, Choice{Literal: lit, IsLiteral: true})
		case !validName(part):
			return nil, NewParseErrorf(pos, "invalid variable name %q", part)
		default:
			node.Choices = append(node.Choices, Choice{Name: part})
		}
	}
	return node, nil
}

// splitOutside splits s at the first sep that is not inside a quoted literal.
func splitOutside(s string, sep byte) (string, *string) {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				rest := s[i+1:]
				return s[:i], &rest
			}
		}
	}
	return s, nil
}

func splitAll(s string, sep byte) []string {
	var parts []string
	for {
		head, rest := splitOutside(s, sep)
		parts = append(parts, head)
		if rest == nil {
			return parts
		}
		s = *rest
	}
}

// validName reports whether s is an attribute name: letters, digits,
// '_', '-' and '.'.
func validName(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_-.", r) {
			return false
		}
	}
	return s != ""
}

const (
	intVerbs   = "dxXob"
	floatVerbs = "feEgG"
	textVerbs  = "sqv"
)

func validFormat(f string) bool {
	if len(f) < 2 || f[0] != '%' || strings.Count(f, "%") != 1 {
		return false
	}
	verb := f[len(f)-1]
	if !strings.ContainsRune(intVerbs+floatVerbs+textVerbs, rune(verb)) {
		return false
	}
	for _, c := range f[1 : len(f)-1] {
		if !strings.ContainsRune("0123456789.-+ #", c) {
			return false
		}
	}
	return true
}
