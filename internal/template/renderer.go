package template

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Lookup resolves a variable name to its text value.
type Lookup func(name string) (string, bool)

// Render renders the template with variables taken from vars.
func (t *Template) Render(vars map[string]string) (string, error) {
	return t.RenderFunc(func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	})
}

// RenderFunc renders the template, resolving variables through lookup.
func (t *Template) RenderFunc(lookup Lookup) (string, error) {
	var sb strings.Builder
	for _, n := range t.Nodes {
		switch node := n.(type) {
		case *TextNode:
			sb.WriteString(node.Text)
		case *VarNode:
			s, err := renderVar(node, lookup)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
	}
	return sb.String(), nil
}

// Variables returns the variable names referenced by the template, in order of first use.
func (t *Template) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, n := range t.Nodes {
		v, ok := n.(*VarNode)
		if !ok {
			continue
		}
		for _, c := range v.Choices {
			if !c.IsLiteral && !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}
	return names
}

// String returns the template source.
func (t *Template) String() string {
	return t.Source
}

func renderVar(node *VarNode, lookup Lookup) (string, error) {
	value, found := "", false
	for _, c := range node.Choices {
		if c.IsLiteral {
			// literals are never formatted
			return c.Literal, nil
		}
		if v, ok := lookup(c.Name); ok {
			value, found = v, true
			break
		}
	}

	first := node.Choices[0].Name
	if !found {
		if len(node.Choices) == 1 {
			return "", NewRenderErrorf(node.Pos(), first, "variable %q not found", first)
		}
		names := make([]string, 0, len(node.Choices))
		for _, c := range node.Choices {
			names = append(names, c.Name)
		}
		return "", NewRenderErrorf(node.Pos(), first, "none of the variables %v found", names)
	}

	if node.Format == "" {
		return value, nil
	}
	return formatValue(node, first, value)
}

func formatValue(node *VarNode, variable, value string) (string, error) {
	verb := node.Format[len(node.Format)-1]
	switch {
	case strings.IndexByte(intVerbs, verb) >= 0:
		i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if ferr != nil {
				return "", WrapRenderError(node.Pos(), variable,
					fmt.Sprintf("cannot format %q with %s", value, node.Format), err)
			}
			i = int64(math.Trunc(f))
		}
		return fmt.Sprintf(node.Format, i), nil
	case strings.IndexByte(floatVerbs, verb) >= 0:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return "", WrapRenderError(node.Pos(), variable,
				fmt.Sprintf("cannot format %q with %s", value, node.Format), err)
		}
		return fmt.Sprintf(node.Format, f), nil
	default:
		return fmt.Sprintf(node.Format, value), nil
	}
}
