package network

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/awalterschulze/gographviz"

	"github.com/nadi-hydro/nadi/internal/dag"
)

// ParseConnections reads a connection file. Each non-blank line that does not
// start with '#' is either a node name or a chain of edges "a -> b [-> c ...]".
func ParseConnections(r io.Reader) (*dag.Graph, error) {
	g := dag.NewGraph()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "->")
		names := make([]string, len(parts))
		for i, p := range parts {
			names[i] = strings.TrimSpace(p)
			if names[i] == "" {
				return nil, fmt.Errorf("line %d: empty node name in %q", lineNo, line)
			}
			g.AddNode(names[i])
		}
		for i := 0; i+1 < len(names); i++ {
			if err := g.AddEdge(names[i], names[i+1]); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read connections: %w", err)
	}
	return g, nil
}

// ParseDOT reads the nodes and edges of a graphviz digraph.
func ParseDOT(src string) (*dag.Graph, error) {
	ast, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dot: %w", err)
	}
	dot := gographviz.NewGraph()
	if err := gographviz.Analyse(ast, dot); err != nil {
		return nil, fmt.Errorf("failed to analyse dot: %w", err)
	}
	if !dot.Directed {
		return nil, fmt.Errorf("dot graph %q is not a digraph", dot.Name)
	}

	g := dag.NewGraph()
	for _, n := range dot.Nodes.Nodes {
		g.AddNode(unquote(n.Name))
	}
	for _, e := range dot.Edges.Edges {
		src, dst := unquote(e.Src), unquote(e.Dst)
		g.AddNode(src)
		g.AddNode(dst)
		if err := g.AddEdge(src, dst); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
