package visual

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/template"
)

// LatexColumn is one column of the LaTeX table.
type LatexColumn struct {
	Header   string
	Template *template.Template
}

// ParseLatexColumn parses a "Header:template" column definition.
func ParseLatexColumn(s string) (LatexColumn, error) {
	head, src, ok := strings.Cut(s, ":")
	if !ok {
		return LatexColumn{}, fmt.Errorf("column %q: header should be followed by ':' and a template", s)
	}
	tmpl, err := template.Parse(src)
	if err != nil {
		return LatexColumn{}, fmt.Errorf("column %q: %w", head, err)
	}
	return LatexColumn{Header: head, Template: tmpl}, nil
}

const latexPreamble = `\documentclass{standalone}

\usepackage{array}
\usepackage{booktabs}
\usepackage{multirow}
\usepackage{graphicx}
\usepackage[hidelinks]{hyperref}
\usepackage{tikz}
\usetikzlibrary{tikzmark}

\newcommand{\TikzNode}[4][0]{%%
  \tikz[overlay,remember picture]{\draw (#1 / 2 +0.5, 0.1) circle [radius=0.14] node (#2) {\href{#4}{\tiny #3}};}}


\begin{document}

  \begin{tabular}{%s}
    \toprule
`

// WriteLaTeX writes a standalone tikz document with one table row per node.
// The first column draws the node at its level; edges are drawn after the table.
func WriteLaTeX(w io.Writer, net *network.Network, cols []LatexColumn, url *template.Template) error {
	if net.Len() == 0 {
		return nil
	}
	if url == nil {
		url = mustParse("")
	}

	bw := bufio.NewWriter(w)
	_, _ = fmt.Fprintf(bw, latexPreamble, strings.Repeat("l", len(cols)+1))

	_, _ = fmt.Fprint(bw, "Connection")
	for _, c := range cols {
		_, _ = fmt.Fprintf(bw, " & %s", c.Header)
	}
	_, _ = fmt.Fprintln(bw, `\\`)
	_, _ = fmt.Fprintln(bw, `\midrule`)

	traversal := depthFirst(net, true)
	var edges []string
	for i := len(traversal) - 1; i >= 0; i-- {
		node := net.NodeAt(traversal[i])
		link, err := node.Render(url)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(bw, `\TikzNode[%d]{%d}{%d}{%s}`, node.Level, node.Index, node.Index, link)
		for _, c := range cols {
			cell, err := node.Render(c.Template)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(bw, " & %s", cell)
		}
		_, _ = fmt.Fprintln(bw, `\\`)

		if node.HasOutput() {
			edges = append(edges, fmt.Sprintf(`\path[->] (%d) edge (%d);`, node.Index, node.Output))
		}
	}

	_, _ = fmt.Fprintln(bw, `\bottomrule`)
	_, _ = fmt.Fprintln(bw, `\end{tabular}`)
	_, _ = fmt.Fprintln(bw, `\tikz[overlay,remember picture]{`)
	for _, e := range edges {
		_, _ = fmt.Fprintln(bw, e)
	}
	_, _ = fmt.Fprintln(bw, "}")
	_, _ = fmt.Fprintln(bw, `\end{document}`)
	return bw.Flush()
}
