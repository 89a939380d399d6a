// Package visual renders river networks as text trees, graphviz graphs,
// LaTeX tables and attribute tables.
package visual

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/template"
)

type treeRow struct {
	level int
	merge bool // node branches off its parent's level
	text  string
}

// depthFirst returns node indices starting at the outlet, visiting each
// node's inputs depth first. With reverseInputs the inputs are visited in
// their stored order; otherwise the last input is visited first.
func depthFirst(net *network.Network, reverseInputs bool) []int {
	n := net.Len()
	if n == 0 {
		return nil
	}

	seen := make([]bool, n)
	var order []int
	for root := 0; root < n; root++ {
		if seen[root] {
			continue
		}
		seen[root] = true
		stack := []int{root}
		for len(stack) > 0 {
			curr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			order = append(order, curr)

			inputs := net.NodeAt(curr).Inputs
			for i := range inputs {
				in := inputs[i]
				if reverseInputs {
					in = inputs[len(inputs)-1-i]
				}
				if !seen[in] {
					seen[in] = true
					stack = append(stack, in)
				}
			}
		}
	}
	return order
}

// WriteASCII draws the network as a text tree, headwaters first and the
// outlet last, labelling each node with tmpl.
func WriteASCII(w io.Writer, net *network.Network, tmpl *template.Template) error {
	var rows []treeRow
	for _, i := range depthFirst(net, false) {
		node := net.NodeAt(i)
		text, err := node.Render(tmpl)
		if err != nil {
			return err
		}
		parentLevel := node.Level
		if node.HasOutput() {
			parentLevel = net.NodeAt(node.Output).Level
		}
		rows = append(rows, treeRow{level: node.Level, merge: node.Level != parentLevel, text: text})
	}

	prefixes := make([]string, len(rows))
	width := 0
	for i, r := range rows {
		p := strings.Repeat(" |", r.level)
		if r.merge {
			p = p[:len(p)-1] + "+-*"
		} else {
			p += " *"
		}
		prefixes[i] = p
		width = max(width, len(p))
	}

	bw := bufio.NewWriter(w)
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		_, _ = fmt.Fprintf(bw, "%-*s  %s\n", width, prefixes[i], r.text)
		columns := r.level
		if !r.merge {
			columns++
		}
		_, _ = fmt.Fprintln(bw, strings.Repeat(" |", columns))
	}
	return bw.Flush()
}
