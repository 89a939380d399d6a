package visual

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/template"
)

// WriteDebug writes one rendered template per node in index order.
func WriteDebug(w io.Writer, net *network.Network, tmpl *template.Template) error {
	bw := bufio.NewWriter(w)
	for _, node := range net.Nodes() {
		line, err := node.Render(tmpl)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(bw, line)
	}
	return bw.Flush()
}

// TableColumns returns the default columns for WriteTable: the structural
// attributes followed by every user attribute found in the network.
func TableColumns(net *network.Network) []string {
	cols := []string{network.AttrIndex, network.AttrName, network.AttrOrder, network.AttrLevel, network.AttrOutput}
	seen := make(map[string]bool)
	var extra []string
	for _, node := range net.Nodes() {
		for _, k := range node.AttrNames() {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

func cellValue(node *network.Node, col string) string {
	a, ok := node.Attr(col)
	if !ok {
		return ""
	}
	return a.String()
}

// WriteTable writes the selected attributes of every node as a table.
func WriteTable(w io.Writer, net *network.Network, cols []string) error {
	if net.Len() == 0 {
		_, _ = fmt.Fprintln(w, "(0 nodes)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, node := range net.Nodes() {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = cellValue(node, col)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d nodes)\n", net.Len())
	return nil
}

// WriteMarkdown writes the selected attributes of every node as a markdown table.
func WriteMarkdown(w io.Writer, net *network.Network, cols []string) error {
	bw := bufio.NewWriter(w)
	_, _ = fmt.Fprintf(bw, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(bw, "| %s |\n", strings.Join(seps, " | "))

	for _, node := range net.Nodes() {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = strings.ReplaceAll(cellValue(node, col), "|", `\|`)
		}
		_, _ = fmt.Fprintf(bw, "| %s |\n", strings.Join(values, " | "))
	}
	return bw.Flush()
}

// NodeJSON is the JSON form of a node.
type NodeJSON struct {
	Index      int                     `json:"index"`
	Name       string                  `json:"name"`
	Inputs     []int                   `json:"inputs"`
	Output     *int                    `json:"output"`
	Order      int                     `json:"order"`
	Level      int                     `json:"level"`
	Attributes map[string]network.Attr `json:"attributes"`
}

// NewNodeJSON converts a node to its JSON form.
func NewNodeJSON(node *network.Node) NodeJSON {
	nj := NodeJSON{
		Index:      node.Index,
		Name:       node.Name,
		Inputs:     append([]int{}, node.Inputs...),
		Order:      node.Order,
		Level:      node.Level,
		Attributes: make(map[string]network.Attr),
	}
	if node.HasOutput() {
		out := node.Output
		nj.Output = &out
	}
	for _, k := range node.AttrNames() {
		a, _ := node.Attr(k)
		nj.Attributes[k] = a
	}
	return nj
}

// NetworkJSON converts every node of the network to its JSON form.
func NetworkJSON(net *network.Network) []NodeJSON {
	nodes := make([]NodeJSON, 0, net.Len())
	for _, node := range net.Nodes() {
		nodes = append(nodes, NewNodeJSON(node))
	}
	return nodes
}

// WriteJSON writes the network as an indented JSON array of nodes.
func WriteJSON(w io.Writer, net *network.Network) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NetworkJSON(net))
}
