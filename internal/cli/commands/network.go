package commands

import (
	"fmt"
	"strings"

	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/starlark"
	"github.com/nadi-hydro/nadi/internal/template"
	"github.com/nadi-hydro/nadi/internal/visual"
	"github.com/spf13/cobra"
)

// NetworkOptions holds options for the network command.
type NetworkOptions struct {
	Graphviz      bool
	Direction     string
	NodeShape     string
	NodeOffset    float64
	LabelShape    string
	LabelOffset   float64
	NodeSize      int
	NodeTemplate  string
	URLTemplate   string
	LabelTemplate string
	Cumulate      []string
	Latex         []string
	Debug         bool
	SortBy        string
	Set           []string
	Table         bool
	Columns       []string
}

const networkExample = `  # Draw the network as a text tree
  nadi network rivers.network

  # Label nodes with their name and area
  nadi network rivers.network -l '{name} ({area:%.1f})'

  # Graphviz output, sorted by basin area
  nadi network rivers.network -g -s area | dot -Tsvg > rivers.svg

  # LaTeX table with two columns
  nadi network rivers.network -L 'Name:{basin?name};Area:{area?"-"}'

  # Accumulate area downstream before printing the labels
  nadi network rivers.network -c area -D -l '{name} {cum_area:%.0f}'`

// NewNetworkCommand creates the network command.
func NewNetworkCommand() *cobra.Command {
	opts := &NetworkOptions{}

	cmd := &cobra.Command{
		Use:   "network <connection-file>",
		Short: "Visualize a river network",
		Long: `Load a river network from a connection file ("a -> b" lines) or a
graphviz file, along with node attributes from the nodes directory, and draw it.

Without a format flag the network is drawn as a text tree, headwaters first
and the outlet last.

Templates reference node attributes in braces:
  {area}           value of area
  {basin?name}     first attribute that is set
  {basin?"-"}      literal when no attribute is set
  {area:%.1f}      printf-style number format
  {{ and }}        literal braces`,
		Example: networkExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetwork(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Graphviz, "graphviz", "g", false, "Graphviz format")
	cmd.Flags().StringVarP(&opts.Direction, "direction", "d", "tb", "Direction of the graph (tb, bt, lr, rl)")
	cmd.Flags().StringVarP(&opts.NodeShape, "node-shape", "S", "circle", "Shape of the node")
	cmd.Flags().Float64VarP(&opts.NodeOffset, "node-offset", "O", 1, "Offset between nodes")
	cmd.Flags().StringVarP(&opts.LabelShape, "label-shape", "A", "plain", "Shape of the label")
	cmd.Flags().Float64Var(&opts.LabelOffset, "label-offset", 1, "Offset of the label from the nodes")
	cmd.Flags().IntVarP(&opts.NodeSize, "node-size", "N", 30, "Size of the node")
	cmd.Flags().StringVarP(&opts.NodeTemplate, "node-template", "n", "{index}", "Template for the text inside the nodes")
	cmd.Flags().StringVarP(&opts.URLTemplate, "url-template", "u", "", "Template for node URLs")
	cmd.Flags().StringVarP(&opts.LabelTemplate, "label-template", "l", "{index}", "Template for node labels")
	cmd.Flags().StringSliceVarP(&opts.Cumulate, "cumulate", "c", nil, "Accumulate these attributes downstream")
	cmd.Flags().StringArrayVarP(&opts.Latex, "latex-table", "L", nil, "LaTeX table columns as Header:template, separated by ';'")
	cmd.Flags().BoolVarP(&opts.Debug, "debug-print", "D", false, "Print the label template for each node")
	cmd.Flags().StringVarP(&opts.SortBy, "sort-by", "s", "", "Sort graphviz rows by this attribute")
	cmd.Flags().StringArrayVarP(&opts.Set, "set", "e", nil, "Evaluate 'name = expr' at every node before drawing")
	cmd.Flags().BoolVarP(&opts.Table, "table", "t", false, "Print node attributes as a table")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "Attribute columns for --table (default all)")

	cmd.MarkFlagsMutuallyExclusive("graphviz", "latex-table")
	cmd.MarkFlagsMutuallyExclusive("graphviz", "debug-print")

	_ = cmd.RegisterFlagCompletionFunc("direction", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"tb", "bt", "lr", "rl"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runNetwork(cmd *cobra.Command, path string, opts *NetworkOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	w := r.Writer()

	net, err := cmdCtx.LoadNetwork(path)
	if err != nil {
		return err
	}

	if len(opts.Cumulate) > 0 {
		if err := net.Cumulate(opts.Cumulate); err != nil {
			return fmt.Errorf("failed to cumulate: %w", err)
		}
	}
	if err := applyAssignments(cmdCtx, net, opts.Set); err != nil {
		return err
	}

	label, err := parseTemplateFlag("label-template", opts.LabelTemplate)
	if err != nil {
		return err
	}
	url, err := parseTemplateFlag("url-template", opts.URLTemplate)
	if err != nil {
		return err
	}

	switch {
	case opts.Graphviz:
		settings, err := dotSettings(cmd, cmdCtx, opts, label, url)
		if err != nil {
			return err
		}
		return visual.WriteDOT(w, net, settings)
	case len(opts.Latex) > 0:
		cols, err := latexColumns(opts.Latex)
		if err != nil {
			return err
		}
		return visual.WriteLaTeX(w, net, cols, url)
	case opts.Debug:
		return visual.WriteDebug(w, net, label)
	}

	cols := opts.Columns
	if len(cols) == 0 {
		cols = visual.TableColumns(net)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return visual.WriteJSON(w, net)
	case output.ModeMarkdown:
		if opts.Table {
			return visual.WriteMarkdown(w, net, cols)
		}
		var sb strings.Builder
		if err := visual.WriteASCII(&sb, net, label); err != nil {
			return err
		}
		r.Println(output.FormatHeader(1, fmt.Sprintf("Network (%d nodes)", net.Len())))
		r.Println(output.FormatCodeBlock("", sb.String()))
		return nil
	default:
		if opts.Table {
			return visual.WriteTable(w, net, cols)
		}
		return visual.WriteASCII(w, net, label)
	}
}

// applyAssignments evaluates "name = expr" assignments at every node.
func applyAssignments(cmdCtx *CommandContext, net *network.Network, exprs []string) error {
	if len(exprs) == 0 {
		return nil
	}
	assignments := make([]starlark.Assignment, 0, len(exprs))
	for _, e := range exprs {
		a, err := starlark.ParseAssignment(e)
		if err != nil {
			return err
		}
		assignments = append(assignments, a)
	}
	opts, err := cmdCtx.EvalOptions()
	if err != nil {
		return err
	}
	return starlark.EvalNodes(net, assignments, opts)
}

func parseTemplateFlag(flag, src string) (*template.Template, error) {
	t, err := template.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return t, nil
}

func latexColumns(specs []string) ([]visual.LatexColumn, error) {
	var cols []visual.LatexColumn
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ";") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			col, err := visual.ParseLatexColumn(part)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
	}
	return cols, nil
}

// dotSettings builds graphviz settings from flags, using configured
// defaults for flags that were not set.
func dotSettings(cmd *cobra.Command, cmdCtx *CommandContext, opts *NetworkOptions, label, url *template.Template) (visual.DOTSettings, error) {
	dir, err := visual.ParseDirection(opts.Direction)
	if err != nil {
		return visual.DOTSettings{}, err
	}
	node, err := parseTemplateFlag("node-template", opts.NodeTemplate)
	if err != nil {
		return visual.DOTSettings{}, err
	}

	gv := cmdCtx.Cfg.Graphviz
	flags := cmd.Flags()
	s := visual.DOTSettings{
		Direction:   dir,
		SortBy:      opts.SortBy,
		NodeShape:   opts.NodeShape,
		NodeOffset:  opts.NodeOffset,
		LabelShape:  opts.LabelShape,
		LabelOffset: opts.LabelOffset,
		NodeSize:    opts.NodeSize,
		Node:        node,
		Label:       label,
		URL:         url,
	}
	if !flags.Changed("node-shape") && gv.NodeShape != "" {
		s.NodeShape = gv.NodeShape
	}
	if !flags.Changed("label-shape") && gv.LabelShape != "" {
		s.LabelShape = gv.LabelShape
	}
	if !flags.Changed("node-size") && gv.NodeSize > 0 {
		s.NodeSize = gv.NodeSize
	}
	if !flags.Changed("node-offset") && gv.NodeOffset > 0 {
		s.NodeOffset = gv.NodeOffset
	}
	if !flags.Changed("label-offset") && gv.LabelOffset > 0 {
		s.LabelOffset = gv.LabelOffset
	}
	return s, nil
}
