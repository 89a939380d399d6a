package commands

import (
	"errors"
	"fmt"

	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/starlark"
	"github.com/spf13/cobra"
	gostarlark "go.starlark.net/starlark"
)

// EvalOptions holds options for the eval command.
type EvalOptions struct {
	Interactive bool
	Node        string
	Set         []string
}

// EvalRow is one evaluated node in JSON output.
type EvalRow struct {
	Node  string `json:"node"`
	Value any    `json:"value"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	opts := &EvalOptions{}

	cmd := &cobra.Command{
		Use:   "eval <connection-file> [expression]",
		Short: "Evaluate an expression at every node",
		Long: `Evaluate a Starlark expression with each node's attributes as globals.

Node attributes are available by name, along with index, name, order,
level and output. Functions defined in <functions_dir>/<module>.star are
called as module.function(...). The helpers inputs_of(attr) and output_of(attr) return
the attribute from the node's inputs and its output node.

With -i an interactive prompt evaluates expressions against one node at a
time; .node <name> selects the node, .nodes lists them and .quit exits.`,
		Example: `  # Area of each node as a fraction of the outlet
  nadi eval rivers.network "area / 1000"

  # Sum of the input areas
  nadi eval rivers.network "sum(inputs_of('area'))"

  # Store a derived attribute and print it
  nadi eval rivers.network -e "ratio = area / 100" ratio

  # Interactive prompt
  nadi eval rivers.network -i`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := ""
			if len(args) == 2 {
				expr = args[1]
			}
			return runEval(cmd, args[0], expr, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Start an interactive prompt")
	cmd.Flags().StringVarP(&opts.Node, "node", "n", "", "Only evaluate at this node")
	cmd.Flags().StringArrayVarP(&opts.Set, "set", "e", nil, "Evaluate 'name = expr' at every node first")

	return cmd
}

func runEval(cmd *cobra.Command, path, expr string, opts *EvalOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	net, err := cmdCtx.LoadNetwork(path)
	if err != nil {
		return err
	}
	if err := applyAssignments(cmdCtx, net, opts.Set); err != nil {
		return err
	}

	if opts.Interactive {
		return runEvalREPL(cmd, cmdCtx, net, opts.Node)
	}
	if expr == "" {
		if len(opts.Set) == 0 {
			return errors.New("an expression is required unless --interactive or --set is given")
		}
		return nil
	}

	evalOpts, err := cmdCtx.EvalOptions()
	if err != nil {
		return err
	}

	var rows []EvalRow
	if opts.Node != "" {
		node, ok := net.Node(opts.Node)
		if !ok {
			return fmt.Errorf("unknown node %q", opts.Node)
		}
		v, err := starlark.EvalNode(net, node, expr, evalOpts)
		if err != nil {
			return fmt.Errorf("node %s: %w", node.Name, err)
		}
		rows = append(rows, evalRow(node.Name, v))
	} else {
		results, err := starlark.EvalAll(net, expr, evalOpts)
		if err != nil {
			return err
		}
		for _, res := range results {
			rows = append(rows, evalRow(res.Name, res.Value))
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(rows)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, expr))
		for _, row := range rows {
			r.Println(output.FormatKeyValue(row.Node, fmt.Sprint(row.Value)))
		}
	default:
		for _, row := range rows {
			r.Printf("%s: %v\n", r.Styles().NodeName.Render(row.Node), row.Value)
		}
	}
	return nil
}

func evalRow(name string, v gostarlark.Value) EvalRow {
	if g, err := starlark.ToGo(v); err == nil {
		return EvalRow{Node: name, Value: g}
	}
	return EvalRow{Node: name, Value: v.String()}
}
