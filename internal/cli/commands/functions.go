package commands

import (
	"fmt"

	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/plugin"
	"github.com/spf13/cobra"
)

// FunctionModule is a function file in JSON output.
type FunctionModule struct {
	Namespace string             `json:"namespace"`
	Path      string             `json:"path"`
	Functions []*plugin.Function `json:"functions"`
}

// NewFunctionsCommand creates the functions command.
func NewFunctionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List the user functions available to expressions",
		Long: `List the functions defined in the functions directory.

Each <name>.star file becomes a module called <name>; its top-level
functions are available to nadi eval and nadi network --set as
<name>.<function>(...). Names starting with an underscore are private.`,
		Example: `  # functions/flow.star:
  #   def ratio(a, b):
  #       """Share of b in a."""
  #       return b / a
  nadi functions
  nadi eval rivers.network "flow.ratio(area, sum(inputs_of('area', 0)))"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFunctions(cmd)
		},
	}
	return cmd
}

func runFunctions(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	registry, err := cmdCtx.Functions()
	if err != nil {
		return err
	}
	modules := registry.Modules()

	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := make([]FunctionModule, 0, len(modules))
		for _, m := range modules {
			fns := m.Functions
			if fns == nil {
				fns = []*plugin.Function{}
			}
			out = append(out, FunctionModule{Namespace: m.Namespace, Path: m.Path, Functions: fns})
		}
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Functions (%d modules)", len(modules))))
		for _, m := range modules {
			r.Println(output.FormatHeader(2, m.Namespace))
			for _, f := range m.Functions {
				line := "- `" + m.Namespace + "." + f.Signature() + "`"
				if f.Doc != "" {
					line += ": " + f.Doc
				}
				r.Println(line)
			}
			r.Println()
		}
		return nil
	default:
		if len(modules) == 0 {
			r.Muted(fmt.Sprintf("No function files in %s", cmdCtx.Cfg.FunctionsDir))
			return nil
		}
		for _, m := range modules {
			r.Header(2, m.Namespace)
			for _, f := range m.Functions {
				r.Printf("  %s", r.Styles().NodeName.Render(m.Namespace+"."+f.Signature()))
				if f.Doc != "" {
					r.Printf("  %s", r.Styles().Muted.Render(f.Doc))
				}
				r.Println()
			}
		}
		return nil
	}
}
