package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/template"
	"github.com/nadi-hydro/nadi/internal/timeseries"
	"github.com/spf13/cobra"
)

// methodNeighbours fills nodes from connected nodes instead of their own series.
const methodNeighbours = "neighbours"

// FillOptions holds options for the fill command.
type FillOptions struct {
	Dir          string
	OutDir       string
	FileTemplate string
	Method       string
	Arg          string
	Prop         string
	DateRange    string
	DateColumn   string
	ValueColumn  string
	DateFormat   string
	DryRun       bool
}

// FillResult summarizes the fill of one node's series.
type FillResult struct {
	Node      string `json:"node"`
	File      string `json:"file"`
	Length    int    `json:"length"`
	Missing   int    `json:"missing"`
	Filled    int    `json:"filled"`
	Remaining int    `json:"remaining"`
}

// NewFillCommand creates the fill command.
func NewFillCommand() *cobra.Command {
	opts := &FillOptions{}

	cmd := &cobra.Command{
		Use:   "fill <connection-file>",
		Short: "Fill missing values in the timeseries of every node",
		Long: `Read one timeseries CSV per node, fill its missing values and write the
filled series to the output directory.

The neighbours method fills each node from the nearest upstream or
downstream node with data, scaling the donor values by the ratio of the
--prop attribute (for example basin area). Other methods fill each series on
its own: forward, backward, value, linear, seasonal, monthly.`,
		Example: `  # Fill from neighbouring gauges, scaled by basin area
  nadi fill rivers.network --dir flows --prop area

  # Linear interpolation of gaps up to 5 days
  nadi fill rivers.network --dir flows -m linear -a 5 --out-dir flows/filled`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFill(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "Directory with the node timeseries")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "Output directory (default <dir>/filled)")
	cmd.Flags().StringVar(&opts.FileTemplate, "file-template", "{name}.csv", "Template for the file name of a node's timeseries")
	cmd.Flags().StringVarP(&opts.Method, "method", "m", methodNeighbours, "Fill method")
	cmd.Flags().StringVarP(&opts.Arg, "arg", "a", "", "Method argument (limit or value)")
	cmd.Flags().StringVar(&opts.Prop, "prop", "", "Attribute scaling neighbour values")
	cmd.Flags().StringVarP(&opts.DateRange, "date-range", "r", "", "Date range to filter by (start,end)")
	cmd.Flags().StringVar(&opts.DateColumn, "date-col", "", "Column containing the dates (default from config)")
	cmd.Flags().StringVar(&opts.ValueColumn, "value-col", "", "Column containing the values (default from config)")
	cmd.Flags().StringVar(&opts.DateFormat, "date-format", "", "Go time layout of the dates (default from config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report what would be filled without writing files")

	_ = cmd.RegisterFlagCompletionFunc("method", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := []string{methodNeighbours}
		for _, m := range timeseries.Methods {
			names = append(names, string(m))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runFill(cmd *cobra.Command, path string, opts *FillOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	net, err := cmdCtx.LoadNetwork(path)
	if err != nil {
		return err
	}
	fileTmpl, err := parseTemplateFlag("file-template", opts.FileTemplate)
	if err != nil {
		return err
	}
	dateRange, err := timeseries.ParseDateRange(opts.DateRange)
	if err != nil {
		return err
	}
	var method timeseries.Method
	if opts.Method != methodNeighbours {
		if method, err = timeseries.ParseMethod(opts.Method); err != nil {
			return err
		}
	}

	tc := cmdCtx.Cfg.Timeseries
	csvOpts := timeseries.CSVOptions{
		DateColumn:  firstNonEmpty(opts.DateColumn, tc.DateColumn),
		ValueColumn: firstNonEmpty(opts.ValueColumn, tc.ValueColumn),
		DateFormat:  firstNonEmpty(opts.DateFormat, tc.DateFormat),
	}

	series, files, err := readNodeSeries(net, opts.Dir, fileTmpl, csvOpts, dateRange)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no timeseries found in %s", opts.Dir)
	}
	cmdCtx.Logger.Debug("read node timeseries", "nodes", len(series), "dir", opts.Dir)

	missing := make(map[string]int, len(series))
	for name, s := range series {
		missing[name] = s.Missing()
	}

	filled := make(map[string]int)
	if opts.Method == methodNeighbours {
		filled, err = timeseries.FillFromNeighbours(net, series, opts.Prop)
		if err != nil {
			return err
		}
	} else {
		for name, s := range series {
			n, err := s.Fill(method, opts.Arg)
			if err != nil {
				return fmt.Errorf("node %s: %w", name, err)
			}
			filled[name] = n
		}
	}

	var results []FillResult
	for _, node := range net.Nodes() {
		s, ok := series[node.Name]
		if !ok {
			continue
		}
		results = append(results, FillResult{
			Node:      node.Name,
			File:      files[node.Name],
			Length:    s.Len(),
			Missing:   missing[node.Name],
			Filled:    filled[node.Name],
			Remaining: s.Missing(),
		})
	}

	if !opts.DryRun {
		outDir := opts.OutDir
		if outDir == "" {
			outDir = filepath.Join(opts.Dir, "filled")
		}
		if err := os.MkdirAll(outDir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		for i := range results {
			res := &results[i]
			out := filepath.Join(outDir, filepath.Base(res.File))
			if err := writeSeriesFile(out, series[res.Node], csvOpts); err != nil {
				return err
			}
			res.File = out
		}
	}

	return renderFillResults(r, results)
}

// readNodeSeries reads the timeseries file of every node that has one.
func readNodeSeries(net *network.Network, dir string, fileTmpl *template.Template, opts timeseries.CSVOptions, dr timeseries.DateRange) (map[string]*timeseries.Series, map[string]string, error) {
	series := make(map[string]*timeseries.Series)
	files := make(map[string]string)
	for _, node := range net.Nodes() {
		name, err := node.Render(fileTmpl)
		if err != nil {
			return nil, nil, err
		}
		path := filepath.Join(dir, name)
		f, err := os.Open(path) //nolint:gosec // path built from the user's template
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		s, err := timeseries.ReadCSV(f, opts)
		_ = f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		if !dr.IsZero() {
			s = s.Filter(dr)
		}
		series[node.Name] = s
		files[node.Name] = path
	}
	return series, files, nil
}

func writeSeriesFile(path string, s *timeseries.Series, opts timeseries.CSVOptions) error {
	return writeFile(path, func(f *os.File) error { return timeseries.WriteCSV(f, s, opts) })
}

func renderFillResults(r *output.Renderer, results []FillResult) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(results)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Filled timeseries"))
		r.Println("| node | file | length | missing | filled | remaining |")
		r.Println("|------|------|--------|---------|--------|-----------|")
		for _, res := range results {
			r.Printf("| %s | %s | %d | %d | %d | %d |\n", res.Node, res.File, res.Length, res.Missing, res.Filled, res.Remaining)
		}
		return nil
	default:
		tw := table.NewWriter()
		tw.SetOutputMirror(r.Writer())
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"node", "length", "missing", "filled", "remaining"})
		for _, res := range results {
			tw.AppendRow(table.Row{res.Node, res.Length, res.Missing, res.Filled, res.Remaining})
		}
		tw.Render()
		r.Muted(fmt.Sprintf("(%d nodes)", len(results)))
		return nil
	}
}
