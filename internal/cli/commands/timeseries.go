package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nadi-hydro/nadi/internal/cli/config"
	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/timeseries"
	"github.com/nadi-hydro/nadi/internal/tsdb"
	"github.com/spf13/cobra"
)

// TimeseriesOptions holds options for the timeseries command.
type TimeseriesOptions struct {
	DateRange   string
	DateColumn  string
	ValueColumn string
	DateFormat  string
	Table       bool
	Plot        string
	File        string
	Action      string
	Args        []string
}

// tsAction is one timeseries operation with its aliases.
type tsAction struct {
	name    string
	aliases []string
	help    string
	method  timeseries.Method // set for fills
	query   func(*tsdb.DB, context.Context) (*tsdb.Frame, error)
}

var tsActions = []tsAction{
	{name: "echo", aliases: []string{"e"}, help: "print the series", query: (*tsdb.DB).Echo},
	{name: "na-values", aliases: []string{"na"}, help: "blocks of missing and present values", query: (*tsdb.DB).NABlocks},
	{name: "monthly-seasonality", aliases: []string{"sm"}, help: "mean per calendar month", query: (*tsdb.DB).MonthlySeasonality},
	{name: "daily-seasonality", aliases: []string{"sd"}, help: "mean per day of year", query: (*tsdb.DB).DailySeasonality},
	{name: "agg-annual", aliases: []string{"ay"}, help: "mean and count per year", query: (*tsdb.DB).AnnualMean},
	{name: "agg-monthly", aliases: []string{"am"}, help: "mean and count per year and month", query: (*tsdb.DB).MonthlyMean},
	{name: "na-fill-forward", aliases: []string{"nff"}, help: "fill forward, optional limit argument", method: timeseries.MethodForward},
	{name: "na-fill-backward", aliases: []string{"nfb"}, help: "fill backward, optional limit argument", method: timeseries.MethodBackward},
	{name: "na-fill-value", aliases: []string{"nfv"}, help: "fill with a value argument (default 0)", method: timeseries.MethodValue},
	{name: "na-fill-linear", aliases: []string{"nfl"}, help: "linear interpolation, optional limit argument", method: timeseries.MethodLinear},
	{name: "na-fill-seasonal", aliases: []string{"nfs"}, help: "fill with the day-of-year mean", method: timeseries.MethodSeasonal},
	{name: "na-fill-monthly", aliases: []string{"nfm"}, help: "fill with the monthly mean", method: timeseries.MethodMonthly},
}

func findTSAction(s string) (tsAction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range tsActions {
		if a.name == s {
			return a, nil
		}
		for _, alias := range a.aliases {
			if alias == s {
				return a, nil
			}
		}
	}
	return tsAction{}, fmt.Errorf("unknown action %q (see nadi timeseries --help)", s)
}

func tsActionHelp() string {
	var sb strings.Builder
	for _, a := range tsActions {
		fmt.Fprintf(&sb, "  %-20s %-4s %s\n", a.name, a.aliases[0], a.help)
	}
	return sb.String()
}

// NewTimeseriesCommand creates the timeseries command.
func NewTimeseriesCommand() *cobra.Command {
	opts := &TimeseriesOptions{}

	cmd := &cobra.Command{
		Use:     "timeseries <csv-file>",
		Aliases: []string{"ts"},
		Short:   "Inspect and fill a streamflow timeseries",
		Long: `Load a date/value CSV into an in-memory DuckDB database and run an action on it.

Actions (name, alias):
` + tsActionHelp() + `
Results are written as CSV unless --table, --plot or --file is given. On a
terminal the default is a table.`,
		Example: `  # Blocks of missing values
  nadi timeseries streamflow.csv

  # Annual means for the 1990s as a table
  nadi timeseries streamflow.csv -c ay -r 1990-01-01,1999-12-31 -t

  # Monthly seasonality as a bar plot
  nadi timeseries streamflow.csv -c sm -p flow

  # Fill gaps of up to 3 days forward and save
  nadi timeseries streamflow.csv -c nff -a 3 -f filled.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeseries(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.DateRange, "date-range", "r", "", "Date range to filter by (start,end)")
	cmd.Flags().StringVar(&opts.DateColumn, "date-col", "", "Column containing the dates (default from config)")
	cmd.Flags().StringVar(&opts.ValueColumn, "value-col", "", "Column containing the values (default from config)")
	cmd.Flags().StringVar(&opts.DateFormat, "date-format", "", "Go time layout of the dates (default from config)")
	cmd.Flags().BoolVarP(&opts.Table, "table", "t", false, "Print a table instead of CSV")
	cmd.Flags().StringVarP(&opts.Plot, "plot", "p", "", "Print a bar plot of this column")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Write the result as CSV to this file")
	cmd.Flags().StringVarP(&opts.Action, "command", "c", "na", "Action to perform")
	cmd.Flags().StringSliceVarP(&opts.Args, "args", "a", nil, "Extra arguments for the action")

	cmd.MarkFlagsMutuallyExclusive("table", "plot", "file")

	_ = cmd.RegisterFlagCompletionFunc("command", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, a := range tsActions {
			names = append(names, a.name+"\t"+a.help)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func (o *TimeseriesOptions) csvOptions(cfg config.TimeseriesConfig) timeseries.CSVOptions {
	return timeseries.CSVOptions{
		DateColumn:  firstNonEmpty(o.DateColumn, cfg.DateColumn),
		ValueColumn: firstNonEmpty(o.ValueColumn, cfg.ValueColumn),
		DateFormat:  firstNonEmpty(o.DateFormat, cfg.DateFormat),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func runTimeseries(cmd *cobra.Command, path string, opts *TimeseriesOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	action, err := findTSAction(opts.Action)
	if err != nil {
		return err
	}
	dateRange, err := timeseries.ParseDateRange(opts.DateRange)
	if err != nil {
		return err
	}
	csvOpts := opts.csvOptions(cmdCtx.Cfg.Timeseries)

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open timeseries: %w", err)
	}

	db, err := tsdb.Open(ctx, "", cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.LoadCSV(ctx, path, csvOpts); err != nil {
		return err
	}
	if !dateRange.IsZero() {
		if err := db.Filter(ctx, dateRange); err != nil {
			return err
		}
	}

	var frame *tsdb.Frame
	if action.query != nil {
		frame, err = action.query(db, ctx)
	} else {
		frame, err = fillFrame(ctx, cmdCtx, db, action, opts.Args, csvOpts.ValueColumn)
	}
	if err != nil {
		return err
	}

	switch {
	case opts.File != "":
		return writeFrameFile(opts.File, frame)
	case opts.Plot != "":
		return frame.WritePlot(r.Writer(), opts.Plot)
	case opts.Table:
		return frame.WriteTable(r.Writer())
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return frame.WriteJSON(r.Writer())
	case output.ModeText:
		return frame.WriteTable(r.Writer())
	default:
		return frame.WriteCSV(r.Writer())
	}
}

func fillFrame(ctx context.Context, cmdCtx *CommandContext, db *tsdb.DB, action tsAction, args []string, valueName string) (*tsdb.Frame, error) {
	s, err := db.Series(ctx)
	if err != nil {
		return nil, err
	}
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	missing := s.Missing()
	n, err := s.Fill(action.method, arg)
	if err != nil {
		return nil, err
	}
	cmdCtx.Logger.Info("filled missing values", "method", string(action.method), "filled", n, "missing", missing)
	return tsdb.SeriesFrame(s, valueName), nil
}

func writeFrameFile(path string, frame *tsdb.Frame) error {
	return writeFile(path, func(f *os.File) error { return frame.WriteCSV(f) })
}
