package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit     int
	Downloads bool
}

// RunInfo is a run in JSON output.
type RunInfo struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	Args        []string   `json:"args"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// DownloadInfo is a recorded download in JSON output.
type DownloadInfo struct {
	SiteNo    string    `json:"site_no"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	Bytes     int64     `json:"bytes"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent command runs",
		Long: `List the commands recorded in the state database, most recent first.
With --downloads, list the USGS files that have been downloaded instead.`,
		Example: `  # Last 20 runs
  nadi history

  # Downloaded USGS files as JSON
  nadi history --downloads -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Downloads, "downloads", false, "List downloads instead of runs")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	if cmdCtx.Store == nil {
		return errors.New("state database is not available")
	}
	ctx := cmd.Context()
	r := cmdCtx.Renderer

	if opts.Downloads {
		downloads, err := cmdCtx.Store.ListDownloads(ctx)
		if err != nil {
			return fmt.Errorf("failed to list downloads: %w", err)
		}
		return renderDownloads(r, downloads)
	}

	runs, err := cmdCtx.Store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return renderRuns(r, runs)
}

func renderRuns(r *output.Renderer, runs []*state.Run) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		infos := make([]RunInfo, 0, len(runs))
		for _, run := range runs {
			infos = append(infos, RunInfo{
				ID:          run.ID,
				Command:     run.Command,
				Args:        run.Args,
				Status:      string(run.Status),
				StartedAt:   run.StartedAt,
				CompletedAt: run.CompletedAt,
				Error:       run.Error,
			})
		}
		return r.JSON(infos)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Runs (%d)", len(runs))))
		for _, run := range runs {
			r.Println(output.FormatHeader(2, runLine(run)))
			r.Println(output.FormatKeyValue("Status", string(run.Status)))
			r.Println(output.FormatKeyValue("Started", run.StartedAt.Format(time.RFC3339)))
			if d := run.Duration(); d > 0 {
				r.Println(output.FormatKeyValue("Duration", d.Round(time.Millisecond).String()))
			}
			if run.Error != "" {
				r.Println(output.FormatKeyValue("Error", run.Error))
			}
			r.Println()
		}
		return nil
	default:
		if len(runs) == 0 {
			r.Muted("No runs recorded")
			return nil
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(r.Writer())
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"started", "command", "status", "duration", "error"})
		for _, run := range runs {
			d := ""
			if run.CompletedAt != nil {
				d = run.Duration().Round(time.Millisecond).String()
			}
			tw.AppendRow(table.Row{
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				runLine(run),
				statusText(r, run.Status),
				d,
				run.Error,
			})
		}
		tw.Render()
		r.Muted(fmt.Sprintf("(%d rows)", len(runs)))
		return nil
	}
}

func runLine(run *state.Run) string {
	if len(run.Args) == 0 {
		return run.Command
	}
	return run.Command + " " + strings.Join(run.Args, " ")
}

func statusText(r *output.Renderer, s state.RunStatus) string {
	switch s {
	case state.RunStatusCompleted:
		return r.Styles().Success.Render(string(s))
	case state.RunStatusFailed:
		return r.Styles().Error.Render(string(s))
	default:
		return r.Styles().Warning.Render(string(s))
	}
}

func renderDownloads(r *output.Renderer, downloads []*state.Download) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		infos := make([]DownloadInfo, 0, len(downloads))
		for _, d := range downloads {
			infos = append(infos, DownloadInfo{
				SiteNo:    d.SiteNo,
				Kind:      d.Kind,
				Path:      d.Path,
				Bytes:     d.Bytes,
				FetchedAt: d.FetchedAt,
			})
		}
		return r.JSON(infos)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Downloads (%d)", len(downloads))))
		for _, d := range downloads {
			r.Println(output.FormatKeyValue(d.SiteNo+" "+d.Kind, fmt.Sprintf("%s (%d bytes)", d.Path, d.Bytes)))
		}
		return nil
	default:
		if len(downloads) == 0 {
			r.Muted("No downloads recorded")
			return nil
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(r.Writer())
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"site", "kind", "bytes", "fetched", "path"})
		for _, d := range downloads {
			tw.AppendRow(table.Row{d.SiteNo, d.Kind, d.Bytes, d.FetchedAt.Local().Format("2006-01-02 15:04:05"), d.Path})
		}
		tw.Render()
		r.Muted(fmt.Sprintf("(%d rows)", len(downloads)))
		return nil
	}
}
