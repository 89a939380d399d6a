package commands

import (
	"fmt"
	"net/http"

	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/usgs"
	"github.com/spf13/cobra"
)

// USGSOptions holds options for the usgs command.
type USGSOptions struct {
	Sites []string
	Kinds []string
	Dir   string
	Force bool
}

// NewUSGSCommand creates the usgs command.
func NewUSGSCommand() *cobra.Command {
	opts := &USGSOptions{}

	cmd := &cobra.Command{
		Use:   "usgs",
		Short: "Download data from USGS",
		Long: `Download flowlines and basin boundaries for USGS gauge sites from the
Network Linked Data Index (NLDI).

Kinds: upstream (u), downstream (d), tributaries (t), basin (b).
Files are saved as <site>_<kind>.json. Files recorded in the state database
are not downloaded again unless --force is given.`,
		Example: `  # Upstream mainstem and basin for two sites
  nadi usgs -s 01646500,01638500 -k u,b

  # Everything into a data directory
  nadi usgs -s 01646500 -k u,d,t,b -d data/usgs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUSGS(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Sites, "site-no", "s", nil, "USGS site numbers")
	cmd.Flags().StringSliceVarP(&opts.Kinds, "geo-info", "k", []string{"b"}, "Type of data (u/d/t/b)")
	cmd.Flags().StringVarP(&opts.Dir, "output-dir", "d", "", "Output directory (default cache_dir from config)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Download again even if already recorded")
	_ = cmd.MarkFlagRequired("site-no")

	_ = cmd.RegisterFlagCompletionFunc("geo-info", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"u\tupstream", "d\tdownstream", "t\ttributaries", "b\tbasin"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runUSGS(cmd *cobra.Command, opts *USGSOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	cfg := cmdCtx.Cfg

	kinds := make([]usgs.Kind, 0, len(opts.Kinds))
	for _, k := range opts.Kinds {
		kind, err := usgs.ParseKind(k)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}

	dir := firstNonEmpty(opts.Dir, cfg.CacheDir, ".")

	client := usgs.NewClient()
	if cfg.USGS.BaseURL != "" {
		client.BaseURL = cfg.USGS.BaseURL
	}
	if cfg.USGS.Timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: cfg.USGS.Timeout}
	}
	if cfg.USGS.Retries >= 0 {
		client.Retries = uint64(cfg.USGS.Retries)
	}
	if cfg.USGS.Concurrency > 0 {
		client.Concurrency = cfg.USGS.Concurrency
	}
	client.Force = opts.Force
	client.Logger = cmdCtx.Logger
	if cmdCtx.Store != nil {
		client.Store = cmdCtx.Store
	}

	var spinner *output.Spinner
	if r.EffectiveMode() == output.ModeText && r.IsTTY() {
		spinner = r.NewSpinner(fmt.Sprintf("Downloading %d files...", len(opts.Sites)*len(kinds)))
		spinner.Start()
	}

	results, err := client.Download(cmd.Context(), opts.Sites, kinds, dir)
	if err != nil {
		if spinner != nil {
			spinner.Fail("Download failed")
		}
		return err
	}
	if spinner != nil {
		spinner.Stop()
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(results)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "USGS downloads"))
		for _, res := range results {
			r.Println(output.FormatKeyValue(res.Site+" "+string(res.Kind), downloadDetail(res)))
		}
	default:
		for _, res := range results {
			status := "success"
			if res.Skipped {
				status = "skipped"
			}
			r.StatusLine(res.Path, status, downloadDetail(res))
		}
	}
	return nil
}

func downloadDetail(res usgs.Result) string {
	if res.Skipped {
		return "already downloaded"
	}
	return fmt.Sprintf("%d bytes", res.Bytes)
}
