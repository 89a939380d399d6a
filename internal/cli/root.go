// Package cli provides the command-line interface for NADI.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nadi-hydro/nadi/internal/cli/commands"
	"github.com/nadi-hydro/nadi/internal/cli/config"
	"github.com/nadi-hydro/nadi/internal/state"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipSetup lists commands that run without configuration or run history.
var skipSetup = map[string]bool{
	"help":       true,
	"completion": true,
	"__complete": true,
	"version":    true,
	"init":       true,
}

// session holds what the root command opens for a subcommand and must
// close when it returns.
type session struct {
	cfgFile string
	store   *state.SQLiteStore
	run     *state.Run
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&session{})
}

func newRootCmd(s *session) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nadi",
		Short: "NADI - Not Available Data Integration",
		Long: `NADI works with river networks: nodes connected by "upstream -> downstream"
lines, each carrying attributes from the nodes directory.

It draws networks as text, graphviz or LaTeX, evaluates expressions over
node attributes, inspects and fills streamflow timeseries, builds
connection files from GIS layers and downloads basin data from USGS.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipSetup[cmd.Name()] {
				return nil
			}
			return s.setup(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Not Available Data Integration for river networks
`)

	rootCmd.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (default: ./nadi.yaml)")
	rootCmd.PersistentFlags().String("nodes-dir", "", "Directory with node attribute files (default: nodes next to the network file)")
	rootCmd.PersistentFlags().String("functions-dir", "", "Directory with .star function files (default: functions)")
	rootCmd.PersistentFlags().String("state", "", "Path to the state database")
	rootCmd.PersistentFlags().String("cache-dir", "", "Directory for downloaded USGS data")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only log errors")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewNetworkCommand())
	rootCmd.AddCommand(commands.NewEvalCommand())
	rootCmd.AddCommand(commands.NewTimeseriesCommand())
	rootCmd.AddCommand(commands.NewFillCommand())
	rootCmd.AddCommand(commands.NewUSGSCommand())
	rootCmd.AddCommand(commands.NewConnectionCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewFunctionsCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{Version: Version, Commit: GitCommit, Date: BuildDate}))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// setup loads configuration, creates the logger and opens the run history.
// A state database that cannot be opened only disables the history.
func (s *session) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(s.cfgFile, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	ctx := config.WithLogger(cmd.Context(), logger)

	if cfg.Verbose {
		if f := config.GetConfigFileUsed(); f != "" {
			logger.Debug("using config file", "path", f)
		}
	}

	store, err := state.Open(ctx, cfg.StatePath, logger)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
		cmd.SetContext(ctx)
		return nil
	}
	s.store = store
	ctx = commands.WithStore(ctx, store)

	run, err := store.CreateRun(ctx, cmd.CommandPath(), args)
	if err != nil {
		logger.Warn("failed to record run", "error", err)
	} else {
		s.run = run
	}

	cmd.SetContext(ctx)
	return nil
}

// finish records the outcome of the run and closes the state database.
func (s *session) finish(ctx context.Context, runErr error) {
	if s.store == nil {
		return
	}
	if s.run != nil {
		status, msg := state.RunStatusCompleted, ""
		if runErr != nil {
			status, msg = state.RunStatusFailed, runErr.Error()
		}
		_ = s.store.CompleteRun(ctx, s.run.ID, status, msg)
	}
	_ = s.store.Close()
	s.store, s.run = nil, nil
}

// Run executes the command line args and returns the command error, if any.
// Errors are not printed.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s := &session{}
	rootCmd := newRootCmd(s)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	s.finish(context.WithoutCancel(ctx), err)
	return err
}

// Execute runs the root command with the process arguments.
func Execute() error {
	if err := Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for NADI.

To load completions:

Bash:
  $ source <(nadi completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ nadi completion bash > /etc/bash_completion.d/nadi
  # macOS:
  $ nadi completion bash > $(brew --prefix)/etc/bash_completion.d/nadi

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ nadi completion zsh > "${fpath[1]}/_nadi"

Fish:
  $ nadi completion fish | source

  # To load completions for each session, execute once:
  $ nadi completion fish > ~/.config/fish/completions/nadi.fish

PowerShell:
  PS> nadi completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(w)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}
	return cmd
}
