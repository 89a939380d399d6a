package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/nadi-hydro/nadi/internal/cli/config"
	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/plugin"
	"github.com/nadi-hydro/nadi/internal/starlark"
	"github.com/nadi-hydro/nadi/internal/state"
	"github.com/spf13/cobra"
)

// storeKey is used to store the state store in context.
type storeKey struct{}

// WithStore stores the run-history store in the context.
func WithStore(ctx context.Context, store state.Store) context.Context {
	return context.WithValue(ctx, storeKey{}, store)
}

// GetStore retrieves the run-history store from the context, if any.
func GetStore(ctx context.Context) state.Store {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(storeKey{}).(state.Store)
	return s
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Store    state.Store // nil when the state database could not be opened

	functions *plugin.Registry
}

// NewCommandContext creates a CommandContext from the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	mode := output.Mode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
		Store:    GetStore(cmd.Context()),
	}
}

// LoadNetwork loads a connection file using the configured nodes directory.
func (c *CommandContext) LoadNetwork(path string) (*network.Network, error) {
	return network.Load(path, network.LoadOptions{NodesDir: c.Cfg.NodesDir, Logger: c.Logger})
}

// Functions returns the user function modules, loading them on first use.
func (c *CommandContext) Functions() (*plugin.Registry, error) {
	if c.functions != nil {
		return c.functions, nil
	}
	if c.Cfg.FunctionsDir == "" {
		c.functions = plugin.NewRegistry()
		return c.functions, nil
	}
	r, err := plugin.LoadDir(c.Cfg.FunctionsDir, c.Logger)
	if err != nil {
		return nil, err
	}
	c.functions = r
	return r, nil
}

// EvalOptions returns expression options with the user functions predeclared.
func (c *CommandContext) EvalOptions() (starlark.Options, error) {
	r, err := c.Functions()
	if err != nil {
		return starlark.Options{}, err
	}
	return starlark.Options{Logger: c.Logger, Globals: r.Globals()}, nil
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		NodesDir:     os.Getenv("NADI_NODES_DIR"),
		FunctionsDir: os.Getenv("NADI_FUNCTIONS_DIR"),
		StatePath:    getEnvOrDefault("NADI_STATE_PATH", config.DefaultStateFile),
		CacheDir:     getEnvOrDefault("NADI_CACHE_DIR", config.DefaultCacheDir),
		OutputFormat: os.Getenv("NADI_OUTPUT"),
		LogLevel:     config.DefaultLogLevel,
		LogFormat:    config.DefaultLogFormat,
		USGS: config.USGSConfig{
			Retries:     3,
			Concurrency: 4,
		},
		Timeseries: config.TimeseriesConfig{DateColumn: "date", ValueColumn: "flow", DateFormat: "2006-01-02"},
		Serve:      config.ServeConfig{Port: config.DefaultPort},
		Graphviz: config.GraphvizConfig{
			NodeShape:   "circle",
			LabelShape:  "plain",
			NodeSize:    30,
			NodeOffset:  1,
			LabelOffset: 1,
		},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
