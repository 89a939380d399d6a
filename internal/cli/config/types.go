// Package config loads nadi CLI configuration from defaults, nadi.yaml,
// NADI_* environment variables and command-line flags.
package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultStateFile = ".nadi/state.db"
	DefaultCacheDir  = ".nadi/usgs"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultPort      = 8765
	DefaultFunctions = "functions"
)

// Config holds all CLI configuration options.
type Config struct {
	ProjectRoot  string           `koanf:"-"`
	NodesDir     string           `koanf:"nodes_dir"`
	FunctionsDir string           `koanf:"functions_dir"`
	StatePath    string           `koanf:"state_path"`
	CacheDir     string           `koanf:"cache_dir"`
	Verbose      bool             `koanf:"verbose"`
	Quiet        bool             `koanf:"quiet"`
	OutputFormat string           `koanf:"output"`
	LogLevel     string           `koanf:"log_level"`
	LogFormat    string           `koanf:"log_format"`
	USGS         USGSConfig       `koanf:"usgs"`
	Timeseries   TimeseriesConfig `koanf:"timeseries"`
	Serve        ServeConfig      `koanf:"serve"`
	Graphviz     GraphvizConfig   `koanf:"graphviz"`
}

// USGSConfig configures NLDI downloads.
type USGSConfig struct {
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	Retries     int           `koanf:"retries"`
	Concurrency int           `koanf:"concurrency"`
}

// TimeseriesConfig holds the default CSV column layout.
type TimeseriesConfig struct {
	DateColumn  string `koanf:"date_column"`
	ValueColumn string `koanf:"value_column"`
	DateFormat  string `koanf:"date_format"`
}

// ServeConfig holds configuration for the HTTP server.
type ServeConfig struct {
	Port  int  `koanf:"port"`
	Watch bool `koanf:"watch"`
}

// GraphvizConfig holds graphviz drawing defaults.
type GraphvizConfig struct {
	NodeShape   string  `koanf:"node_shape"`
	LabelShape  string  `koanf:"label_shape"`
	NodeSize    int     `koanf:"node_size"`
	NodeOffset  float64 `koanf:"node_offset"`
	LabelOffset float64 `koanf:"label_offset"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("invalid output format %q (expected auto, text, markdown or json)", c.OutputFormat)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (expected text or json)", c.LogFormat)
	}
	if c.USGS.Retries < 0 {
		return fmt.Errorf("usgs.retries must not be negative")
	}
	if c.USGS.Concurrency < 1 {
		return fmt.Errorf("usgs.concurrency must be at least 1")
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		return fmt.Errorf("serve.port %d out of range", c.Serve.Port)
	}
	return nil
}
