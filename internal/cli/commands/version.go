package commands

import (
	"fmt"
	"runtime"

	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	if info.Go == "" {
		info.Go = runtime.Version()
	}
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContext(cmd).Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Printf("NADI v%s\n", info.Version)
			r.Muted(fmt.Sprintf("commit %s, built %s, %s", info.Commit, info.Date, info.Go))
			return nil
		},
	}
}
