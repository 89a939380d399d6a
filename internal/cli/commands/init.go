package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new NADI project",
		Long: `Initialize a new NADI project with a configuration file and a nodes directory.

This creates:
  - nadi.yaml configuration file
  - nodes/ directory for node attribute files
  - .gitignore excluding the .nadi state directory

Use --example to create a small river network with node attributes,
streamflow timeseries and expression functions to try the other commands on.`,
		Example: `  # Initialize in current directory
  nadi init

  # Initialize with an example network
  nadi init --example

  # Initialize in a new directory
  nadi init my-basin --example`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

			name := "minimal"
			if example {
				name = "example"
			}
			return runInit(r, name, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create an example network with attributes and timeseries")

	return cmd
}

func runInit(r *output.Renderer, templateName, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "nadi.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("nadi.yaml already exists. Use --force to overwrite")
	}

	files, err := scaffold(templateName, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	skipped := make(map[string]bool)
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
		skipped[f.Path] = f.Skipped
	}
	groups := groupTemplateFiles(paths)
	for _, group := range scaffoldGroups {
		if len(groups[group]) == 0 {
			continue
		}
		r.Header(2, group)
		for _, f := range groups[group] {
			if skipped[f] {
				r.StatusLine(f, "skipped", "exists")
			} else {
				r.StatusLine(f, "success", "")
			}
		}
		r.Println("")
	}

	r.Success("NADI project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if templateName == "example" {
		r.Println("  nadi network rivers.network -l \"{name} ({area})\"")
		r.Println("  nadi eval rivers.network \"area / 340\"")
		r.Println("  nadi fill rivers.network --dir flows --prop area")
		r.Println("  nadi functions")
	} else {
		r.Println("  1. Write a connection file with one \"upstream -> downstream\" line per river reach")
		r.Println("  2. Add node attributes to nodes/<node>.txt as key = value lines")
		r.Println("  3. Run 'nadi network <file>' to draw the network")
	}
	return nil
}
