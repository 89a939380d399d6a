package commands

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// scaffoldFile is a project file written, or left alone, by init.
type scaffoldFile struct {
	Path    string // slash-separated, relative to the project directory
	Skipped bool   // the file existed and --force was not given
}

// scaffold writes the embedded project template into dir. Existing files
// are kept unless force is set.
func scaffold(templateName, dir string, force bool) ([]scaffoldFile, error) {
	tmpl, err := fs.Sub(templateFS, path.Join("templates", templateName))
	if err != nil {
		return nil, err
	}

	var files []scaffoldFile
	err = fs.WalkDir(tmpl, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || name == "." {
			return err
		}
		rel := dotfileName(name)
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}

		if !force {
			if _, err := os.Stat(target); err == nil {
				files = append(files, scaffoldFile{Path: rel, Skipped: true})
				return nil
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}

		content, err := fs.ReadFile(tmpl, name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
		files = append(files, scaffoldFile{Path: rel})
		return nil
	})
	return files, err
}

// dotfileName maps template names that cannot be embedded as dotfiles,
// such as gitignore, to their real names.
func dotfileName(name string) string {
	if path.Base(name) == "gitignore" {
		return path.Join(path.Dir(name), ".gitignore")
	}
	return name
}

// scaffoldGroups are the init output sections, in display order.
var scaffoldGroups = []string{"config", "network", "nodes", "flows", "functions"}

// groupTemplateFiles sorts project files into scaffoldGroups by top-level
// directory or extension. Placeholder .gitkeep files are left out.
func groupTemplateFiles(files []string) map[string][]string {
	groups := make(map[string][]string, len(scaffoldGroups))
	for _, f := range files {
		if path.Base(f) == ".gitkeep" {
			continue
		}
		top, _, nested := strings.Cut(f, "/")
		switch {
		case nested && (top == "nodes" || top == "flows" || top == "functions"):
			groups[top] = append(groups[top], f)
		case strings.HasSuffix(f, ".network"):
			groups["network"] = append(groups["network"], f)
		default:
			groups["config"] = append(groups["config"], f)
		}
	}
	return groups
}
