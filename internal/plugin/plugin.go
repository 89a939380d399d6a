// Package plugin loads user functions for node expressions from Starlark
// files. Each <name>.star file in the functions directory becomes a module
// named after the file, so "def ratio(a, b)" in flow.star is called as
// flow.ratio(a, b) from nadi eval and nadi network --set.
package plugin

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Ext is the extension of function files.
const Ext = ".star"

// Module is one loaded function file.
type Module struct {
	Namespace string
	Path      string
	Exports   starlark.StringDict // top-level names not starting with '_'
	Functions []*Function         // exported functions in file order
}

// Loader loads the function files of a directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader for dir. A nil logger discards output,
// including print() calls made while a file executes.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{dir: dir, logger: logger}
}

// Load executes every .star file of the directory in name order.
// A missing directory yields no modules.
func (l *Loader) Load() ([]*Module, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access functions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("functions path is not a directory: %s", l.dir)
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*"+Ext))
	if err != nil {
		return nil, fmt.Errorf("failed to scan functions directory: %w", err)
	}
	sort.Strings(files)

	var modules []*Module
	for _, file := range files {
		m, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("loaded function file", "namespace", m.Namespace, "functions", len(m.Functions))
		modules = append(modules, m)
	}
	return modules, nil
}

func (l *Loader) loadFile(path string) (*Module, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from the functions directory glob
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	namespace := strings.TrimSuffix(filepath.Base(path), Ext)
	if err := validateNamespace(namespace); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	functions, err := ParseFile(path, content)
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	thread := &starlark.Thread{
		Name: "load:" + namespace,
		Print: func(_ *starlark.Thread, msg string) {
			l.logger.Info(msg, "namespace", namespace)
		},
	}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, content, nil)
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("execution error: %v", err)}
	}

	exports := make(starlark.StringDict)
	for name, value := range globals {
		if !strings.HasPrefix(name, "_") {
			value.Freeze()
			exports[name] = value
		}
	}

	return &Module{
		Namespace: namespace,
		Path:      path,
		Exports:   exports,
		Functions: functions,
	}, nil
}

// validateNamespace checks that a file name can be used as a Starlark identifier.
func validateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		case i == 0 && r >= '0' && r <= '9':
			return fmt.Errorf("namespace must start with a letter or underscore: %s", name)
		default:
			return fmt.Errorf("namespace contains invalid character %q: %s", r, name)
		}
	}
	return nil
}

// LoadError is an error loading one function file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("functions/%s: %s", filepath.Base(e.File), e.Message)
}

// WriteSummary writes one "namespace.signature" line per exported function.
func WriteSummary(w io.Writer, modules []*Module) error {
	for _, m := range modules {
		for _, f := range m.Functions {
			line := m.Namespace + "." + f.Signature()
			if f.Doc != "" {
				line += "  " + firstLine(f.Doc)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
