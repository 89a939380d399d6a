package network

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nadi-hydro/nadi/internal/dag"
)

// DefaultNodesDir is the attribute directory next to the connection file.
const DefaultNodesDir = "nodes"

// LoadOptions configures Load.
type LoadOptions struct {
	NodesDir string // attribute directory, defaults to <dir of path>/nodes
	Logger   *slog.Logger
}

// IsDOTFile reports whether path is read as a graphviz file.
func IsDOTFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".dot" || ext == ".gv"
}

// Load reads a connection or graphviz file, builds the network and loads
// node attributes.
func Load(path string, opts LoadOptions) (*Network, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network file: %w", err)
	}

	var g *dag.Graph
	if IsDOTFile(path) {
		g, err = ParseDOT(string(data))
	} else {
		g, err = ParseConnections(strings.NewReader(string(data)))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	net, err := New(g, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dir := opts.NodesDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(path), DefaultNodesDir)
	}
	if err := net.LoadAttributes(dir); err != nil {
		return nil, err
	}

	logger.Info("network loaded", "path", path, "nodes", net.Len(), "nodes_dir", dir)
	return net, nil
}
