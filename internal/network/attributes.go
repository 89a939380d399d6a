package network

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadAttributes reads the attribute files of every node from dir. For node n
// the files n.txt, n and n.yaml are read in that order; later values win.
// Missing files are skipped, and so are structural keys such as name or
// order, which are logged and left to the network.
func (net *Network) LoadAttributes(dir string) error {
	for _, n := range net.nodes {
		loaded := 0
		for _, name := range []string{n.Name + ".txt", n.Name} {
			path := filepath.Join(dir, name)
			ok, err := loadTextAttrs(path, net.fileAttrSetter(n, path))
			if err != nil {
				return err
			}
			if ok {
				loaded++
			}
		}
		path := filepath.Join(dir, n.Name+".yaml")
		ok, err := loadYAMLAttrs(path, net.fileAttrSetter(n, path))
		if err != nil {
			return err
		}
		if ok {
			loaded++
		}
		net.logger.Debug("loaded node attributes", "node", n.Name, "files", loaded, "attrs", len(n.attrs))
	}
	return nil
}

// fileAttrSetter returns a setter storing user attributes of n read from path.
func (net *Network) fileAttrSetter(n *Node, path string) func(string, Attr) {
	return func(key string, a Attr) {
		if IsBuiltin(key) {
			net.logger.Warn("ignoring structural attribute in node file",
				"node", n.Name, "file", path, "key", key, "value", a.String())
			return
		}
		n.attrs[key] = a
	}
}

func loadTextAttrs(path string, set func(string, Attr)) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open attribute file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat attribute file: %w", err)
	}
	if info.IsDir() {
		return false, nil
	}

	if err := ParseAttributes(f, set); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

// ParseAttributes reads key=value lines and passes each pair to set. Blank
// lines, lines starting with '#' and lines without '=' are ignored.
func ParseAttributes(r io.Reader, set func(key string, a Attr)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		set(strings.TrimSpace(key), ParseAttr(val))
	}
	return scanner.Err()
}

func loadYAMLAttrs(path string, set func(string, Attr)) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read attribute file: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return false, fmt.Errorf("%s: failed to parse yaml: %w", path, err)
	}
	for key, v := range values {
		a, err := attrFromAny(v)
		if err != nil {
			return false, fmt.Errorf("%s: %s: %w", path, key, err)
		}
		set(key, a)
	}
	return true, nil
}
