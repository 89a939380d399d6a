package plugin

import (
	"fmt"
	"log/slog"
	"sort"

	"go.starlark.net/starlark"
)

// reserved names are node expression helpers that a function file may not shadow.
var reserved = map[string]bool{
	"attr":      true,
	"inputs_of": true,
	"output_of": true,
	"math":      true,
}

// Registry holds the loaded modules by namespace.
type Registry struct {
	modules map[string]*Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*Module)}
}

// Register adds a module. Namespaces must be unique and must not shadow a
// built-in helper.
func (r *Registry) Register(m *Module) error {
	if reserved[m.Namespace] {
		return fmt.Errorf("%s: namespace %q is reserved", m.Path, m.Namespace)
	}
	if prev, ok := r.modules[m.Namespace]; ok {
		return fmt.Errorf("%s: namespace %q already registered by %s", m.Path, m.Namespace, prev.Path)
	}
	r.modules[m.Namespace] = m
	return nil
}

// RegisterAll registers modules in order, stopping at the first error.
func (r *Registry) RegisterAll(modules []*Module) error {
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the module registered under namespace.
func (r *Registry) Get(namespace string) (*Module, bool) {
	m, ok := r.modules[namespace]
	return m, ok
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Namespaces returns the registered namespaces, sorted.
func (r *Registry) Namespaces() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Modules returns the registered modules sorted by namespace.
func (r *Registry) Modules() []*Module {
	modules := make([]*Module, 0, len(r.modules))
	for _, name := range r.Namespaces() {
		modules = append(modules, r.modules[name])
	}
	return modules
}

// Globals returns one Starlark module value per namespace, for use as
// predeclared names in node expressions.
func (r *Registry) Globals() starlark.StringDict {
	globals := make(starlark.StringDict, len(r.modules))
	for name, m := range r.modules {
		globals[name] = &module{name: name, exports: m.Exports}
	}
	return globals
}

// LoadDir loads and registers every function file in dir.
func LoadDir(dir string, logger *slog.Logger) (*Registry, error) {
	modules, err := NewLoader(dir, logger).Load()
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	if err := r.RegisterAll(modules); err != nil {
		return nil, err
	}
	return r, nil
}

// module exposes a function file's exports as attributes.
type module struct {
	name    string
	exports starlark.StringDict
}

var _ starlark.HasAttrs = (*module)(nil)

func (m *module) String() string        { return "<module " + m.name + ">" }
func (m *module) Type() string          { return "module" }
func (m *module) Freeze()               { m.exports.Freeze() }
func (m *module) Truth() starlark.Bool  { return starlark.True }
func (m *module) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: module") }

func (m *module) Attr(name string) (starlark.Value, error) {
	if v, ok := m.exports[name]; ok {
		return v, nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("module %s has no function or value %q", m.name, name))
}

func (m *module) AttrNames() []string {
	return m.exports.Keys()
}
