package network

import (
	"fmt"
	"slices"
	"sort"

	"github.com/nadi-hydro/nadi/internal/template"
)

// NoOutput marks an outlet node.
const NoOutput = -1

// Names of the attributes every node carries.
const (
	AttrName   = "name"
	AttrIndex  = "index"
	AttrInputs = "inputs"
	AttrOutput = "output"
	AttrOrder  = "order"
	AttrLevel  = "level"
)

var builtinAttrs = []string{AttrName, AttrIndex, AttrInputs, AttrOutput, AttrOrder, AttrLevel}

// Node is a point of the river network.
type Node struct {
	Index  int
	Name   string
	Inputs []int // indices of nodes draining into this one
	Output int   // index of the downstream node, NoOutput for outlets
	Order  int
	Level  int

	attrs map[string]Attr
}

func newNode(index int, name string) *Node {
	return &Node{
		Index:  index,
		Name:   name,
		Output: NoOutput,
		attrs:  make(map[string]Attr),
	}
}

// HasOutput reports whether the node drains into another node.
func (n *Node) HasOutput() bool {
	return n.Output != NoOutput
}

// IsBuiltin reports whether key names an attribute derived from the network structure.
func IsBuiltin(key string) bool {
	return slices.Contains(builtinAttrs, key)
}

// Attr returns the attribute named key.
func (n *Node) Attr(key string) (Attr, bool) {
	switch key {
	case AttrName:
		return StringAttr(n.Name), true
	case AttrIndex:
		return IntAttr(int64(n.Index)), true
	case AttrInputs:
		list := make([]int64, len(n.Inputs))
		for i, in := range n.Inputs {
			list[i] = int64(in)
		}
		return ListAttr(list), true
	case AttrOutput:
		if !n.HasOutput() {
			return Attr{}, false
		}
		return IntAttr(int64(n.Output)), true
	case AttrOrder:
		return IntAttr(int64(n.Order)), true
	case AttrLevel:
		return IntAttr(int64(n.Level)), true
	}
	a, ok := n.attrs[key]
	return a, ok
}

// SetAttr sets a user attribute. Structural attributes cannot be overwritten.
func (n *Node) SetAttr(key string, a Attr) error {
	if IsBuiltin(key) {
		return fmt.Errorf("%w: %s", ErrReadOnlyAttr, key)
	}
	n.attrs[key] = a
	return nil
}

// AttrNames returns the user attribute names, sorted.
func (n *Node) AttrNames() []string {
	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Attrs returns every attribute of the node, structural ones included.
func (n *Node) Attrs() map[string]Attr {
	all := make(map[string]Attr, len(n.attrs)+len(builtinAttrs))
	for k, v := range n.attrs {
		all[k] = v
	}
	for _, k := range builtinAttrs {
		if v, ok := n.Attr(k); ok {
			all[k] = v
		}
	}
	return all
}

// TemplateVars returns the attributes as template variables.
func (n *Node) TemplateVars() map[string]string {
	all := n.Attrs()
	vars := make(map[string]string, len(all))
	for k, v := range all {
		vars[k] = v.String()
	}
	return vars
}

// Render renders tmpl with the node attributes.
func (n *Node) Render(tmpl *template.Template) (string, error) {
	out, err := tmpl.RenderFunc(func(name string) (string, bool) {
		a, ok := n.Attr(name)
		if !ok {
			return "", false
		}
		return a.String(), true
	})
	if err != nil {
		return "", fmt.Errorf("node %s: %w", n.Name, err)
	}
	return out, nil
}
