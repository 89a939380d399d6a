package starlark

import (
	"fmt"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"

	"github.com/nadi-hydro/nadi/internal/network"
)

// Predeclared returns the globals shared by every node evaluation: the math
// module plus extra, typically the user function modules.
func Predeclared(extra starlark.StringDict) starlark.StringDict {
	env := make(starlark.StringDict, len(extra)+1)
	for k, v := range extra {
		env[k] = v
	}
	env["math"] = starlarkmath.Module
	return env
}

// NodeGlobals returns the globals for evaluating an expression at node:
// every attribute of the node plus the attr, inputs_of and output_of helpers.
func NodeGlobals(net *network.Network, node *network.Node) starlark.StringDict {
	attrs := node.Attrs()
	globals := make(starlark.StringDict, len(attrs)+3)
	for k, a := range attrs {
		globals[k] = AttrToStarlark(a)
	}

	globals["attr"] = starlark.NewBuiltin("attr", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var def starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
			return nil, err
		}
		return attrOr(node, name, def), nil
	})

	globals["inputs_of"] = starlark.NewBuiltin("inputs_of", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var def starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
			return nil, err
		}
		values := make([]starlark.Value, 0, len(node.Inputs))
		for _, in := range node.Inputs {
			values = append(values, attrOr(net.NodeAt(in), name, def))
		}
		return starlark.NewList(values), nil
	})

	globals["output_of"] = starlark.NewBuiltin("output_of", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var def starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
			return nil, err
		}
		if !node.HasOutput() {
			return def, nil
		}
		return attrOr(net.NodeAt(node.Output), name, def), nil
	})

	return globals
}

func attrOr(node *network.Node, name string, def starlark.Value) starlark.Value {
	a, ok := node.Attr(name)
	if !ok {
		return def
	}
	return AttrToStarlark(a)
}

// Describe returns a short description of the node helpers for interactive help.
func Describe() string {
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		"attr(name, default=None)       attribute of the current node",
		"inputs_of(name, default=None)  list of the attribute over the input nodes",
		"output_of(name, default=None)  attribute of the output node",
		"math                           math module (math.sqrt, math.log, ...)",
	)
}
