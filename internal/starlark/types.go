// Package starlark evaluates Starlark expressions against network node
// attributes and stores the results back on the nodes.
package starlark

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"

	"github.com/nadi-hydro/nadi/internal/network"
)

// AttrToStarlark converts a node attribute to a Starlark value. Integer
// lists become lists of ints.
func AttrToStarlark(a network.Attr) starlark.Value {
	switch a.Kind() {
	case network.KindInt:
		i, _ := a.Int()
		return starlark.MakeInt64(i)
	case network.KindFloat:
		f, _ := a.Float()
		return starlark.Float(f)
	case network.KindList:
		ints, _ := a.List()
		elems := make([]starlark.Value, len(ints))
		for i, n := range ints {
			elems[i] = starlark.MakeInt64(n)
		}
		return starlark.NewList(elems)
	default:
		return starlark.String(a.String())
	}
}

// AttrFromStarlark converts an evaluation result to a node attribute.
// Integer lists become list attributes; other lists, dicts and None are
// stored as their Starlark text.
func AttrFromStarlark(v starlark.Value) (network.Attr, error) {
	switch val := v.(type) {
	case starlark.String:
		return network.StringAttr(string(val)), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return network.Attr{}, fmt.Errorf("integer %s overflows int64", val.String())
		}
		return network.IntAttr(i), nil
	case starlark.Float:
		f := float64(val)
		if math.IsInf(f, 0) {
			return network.Attr{}, fmt.Errorf("result is infinite")
		}
		return network.FloatAttr(f), nil
	case starlark.Bool:
		return network.StringAttr(val.String()), nil
	case *starlark.List:
		ints := make([]int64, 0, val.Len())
		for i := 0; i < val.Len(); i++ {
			n, ok := val.Index(i).(starlark.Int)
			if !ok {
				return network.StringAttr(val.String()), nil
			}
			i64, ok := n.Int64()
			if !ok {
				return network.StringAttr(val.String()), nil
			}
			ints = append(ints, i64)
		}
		return network.ListAttr(ints), nil
	default:
		return network.StringAttr(val.String()), nil
	}
}

// ToGo converts an evaluation result to a value that encodes as JSON.
// NaN and infinite floats become nil; values with no Go counterpart, such
// as functions, become their Starlark text.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		return val.String(), nil
	case starlark.Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil
		}
		return f, nil
	case starlark.Indexable: // list, tuple
		out := make([]any, val.Len())
		for i := range out {
			g, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = g
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be a string, got %s", item[0].Type())
			}
			g, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", string(key), err)
			}
			out[string(key)] = g
		}
		return out, nil
	default:
		return val.String(), nil
	}
}
