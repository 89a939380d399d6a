package network

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AttrKind identifies the type of value an attribute holds.
type AttrKind int

// Attribute kinds.
const (
	KindString AttrKind = iota
	KindInt
	KindFloat
	KindList
)

func (k AttrKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Attr is a node attribute value.
type Attr struct {
	kind AttrKind
	s    string
	i    int64
	f    float64
	list []int64
}

// StringAttr creates a string attribute.
func StringAttr(s string) Attr { return Attr{kind: KindString, s: s} }

// IntAttr creates an integer attribute.
func IntAttr(i int64) Attr { return Attr{kind: KindInt, i: i} }

// FloatAttr creates a float attribute.
func FloatAttr(f float64) Attr { return Attr{kind: KindFloat, f: f} }

// ListAttr creates an integer list attribute.
func ListAttr(list []int64) Attr {
	return Attr{kind: KindList, list: append([]int64(nil), list...)}
}

// ParseAttr parses a textual value as an integer, then a float, then falls back to a string.
func ParseAttr(s string) Attr {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntAttr(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatAttr(f)
	}
	return StringAttr(s)
}

// Kind returns the attribute kind.
func (a Attr) Kind() AttrKind { return a.kind }

// Float returns the numeric value of integer and float attributes.
func (a Attr) Float() (float64, bool) {
	switch a.kind {
	case KindInt:
		return float64(a.i), true
	case KindFloat:
		return a.f, true
	default:
		return 0, false
	}
}

// Int returns the value of an integer attribute.
func (a Attr) Int() (int64, bool) {
	if a.kind != KindInt {
		return 0, false
	}
	return a.i, true
}

// List returns the value of a list attribute.
func (a Attr) List() ([]int64, bool) {
	if a.kind != KindList {
		return nil, false
	}
	return a.list, true
}

// Value returns the attribute as a plain Go value (string, int64, float64 or []int64).
func (a Attr) Value() any {
	switch a.kind {
	case KindInt:
		return a.i
	case KindFloat:
		return a.f
	case KindList:
		if a.list == nil {
			return []int64{}
		}
		return a.list
	default:
		return a.s
	}
}

// String renders the attribute the way it is written in attribute files.
func (a Attr) String() string {
	switch a.kind {
	case KindInt:
		return strconv.FormatInt(a.i, 10)
	case KindFloat:
		return strconv.FormatFloat(a.f, 'f', -1, 64)
	case KindList:
		parts := make([]string, len(a.list))
		for i, v := range a.list {
			parts[i] = strconv.FormatInt(v, 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return a.s
	}
}

// MarshalJSON encodes the plain value. Non-finite floats become null.
func (a Attr) MarshalJSON() ([]byte, error) {
	if a.kind == KindFloat && (math.IsNaN(a.f) || math.IsInf(a.f, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(a.Value())
}

// attrFromAny converts a decoded YAML scalar or list into an attribute.
func attrFromAny(v any) (Attr, error) {
	switch x := v.(type) {
	case string:
		return StringAttr(x), nil
	case int:
		return IntAttr(int64(x)), nil
	case int64:
		return IntAttr(x), nil
	case uint64:
		return IntAttr(int64(x)), nil
	case float64:
		return FloatAttr(x), nil
	case bool:
		return StringAttr(strconv.FormatBool(x)), nil
	case nil:
		return StringAttr(""), nil
	case []any:
		list := make([]int64, 0, len(x))
		for _, item := range x {
			n, ok := item.(int)
			if !ok {
				return Attr{}, fmt.Errorf("list items must be integers, got %T", item)
			}
			list = append(list, int64(n))
		}
		return ListAttr(list), nil
	default:
		return Attr{}, fmt.Errorf("unsupported attribute type %T", v)
	}
}
