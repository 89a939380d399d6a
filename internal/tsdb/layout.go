package tsdb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLayout is returned for Go layout elements DuckDB cannot parse.
var ErrUnsupportedLayout = errors.New("unsupported date layout element")

type layoutElem struct {
	layout string
	format string // empty when unsupported
}

// layoutElems lists Go layout elements; longer ones sharing a prefix come first.
var layoutElems = []layoutElem{
	{"January", "%B"},
	{"Jan", "%b"},
	{"Monday", "%A"},
	{"Mon", "%a"},
	{"MST", "%Z"},
	{"2006", "%Y"},
	{"002", "%j"},
	{"01", "%m"},
	{"02", "%d"},
	{"03", "%I"},
	{"04", "%M"},
	{"05", "%S"},
	{"06", "%y"},
	{"15", "%H"},
	{"_2", ""},
	{"1", "%-m"},
	{"2", "%-d"},
	{"3", "%-I"},
	{"4", "%-M"},
	{"5", "%-S"},
	{"PM", "%p"},
	{"pm", "%p"},
	{"Z07:00:00", ""},
	{"Z070000", ""},
	{"Z07:00", ""},
	{"Z0700", ""},
	{"Z07", ""},
	{"-07:00:00", ""},
	{"-070000", ""},
	{"-07:00", "%z"},
	{"-0700", "%z"},
	{"-07", "%z"},
}

// StrftimeLayout converts a Go time layout to a DuckDB strptime format.
// Space-padded days, "Z" offsets, offsets with seconds and fractional seconds
// other than .000, .000000 and .000000000 return ErrUnsupportedLayout.
func StrftimeLayout(layout string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(layout); {
		rest := layout[i:]

		if n := fractionLen(rest); n > 0 {
			f, err := fractionFormat(rest[:n])
			if err != nil {
				return "", fmt.Errorf("%w %q in %q", err, rest[:n], layout)
			}
			b.WriteString(f)
			i += n
			continue
		}

		elem, ok := matchElem(rest)
		switch {
		case !ok:
			if rest[0] == '%' {
				b.WriteString("%%")
			} else {
				b.WriteByte(rest[0])
			}
			i++
		case elem.format == "":
			return "", fmt.Errorf("%w %q in %q", ErrUnsupportedLayout, elem.layout, layout)
		default:
			b.WriteString(elem.format)
			i += len(elem.layout)
		}
	}
	return b.String(), nil
}

func matchElem(s string) (layoutElem, bool) {
	for _, e := range layoutElems {
		if !strings.HasPrefix(s, e.layout) {
			continue
		}
		// "Jan" and "Mon" followed by a lowercase letter are plain text.
		if (e.layout == "Jan" || e.layout == "Mon") && len(s) > 3 && s[3] >= 'a' && s[3] <= 'z' {
			continue
		}
		return e, true
	}
	return layoutElem{}, false
}

// fractionLen returns the length of a fractional second element at the
// start of s ("." or "," followed by a run of 0s or 9s not followed by a
// digit), or 0.
func fractionLen(s string) int {
	if len(s) < 2 || (s[0] != '.' && s[0] != ',') || (s[1] != '0' && s[1] != '9') {
		return 0
	}
	j := 1
	for j < len(s) && s[j] == s[1] {
		j++
	}
	if j < len(s) && s[j] >= '0' && s[j] <= '9' {
		return 0
	}
	return j
}

func fractionFormat(elem string) (string, error) {
	if elem[0] == '.' && elem[1] == '0' {
		switch len(elem) - 1 {
		case 3:
			return ".%g", nil
		case 6:
			return ".%f", nil
		case 9:
			return ".%n", nil
		}
	}
	return "", ErrUnsupportedLayout
}
