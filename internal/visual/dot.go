package visual

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/template"
)

// Direction is the direction the river flows in a graphviz drawing.
type Direction string

// Supported directions.
const (
	TopToBottom Direction = "tb"
	BottomToTop Direction = "bt"
	LeftToRight Direction = "lr"
	RightToLeft Direction = "rl"
)

// ParseDirection parses a direction name or its one-letter alias
// (b, t, r, l name the side the outlet is drawn on).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tb", "b", "top-to-bottom", "":
		return TopToBottom, nil
	case "bt", "t", "bottom-to-top":
		return BottomToTop, nil
	case "lr", "r", "left-to-right":
		return LeftToRight, nil
	case "rl", "l", "right-to-left":
		return RightToLeft, nil
	default:
		return "", fmt.Errorf("unknown direction %q (expected tb, bt, lr or rl)", s)
	}
}

func (d Direction) horizontal() bool {
	return d == LeftToRight || d == RightToLeft
}

// DOTSettings configures WriteDOT.
type DOTSettings struct {
	Direction   Direction
	SortBy      string // numeric attribute ordering the rows, empty for traversal order
	NodeShape   string
	NodeOffset  float64
	LabelShape  string
	LabelOffset float64
	NodeSize    int
	Node        *template.Template // text inside the node
	Label       *template.Template // text of the label next to the node
	URL         *template.Template // link, omitted when it renders empty
}

// DefaultDOTSettings returns the default graphviz settings.
func DefaultDOTSettings() DOTSettings {
	index := mustParse("{index}")
	return DOTSettings{
		Direction:   TopToBottom,
		NodeShape:   "circle",
		NodeOffset:  1,
		LabelShape:  "plain",
		LabelOffset: 1,
		NodeSize:    30,
		Node:        index,
		Label:       index,
		URL:         mustParse(""),
	}
}

func mustParse(src string) *template.Template {
	t, err := template.Parse(src)
	if err != nil {
		panic(err)
	}
	return t
}

type placedNode struct {
	index int
	x, y  float64
}

// WriteDOT writes the network as a graphviz digraph with fixed positions:
// x follows the node level and y the row of the node.
func WriteDOT(w io.Writer, net *network.Network, s DOTSettings) error {
	if net.Len() == 0 {
		return nil
	}
	if s.Node == nil || s.Label == nil || s.URL == nil {
		d := DefaultDOTSettings()
		s.Node = cmpTemplate(s.Node, d.Node)
		s.Label = cmpTemplate(s.Label, d.Label)
		s.URL = cmpTemplate(s.URL, d.URL)
	}

	traversal := depthFirst(net, true)
	placed := make([]placedNode, len(traversal))
	for row, i := range traversal {
		placed[row] = placedNode{
			index: i,
			x:     float64(net.NodeAt(i).Level) * s.NodeOffset,
			y:     float64(row) * s.NodeOffset,
		}
	}

	if s.SortBy != "" {
		if err := sortRows(net, placed, s.SortBy, s.NodeOffset); err != nil {
			return err
		}
	}

	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range placed {
		maxX = math.Max(maxX, p.x)
		maxY = math.Max(maxY, p.y)
	}

	bw := bufio.NewWriter(w)
	_, _ = fmt.Fprintln(bw, "digraph network {")
	_, _ = fmt.Fprintln(bw, " overlap=true;")
	_, _ = fmt.Fprintf(bw, " node [shape=%s,fixedsize=false];\n", s.NodeShape)

	for _, p := range placed {
		node := net.NodeAt(p.index)
		x, y := p.x, p.y
		switch s.Direction {
		case BottomToTop:
			y = maxY - y
		case LeftToRight:
			x, y = maxY-y, x
		case RightToLeft:
			x, y = y, x
		}

		text, err := node.Render(s.Node)
		if err != nil {
			return err
		}
		label, err := node.Render(s.Label)
		if err != nil {
			return err
		}
		url, err := node.Render(s.URL)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(bw, "%d [pos=\"%s,%s!\", size=%d, fixedsize=true,label=\"%s\"",
			node.Index, num(x), num(y), s.NodeSize, escape(text))
		if url != "" {
			_, _ = fmt.Fprintf(bw, ",URL=\"%s\"", escape(url))
		}
		_, _ = fmt.Fprintln(bw, "]")

		lx, ly := maxX+s.LabelOffset, y
		if s.Direction.horizontal() {
			lx, ly = x, maxX+s.LabelOffset
		}
		_, _ = fmt.Fprintf(bw, "l%d [shape=%s,pos=\"%s,%s!\", label=\"%s\",fontsize=42",
			node.Index, s.LabelShape, num(lx), num(ly), escape(label))
		if url != "" {
			_, _ = fmt.Fprintf(bw, ",URL=\"%s\"", escape(url))
		}
		_, _ = fmt.Fprintln(bw, "]")

		_, _ = fmt.Fprintf(bw, "%d -> l%d [color=none]\n", node.Index, node.Index)
		if node.HasOutput() {
			_, _ = fmt.Fprintf(bw, "%d -> %d\n", node.Index, node.Output)
		}
	}
	_, _ = fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// sortRows reassigns y so rows follow the ascending value of attr.
func sortRows(net *network.Network, placed []placedNode, attr string, offset float64) error {
	values := make(map[int]float64, len(placed))
	for _, p := range placed {
		v, err := network.Float(net.NodeAt(p.index), attr)
		if err != nil {
			return fmt.Errorf("sort by: %w", err)
		}
		values[p.index] = v
	}

	ranked := make([]int, len(placed))
	for i, p := range placed {
		ranked[i] = p.index
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return values[ranked[a]] < values[ranked[b]]
	})

	rank := make(map[int]int, len(ranked))
	for r, idx := range ranked {
		rank[idx] = r
	}
	for i := range placed {
		placed[i].y = float64(rank[placed[i].index]) * offset
	}
	return nil
}

func cmpTemplate(t, def *template.Template) *template.Template {
	if t == nil {
		return def
	}
	return t
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
