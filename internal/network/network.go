// Package network models a river network: nodes connected upstream to
// downstream, each carrying attributes loaded from files or computed.
package network

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadi-hydro/nadi/internal/dag"
)

var (
	// ErrAttrMissing is returned when a node lacks a required attribute.
	ErrAttrMissing = errors.New("attribute missing")
	// ErrAttrNotNumeric is returned when a numeric attribute holds a non-numeric value.
	ErrAttrNotNumeric = errors.New("attribute is not numeric")
	// ErrReadOnlyAttr is returned when setting a structural attribute.
	ErrReadOnlyAttr = errors.New("attribute is read-only")
	// ErrUnknownNode is returned when looking up a node that is not in the network.
	ErrUnknownNode = errors.New("unknown node")
)

// Network is an ordered and reindexed river network.
type Network struct {
	nodes  []*Node
	byName map[string]int
	graph  *dag.Graph
	logger *slog.Logger
}

// New builds a network from a validated connection graph, computing stream
// order and reindexing the nodes outlet first.
func New(g *dag.Graph, logger *slog.Logger) (*Network, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if hasCycle, path := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("%w: %v", dag.ErrCycle, path)
	}

	net := &Network{graph: g, logger: logger}
	ids := g.Nodes()
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
		net.nodes = append(net.nodes, newNode(i, id))
	}
	for i, id := range ids {
		if out, ok := g.Output(id); ok {
			net.nodes[i].Output = pos[out]
		}
		for _, in := range g.Inputs(id) {
			net.nodes[i].Inputs = append(net.nodes[i].Inputs, pos[in])
		}
	}

	if err := net.computeOrder(); err != nil {
		return nil, err
	}
	net.reindex()

	logger.Debug("network built", "nodes", len(net.nodes), "edges", g.EdgeCount())
	return net, nil
}

// computeOrder sets order = 1 for headwaters and 1 + sum of input orders otherwise.
func (net *Network) computeOrder() error {
	sorted, err := net.graph.TopologicalSort()
	if err != nil {
		return err
	}
	byID := make(map[string]*Node, len(net.nodes))
	for _, n := range net.nodes {
		byID[n.Name] = n
	}
	for _, id := range sorted {
		n := byID[id]
		n.Order = 1
		for _, in := range n.Inputs {
			n.Order += net.nodes[in].Order
		}
	}
	return nil
}

// reindex renumbers the nodes breadth-first from the outlet. Inputs are
// sorted by ascending order; the last input continues the parent's level
// and the others branch off one level higher.
func (net *Network) reindex() {
	if len(net.nodes) == 0 {
		return
	}

	type visit struct{ node, level int }
	var traversal []visit
	seen := make([]bool, len(net.nodes))

	for start := range net.nodes {
		if seen[start] {
			continue
		}
		root := start
		for net.nodes[root].HasOutput() {
			root = net.nodes[root].Output
		}
		if seen[root] {
			continue
		}

		seen[root] = true
		queue := []visit{{root, 0}}
		for len(queue) > 0 {
			curr := queue[0]
			queue = queue[1:]
			traversal = append(traversal, curr)

			n := net.nodes[curr.node]
			sortByOrder(n.Inputs, net.nodes)
			for i, in := range n.Inputs {
				level := curr.level + 1
				if i == len(n.Inputs)-1 {
					level = curr.level
				}
				seen[in] = true
				queue = append(queue, visit{in, level})
			}
		}
	}

	newIndex := make([]int, len(net.nodes))
	for i, v := range traversal {
		newIndex[v.node] = i
	}

	nodes := make([]*Node, len(traversal))
	for i, v := range traversal {
		n := net.nodes[v.node]
		n.Index = i
		n.Level = v.level
		for j, in := range n.Inputs {
			n.Inputs[j] = newIndex[in]
		}
		if n.HasOutput() {
			n.Output = newIndex[n.Output]
		}
		nodes[i] = n
	}

	net.nodes = nodes
	net.byName = make(map[string]int, len(nodes))
	for _, n := range nodes {
		net.byName[n.Name] = n.Index
	}
}

// sortByOrder sorts input indices by ascending stream order, keeping ties stable.
func sortByOrder(inputs []int, nodes []*Node) {
	for i := 1; i < len(inputs); i++ {
		for j := i; j > 0 && nodes[inputs[j]].Order < nodes[inputs[j-1]].Order; j-- {
			inputs[j], inputs[j-1] = inputs[j-1], inputs[j]
		}
	}
}

// Len returns the number of nodes.
func (net *Network) Len() int {
	return len(net.nodes)
}

// Nodes returns the nodes in index order.
func (net *Network) Nodes() []*Node {
	return net.nodes
}

// NodeAt returns the node with the given index.
func (net *Network) NodeAt(i int) *Node {
	return net.nodes[i]
}

// Node returns the node with the given name.
func (net *Network) Node(name string) (*Node, bool) {
	i, ok := net.byName[name]
	if !ok {
		return nil, false
	}
	return net.nodes[i], true
}

// Outlet returns the outlet node (index 0), or nil for an empty network.
func (net *Network) Outlet() *Node {
	if len(net.nodes) == 0 {
		return nil
	}
	return net.nodes[0]
}

// Graph returns the underlying connection graph.
func (net *Network) Graph() *dag.Graph {
	return net.graph
}

// Attr returns attribute key of the named node.
func (net *Network) Attr(name, key string) (Attr, error) {
	n, ok := net.Node(name)
	if !ok {
		return Attr{}, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	a, ok := n.Attr(key)
	if !ok {
		return Attr{}, fmt.Errorf("node %s: %w: %s", name, ErrAttrMissing, key)
	}
	return a, nil
}

// SetAttr sets attribute key of the named node.
func (net *Network) SetAttr(name, key string, a Attr) error {
	n, ok := net.Node(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	return n.SetAttr(key, a)
}

// Float returns the numeric value of attribute key on n.
func Float(n *Node, key string) (float64, error) {
	a, ok := n.Attr(key)
	if !ok {
		return 0, fmt.Errorf("node %s: %w: %s", n.Name, ErrAttrMissing, key)
	}
	f, ok := a.Float()
	if !ok {
		return 0, fmt.Errorf("node %s: %w: %s = %q", n.Name, ErrAttrNotNumeric, key, a.String())
	}
	return f, nil
}
