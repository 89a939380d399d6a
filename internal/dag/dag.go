// Package dag provides the directed graph behind a river network.
// Every node drains into at most one downstream node, so the graph is a
// forest of in-trees rooted at the outlets. It supports cycle detection,
// upstream-first ordering and upstream/downstream traversal.
package dag

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownNode is returned when an edge references a node that was never added.
	ErrUnknownNode = errors.New("unknown node")
	// ErrSelfLoop is returned when a node is connected to itself.
	ErrSelfLoop = errors.New("self-loop")
	// ErrMultipleOutputs is returned when a node would drain into two different nodes.
	ErrMultipleOutputs = errors.New("node already has a different output")
	// ErrCycle is returned by operations that require an acyclic graph.
	ErrCycle = errors.New("cycle detected")
)

// Graph represents a river connection graph.
type Graph struct {
	order  []string            // node ids in first-appearance order
	known  map[string]bool     // node membership
	inputs map[string][]string // downstream -> upstream nodes, insertion order
	output map[string]string   // upstream -> downstream node
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		known:  make(map[string]bool),
		inputs: make(map[string][]string),
		output: make(map[string]string),
	}
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if g.known[id] {
		return
	}
	g.known[id] = true
	g.order = append(g.order, id)
}

// HasNode reports whether id is part of the graph.
func (g *Graph) HasNode(id string) bool {
	return g.known[id]
}

// AddEdge connects upstream to downstream (upstream drains into downstream).
func (g *Graph) AddEdge(upstream, downstream string) error {
	if !g.known[upstream] {
		return fmt.Errorf("%w: %q", ErrUnknownNode, upstream)
	}
	if !g.known[downstream] {
		return fmt.Errorf("%w: %q", ErrUnknownNode, downstream)
	}
	if upstream == downstream {
		return fmt.Errorf("%w: %s", ErrSelfLoop, upstream)
	}

	if out, ok := g.output[upstream]; ok {
		if out == downstream {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s (already -> %s)", ErrMultipleOutputs, upstream, downstream, out)
	}

	g.output[upstream] = downstream
	g.inputs[downstream] = append(g.inputs[downstream], upstream)
	return nil
}

// Nodes returns all node ids in first-appearance order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Inputs returns the nodes draining directly into id.
func (g *Graph) Inputs(id string) []string {
	return g.inputs[id]
}

// Output returns the node id drains into, if any.
func (g *Graph) Output(id string) (string, bool) {
	out, ok := g.output[id]
	return out, ok
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.output)
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
// With a single output per node a cycle is found by following outputs.
func (g *Graph) HasCycle() (bool, []string) {
	done := make(map[string]bool)

	for _, start := range g.order {
		if done[start] {
			continue
		}
		onPath := make(map[string]int)
		var path []string
		curr := start
		for {
			if done[curr] {
				break
			}
			if pos, seen := onPath[curr]; seen {
				cycle := append(slices.Clone(path[pos:]), curr)
				return true, cycle
			}
			onPath[curr] = len(path)
			path = append(path, curr)
			next, ok := g.output[curr]
			if !ok {
				break
			}
			curr = next
		}
		for _, id := range path {
			done[id] = true
		}
	}

	return false, nil
}

// TopologicalSort returns node ids with every node after all of its upstream nodes.
// Ties keep first-appearance order. Returns ErrCycle if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("%w: %v", ErrCycle, cyclePath)
	}

	visited := make(map[string]bool)
	result := make([]string, 0, len(g.order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, up := range g.inputs[id] {
			visit(up)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// Outlets returns the nodes that drain nowhere, in first-appearance order.
func (g *Graph) Outlets() []string {
	var outlets []string
	for _, id := range g.order {
		if _, ok := g.output[id]; !ok {
			outlets = append(outlets, id)
		}
	}
	return outlets
}

// Sources returns the nodes without inputs (headwaters), in first-appearance order.
func (g *Graph) Sources() []string {
	var sources []string
	for _, id := range g.order {
		if len(g.inputs[id]) == 0 {
			sources = append(sources, id)
		}
	}
	return sources
}

// Upstream returns every node that eventually drains into id, nearest first.
func (g *Graph) Upstream(id string) []string {
	var result []string
	seen := map[string]bool{id: true}
	queue := slices.Clone(g.inputs[id])
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if seen[curr] {
			continue
		}
		seen[curr] = true
		result = append(result, curr)
		queue = append(queue, g.inputs[curr]...)
	}
	return result
}

// Downstream returns the path from id's output to its outlet.
func (g *Graph) Downstream(id string) []string {
	var path []string
	seen := map[string]bool{id: true}
	curr := id
	for {
		next, ok := g.output[curr]
		if !ok || seen[next] {
			return path
		}
		seen[next] = true
		path = append(path, next)
		curr = next
	}
}

// Subgraph returns a new graph containing only the specified nodes and the edges between them.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := NewGraph()
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	for _, id := range g.order {
		if keep[id] {
			sub.AddNode(id)
		}
	}
	for _, id := range sub.order {
		if out, ok := g.output[id]; ok && keep[out] {
			_ = sub.AddEdge(id, out)
		}
	}
	return sub
}
