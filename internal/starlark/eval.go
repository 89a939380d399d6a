package starlark

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/starlark"

	"github.com/nadi-hydro/nadi/internal/network"
)

// ErrInvalidAssignment is returned for malformed "name = expr" assignments.
var ErrInvalidAssignment = errors.New("invalid assignment")

// Assignment is a "name = expr" attribute assignment.
type Assignment struct {
	Name string
	Expr string
}

func (a Assignment) String() string {
	return a.Name + " = " + a.Expr
}

// ParseAssignment parses "name = expr". Comparisons such as "a == b" are
// not mistaken for assignments.
func ParseAssignment(s string) (Assignment, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '=' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && strings.ContainsRune("=!<>", rune(s[i-1])) {
			continue
		}
		name := strings.TrimSpace(s[:i])
		expr := strings.TrimSpace(s[i+1:])
		if !isIdent(name) {
			return Assignment{}, fmt.Errorf("%w: %q is not an attribute name", ErrInvalidAssignment, name)
		}
		if expr == "" {
			return Assignment{}, fmt.Errorf("%w: empty expression for %s", ErrInvalidAssignment, name)
		}
		return Assignment{Name: name, Expr: expr}, nil
	}
	return Assignment{}, fmt.Errorf("%w: %q has no '='", ErrInvalidAssignment, s)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Options configures EvalNodes.
type Options struct {
	Concurrency int
	Logger      *slog.Logger
	Globals     starlark.StringDict // extra predeclared names, such as function modules
}

// EvalNodes evaluates each assignment at every node and stores the result as
// an attribute. Assignments run in order, so later ones can use earlier results.
func EvalNodes(net *network.Network, assignments []Assignment, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	exec := NewParallelExecutor(opts.Concurrency, Predeclared(opts.Globals), logger)

	for _, asg := range assignments {
		if network.IsBuiltin(asg.Name) {
			return fmt.Errorf("%s: %w", asg.Name, network.ErrReadOnlyAttr)
		}

		results := exec.Execute(nodeTasks(net, asg.Expr))
		for i, res := range results {
			node := net.NodeAt(i)
			if res.Error != nil {
				return fmt.Errorf("node %s: %s: %w", node.Name, asg, res.Error)
			}
			a, err := AttrFromStarlark(res.Value)
			if err != nil {
				return fmt.Errorf("node %s: %s: %w", node.Name, asg, err)
			}
			if err := node.SetAttr(asg.Name, a); err != nil {
				return err
			}
		}
		logger.Debug("evaluated assignment", "assignment", asg.String(), "nodes", net.Len())
	}
	return nil
}

// EvalAll evaluates expr at every node and returns the results in index order.
func EvalAll(net *network.Network, expr string, opts Options) ([]EvalResult, error) {
	exec := NewParallelExecutor(opts.Concurrency, Predeclared(opts.Globals), opts.Logger)
	results := exec.Execute(nodeTasks(net, expr))
	for i, res := range results {
		if res.Error != nil {
			return nil, fmt.Errorf("node %s: %w", net.NodeAt(i).Name, res.Error)
		}
	}
	return results, nil
}

// EvalNode evaluates expr at a single node.
func EvalNode(net *network.Network, node *network.Node, expr string, opts Options) (starlark.Value, error) {
	pool := NewThreadPool(1, opts.Logger)
	thread := pool.Get(node.Name)
	return evalExpr(thread, node.Name, expr, merge(Predeclared(opts.Globals), NodeGlobals(net, node)))
}

func nodeTasks(net *network.Network, expr string) []EvalTask {
	tasks := make([]EvalTask, net.Len())
	for i, node := range net.Nodes() {
		tasks[i] = EvalTask{Name: node.Name, Expr: expr, Globals: NodeGlobals(net, node)}
	}
	return tasks
}
