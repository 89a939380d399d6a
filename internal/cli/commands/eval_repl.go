package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/plugin"
	"github.com/nadi-hydro/nadi/internal/starlark"
	"github.com/spf13/cobra"
)

// evalSession evaluates REPL lines against one selected node.
type evalSession struct {
	net    *network.Network
	node   *network.Node
	out    io.Writer
	errOut io.Writer

	opts      starlark.Options
	functions []*plugin.Module
}

func newEvalSession(net *network.Network, nodeName string, out, errOut io.Writer) (*evalSession, error) {
	s := &evalSession{net: net, out: out, errOut: errOut}
	if nodeName != "" {
		node, ok := net.Node(nodeName)
		if !ok {
			return nil, fmt.Errorf("unknown node %q", nodeName)
		}
		s.node = node
	} else if outlet := net.Outlet(); outlet != nil {
		s.node = outlet
	}
	return s, nil
}

func (s *evalSession) prompt() string {
	if s.node == nil {
		return "nadi> "
	}
	return s.node.Name + "> "
}

// handle processes one input line and reports whether the session should end.
func (s *evalSession) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return s.dotCommand(line)
	}
	if s.node == nil {
		_, _ = fmt.Fprintln(s.errOut, "Error: network has no nodes")
		return false
	}

	if a, err := starlark.ParseAssignment(line); err == nil {
		v, err := starlark.EvalNode(s.net, s.node, a.Expr, s.opts)
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false
		}
		attr, err := starlark.AttrFromStarlark(v)
		if err == nil {
			err = s.node.SetAttr(a.Name, attr)
		}
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
		return false
	}

	v, err := starlark.EvalNode(s.net, s.node, line, s.opts)
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return false
	}
	_, _ = fmt.Fprintln(s.out, v.String())
	return false
}

func (s *evalSession) dotCommand(line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printEvalHelp(s.out)
	case ".nodes":
		for _, node := range s.net.Nodes() {
			_, _ = fmt.Fprintln(s.out, node.Name)
		}
	case ".node":
		if len(parts) < 2 {
			if s.node != nil {
				_, _ = fmt.Fprintln(s.out, s.node.Name)
			}
			return false
		}
		node, ok := s.net.Node(parts[1])
		if !ok {
			_, _ = fmt.Fprintf(s.errOut, "Error: unknown node %q\n", parts[1])
			return false
		}
		s.node = node
	case ".functions":
		if err := plugin.WriteSummary(s.out, s.functions); err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}
	case ".attrs":
		if s.node == nil {
			return false
		}
		for _, k := range s.node.AttrNames() {
			a, _ := s.node.Attr(k)
			_, _ = fmt.Fprintf(s.out, "%s = %s\n", k, a.String())
		}
	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func printEvalHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .nodes          List all nodes
  .node <name>    Evaluate against another node
  .attrs          Show the attributes of the current node
  .functions      List the user functions
  .quit / .exit   Exit

Expressions are Starlark; "name = expr" stores an attribute on the node.

Helpers:
` + starlark.Describe()
	_, _ = fmt.Fprintln(w, help)
}

func newNodeCompleter(net *network.Network) *readline.PrefixCompleter {
	names := make([]readline.PrefixCompleterInterface, 0, net.Len())
	for _, node := range net.Nodes() {
		names = append(names, readline.PcItem(node.Name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".nodes"),
		readline.PcItem(".node", names...),
		readline.PcItem(".attrs"),
		readline.PcItem(".functions"),
		readline.PcItem(".quit"),
	)
}

func runEvalREPL(cmd *cobra.Command, cmdCtx *CommandContext, net *network.Network, nodeName string) error {
	session, err := newEvalSession(net, nodeName, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	registry, err := cmdCtx.Functions()
	if err != nil {
		return err
	}
	session.functions = registry.Modules()
	if session.opts, err = cmdCtx.EvalOptions(); err != nil {
		return err
	}

	historyFile := filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "eval_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          session.prompt(),
		HistoryFile:     historyFile,
		AutoComplete:    newNodeCompleter(net),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "NADI eval (%d nodes)\n", net.Len())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if session.handle(line) {
			break
		}
		rl.SetPrompt(session.prompt())
	}
	return nil
}
