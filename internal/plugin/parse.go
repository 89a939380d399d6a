package plugin

import (
	"fmt"
	"strings"

	"go.starlark.net/syntax"
)

// Function describes an exported function of a function file, read from
// the syntax tree without executing the file.
type Function struct {
	Name string   `json:"name"`
	Args []string `json:"args"` // parameters, with defaults as "x=1"
	Doc  string   `json:"doc,omitempty"`
	Line int      `json:"line"`
}

// Signature returns "name(arg, ...)".
func (f *Function) Signature() string {
	return f.Name + "(" + strings.Join(f.Args, ", ") + ")"
}

// ParseFile returns the top-level functions of a Starlark file whose names
// do not start with '_'.
func ParseFile(filename string, content []byte) ([]*Function, error) {
	f, err := (&syntax.FileOptions{}).Parse(filename, content, 0)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var functions []*Function
	for _, stmt := range f.Stmts {
		def, ok := stmt.(*syntax.DefStmt)
		if !ok || strings.HasPrefix(def.Name.Name, "_") {
			continue
		}
		functions = append(functions, &Function{
			Name: def.Name.Name,
			Args: params(def.Params),
			Doc:  docstring(def.Body),
			Line: int(def.Name.NamePos.Line),
		})
	}
	return functions, nil
}

func params(exprs []syntax.Expr) []string {
	var args []string
	for _, param := range exprs {
		switch p := param.(type) {
		case *syntax.Ident:
			args = append(args, p.Name)
		case *syntax.BinaryExpr:
			if ident, ok := p.X.(*syntax.Ident); ok && p.Op == syntax.EQ {
				args = append(args, ident.Name+"="+exprString(p.Y))
			}
		case *syntax.UnaryExpr:
			prefix := "*"
			if p.Op == syntax.STARSTAR {
				prefix = "**"
			}
			if ident, ok := p.X.(*syntax.Ident); ok {
				args = append(args, prefix+ident.Name)
			} else {
				// bare * separating keyword-only parameters
				args = append(args, prefix)
			}
		}
	}
	return args
}

func docstring(body []syntax.Stmt) string {
	if len(body) == 0 {
		return ""
	}
	stmt, ok := body[0].(*syntax.ExprStmt)
	if !ok {
		return ""
	}
	lit, ok := stmt.X.(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return ""
	}
	s, _ := lit.Value.(string)
	return strings.TrimSpace(s)
}

func exprString(expr syntax.Expr) string {
	switch e := expr.(type) {
	case *syntax.Literal:
		return e.Raw
	case *syntax.Ident:
		return e.Name
	case *syntax.ListExpr:
		return "[]"
	case *syntax.DictExpr:
		return "{}"
	case *syntax.TupleExpr:
		return "()"
	case *syntax.UnaryExpr:
		if e.Op == syntax.MINUS {
			return "-" + exprString(e.X)
		}
		return exprString(e.X)
	default:
		return "..."
	}
}
