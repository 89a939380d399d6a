// Package template provides the text templates used to label, link and tabulate
// network nodes. A template mixes literal text with {variable} references:
//
//	{name}            value of the "name" attribute
//	{basin?name}      first defined of several attributes
//	{basin?"none"}    quoted literal used when nothing before it is defined
//	{area:%.2f}       printf-style formatting of a numeric value
//	{{ and }}         literal braces
package template

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is the interface for all template AST nodes.
type Node interface {
	Pos() Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode represents literal text (passed through unchanged).
type TextNode struct {
	nodeBase
	Text string
}

// Choice is one alternative inside a variable reference.
type Choice struct {
	Name      string // variable name, empty for literals
	Literal   string // literal text when IsLiteral
	IsLiteral bool
}

// VarNode represents a {a?b?"c":fmt} reference.
type VarNode struct {
	nodeBase
	Choices []Choice
	Format  string // printf verb, empty for the raw value
}

// Template represents a complete parsed template.
type Template struct {
	Nodes  []Node
	Source string
	File   string
}
