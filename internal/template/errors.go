package template

import "fmt"

// Error is implemented by every error returned from this package.
type Error interface {
	error
	Position() Position
}

var (
	_ Error = (*LexError)(nil)
	_ Error = (*ParseError)(nil)
	_ Error = (*RenderError)(nil)
)

// String returns "file:line:col", or "line:col" for templates without a file.
func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// LexError reports malformed braces or literals.
type LexError struct {
	Pos Position
	Msg string
}

// NewLexError creates a lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{Pos: pos, Msg: msg}
}

func (e *LexError) Error() string      { return e.Pos.String() + ": " + e.Msg }
func (e *LexError) Position() Position { return e.Pos }

// ParseError reports an invalid {...} reference.
type ParseError struct {
	Pos Position
	Msg string
}

// NewParseErrorf creates a parser error.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *ParseError) Error() string      { return e.Pos.String() + ": " + e.Msg }
func (e *ParseError) Position() Position { return e.Pos }

// RenderError reports a reference that could not be rendered for a node,
// usually because none of its variables is set.
type RenderError struct {
	Pos      Position
	Msg      string
	Variable string // first variable of the failing reference
	Cause    error  // number conversion error, if any
}

// NewRenderErrorf creates a render error.
func NewRenderErrorf(pos Position, variable, format string, args ...any) *RenderError {
	return &RenderError{Pos: pos, Msg: fmt.Sprintf(format, args...), Variable: variable}
}

// WrapRenderError creates a render error caused by err.
func WrapRenderError(pos Position, variable, msg string, err error) *RenderError {
	return &RenderError{Pos: pos, Msg: msg, Variable: variable, Cause: err}
}

func (e *RenderError) Error() string {
	s := e.Pos.String() + ": " + e.Msg
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *RenderError) Position() Position { return e.Pos }
func (e *RenderError) Unwrap() error      { return e.Cause }
