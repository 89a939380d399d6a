package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies a token.
type TokenType int

// Token types.
const (
	TokenText TokenType = iota // literal text with {{ and }} already folded
	TokenVar                   // the text between { and }
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenVar:
		return "VAR"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexed piece of a template.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer splits a template into text and {reference} tokens.
type Lexer struct {
	input string
	pos   int      // byte offset
	at    Position // position of pos
	start Position // position of the token being scanned
}

// NewLexer creates a lexer; file only appears in error positions.
func NewLexer(input, file string) *Lexer {
	return &Lexer{input: input, at: Position{File: file, Line: 1, Column: 1}}
}

// Tokenize returns every token up to and including TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) nextToken() (Token, error) {
	l.start = l.at

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.startPosition()}, nil
	}

	if l.peek() == '{' && !l.matchString("{{") {
		return l.scanReference()
	}
	return l.scanText(), nil
}

// scanText consumes literal text up to the next reference, folding {{ and }}.
func (l *Lexer) scanText() Token {
	var sb strings.Builder
	for l.pos < len(l.input) {
		switch {
		case l.matchString("{{"):
			sb.WriteByte('{')
			l.advance()
			l.advance()
		case l.matchString("}}"):
			sb.WriteByte('}')
			l.advance()
			l.advance()
		case l.peek() == '{':
			return Token{Type: TokenText, Value: sb.String(), Pos: l.startPosition()}
		default:
			sb.WriteRune(l.peek())
			l.advance()
		}
	}
	return Token{Type: TokenText, Value: sb.String(), Pos: l.startPosition()}
}

// scanReference consumes {content}; braces inside quoted literals do not close it.
func (l *Lexer) scanReference() (Token, error) {
	l.advance() // consume {
	start := l.pos
	inQuote := false

	for l.pos < len(l.input) {
		ch := l.peek()
		switch {
		case ch == '\\' && inQuote:
			l.advance()
			if l.pos < len(l.input) {
				l.advance()
			}
			continue
		case ch == '"':
			inQuote = !inQuote
		case ch == '\n' && !inQuote:
			return Token{}, NewLexError(l.position(), "newline inside variable reference")
		case ch == '{' && !inQuote:
			return Token{}, NewLexError(l.position(), "nested '{' inside variable reference")
		case ch == '}' && !inQuote:
			content := l.input[start:l.pos]
			l.advance() // consume }
			return Token{Type: TokenVar, Value: content, Pos: l.startPosition()}, nil
		}
		l.advance()
	}

	if inQuote {
		return Token{}, NewLexError(l.startPosition(), "unterminated string literal in variable reference")
	}
	return Token{}, NewLexError(l.startPosition(), "unclosed variable reference (missing '}')")
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.at.Line++
		l.at.Column = 1
	} else {
		l.at.Column++
	}
}

func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) position() Position      { return l.at }
func (l *Lexer) startPosition() Position { return l.start }
