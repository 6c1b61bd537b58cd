package kicadsexp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// TokenType is the kind of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenLeftParen
	TokenRightParen
	TokenSymbol
	TokenString
)

// Token is one lexical token with the line it started on.
type Token struct {
	Type  TokenType
	Value string
	Line  int
}

// Lexer splits a KiCad file into tokens.
type Lexer struct {
	reader *bufio.Reader
	line   int
}

// NewLexer returns a lexer reading r.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{reader: bufio.NewReader(r), line: 1}
}

// NextToken returns the next token. At the end of input it returns a
// TokenEOF token and a nil error.
func (l *Lexer) NextToken() (Token, error) {
	ch, err := l.skipSpace()
	if errors.Is(err, io.EOF) {
		return Token{Type: TokenEOF, Line: l.line}, nil
	}
	if err != nil {
		return Token{}, err
	}

	switch ch {
	case '(':
		return Token{Type: TokenLeftParen, Value: "(", Line: l.line}, nil
	case ')':
		return Token{Type: TokenRightParen, Value: ")", Line: l.line}, nil
	case '"':
		return l.readString()
	default:
		return l.readSymbol(ch)
	}
}

// skipSpace consumes whitespace and returns the first other rune.
func (l *Lexer) skipSpace() (rune, error) {
	for {
		ch, _, err := l.reader.ReadRune()
		if err != nil {
			return 0, err
		}
		if ch == '\n' {
			l.line++
		}
		if !unicode.IsSpace(ch) {
			return ch, nil
		}
	}
}

func (l *Lexer) readString() (Token, error) {
	start := l.line
	var sb strings.Builder
	for {
		ch, _, err := l.reader.ReadRune()
		if err != nil {
			return Token{}, fmt.Errorf("line %d: unterminated string", start)
		}
		switch ch {
		case '"':
			return Token{Type: TokenString, Value: sb.String(), Line: start}, nil
		case '\n':
			l.line++
		case '\\':
			next, _, err := l.reader.ReadRune()
			if err != nil {
				return Token{}, fmt.Errorf("line %d: unterminated escape", start)
			}
			switch next {
			case 'n':
				ch = '\n'
			case 't':
				ch = '\t'
			default:
				ch = next
			}
		}
		sb.WriteRune(ch)
	}
}

func (l *Lexer) readSymbol(first rune) (Token, error) {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		ch, _, err := l.reader.ReadRune()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Token{}, err
		}
		if unicode.IsSpace(ch) || ch == '(' || ch == ')' || ch == '"' {
			if err := l.reader.UnreadRune(); err != nil {
				return Token{}, err
			}
			break
		}
		sb.WriteRune(ch)
	}
	return Token{Type: TokenSymbol, Value: sb.String(), Line: l.line}, nil
}
