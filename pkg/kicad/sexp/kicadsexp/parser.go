package kicadsexp

import (
	"fmt"
	"io"
)

// Parser builds expressions from the lexer's tokens.
type Parser struct {
	lexer *Lexer
}

// NewParser returns a parser reading r.
func NewParser(r io.Reader) *Parser {
	return &Parser{lexer: NewLexer(r)}
}

// ParseAll parses every top-level expression until the end of input.
func (p *Parser) ParseAll() ([]Sexp, error) {
	var out []Sexp
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenEOF {
			return out, nil
		}
		expr, err := p.parseExpr(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
}

func (p *Parser) parseExpr(tok Token) (Sexp, error) {
	switch tok.Type {
	case TokenLeftParen:
		return p.parseList(tok.Line)
	case TokenSymbol, TokenString:
		return Symbol(tok.Value), nil
	case TokenRightParen:
		return nil, fmt.Errorf("line %d: unexpected ')'", tok.Line)
	default:
		return nil, fmt.Errorf("line %d: unexpected end of input", tok.Line)
	}
}

// parseList reads the elements after '(' up to the matching ')'.
func (p *Parser) parseList(line int) (Sexp, error) {
	list := List{}
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenRightParen:
			return list, nil
		case TokenEOF:
			return nil, fmt.Errorf("line %d: unclosed list", line)
		}
		elem, err := p.parseExpr(tok)
		if err != nil {
			return nil, err
		}
		list = append(list, elem)
	}
}
