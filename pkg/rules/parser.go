package rules

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser reads rules documents.
type Parser struct {
	parser *participle.Parser[Document]
}

// NewParser creates a new rules parser instance
func NewParser() (*Parser, error) {
	parser, err := participle.Build[Document](
		participle.Lexer(RulesLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("rules: failed to build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse reads a rules document and evaluates it.
func (p *Parser) Parse(name string, r io.Reader) (*RuleSet, error) {
	doc, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("rules: parse error: %w", err)
	}
	return evaluate(doc)
}

// ParseString parses rules from a string.
func (p *Parser) ParseString(input string) (*RuleSet, error) {
	doc, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("rules: parse error: %w", err)
	}
	return evaluate(doc)
}

// ParseFile parses rules from a file path.
func (p *Parser) ParseFile(filename string) (*RuleSet, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("rules: failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(filename, file)
}

// ParseFile is a convenience wrapper building a parser and reading filename.
func ParseFile(filename string) (*RuleSet, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	return p.ParseFile(filename)
}

// ParseString is a convenience wrapper building a parser and reading input.
func ParseString(input string) (*RuleSet, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	return p.ParseString(input)
}
