// Package kicadsexp is a streaming S-expression reader for KiCad files.
// Quoted strings and bare atoms both become Symbols; the quotes are
// removed while reading.
package kicadsexp

import (
	"io"
	"strings"
)

// Sexp is an atom or a list.
type Sexp interface {
	IsLeaf() bool
	String() string
}

// Symbol is an atom: a keyword, number or string.
type Symbol string

func (s Symbol) IsLeaf() bool   { return true }
func (s Symbol) String() string { return string(s) }

// List is a parenthesized sequence.
type List []Sexp

func (l List) IsLeaf() bool { return false }

func (l List) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, e := range l {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Head returns the keyword of the list, or "" if the first element is not
// an atom.
func (l List) Head() string {
	if len(l) == 0 {
		return ""
	}
	if s, ok := l[0].(Symbol); ok {
		return string(s)
	}
	return ""
}

// Parse reads all top-level expressions from r.
func Parse(r io.Reader) ([]Sexp, error) {
	return NewParser(r).ParseAll()
}

// ParseString reads all top-level expressions from s.
func ParseString(s string) ([]Sexp, error) {
	return Parse(strings.NewReader(s))
}
