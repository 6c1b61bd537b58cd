package rules

import "github.com/alecthomas/participle/v2/lexer"

// Document is a parsed rules file: one top-level list.
type Document struct {
	Root *Expr `@@`
}

// Expr is a parenthesised list whose first element names it.
// Example: (via "Via0.6" (diameter 0.6) (drill 0.3))
type Expr struct {
	Pos  lexer.Position
	Head string `"(" @(Atom | String)`
	Args []*Arg `@@* ")"`
}

// Arg is either a nested list or an atom.
type Arg struct {
	Pos  lexer.Position
	List *Expr   `  @@`
	Atom *string `| @(Atom | String)`
}

// Atoms returns the atom arguments of e in order.
func (e *Expr) Atoms() []string {
	var out []string
	for _, a := range e.Args {
		if a.Atom != nil {
			out = append(out, *a.Atom)
		}
	}
	return out
}

// Lists returns the nested lists of e in order.
func (e *Expr) Lists() []*Expr {
	var out []*Expr
	for _, a := range e.Args {
		if a.List != nil {
			out = append(out, a.List)
		}
	}
	return out
}

// Find returns the first nested list with the given head.
func (e *Expr) Find(head string) (*Expr, bool) {
	for _, l := range e.Lists() {
		if l.Head == head {
			return l, true
		}
	}
	return nil, false
}
