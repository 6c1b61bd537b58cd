package rules

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// RulesLexer tokenises design-rules documents. Everything that is not a
// parenthesis, a quoted string or a comment is an atom; numbers are atoms
// too and are converted while the rules are evaluated.
var RulesLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments run from # to the end of the line
	{Name: "Comment", Pattern: `#[^\n]*`},

	{Name: "Whitespace", Pattern: `\s+`},

	// String literals with escape sequences
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	{Name: "Punct", Pattern: `[()]`},

	{Name: "Atom", Pattern: `[^\s()"#]+`},
})
