package kicadsexp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	exprs, err := ParseString(`(kicad_pcb (version 20221018)
  (net 1 "GND")
  (title "Two words \"quoted\""))
(extra)`)
	require.NoError(t, err)
	require.Len(t, exprs, 2)

	root, ok := exprs[0].(List)
	require.True(t, ok)
	assert.Equal(t, "kicad_pcb", root.Head())
	require.Len(t, root, 4)
	assert.Equal(t, List{Symbol("net"), Symbol("1"), Symbol("GND")}, root[2])
	assert.Equal(t, Symbol(`Two words "quoted"`), root[3].(List)[1])
	assert.Equal(t, "extra", exprs[1].(List).Head())
}

func TestParseEmptyList(t *testing.T) {
	exprs, err := ParseString("()")
	require.NoError(t, err)
	require.Len(t, exprs, 1)
	assert.Equal(t, "", exprs[0].(List).Head())
	assert.Equal(t, "()", exprs[0].String())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unclosed list", "(a (b c)", "line 1: unclosed list"},
		{"stray paren", "(a))", "line 1: unexpected ')'"},
		{"unterminated string", "(a\n\"b)", "line 2: unterminated string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestLexerLines(t *testing.T) {
	l := NewLexer(strings.NewReader("(a\n  b)"))
	var lines []int
	for {
		tok, err := l.NextToken()
		require.NoError(t, err)
		if tok.Type == TokenEOF {
			break
		}
		lines = append(lines, tok.Line)
	}
	assert.Equal(t, []int{1, 1, 2, 2}, lines)
}
