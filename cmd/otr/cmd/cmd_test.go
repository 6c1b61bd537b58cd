package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoPinBoard = `(kicad_pcb (version 20221018) (generator pcbnew)
  (layers (0 "F.Cu" signal) (31 "B.Cu" signal) (44 "Edge.Cuts" user))
  (net 0 "")
  (net 1 "SIG")
  (footprint "Test:Pad" (layer "F.Cu") (at 10 25)
    (property "Reference" "U1")
    (pad "1" smd circle (at 0 0) (size 1 1) (layers "F.Cu") (net 1 "SIG")))
  (footprint "Test:Pad" (layer "F.Cu") (at 40 25)
    (property "Reference" "U2")
    (pad "1" smd circle (at 0 0) (size 1 1) (layers "F.Cu") (net 1 "SIG")))
  (gr_rect (start 0 0) (end 50 50) (layer "Edge.Cuts")))
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRulesCommand(t *testing.T) {
	path := writeFile(t, "board.rules", "(rules (clearance 0.3) (width 0.4))")
	out := run(t, "rules", path)
	assert.Contains(t, out, "(clearance 0.3)")
	assert.Contains(t, out, "(width 0.4)")
}

func TestInfoCommand(t *testing.T) {
	path := writeFile(t, "board.kicad_pcb", twoPinBoard)
	out := run(t, "info", path)
	assert.Contains(t, out, "Copper layers: [F.Cu B.Cu]")
	assert.Regexp(t, `SIG\s+2\s+0\s+0\s+1`, out)
}

func TestRouteCommand(t *testing.T) {
	path := writeFile(t, "board.kicad_pcb", twoPinBoard)
	out := run(t, "route", path, "--passes", "3", "--optimize", "0")
	assert.Equal(t, 1, strings.Count(out, "(segment"), out)
	assert.Contains(t, out, "(start 10 25) (end 40 25)")
	assert.Contains(t, out, `(layer "F.Cu") (net 1)`)
}
