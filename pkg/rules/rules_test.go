package rules

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

const sampleRules = `
# two-layer defaults
(rules
  (clearance 0.15)
  (width 0.2)
  (via "Via0.6" (diameter 0.6) (drill 0.3))
  (via Micro (diameter 0.3) (drill 0.1) (layers F.Cu In1.Cu) (attach_smd))
  (via_rule default "Via0.6")
  (via_rule fine Micro "Via0.6")
  (class Power (nets GND "+5V") (width 0.5) (clearance 0.3))
  (class Fine (nets CLK) (via_rule fine))
)
`

func TestParseString(t *testing.T) {
	rs, err := ParseString(sampleRules)
	require.NoError(t, err)

	assert.Equal(t, 0.15, rs.Clearance)
	assert.Equal(t, 0.2, rs.Width)
	require.Len(t, rs.Vias, 2)
	assert.Equal(t, ViaDef{Name: "Via0.6", Diameter: 0.6, Drill: 0.3}, rs.Vias[0])
	assert.Equal(t, ViaDef{Name: "Micro", Diameter: 0.3, Drill: 0.1, FirstLayer: "F.Cu", LastLayer: "In1.Cu", AttachSMD: true}, rs.Vias[1])
	assert.Equal(t, []string{"Micro", "Via0.6"}, rs.ViaRules["fine"])
	require.Len(t, rs.Classes, 2)
	assert.Equal(t, []string{"GND", "+5V"}, rs.Classes[0].Nets)
	assert.Equal(t, 0.5, rs.Classes[0].Width)
	assert.Equal(t, "fine", rs.Classes[1].ViaRule)
}

func TestParseDefaults(t *testing.T) {
	rs, err := ParseString("(rules)")
	require.NoError(t, err)
	assert.Equal(t, Default().Clearance, rs.Clearance)
	assert.Equal(t, Default().Width, rs.Width)
	assert.Equal(t, []string{"Via0.6"}, rs.ViaRules[DefaultViaRule])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not rules", "(board)"},
		{"unbalanced", "(rules (clearance 0.2)"},
		{"bad number", "(rules (clearance wide))"},
		{"negative", "(rules (width -1))"},
		{"unknown element", "(rules (color red))"},
		{"unknown via in rule", "(rules (via A (diameter 0.6)) (via_rule default B))"},
		{"unknown via rule in class", "(rules (class X (via_rule nope)))"},
		{"drill too large", "(rules (via A (diameter 0.4) (drill 0.5)))"},
		{"duplicate class", "(rules (class X) (class X))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestUnknownReferenceIsWrapped(t *testing.T) {
	_, err := ParseString("(rules (via A (diameter 0.6)) (via_rule default B))")
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestApply(t *testing.T) {
	rs, err := ParseString(sampleRules)
	require.NoError(t, err)

	layers := []board.Layer{{Name: "F.Cu", Signal: true}, {Name: "In1.Cu", Signal: true}, {Name: "B.Cu", Signal: true}}
	b := board.New(r2.Box{Max: r2.Vec{X: 10, Y: 10}}, layers)
	b.AddNet(board.Net{Number: 1, Name: "GND"})
	b.AddNet(board.Net{Number: 2, Name: "CLK"})
	b.AddNet(board.Net{Number: 3, Name: "SIG"})

	require.NoError(t, rs.Apply(b))

	assert.Len(t, b.ClearanceClasses(), 2)
	assert.Equal(t, 0.3, b.ClearanceClasses()[1].Clearance)

	power := b.NetClass(1)
	assert.Equal(t, "Power", power.Name)
	assert.Equal(t, 0.25, power.TraceHalfWidth)
	assert.Equal(t, 1, power.ClearanceClass)
	require.Len(t, power.Vias, 1)
	assert.Equal(t, board.ViaInfo{Name: "Via0.6", Radius: 0.3, Drill: 0.3, FirstLayer: 0, LastLayer: 2}, power.Vias[0])

	fine := b.NetClass(2)
	assert.Equal(t, "Fine", fine.Name)
	assert.Equal(t, 0.1, fine.TraceHalfWidth)
	assert.Equal(t, 0, fine.ClearanceClass)
	require.Len(t, fine.Vias, 2)
	assert.Equal(t, 1, fine.Vias[0].LastLayer)
	assert.True(t, fine.Vias[0].AttachSMD)

	assert.Equal(t, "default", b.NetClass(3).Name)
}

func TestApplyUnknownLayer(t *testing.T) {
	rs, err := ParseString("(rules (via A (diameter 0.6) (layers F.Cu In7.Cu)))")
	require.NoError(t, err)
	b := board.New(r2.Box{Max: r2.Vec{X: 10, Y: 10}}, []board.Layer{{Name: "F.Cu"}, {Name: "B.Cu"}})
	assert.ErrorIs(t, rs.Apply(b), ErrUnknownReference)
}

func TestStringRoundTrip(t *testing.T) {
	rs, err := ParseString(sampleRules)
	require.NoError(t, err)

	again, err := ParseString(rs.String())
	require.NoError(t, err)
	assert.Equal(t, rs, again)
}
