package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/autoroute"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/optimize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const sample = `
threads: 4
max_passes: 20
optimize_passes: 3
strategy: global
angle_restriction: "45"
via_costs: 30
ripup_allowed: false
neck_down: false
attach_smd: true
max_expansions: 5000
trace_shove_depth: 7
log_level: debug
layers:
  - name: F.Cu
    preferred_direction: vertical
    preferred_cost: 1.2
  - name: B.Cu
    active: false
`

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, optimize.Greedy, c.StrategyValue())
	assert.Equal(t, zapcore.InfoLevel, c.Level())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 4, c.Threads)
	assert.Equal(t, 20, c.MaxPasses)
	assert.Equal(t, 3, c.OptimizePasses)
	assert.Equal(t, optimize.Global, c.StrategyValue())
	assert.Equal(t, zapcore.DebugLevel, c.Level())
	// Unset keys keep their defaults.
	assert.True(t, c.ViasAllowed)
	assert.Equal(t, 100.0, c.StartRipupCosts)
	assert.Equal(t, 5, c.ViaShoveDepth)
}

func TestSettings(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	s := c.Settings([]string{"F.Cu", "In1.Cu", "B.Cu"})
	require.Len(t, s.Layers, 3)

	assert.Equal(t, autoroute.Angle45, s.Restriction)
	assert.Equal(t, 30.0, s.ViaCosts)
	assert.False(t, s.RipupAllowed)
	assert.False(t, s.NeckDown)
	assert.True(t, s.AttachSMD)
	assert.Equal(t, 5000, s.MaxExpansions)
	assert.Equal(t, 7, s.Shove.TraceDepth)
	assert.Equal(t, 200, s.Shove.MaxRecursion)

	assert.Equal(t, autoroute.LayerSettings{Active: true, Preferred: autoroute.Vertical, PreferredCost: 1.2, AgainstCost: 1.5}, s.Layers[0])
	assert.Equal(t, autoroute.LayerSettings{Active: true, Preferred: autoroute.Vertical, PreferredCost: 1, AgainstCost: 1.5}, s.Layers[1])
	assert.Equal(t, autoroute.LayerSettings{Active: false, Preferred: autoroute.Horizontal, PreferredCost: 1, AgainstCost: 1.5}, s.Layers[2])
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"strategy", "strategy: best"},
		{"angle", `angle_restriction: "30"`},
		{"log level", "log_level: loud"},
		{"via costs", "via_costs: 0"},
		{"ripup costs", "start_ripup_costs: -1"},
		{"accuracy", "pull_tight_accuracy: 0"},
		{"shove depth", "via_shove_depth: -2"},
		{"layer name", "layers: [{active: true}]"},
		{"duplicate layer", "layers: [{name: F.Cu}, {name: F.Cu}]"},
		{"direction", "layers: [{name: F.Cu, preferred_direction: diagonal}]"},
		{"syntax", "threads: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidateClampsCounts(t *testing.T) {
	c, err := Parse([]byte("threads: 0\nmax_passes: -3\noptimize_passes: -1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Threads)
	assert.Equal(t, 1, c.MaxPasses)
	assert.Equal(t, 0, c.OptimizePasses)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Threads)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
