// Package config loads the router configuration file.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/autoroute"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/optimize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Layer configures one copper layer by name.
type Layer struct {
	Name               string  `yaml:"name"`
	Active             *bool   `yaml:"active,omitempty"`
	PreferredDirection string  `yaml:"preferred_direction,omitempty"` // horizontal or vertical
	PreferredCost      float64 `yaml:"preferred_cost,omitempty"`
	AgainstCost        float64 `yaml:"against_cost,omitempty"`
}

// Config controls routing and optimization.
type Config struct {
	// Batch
	Threads        int    `yaml:"threads"`
	MaxPasses      int    `yaml:"max_passes"`
	OptimizePasses int    `yaml:"optimize_passes"`
	Strategy       string `yaml:"strategy"` // greedy or global

	// Search
	AngleRestriction string  `yaml:"angle_restriction"` // none, 45 or 90
	ViasAllowed      bool    `yaml:"vias_allowed"`
	ViaCosts         float64 `yaml:"via_costs"`
	RipupAllowed     bool    `yaml:"ripup_allowed"`
	StartRipupCosts  float64 `yaml:"start_ripup_costs"`
	MaxExpansions    int     `yaml:"max_expansions"`

	// Insertion
	TraceShoveDepth   int     `yaml:"trace_shove_depth"`
	ViaShoveDepth     int     `yaml:"via_shove_depth"`
	SpringOverDepth   int     `yaml:"spring_over_depth"`
	MaxShoveRecursion int     `yaml:"max_shove_recursion"`
	PullTightAccuracy float64 `yaml:"pull_tight_accuracy"`
	NeckDown          bool    `yaml:"neck_down"`
	AttachSMD         bool    `yaml:"attach_smd"`

	Layers []Layer `yaml:"layers,omitempty"`

	LogLevel string `yaml:"log_level"`

	strategy    optimize.Strategy
	restriction autoroute.AngleRestriction
	level       zapcore.Level
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config {
	shove := board.DefaultShoveParams()
	return &Config{
		Threads:           runtime.NumCPU(),
		MaxPasses:         100,
		OptimizePasses:    0,
		Strategy:          "greedy",
		AngleRestriction:  "none",
		ViasAllowed:       true,
		ViaCosts:          50,
		RipupAllowed:      true,
		StartRipupCosts:   100,
		MaxExpansions:     200000,
		TraceShoveDepth:   shove.TraceDepth,
		ViaShoveDepth:     shove.ViaDepth,
		SpringOverDepth:   shove.SpringOverDepth,
		MaxShoveRecursion: shove.MaxRecursion,
		PullTightAccuracy: shove.PullTightAccuracy,
		NeckDown:          true,
		AttachSMD:         false,
		LogLevel:          "info",
	}
}

// Load reads a YAML file on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate clamps counts and checks names and costs.
func (c *Config) Validate() error {
	if c.Threads < 1 {
		c.Threads = 1
	}
	if c.MaxPasses < 1 {
		c.MaxPasses = 1
	}
	if c.OptimizePasses < 0 {
		c.OptimizePasses = 0
	}

	var err error
	if c.strategy, err = optimize.ParseStrategy(c.Strategy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.restriction, err = autoroute.ParseAngleRestriction(c.AngleRestriction); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.level, err = zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.ViaCosts <= 0 {
		return fmt.Errorf("config: via_costs must be positive, got %g", c.ViaCosts)
	}
	if c.StartRipupCosts <= 0 {
		return fmt.Errorf("config: start_ripup_costs must be positive, got %g", c.StartRipupCosts)
	}
	if c.PullTightAccuracy <= 0 {
		return fmt.Errorf("config: pull_tight_accuracy must be positive, got %g", c.PullTightAccuracy)
	}
	if c.TraceShoveDepth < 0 || c.ViaShoveDepth < 0 || c.SpringOverDepth < 0 || c.MaxShoveRecursion < 0 {
		return fmt.Errorf("config: shove depths must not be negative")
	}

	seen := make(map[string]bool)
	for i, l := range c.Layers {
		if l.Name == "" {
			return fmt.Errorf("config: layer %d has no name", i)
		}
		if seen[l.Name] {
			return fmt.Errorf("config: duplicate layer %q", l.Name)
		}
		seen[l.Name] = true
		switch l.PreferredDirection {
		case "", "horizontal", "vertical":
		default:
			return fmt.Errorf("config: layer %q: unknown direction %q", l.Name, l.PreferredDirection)
		}
		if l.PreferredCost < 0 || l.AgainstCost < 0 {
			return fmt.Errorf("config: layer %q: costs must not be negative", l.Name)
		}
	}
	return nil
}

// StrategyValue returns the parsed strategy. Validate must have run.
func (c *Config) StrategyValue() optimize.Strategy { return c.strategy }

// Level returns the parsed log level. Validate must have run.
func (c *Config) Level() zapcore.Level { return c.level }

// Settings builds router settings for the named layer stack. Layers the
// file does not mention keep the alternating defaults.
func (c *Config) Settings(layerNames []string) autoroute.Settings {
	s := autoroute.DefaultSettings(len(layerNames))
	s.ViasAllowed = c.ViasAllowed
	s.ViaCosts = c.ViaCosts
	s.RipupAllowed = c.RipupAllowed
	s.StartRipupCosts = c.StartRipupCosts
	s.Restriction = c.restriction
	s.NeckDown = c.NeckDown
	s.AttachSMD = c.AttachSMD
	s.MaxExpansions = c.MaxExpansions
	s.Shove = board.ShoveParams{
		TraceDepth:        c.TraceShoveDepth,
		ViaDepth:          c.ViaShoveDepth,
		SpringOverDepth:   c.SpringOverDepth,
		MaxRecursion:      c.MaxShoveRecursion,
		PullTightAccuracy: c.PullTightAccuracy,
	}

	byName := make(map[string]Layer, len(c.Layers))
	for _, l := range c.Layers {
		byName[l.Name] = l
	}
	for i, name := range layerNames {
		l, ok := byName[name]
		if !ok {
			continue
		}
		ls := &s.Layers[i]
		if l.Active != nil {
			ls.Active = *l.Active
		}
		switch l.PreferredDirection {
		case "horizontal":
			ls.Preferred = autoroute.Horizontal
		case "vertical":
			ls.Preferred = autoroute.Vertical
		}
		if l.PreferredCost > 0 {
			ls.PreferredCost = l.PreferredCost
		}
		if l.AgainstCost > 0 {
			ls.AgainstCost = l.AgainstCost
		}
	}
	return s
}
