package autoroute

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
)

// Direction is the preferred trace direction of a layer.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
)

func (d Direction) String() string {
	if d == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// AngleRestriction limits the trace directions of located routes.
type AngleRestriction int

const (
	AngleFree AngleRestriction = iota
	Angle45
	Angle90
)

func (a AngleRestriction) String() string {
	switch a {
	case Angle45:
		return "45"
	case Angle90:
		return "90"
	default:
		return "none"
	}
}

// ParseAngleRestriction converts "none", "45" or "90".
func ParseAngleRestriction(s string) (AngleRestriction, error) {
	switch s {
	case "", "none", "free":
		return AngleFree, nil
	case "45":
		return Angle45, nil
	case "90":
		return Angle90, nil
	}
	return AngleFree, fmt.Errorf("autoroute: unknown angle restriction %q", s)
}

// LayerSettings holds the routing costs of one layer.
type LayerSettings struct {
	Active        bool
	Preferred     Direction
	PreferredCost float64
	AgainstCost   float64
}

// Settings is the router configuration shared by all nets.
type Settings struct {
	Layers []LayerSettings

	ViasAllowed bool
	// ViaCosts is multiplied by the largest via radius of a net.
	ViaCosts float64

	RipupAllowed    bool
	StartRipupCosts float64

	Shove       board.ShoveParams
	Restriction AngleRestriction
	NeckDown    bool
	AttachSMD   bool

	// MaxExpansions caps the elements one search may pop. Zero means no
	// limit.
	MaxExpansions int
}

// DefaultSettings returns settings for a stack of n layers with
// alternating preferred directions, top layer horizontal.
func DefaultSettings(n int) Settings {
	s := Settings{
		ViasAllowed:     true,
		ViaCosts:        50,
		RipupAllowed:    true,
		StartRipupCosts: 100,
		Shove:           board.DefaultShoveParams(),
		Restriction:     AngleFree,
		NeckDown:        true,
		MaxExpansions:   200000,
	}
	for i := 0; i < n; i++ {
		dir := Horizontal
		if i%2 == 1 {
			dir = Vertical
		}
		s.Layers = append(s.Layers, LayerSettings{
			Active:        true,
			Preferred:     dir,
			PreferredCost: 1,
			AgainstCost:   1.5,
		})
	}
	return s
}

// layer returns the settings of layer l, falling back to the defaults for
// layers the settings do not describe.
func (s Settings) layer(l int) LayerSettings {
	if l >= 0 && l < len(s.Layers) {
		return s.Layers[l]
	}
	dir := Horizontal
	if l%2 == 1 {
		dir = Vertical
	}
	return LayerSettings{Active: true, Preferred: dir, PreferredCost: 1, AgainstCost: 1.5}
}
