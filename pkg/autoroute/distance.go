package autoroute

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

type layerGroup int

const (
	groupComponent layerGroup = iota
	groupSolder
	groupInner
	groupCount
)

// TargetPoint is a location the search may finish at.
type TargetPoint struct {
	At    r2.Vec
	Layer int
}

// DestinationDistance is the admissible cost estimate from any location to
// the nearest target. Targets are pooled into three envelopes: the
// component side, the solder side and all inner layers together.
type DestinationDistance struct {
	c        *Control
	envelope [groupCount]r2.Box
	has      [groupCount]bool
	vias     bool
}

// NewDestinationDistance builds the envelopes of targets.
func NewDestinationDistance(c *Control, targets []TargetPoint) *DestinationDistance {
	d := &DestinationDistance{c: c}
	active := 0
	for _, a := range c.LayerActive {
		if a {
			active++
		}
	}
	d.vias = c.ViasAllowed && active >= 2
	for _, t := range targets {
		g := d.group(t.Layer)
		if !d.has[g] {
			d.envelope[g] = r2.Box{Min: t.At, Max: t.At}
			d.has[g] = true
			continue
		}
		d.envelope[g] = geometry.ExtendPoint(d.envelope[g], t.At)
	}
	return d
}

func (d *DestinationDistance) group(l int) layerGroup {
	switch {
	case l == 0:
		return groupComponent
	case l == d.c.LayerCount-1:
		return groupSolder
	default:
		return groupInner
	}
}

// Calculate returns the estimate from box on layer using the normal via
// cost.
func (d *DestinationDistance) Calculate(box r2.Box, layer int) float64 {
	return d.calculate(box, layer, d.c.ViaCost)
}

// CalculateCheap returns the estimate using the cheap via cost. It never
// exceeds Calculate.
func (d *DestinationDistance) CalculateCheap(box r2.Box, layer int) float64 {
	return d.calculate(box, layer, d.c.CheapViaCost)
}

func (d *DestinationDistance) calculate(box r2.Box, layer int, via float64) float64 {
	best := math.Inf(1)
	own := d.group(layer)
	for g := layerGroup(0); g < groupCount; g++ {
		if !d.has[g] {
			continue
		}
		gap := geometry.Gap(box, d.envelope[g])
		if g == own {
			direct := math.Max(d.c.HorizontalCost[layer]*gap.X, d.c.VerticalCost[layer]*gap.Y)
			best = math.Min(best, direct)
		}
		if !d.vias {
			continue
		}
		cheap := math.Max(d.c.MinHorizontalCost*gap.X, d.c.MinVerticalCost*gap.Y)
		switch {
		case g != own:
			best = math.Min(best, via+cheap)
		case g == groupInner:
			// Another inner layer is one via away.
			best = math.Min(best, via+cheap)
		default:
			// Leaving an outer side and coming back takes two vias.
			best = math.Min(best, 2*via+cheap)
		}
	}
	return best
}
