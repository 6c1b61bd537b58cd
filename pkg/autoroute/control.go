package autoroute

import (
	"fmt"
	"math"
	"sort"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"gonum.org/v1/gonum/spatial/r2"
)

// cheapViaFactor scales ViaCost to the via cost used for ordering.
const cheapViaFactor = 0.8

// Pass carries the values that change from one routing pass to the next.
type Pass struct {
	Number int
	// RipupFactor multiplies the ripup cost. The optimizer raises it to
	// make ripping expensive. Zero means 1.
	RipupFactor     float64
	PreferDirection bool
}

// Control is the cost model and rule set for routing one net. It is
// immutable once built.
type Control struct {
	Net            int
	Nets           []int
	ClearanceClass int
	LayerCount     int
	LayerActive    []bool

	TraceHalfWidth       []float64
	CompensatedHalfWidth []float64

	// HorizontalCost and VerticalCost are the per-layer move factors.
	HorizontalCost []float64
	VerticalCost   []float64
	// MinHorizontalCost and MinVerticalCost are the cheapest factors over
	// the active layers.
	MinHorizontalCost float64
	MinVerticalCost   float64

	ViasAllowed  bool
	Vias         []board.ViaInfo
	MaxViaRadius float64
	ViaCost      float64
	CheapViaCost float64

	RipupAllowed bool
	RipupCosts   float64
	PassNo       int

	Shove         board.ShoveParams
	Restriction   AngleRestriction
	NeckDown      bool
	AttachSMD     bool
	MaxExpansions int
}

// NewControl builds the cost model of net on b.
func NewControl(b *board.Board, net int, s Settings, p Pass) (*Control, error) {
	nc := b.NetClass(net)
	n := b.LayerCount()
	c := &Control{
		Net:            net,
		Nets:           []int{net},
		ClearanceClass: nc.ClearanceClass,
		LayerCount:     n,
		LayerActive:    make([]bool, n),
		TraceHalfWidth: make([]float64, n),

		CompensatedHalfWidth: make([]float64, n),
		HorizontalCost:       make([]float64, n),
		VerticalCost:         make([]float64, n),

		ViasAllowed:   s.ViasAllowed,
		RipupAllowed:  s.RipupAllowed,
		PassNo:        max(p.Number, 1),
		Shove:         s.Shove,
		Restriction:   s.Restriction,
		NeckDown:      s.NeckDown,
		AttachSMD:     s.AttachSMD,
		MaxExpansions: s.MaxExpansions,
	}
	if nc.TraceHalfWidth <= 0 {
		return nil, fmt.Errorf("%w: net %d has trace half-width %g", ErrInvalidCosts, net, nc.TraceHalfWidth)
	}
	self := b.Clearance(nc.ClearanceClass, nc.ClearanceClass)

	c.MinHorizontalCost = math.Inf(1)
	c.MinVerticalCost = math.Inf(1)
	active := 0
	for l := 0; l < n; l++ {
		ls := s.layer(l)
		c.LayerActive[l] = ls.Active && b.Layers()[l].Signal
		c.TraceHalfWidth[l] = nc.TraceHalfWidth
		c.CompensatedHalfWidth[l] = nc.TraceHalfWidth + self
		if !c.LayerActive[l] {
			continue
		}
		if ls.PreferredCost <= 0 || ls.AgainstCost <= 0 {
			return nil, fmt.Errorf("%w: layer %d costs %g/%g", ErrInvalidCosts, l, ls.PreferredCost, ls.AgainstCost)
		}
		h, v := ls.PreferredCost, ls.AgainstCost
		if ls.Preferred == Vertical {
			h, v = v, h
		}
		if !p.PreferDirection {
			h = math.Min(h, v)
			v = h
		}
		c.HorizontalCost[l] = h
		c.VerticalCost[l] = v
		c.MinHorizontalCost = math.Min(c.MinHorizontalCost, h)
		c.MinVerticalCost = math.Min(c.MinVerticalCost, v)
		active++
	}
	if active == 0 {
		return nil, fmt.Errorf("%w: no active layer", ErrInvalidCosts)
	}

	if c.ViasAllowed {
		for _, v := range nc.Vias {
			if v.Radius <= 0 {
				continue
			}
			v.AttachSMD = v.AttachSMD && s.AttachSMD
			c.Vias = append(c.Vias, v)
			c.MaxViaRadius = math.Max(c.MaxViaRadius, v.Radius)
		}
		sort.SliceStable(c.Vias, func(i, j int) bool {
			a, b := c.Vias[i], c.Vias[j]
			if a.Radius != b.Radius {
				return a.Radius < b.Radius
			}
			return a.LastLayer-a.FirstLayer < b.LastLayer-b.FirstLayer
		})
		if len(c.Vias) > 0 {
			if s.ViaCosts <= 0 {
				return nil, fmt.Errorf("%w: via costs %g", ErrInvalidCosts, s.ViaCosts)
			}
			c.ViaCost = s.ViaCosts * c.MaxViaRadius
			c.CheapViaCost = cheapViaFactor * c.ViaCost
		}
	}
	if len(c.Vias) == 0 || active < 2 {
		c.ViasAllowed = false
	}

	if c.RipupAllowed {
		if s.StartRipupCosts <= 0 {
			return nil, fmt.Errorf("%w: ripup costs %g", ErrInvalidCosts, s.StartRipupCosts)
		}
		f := p.RipupFactor
		if f <= 0 {
			f = 1
		}
		c.RipupCosts = s.StartRipupCosts * float64(c.PassNo) * f
	}
	return c, nil
}

// MoveCost returns the cost of a straight move from a to b on layer l.
func (c *Control) MoveCost(l int, a, b r2.Vec) float64 {
	dx := (b.X - a.X) * c.HorizontalCost[l]
	dy := (b.Y - a.Y) * c.VerticalCost[l]
	return math.Hypot(dx, dy)
}

// ViaBetween returns the cheapest via candidate connecting layers a and b.
func (c *Control) ViaBetween(a, b int) (board.ViaInfo, bool) {
	for _, v := range c.Vias {
		if v.Covers(a, b) {
			return v, true
		}
	}
	return board.ViaInfo{}, false
}

// ViaSpan returns the layer range covered by any via candidate.
func (c *Control) ViaSpan() (first, last int) {
	first, last = c.LayerCount, -1
	for _, v := range c.Vias {
		first = min(first, v.FirstLayer)
		last = max(last, v.LastLayer)
	}
	return first, min(last, c.LayerCount-1)
}

// ripupCost returns the cost of removing it.
func (c *Control) ripupCost(it *board.Item) float64 {
	f := 1.0
	if it.Fixed == board.ShoveFixed {
		f = 3
	}
	return c.RipupCosts * f
}

// ripupEligible reports whether the search may rip up it.
func (c *Control) ripupEligible(it *board.Item) bool {
	return c.RipupAllowed && it.RipupAllowed() && !it.HasNet(c.Net)
}
