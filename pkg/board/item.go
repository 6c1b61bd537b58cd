package board

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// Item is one object on the board. Which fields are meaningful depends on
// Kind.
type Item struct {
	ID             ItemID
	Kind           ItemKind
	Nets           []int
	ClearanceClass int
	Fixed          FixedState
	FirstLayer     int
	LastLayer      int

	// Trace geometry.
	From, To  r2.Vec
	HalfWidth float64

	// Via and pin geometry. A pin with a non-empty Pad is rectangular,
	// otherwise it is round with Radius.
	Center r2.Vec
	Radius float64
	Pad    r2.Box

	// Via is the via type of a via item.
	Via ViaInfo

	// Pin identification.
	SMD       bool
	Component string
	PadName   string

	// Area of a keepout.
	Area r2.Box
}

// OnLayer reports whether the item has copper on layer l.
func (it *Item) OnLayer(l int) bool {
	return it.FirstLayer <= l && l <= it.LastLayer
}

// SharesLayer reports whether the two items have a common layer.
func (it *Item) SharesLayer(o *Item) bool {
	return it.FirstLayer <= o.LastLayer && o.FirstLayer <= it.LastLayer
}

// Shape returns the item's shape on layer l.
func (it *Item) Shape(l int) (Shape, bool) {
	if !it.OnLayer(l) {
		return Shape{}, false
	}
	return it.shape(), true
}

func (it *Item) shape() Shape {
	switch it.Kind {
	case KindTrace:
		return Capsule(it.From, it.To, it.HalfWidth)
	case KindVia:
		return Circle(it.Center, it.Radius)
	case KindPin:
		if !it.Pad.Empty() {
			return Rect(it.Pad)
		}
		return Circle(it.Center, it.Radius)
	default:
		return Rect(it.Area)
	}
}

// Bounds returns the bounding box of the item's copper.
func (it *Item) Bounds() r2.Box {
	return it.shape().Bounds()
}

// HasNet reports whether the item belongs to net n.
func (it *Item) HasNet(n int) bool {
	for _, m := range it.Nets {
		if m == n {
			return true
		}
	}
	return false
}

// SharesNet reports whether the item belongs to one of the nets.
func (it *Item) SharesNet(nets []int) bool {
	for _, n := range nets {
		if it.HasNet(n) {
			return true
		}
	}
	return false
}

// IsRoute reports whether the item is router-made copper: a trace or via.
func (it *Item) IsRoute() bool {
	return it.Kind == KindTrace || it.Kind == KindVia
}

// ContactPoints returns the points other items connect to: both ends of a
// trace, the centre of a via or pin.
func (it *Item) ContactPoints() []r2.Vec {
	switch it.Kind {
	case KindTrace:
		return []r2.Vec{it.From, it.To}
	case KindVia, KindPin:
		return []r2.Vec{it.Center}
	default:
		return nil
	}
}

// Length returns the length of a trace, zero for other kinds.
func (it *Item) Length() float64 {
	if it.Kind != KindTrace {
		return 0
	}
	return geometry.Dist(it.From, it.To)
}

// MinHalfSize returns half the smaller pad dimension of a pin, or the
// radius of a round pin or via.
func (it *Item) MinHalfSize() float64 {
	if it.Kind == KindPin && !it.Pad.Empty() {
		s := it.Pad.Size()
		return math.Min(s.X, s.Y) / 2
	}
	if it.Kind == KindTrace {
		return it.HalfWidth
	}
	return it.Radius
}

// Shovable reports whether the item may be pushed aside.
func (it *Item) Shovable() bool {
	return it.IsRoute() && it.Fixed == Unfixed
}

// RipupAllowed reports whether the router may remove the item to make
// room for another net.
func (it *Item) RipupAllowed() bool {
	return it.IsRoute() && it.Fixed <= ShoveFixed
}

func (it *Item) clone() *Item {
	c := *it
	c.Nets = append([]int(nil), it.Nets...)
	return &c
}
