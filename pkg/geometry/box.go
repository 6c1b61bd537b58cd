package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Inflate grows b by d on every side. A negative d shrinks it; the result may
// then be inverted, which Valid reports.
func Inflate(b r2.Box, d float64) r2.Box {
	return r2.Box{
		Min: r2.Vec{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: r2.Vec{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

// Valid reports whether b has Min <= Max in both axes.
func Valid(b r2.Box) bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y
}

// Intersect returns the intersection of a and b and whether it is non-empty.
// Touching boxes intersect in a degenerate box.
func Intersect(a, b r2.Box) (r2.Box, bool) {
	r := r2.Box{
		Min: r2.Vec{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y)},
		Max: r2.Vec{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y)},
	}
	return r, Valid(r)
}

// Overlaps reports whether a and b share an area larger than Epsilon in
// both dimensions.
func Overlaps(a, b r2.Box) bool {
	return math.Min(a.Max.X, b.Max.X)-math.Max(a.Min.X, b.Min.X) > Epsilon &&
		math.Min(a.Max.Y, b.Max.Y)-math.Max(a.Min.Y, b.Min.Y) > Epsilon
}

// Touches reports whether the closed boxes a and b have a point in common.
func Touches(a, b r2.Box) bool {
	return a.Min.X <= b.Max.X+Epsilon && b.Min.X <= a.Max.X+Epsilon &&
		a.Min.Y <= b.Max.Y+Epsilon && b.Min.Y <= a.Max.Y+Epsilon
}

// ContainsPoint reports whether p lies in the closed box b, degenerate boxes
// included.
func ContainsPoint(b r2.Box, p r2.Vec) bool {
	return b.Min.X-Epsilon <= p.X && p.X <= b.Max.X+Epsilon &&
		b.Min.Y-Epsilon <= p.Y && p.Y <= b.Max.Y+Epsilon
}

// StrictlyContains reports whether p lies in the interior of b.
func StrictlyContains(b r2.Box, p r2.Vec) bool {
	return b.Min.X+Epsilon < p.X && p.X < b.Max.X-Epsilon &&
		b.Min.Y+Epsilon < p.Y && p.Y < b.Max.Y-Epsilon
}

// ContainsBox reports whether inner lies inside outer.
func ContainsBox(outer, inner r2.Box) bool {
	return ContainsPoint(outer, inner.Min) && ContainsPoint(outer, inner.Max)
}

// Clamp returns the point of b nearest to p.
func Clamp(b r2.Box, p r2.Vec) r2.Vec {
	return r2.Vec{
		X: math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
	}
}

// PointBoxDistance returns the distance from p to the closed box b, zero
// when p is inside.
func PointBoxDistance(p r2.Vec, b r2.Box) float64 {
	return Dist(p, Clamp(b, p))
}

// Gap returns the per-axis separation between a and b, zero in an axis where
// the projections overlap.
func Gap(a, b r2.Box) r2.Vec {
	return r2.Vec{
		X: math.Max(0, math.Max(a.Min.X-b.Max.X, b.Min.X-a.Max.X)),
		Y: math.Max(0, math.Max(a.Min.Y-b.Max.Y, b.Min.Y-a.Max.Y)),
	}
}

// BoxDistance returns the Euclidean distance between the closed boxes a and b.
func BoxDistance(a, b r2.Box) float64 {
	g := Gap(a, b)
	return math.Hypot(g.X, g.Y)
}

// BoundingBox returns the smallest box holding all points. It returns the
// zero box for no points.
func BoundingBox(points ...r2.Vec) r2.Box {
	if len(points) == 0 {
		return r2.Box{}
	}
	b := r2.Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b = ExtendPoint(b, p)
	}
	return b
}

// ExtendPoint grows b to include p. Unlike r2.Box.Union it keeps degenerate
// boxes.
func ExtendPoint(b r2.Box, p r2.Vec) r2.Box {
	return r2.Box{
		Min: r2.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y)},
		Max: r2.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y)},
	}
}

// ExtendBox grows a to include b, keeping degenerate boxes.
func ExtendBox(a, b r2.Box) r2.Box {
	return ExtendPoint(ExtendPoint(a, b.Min), b.Max)
}

// Area returns the area of b, zero for inverted boxes.
func Area(b r2.Box) float64 {
	if !Valid(b) {
		return 0
	}
	s := b.Size()
	return s.X * s.Y
}

// SharedEdge returns the common boundary segment of two boxes that touch
// along a side without overlapping. The segment has positive length; ok is
// false when the boxes only meet at a corner or do not touch.
func SharedEdge(a, b r2.Box) (p, q r2.Vec, ok bool) {
	lo := math.Max(a.Min.Y, b.Min.Y)
	hi := math.Min(a.Max.Y, b.Max.Y)
	if hi-lo > Epsilon {
		switch {
		case math.Abs(a.Max.X-b.Min.X) <= Epsilon:
			return r2.Vec{X: a.Max.X, Y: lo}, r2.Vec{X: a.Max.X, Y: hi}, true
		case math.Abs(b.Max.X-a.Min.X) <= Epsilon:
			return r2.Vec{X: a.Min.X, Y: lo}, r2.Vec{X: a.Min.X, Y: hi}, true
		}
	}
	lo = math.Max(a.Min.X, b.Min.X)
	hi = math.Min(a.Max.X, b.Max.X)
	if hi-lo > Epsilon {
		switch {
		case math.Abs(a.Max.Y-b.Min.Y) <= Epsilon:
			return r2.Vec{X: lo, Y: a.Max.Y}, r2.Vec{X: hi, Y: a.Max.Y}, true
		case math.Abs(b.Max.Y-a.Min.Y) <= Epsilon:
			return r2.Vec{X: lo, Y: a.Min.Y}, r2.Vec{X: hi, Y: a.Min.Y}, true
		}
	}
	return r2.Vec{}, r2.Vec{}, false
}
