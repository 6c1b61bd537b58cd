package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Epsilon is the tolerance used for geometric comparisons.
const Epsilon = 1e-6

// Dist returns the Euclidean distance between a and b.
func Dist(a, b r2.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Near reports whether a and b are within Epsilon of each other.
func Near(a, b r2.Vec) bool {
	return Dist(a, b) <= Epsilon
}

// Lerp returns the point a + t(b-a).
func Lerp(a, b r2.Vec, t float64) r2.Vec {
	return r2.Add(a, r2.Scale(t, r2.Sub(b, a)))
}

// Side returns the signed area of the triangle (a, b, p). It is positive when
// p lies left of the directed line a->b.
func Side(a, b, p r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(p, a))
}

// Perp returns v rotated by +90 degrees.
func Perp(v r2.Vec) r2.Vec {
	return r2.Vec{X: -v.Y, Y: v.X}
}

// Direction returns the unit vector from a to b, or the zero vector when the
// points coincide.
func Direction(a, b r2.Vec) r2.Vec {
	d := r2.Sub(b, a)
	n := r2.Norm(d)
	if n <= Epsilon {
		return r2.Vec{}
	}
	return r2.Scale(1/n, d)
}

// PolylineLength returns the summed length of consecutive corner pairs.
func PolylineLength(corners []r2.Vec) float64 {
	var l float64
	for i := 1; i < len(corners); i++ {
		l += Dist(corners[i-1], corners[i])
	}
	return l
}

// Collinear reports whether b lies on the line through a and c within
// Epsilon, measured as a distance from the line.
func Collinear(a, b, c r2.Vec) bool {
	l := Dist(a, c)
	if l <= Epsilon {
		return Dist(a, b) <= Epsilon
	}
	return math.Abs(Side(a, c, b))/l <= Epsilon
}

// SimplifyPolyline drops repeated corners and corners lying on the straight
// line between their neighbours.
func SimplifyPolyline(corners []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, 0, len(corners))
	for _, c := range corners {
		if len(out) > 0 && Near(out[len(out)-1], c) {
			continue
		}
		for len(out) >= 2 && Collinear(out[len(out)-2], out[len(out)-1], c) &&
			r2.Dot(r2.Sub(out[len(out)-1], out[len(out)-2]), r2.Sub(c, out[len(out)-1])) >= 0 {
			out = out[:len(out)-1]
		}
		out = append(out, c)
	}
	return out
}
