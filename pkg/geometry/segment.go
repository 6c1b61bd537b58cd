package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// NearestOnSegment returns the point of segment ab closest to p and its
// parameter t in [0,1].
func NearestOnSegment(p, a, b r2.Vec) (r2.Vec, float64) {
	d := r2.Sub(b, a)
	l2 := r2.Norm2(d)
	if l2 <= Epsilon*Epsilon {
		return a, 0
	}
	t := r2.Dot(r2.Sub(p, a), d) / l2
	t = math.Max(0, math.Min(1, t))
	return r2.Add(a, r2.Scale(t, d)), t
}

// PointSegmentDistance returns the distance from p to segment ab.
func PointSegmentDistance(p, a, b r2.Vec) float64 {
	n, _ := NearestOnSegment(p, a, b)
	return Dist(p, n)
}

// SegmentsIntersect reports whether the closed segments ab and cd share a
// point.
func SegmentsIntersect(a, b, c, d r2.Vec) bool {
	d1 := Side(c, d, a)
	d2 := Side(c, d, b)
	d3 := Side(a, b, c)
	d4 := Side(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return PointSegmentDistance(a, c, d) <= Epsilon ||
		PointSegmentDistance(b, c, d) <= Epsilon ||
		PointSegmentDistance(c, a, b) <= Epsilon ||
		PointSegmentDistance(d, a, b) <= Epsilon
}

// SegmentDistance returns the distance between segments ab and cd.
func SegmentDistance(a, b, c, d r2.Vec) float64 {
	if SegmentsIntersect(a, b, c, d) {
		return 0
	}
	return math.Min(
		math.Min(PointSegmentDistance(a, c, d), PointSegmentDistance(b, c, d)),
		math.Min(PointSegmentDistance(c, a, b), PointSegmentDistance(d, a, b)),
	)
}

// SegmentIntersectsBox reports whether segment ab meets the closed box.
func SegmentIntersectsBox(a, b r2.Vec, box r2.Box) bool {
	if ContainsPoint(box, a) || ContainsPoint(box, b) {
		return true
	}
	v := box.Vertices()
	for i := range v {
		if SegmentsIntersect(a, b, v[i], v[(i+1)%4]) {
			return true
		}
	}
	return false
}

// SegmentBoxDistance returns the distance between segment ab and the closed
// box.
func SegmentBoxDistance(a, b r2.Vec, box r2.Box) float64 {
	if SegmentIntersectsBox(a, b, box) {
		return 0
	}
	d := math.Min(PointBoxDistance(a, box), PointBoxDistance(b, box))
	for _, c := range box.Vertices() {
		d = math.Min(d, PointSegmentDistance(c, a, b))
	}
	return d
}

// SegmentBounds returns the bounding box of segment ab.
func SegmentBounds(a, b r2.Vec) r2.Box {
	return BoundingBox(a, b)
}

// LineIntersection returns the intersection of the infinite lines through
// p1,p2 and q1,q2. ok is false for parallel lines.
func LineIntersection(p1, p2, q1, q2 r2.Vec) (r2.Vec, bool) {
	d1 := r2.Sub(p2, p1)
	d2 := r2.Sub(q2, q1)
	den := r2.Cross(d1, d2)
	if math.Abs(den) <= Epsilon*Epsilon {
		return r2.Vec{}, false
	}
	t := r2.Cross(r2.Sub(q1, p1), d2) / den
	return r2.Add(p1, r2.Scale(t, d1)), true
}

// SegmentCircleEntry returns the first point where segment ab, walked from
// a, enters the circle (c, r). ok is false when the segment never enters it
// or a already lies inside.
func SegmentCircleEntry(a, b, c r2.Vec, r float64) (r2.Vec, bool) {
	d := r2.Sub(b, a)
	f := r2.Sub(a, c)
	qa := r2.Dot(d, d)
	if qa <= Epsilon*Epsilon {
		return r2.Vec{}, false
	}
	qb := 2 * r2.Dot(f, d)
	qc := r2.Dot(f, f) - r*r
	if qc <= 0 {
		return r2.Vec{}, false
	}
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return r2.Vec{}, false
	}
	t := (-qb - math.Sqrt(disc)) / (2 * qa)
	if t < 0 || t > 1 {
		return r2.Vec{}, false
	}
	return r2.Add(a, r2.Scale(t, d)), true
}
