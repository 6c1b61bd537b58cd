package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// TangentPoints returns the points where the two tangents from p touch the
// circle (c, r). left is the touch point left of the direction p->c. ok is
// false when p lies on or inside the circle.
func TangentPoints(p, c r2.Vec, r float64) (left, right r2.Vec, ok bool) {
	d := Dist(p, c)
	if d <= r+Epsilon {
		return r2.Vec{}, r2.Vec{}, false
	}
	alpha := math.Acos(r / d)
	u := r2.Scale(r/d, r2.Sub(p, c))
	t1 := r2.Add(c, r2.Rotate(u, alpha, r2.Vec{}))
	t2 := r2.Add(c, r2.Rotate(u, -alpha, r2.Vec{}))
	if Side(p, c, t1) > 0 {
		return t1, t2, true
	}
	return t2, t1, true
}

// TangentCorner returns the corner of the shortest two-segment path from p to
// q that passes the circle (c, r) on the side away from its centre. ok is
// false when p or q lie inside the circle or the tangents do not meet.
func TangentCorner(p, q, c r2.Vec, r float64) (r2.Vec, bool) {
	pl, pr, ok := TangentPoints(p, c, r)
	if !ok {
		return r2.Vec{}, false
	}
	ql, qr, ok := TangentPoints(q, c, r)
	if !ok {
		return r2.Vec{}, false
	}
	// Centre left of p->q: pass right of it, which is the right tangent seen
	// from p and the left tangent seen from q.
	tp, tq := pr, ql
	if Side(p, q, c) < 0 {
		tp, tq = pl, qr
	}
	corner, ok := LineIntersection(p, tp, q, tq)
	if !ok {
		return r2.Vec{}, false
	}
	if r2.Dot(r2.Sub(corner, p), r2.Sub(tp, p)) <= 0 {
		return r2.Vec{}, false
	}
	return corner, true
}

// BoxCorner returns the corner of box lying farthest on the side of the
// directed line p->q opposite the box centre. It is the corner a detour from
// p to q has to pass.
func BoxCorner(p, q r2.Vec, box r2.Box) r2.Vec {
	sign := 1.0
	if Side(p, q, box.Center()) > 0 {
		sign = -1
	}
	v := box.Vertices()
	best := v[0]
	bestSide := sign * Side(p, q, v[0])
	for _, c := range v[1:] {
		if s := sign * Side(p, q, c); s > bestSide {
			best, bestSide = c, s
		}
	}
	return best
}
