package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestPointSegmentDistance(t *testing.T) {
	tests := []struct {
		name string
		p    r2.Vec
		want float64
	}{
		{"above middle", r2.Vec{X: 5, Y: 3}, 3},
		{"beyond end", r2.Vec{X: 13, Y: 4}, 5},
		{"before start", r2.Vec{X: -3, Y: 0}, 3},
		{"on segment", r2.Vec{X: 2, Y: 0}, 0},
	}
	a, b := r2.Vec{X: 0, Y: 0}, r2.Vec{X: 10, Y: 0}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PointSegmentDistance(tt.p, a, b), 1e-9)
		})
	}
}

func TestSegmentDistance(t *testing.T) {
	assert.InDelta(t, 0, SegmentDistance(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 10, Y: 10}, r2.Vec{X: 0, Y: 10}, r2.Vec{X: 10, Y: 0}), 1e-9)
	assert.InDelta(t, 2, SegmentDistance(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 10, Y: 0}, r2.Vec{X: 0, Y: 2}, r2.Vec{X: 10, Y: 2}), 1e-9)
	assert.InDelta(t, 5, SegmentDistance(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 0}, r2.Vec{X: 4, Y: 4}, r2.Vec{X: 4, Y: 10}), 1e-9)
}

func TestSegmentBoxDistance(t *testing.T) {
	box := r2.NewBox(0, 0, 2, 2)
	assert.InDelta(t, 0, SegmentBoxDistance(r2.Vec{X: -1, Y: 1}, r2.Vec{X: 3, Y: 1}, box), 1e-9)
	assert.InDelta(t, 1, SegmentBoxDistance(r2.Vec{X: -1, Y: 3}, r2.Vec{X: 3, Y: 3}, box), 1e-9)
	assert.InDelta(t, math.Sqrt2, SegmentBoxDistance(r2.Vec{X: 3, Y: 3}, r2.Vec{X: 5, Y: 5}, box), 1e-9)
}

func TestSharedEdge(t *testing.T) {
	a := r2.NewBox(0, 0, 2, 2)
	p, q, ok := SharedEdge(a, r2.NewBox(2, 1, 4, 5))
	require.True(t, ok)
	assert.Equal(t, r2.Vec{X: 2, Y: 1}, p)
	assert.Equal(t, r2.Vec{X: 2, Y: 2}, q)

	_, _, ok = SharedEdge(a, r2.NewBox(2, 2, 4, 4))
	assert.False(t, ok, "corner contact is not an edge")

	_, _, ok = SharedEdge(a, r2.NewBox(1, 1, 3, 3))
	assert.False(t, ok, "overlap is not an edge")
}

func TestBoxHelpers(t *testing.T) {
	a := r2.NewBox(0, 0, 2, 2)
	assert.True(t, Overlaps(a, r2.NewBox(1, 1, 3, 3)))
	assert.False(t, Overlaps(a, r2.NewBox(2, 0, 3, 3)))
	assert.True(t, Touches(a, r2.NewBox(2, 0, 3, 3)))
	assert.Equal(t, r2.NewBox(-1, -1, 3, 3), Inflate(a, 1))
	assert.False(t, Valid(Inflate(a, -2)))
	assert.Equal(t, r2.Vec{X: 2, Y: 3}, Gap(a, r2.NewBox(4, 5, 6, 6)))

	degenerate := BoundingBox(r2.Vec{X: 1, Y: 1}, r2.Vec{X: 1, Y: 5})
	assert.True(t, ContainsPoint(degenerate, r2.Vec{X: 1, Y: 3}))
	assert.InDelta(t, 0, Area(degenerate), 1e-12)
}

func TestTangentCorner(t *testing.T) {
	p := r2.Vec{X: -10, Y: 0}
	q := r2.Vec{X: 10, Y: 0}
	c := r2.Vec{X: 0, Y: 1}

	corner, ok := TangentCorner(p, q, c, 2)
	require.True(t, ok)
	assert.InDelta(t, 0, corner.X, 1e-9)
	assert.Less(t, corner.Y, -1.0, "detour passes below a centre that lies above the line")
	assert.GreaterOrEqual(t, PointSegmentDistance(c, p, corner), 2-1e-9)
	assert.GreaterOrEqual(t, PointSegmentDistance(c, corner, q), 2-1e-9)

	_, ok = TangentCorner(r2.Vec{X: 0, Y: 0}, q, c, 2)
	assert.False(t, ok, "start inside circle")
}

func TestTangentPoints(t *testing.T) {
	p := r2.Vec{X: 0, Y: 0}
	c := r2.Vec{X: 10, Y: 0}
	left, right, ok := TangentPoints(p, c, 5)
	require.True(t, ok)
	assert.Greater(t, left.Y, 0.0)
	assert.Less(t, right.Y, 0.0)
	assert.InDelta(t, 5, Dist(left, c), 1e-9)
	// Tangent touch point is perpendicular to the radius.
	assert.InDelta(t, 0, r2.Dot(r2.Sub(left, c), r2.Sub(left, p)), 1e-9)
}

func TestSegmentCircleEntry(t *testing.T) {
	e, ok := SegmentCircleEntry(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 10, Y: 0}, r2.Vec{X: 10, Y: 0}, 2)
	require.True(t, ok)
	assert.InDelta(t, 8, e.X, 1e-9)

	_, ok = SegmentCircleEntry(r2.Vec{X: 0, Y: 5}, r2.Vec{X: 10, Y: 5}, r2.Vec{X: 10, Y: 0}, 2)
	assert.False(t, ok)
}

func TestSimplifyPolyline(t *testing.T) {
	in := []r2.Vec{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 3}}
	assert.Equal(t, []r2.Vec{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 3}}, SimplifyPolyline(in))
	assert.InDelta(t, 5, PolylineLength(in), 1e-12)
}

func TestLineIntersection(t *testing.T) {
	p, ok := LineIntersection(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 1}, r2.Vec{X: 0, Y: 2}, r2.Vec{X: 1, Y: 1})
	require.True(t, ok)
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 1, p.Y, 1e-9)

	_, ok = LineIntersection(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1, Y: 0}, r2.Vec{X: 0, Y: 1}, r2.Vec{X: 1, Y: 1})
	assert.False(t, ok)
}

func TestBoxCorner(t *testing.T) {
	box := r2.NewBox(4, -1, 6, 3)
	c := BoxCorner(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 10, Y: 0}, box)
	assert.Equal(t, r2.Vec{X: 4, Y: -1}, c)
}
