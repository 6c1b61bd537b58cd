package board

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// ShapeKind distinguishes capsules from rectangles.
type ShapeKind int

const (
	// ShapeCapsule is the set of points within Radius of segment A-B. A
	// circle is a capsule with A == B.
	ShapeCapsule ShapeKind = iota
	// ShapeRect is an axis-aligned rectangle.
	ShapeRect
)

// Shape is the copper footprint of an item on one layer.
type Shape struct {
	Kind   ShapeKind
	A, B   r2.Vec
	Radius float64
	Rect   r2.Box
}

// Capsule returns the shape of a trace from a to b.
func Capsule(a, b r2.Vec, radius float64) Shape {
	return Shape{Kind: ShapeCapsule, A: a, B: b, Radius: radius}
}

// Circle returns a round shape.
func Circle(c r2.Vec, radius float64) Shape {
	return Shape{Kind: ShapeCapsule, A: c, B: c, Radius: radius}
}

// Rect returns a rectangular shape.
func Rect(box r2.Box) Shape {
	return Shape{Kind: ShapeRect, Rect: box}
}

// Bounds returns the bounding box of the shape.
func (s Shape) Bounds() r2.Box {
	if s.Kind == ShapeRect {
		return s.Rect
	}
	return geometry.Inflate(geometry.BoundingBox(s.A, s.B), s.Radius)
}

// coreDistance returns the distance between the cores of two shapes: the
// segment of a capsule or the rectangle itself.
func (s Shape) coreDistance(o Shape) float64 {
	switch {
	case s.Kind == ShapeCapsule && o.Kind == ShapeCapsule:
		return geometry.SegmentDistance(s.A, s.B, o.A, o.B)
	case s.Kind == ShapeCapsule:
		return geometry.SegmentBoxDistance(s.A, s.B, o.Rect)
	case o.Kind == ShapeCapsule:
		return geometry.SegmentBoxDistance(o.A, o.B, s.Rect)
	default:
		return geometry.BoxDistance(s.Rect, o.Rect)
	}
}

// Distance returns the gap between the two shapes' edges. It is negative
// when capsules overlap and zero when a rectangle is touched or entered.
func (s Shape) Distance(o Shape) float64 {
	return s.coreDistance(o) - s.radius() - o.radius()
}

// PointDistance returns the gap between p and the shape's edge, negative
// inside a capsule.
func (s Shape) PointDistance(p r2.Vec) float64 {
	if s.Kind == ShapeRect {
		return geometry.PointBoxDistance(p, s.Rect)
	}
	return geometry.PointSegmentDistance(p, s.A, s.B) - s.Radius
}

// Contains reports whether p lies on the shape.
func (s Shape) Contains(p r2.Vec) bool {
	return s.PointDistance(p) <= geometry.Epsilon
}

func (s Shape) radius() float64 {
	if s.Kind == ShapeRect {
		return 0
	}
	return s.Radius
}

// corePointDistance returns the distance from p to the shape's core.
func (s Shape) corePointDistance(p r2.Vec) float64 {
	if s.Kind == ShapeRect {
		return geometry.PointBoxDistance(p, s.Rect)
	}
	return geometry.PointSegmentDistance(p, s.A, s.B)
}

// nearestCorePoint returns the point of the shape's core closest to p.
func (s Shape) nearestCorePoint(p r2.Vec) r2.Vec {
	if s.Kind == ShapeRect {
		return geometry.Clamp(s.Rect, p)
	}
	n, _ := geometry.NearestOnSegment(p, s.A, s.B)
	return n
}
