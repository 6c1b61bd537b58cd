package board

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// ShoveParams bounds the work of a forced insert.
type ShoveParams struct {
	// TraceDepth is the longest chain of traces pushing traces.
	TraceDepth int
	// ViaDepth is the longest chain ending in a pushed via.
	ViaDepth int
	// SpringOverDepth is how many times a detour may be widened to pass a
	// fixed obstacle.
	SpringOverDepth int
	// MaxRecursion caps the total number of shove steps of one insert.
	MaxRecursion int
	// PullTightAccuracy is the shortest piece a partial insert tries.
	PullTightAccuracy float64
}

// DefaultShoveParams returns the standard depth limits.
func DefaultShoveParams() ShoveParams {
	return ShoveParams{
		TraceDepth:        20,
		ViaDepth:          5,
		SpringOverDepth:   5,
		MaxRecursion:      200,
		PullTightAccuracy: 0.05,
	}
}

// partialInsertTries is how often a failed segment is retried at half the
// previous length.
const partialInsertTries = 3

// Conflicts returns the items of other nets on [first, last] closer to s
// than their clearance allows, sorted by ID. Items for which skip returns
// true are ignored.
func (b *Board) Conflicts(s Shape, first, last int, nets []int, class int, skip func(*Item) bool) []*Item {
	reach := b.MaxClearance() + geometry.Epsilon
	var out []*Item
	for _, it := range b.overlappingRange(geometry.Inflate(s.Bounds(), reach), first, last) {
		if it.SharesNet(nets) {
			continue
		}
		if skip != nil && skip(it) {
			continue
		}
		is, _ := it.Shape(max(first, it.FirstLayer))
		if s.Distance(is) < b.Clearance(class, it.ClearanceClass)-geometry.Epsilon {
			out = append(out, it)
		}
	}
	return out
}

// Inside reports whether the shape lies within the board outline.
func (b *Board) Inside(s Shape) bool {
	return geometry.ContainsBox(geometry.Inflate(b.bounds, geometry.Epsilon), s.Bounds())
}

// CheckVia reports whether a via of the given type fits at without
// violating clearance. Items for which skip returns true are ignored.
func (b *Board) CheckVia(info ViaInfo, at r2.Vec, nets []int, class int, skip func(*Item) bool) bool {
	s := Circle(at, info.Radius)
	if !b.Inside(s) {
		return false
	}
	return len(b.Conflicts(s, info.FirstLayer, info.LastLayer, nets, class, skip)) == 0
}

// InsertForcedTracePolyline inserts the polyline segment by segment,
// shoving conflicting items of other nets aside. It returns the last corner
// reached: the final corner on success, the first corner on total failure
// and any other point on partial success. Segments before the returned
// point stay on the board.
func (b *Board) InsertForcedTracePolyline(corners []r2.Vec, halfWidth float64, layer int, nets []int, class int, p ShoveParams) r2.Vec {
	if len(corners) == 0 {
		return r2.Vec{}
	}
	cur := corners[0]
	for _, next := range corners[1:] {
		if geometry.Near(cur, next) {
			continue
		}
		if b.insertForcedSegment(cur, next, halfWidth, layer, nets, class, p) {
			cur = next
			continue
		}
		minLength := max(p.PullTightAccuracy, 10*geometry.Epsilon)
		t := 0.5
		for i := 0; i < partialInsertTries && geometry.Dist(cur, next)*t >= minLength; i++ {
			mid := geometry.Lerp(cur, next, t)
			if b.insertForcedSegment(cur, mid, halfWidth, layer, nets, class, p) {
				return mid
			}
			t /= 2
		}
		return cur
	}
	return corners[len(corners)-1]
}

func (b *Board) insertForcedSegment(from, to r2.Vec, halfWidth float64, layer int, nets []int, class int, p ShoveParams) bool {
	s := Capsule(from, to, halfWidth)
	if !b.Inside(s) {
		return false
	}
	tx := b.begin()
	sh := &shover{b: b, tx: tx, p: p}
	if !sh.clear(rootShape{shape: s, first: layer, last: layer, nets: nets, class: class}) {
		tx.rollback()
		return false
	}
	tx.add(&Item{
		Kind:           KindTrace,
		Nets:           append([]int(nil), nets...),
		ClearanceClass: class,
		FirstLayer:     layer,
		LastLayer:      layer,
		From:           from,
		To:             to,
		HalfWidth:      halfWidth,
	})
	return true
}

// InsertVia places a via, shoving conflicting items of other nets aside. It
// reports success; on failure the board is unchanged.
func (b *Board) InsertVia(info ViaInfo, at r2.Vec, nets []int, class int, p ShoveParams) bool {
	s := Circle(at, info.Radius)
	if !b.Inside(s) {
		return false
	}
	tx := b.begin()
	sh := &shover{b: b, tx: tx, p: p}
	if !sh.clear(rootShape{shape: s, first: info.FirstLayer, last: info.LastLayer, nets: nets, class: class}) {
		tx.rollback()
		return false
	}
	tx.add(&Item{
		Kind:           KindVia,
		Nets:           append([]int(nil), nets...),
		ClearanceClass: class,
		FirstLayer:     info.FirstLayer,
		LastLayer:      info.LastLayer,
		Center:         at,
		Radius:         info.Radius,
		Via:            info,
	})
	return true
}
