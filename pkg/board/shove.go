package board

import (
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// shoveMargin is added to every computed displacement so that a shoved
// item ends strictly outside the clearance of its pusher.
const shoveMargin = 1e-4

// rootShape is the new copper a forced insert is making room for.
type rootShape struct {
	shape       Shape
	first, last int
	nets        []int
	class       int
}

// shoveTask asks for item to be moved out of the clearance of pusher.
type shoveTask struct {
	item        ItemID
	pusher      Shape
	first, last int
	class       int
	depth       int
}

// shover runs the shove worklist of one forced insert. All board changes go
// through tx.
type shover struct {
	b     *Board
	tx    *txn
	p     ShoveParams
	roots []rootShape
	steps int
}

// clear makes room for root and reports success. It does not add root to
// the board.
func (s *shover) clear(root rootShape) bool {
	s.roots = append(s.roots, root)
	queue, ok := s.tasksFor(root.shape, root.first, root.last, root.nets, root.class, 1, nil)
	if !ok {
		return false
	}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		it := s.b.items[t.item]
		if it == nil || !s.stillConflicts(it, t) {
			continue
		}
		s.steps++
		if s.p.MaxRecursion > 0 && s.steps > s.p.MaxRecursion {
			return false
		}

		var more []shoveTask
		switch it.Kind {
		case KindTrace:
			if t.depth > s.p.TraceDepth {
				return false
			}
			more, ok = s.shoveTrace(it, t)
		case KindVia:
			if t.depth > s.p.ViaDepth {
				return false
			}
			more, ok = s.shoveVia(it, t)
		default:
			ok = false
		}
		if !ok {
			return false
		}
		queue = append(queue, more...)
	}
	return len(s.b.Conflicts(root.shape, root.first, root.last, root.nets, root.class, nil)) == 0
}

// tasksFor returns shove tasks for the items conflicting with shape. ok is
// false if one of them cannot be shoved.
func (s *shover) tasksFor(shape Shape, first, last int, nets []int, class, depth int, skip func(*Item) bool) ([]shoveTask, bool) {
	var tasks []shoveTask
	for _, c := range s.b.Conflicts(shape, first, last, nets, class, skip) {
		if !c.Shovable() {
			return nil, false
		}
		tasks = append(tasks, shoveTask{item: c.ID, pusher: shape, first: first, last: last, class: class, depth: depth})
	}
	return tasks, true
}

func (s *shover) stillConflicts(it *Item, t shoveTask) bool {
	if it.FirstLayer > t.last || t.first > it.LastLayer {
		return false
	}
	is, _ := it.Shape(max(it.FirstLayer, t.first))
	return is.Distance(t.pusher) < s.b.Clearance(it.ClearanceClass, t.class)-geometry.Epsilon
}

// clearsRoots reports whether shape on layer l keeps clearance to every root.
func (s *shover) clearsRoots(shape Shape, l int, class int) bool {
	for _, r := range s.roots {
		if l < r.first || l > r.last {
			continue
		}
		if shape.Distance(r.shape) < s.b.Clearance(class, r.class)-geometry.Epsilon {
			return false
		}
	}
	return true
}

// pieceCheck classifies the conflicts of a prospective piece: blocked is
// true when a conflict cannot be shoved, otherwise tasks lists the items to
// push next.
func (s *shover) pieceCheck(shape Shape, first, last int, nets []int, class, depth int, skip func(*Item) bool) (tasks []shoveTask, blocked bool) {
	if !s.b.Inside(shape) {
		return nil, true
	}
	for l := first; l <= last; l++ {
		if !s.clearsRoots(shape, l, class) {
			return nil, true
		}
	}
	tasks, ok := s.tasksFor(shape, first, last, nets, class, depth, skip)
	return tasks, !ok
}

// shoveTrace replaces trace it by a detour that runs parallel to it at a
// distance clearing the pusher. Each retry widens the detour to spring over
// obstacles that cannot be moved.
func (s *shover) shoveTrace(it *Item, t shoveTask) ([]shoveTask, bool) {
	length := it.Length()
	if length <= geometry.Epsilon {
		return nil, false
	}
	need := s.b.Clearance(it.ClearanceClass, t.class) + it.HalfWidth + t.pusher.radius() + shoveMargin
	at := func(x float64) r2.Vec { return geometry.Lerp(it.From, it.To, x/length) }
	f := func(x float64) float64 { return t.pusher.corePointDistance(at(x)) }

	// The distance to a convex core is convex along the trace, so the part
	// in conflict is one interval around the minimum.
	lo, hi := 0.0, length
	for i := 0; i < 80; i++ {
		m1 := lo + (hi-lo)/3
		m2 := hi - (hi-lo)/3
		if f(m1) < f(m2) {
			hi = m2
		} else {
			lo = m1
		}
	}
	sMin := (lo + hi) / 2
	fMin := f(sMin)
	if fMin >= need-geometry.Epsilon {
		return nil, true
	}
	s0 := boundary(f, need, 0, sMin)
	s1 := boundary(f, need, length, sMin)

	dir := geometry.Direction(it.From, it.To)
	normal := geometry.Perp(dir)
	side := geometry.Side(it.From, it.To, t.pusher.nearestCorePoint(at(sMin)))
	if math.Abs(side) <= geometry.Epsilon {
		side = geometry.Side(it.From, it.To, t.pusher.Bounds().Center())
	}
	if side > 0 {
		normal = r2.Scale(-1, normal)
	}

	base := need - fMin
	skip := func(o *Item) bool { return o.ID == it.ID }
	for attempt := 0; attempt <= s.p.SpringOverDepth; attempt++ {
		delta := base + float64(attempt)*need
		a, c := s0-delta, s1+delta
		if a <= geometry.Epsilon || c >= length-geometry.Epsilon {
			// The detour would have to move an end of the trace.
			return nil, false
		}
		off := r2.Scale(delta, normal)
		corners := []r2.Vec{it.From, at(a), r2.Add(at(s0), off), r2.Add(at(s1), off), at(c), it.To}

		var tasks []shoveTask
		blocked := false
		for i := 1; i < len(corners) && !blocked; i++ {
			piece := Capsule(corners[i-1], corners[i], it.HalfWidth)
			var more []shoveTask
			more, blocked = s.pieceCheck(piece, it.FirstLayer, it.LastLayer, it.Nets, it.ClearanceClass, t.depth+1, skip)
			tasks = append(tasks, more...)
		}
		if blocked {
			continue
		}

		s.tx.remove(it.ID)
		for i := 1; i < len(corners); i++ {
			s.tx.add(&Item{
				Kind:           KindTrace,
				Nets:           append([]int(nil), it.Nets...),
				ClearanceClass: it.ClearanceClass,
				Fixed:          it.Fixed,
				FirstLayer:     it.FirstLayer,
				LastLayer:      it.LastLayer,
				From:           corners[i-1],
				To:             corners[i],
				HalfWidth:      it.HalfWidth,
			})
		}
		return tasks, true
	}
	return nil, false
}

// boundary returns the point between from and inside where f crosses need.
// f(inside) is below need.
func boundary(f func(float64) float64, need, from, inside float64) float64 {
	if f(from) < need {
		return from
	}
	out, in := from, inside
	for i := 0; i < 60; i++ {
		m := (out + in) / 2
		if f(m) < need {
			in = m
		} else {
			out = m
		}
	}
	return out
}

// shoveVia moves via it away from the pusher and drags the ends of the
// traces attached to it along.
func (s *shover) shoveVia(it *Item, t shoveTask) ([]shoveTask, bool) {
	attached := s.b.contactsAt(it, it.Center)
	for _, a := range attached {
		if a.Kind != KindTrace || !a.Shovable() {
			return nil, false
		}
		if !geometry.Near(a.From, it.Center) && !geometry.Near(a.To, it.Center) {
			return nil, false
		}
	}
	skip := func(o *Item) bool {
		if o.ID == it.ID {
			return true
		}
		for _, a := range attached {
			if o.ID == a.ID {
				return true
			}
		}
		return false
	}

	need := s.b.Clearance(it.ClearanceClass, t.class) + it.Radius + t.pusher.radius() + shoveMargin
	np := t.pusher.nearestCorePoint(it.Center)
	d := geometry.Dist(np, it.Center)
	dir := geometry.Direction(np, it.Center)
	if dir == (r2.Vec{}) {
		dir = geometry.Perp(geometry.Direction(t.pusher.A, t.pusher.B))
		if dir == (r2.Vec{}) {
			dir = r2.Vec{X: 1}
		}
	}

	for attempt := 0; attempt <= s.p.SpringOverDepth; attempt++ {
		center := r2.Add(it.Center, r2.Scale(need-d+float64(attempt)*need, dir))
		tasks, blocked := s.pieceCheck(Circle(center, it.Radius), it.FirstLayer, it.LastLayer, it.Nets, it.ClearanceClass, t.depth+1, skip)
		for _, a := range attached {
			if blocked {
				break
			}
			from, to := a.From, a.To
			if geometry.Near(from, it.Center) {
				from = center
			} else {
				to = center
			}
			var more []shoveTask
			more, blocked = s.pieceCheck(Capsule(from, to, a.HalfWidth), a.FirstLayer, a.LastLayer, a.Nets, a.ClearanceClass, t.depth+1, skip)
			tasks = append(tasks, more...)
		}
		if blocked {
			continue
		}

		old := it.Center
		s.tx.modify(it.ID, func(v *Item) { v.Center = center })
		for _, a := range attached {
			s.tx.modify(a.ID, func(tr *Item) {
				if geometry.Near(tr.From, old) {
					tr.From = center
				} else {
					tr.To = center
				}
			})
		}
		return tasks, true
	}
	return nil, false
}
