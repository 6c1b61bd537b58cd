package autoroute

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	maxCorrections = 3
	// cornerMargin keeps corrective corners off the exact clearance
	// boundary.
	cornerMargin = 1e-3
)

// Run is a trace polyline on one layer.
type Run struct {
	Layer   int
	Corners []r2.Vec
}

// ViaPlacement is a via to insert between two runs.
type ViaPlacement struct {
	Info board.ViaInfo
	At   r2.Vec
	From int
	To   int
}

// Route is the located geometry of one connection. Runs and vias
// alternate: via i joins run i and run i+1.
type Route struct {
	Runs   []Run
	Vias   []ViaPlacement
	Ripped []board.ItemID
	Cost   float64
}

// Length returns the total trace length of the route.
func (r *Route) Length() float64 {
	var l float64
	for _, run := range r.Runs {
		l += geometry.PolylineLength(run.Corners)
	}
	return l
}

type portal struct {
	left, right r2.Vec
}

type pendingRun struct {
	layer   int
	start   r2.Vec
	end     r2.Vec
	portals []portal
}

type locator struct {
	b      *board.Board
	g      *Graph
	c      *Control
	ripped map[board.ItemID]bool
}

// Locate turns a search result into trace corners and via placements.
func Locate(b *board.Board, g *Graph, c *Control, res *SearchResult) (*Route, error) {
	if len(res.Steps) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrSearchExhausted)
	}
	lc := &locator{b: b, g: g, c: c, ripped: map[board.ItemID]bool{}}
	for _, id := range res.Ripped {
		lc.ripped[id] = true
	}
	route := &Route{Ripped: res.Ripped, Cost: res.Cost}

	steps := res.Steps
	cur := pendingRun{layer: steps[0].Layer, start: steps[0].At, end: steps[0].At}
	var runs []pendingRun
	for i := 1; i < len(steps); i++ {
		prev, st := steps[i-1], steps[i]
		if st.Drill >= 0 && prev.Drill == st.Drill && prev.Layer != st.Layer {
			runs = append(runs, cur)
			route.Vias = append(route.Vias, ViaPlacement{At: st.At, From: prev.Layer, To: st.Layer})
			cur = pendingRun{layer: st.Layer, start: st.At, end: st.At}
			continue
		}
		cur.end = st.At
		if i == len(steps)-1 || st.Drill >= 0 {
			continue
		}
		cur.portals = append(cur.portals, lc.portal(prev, st))
	}
	runs = append(runs, cur)

	for _, pr := range runs {
		corners := funnel(pr.start, pr.end, pr.portals)
		corners = lc.correct(pr.layer, corners)
		corners = lc.snap(pr.layer, corners)
		route.Runs = append(route.Runs, Run{Layer: pr.layer, Corners: geometry.SimplifyPolyline(corners)})
	}

	for i := range route.Vias {
		v := &route.Vias[i]
		info, ok := lc.selectVia(v.At, v.From, v.To)
		if !ok {
			return nil, fmt.Errorf("%w: layers %d-%d at (%.3f, %.3f)", ErrNoViaCandidate, v.From, v.To, v.At.X, v.At.Y)
		}
		v.Info = info
	}
	return route, nil
}

// portal returns the opening the path passes when moving from prev to st.
// Line doors give their full side oriented by the travel direction; every
// other step pins the path to its point.
func (lc *locator) portal(prev, st Step) portal {
	if st.Drill >= 0 || st.Door < 0 || prev.Room < 0 || st.Room < 0 {
		return portal{left: st.At, right: st.At}
	}
	d := &lc.g.Doors[st.Door]
	if d.Kind != DoorLine {
		return portal{left: st.At, right: st.At}
	}
	dir := r2.Sub(lc.g.Rooms[st.Room].Box.Center(), lc.g.Rooms[prev.Room].Box.Center())
	mid := geometry.Lerp(d.A, d.B, 0.5)
	if r2.Cross(dir, r2.Sub(d.A, mid)) > 0 {
		return portal{left: d.A, right: d.B}
	}
	return portal{left: d.B, right: d.A}
}

// triarea2 is twice the signed area of abc, positive when c lies right of
// a->b.
func triarea2(a, b, c r2.Vec) float64 {
	return -r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

// funnel pulls the shortest path from start to end through the portals.
func funnel(start, end r2.Vec, portals []portal) []r2.Vec {
	all := make([]portal, 0, len(portals)+2)
	all = append(all, portal{left: start, right: start})
	all = append(all, portals...)
	all = append(all, portal{left: end, right: end})

	pts := []r2.Vec{start}
	apex, left, right := start, start, start
	apexIdx, leftIdx, rightIdx := 0, 0, 0
	for i := 1; i < len(all); i++ {
		l, r := all[i].left, all[i].right

		if triarea2(apex, right, r) <= 0 {
			if geometry.Near(apex, right) || triarea2(apex, left, r) > 0 {
				right, rightIdx = r, i
			} else {
				pts = append(pts, left)
				apex, apexIdx = left, leftIdx
				left, right = apex, apex
				leftIdx, rightIdx = apexIdx, apexIdx
				i = apexIdx
				continue
			}
		}

		if triarea2(apex, left, l) >= 0 {
			if geometry.Near(apex, left) || triarea2(apex, right, l) < 0 {
				left, leftIdx = l, i
			} else {
				pts = append(pts, right)
				apex, apexIdx = right, rightIdx
				left, right = apex, apex
				leftIdx, rightIdx = apexIdx, apexIdx
				i = apexIdx
				continue
			}
		}
	}
	if !geometry.Near(pts[len(pts)-1], end) {
		pts = append(pts, end)
	}
	return pts
}

func (lc *locator) skip(it *board.Item) bool {
	return lc.ripped[it.ID]
}

func (lc *locator) conflict(l int, a, b r2.Vec) *board.Item {
	s := board.Capsule(a, b, lc.c.TraceHalfWidth[l])
	c := lc.b.Conflicts(s, l, l, lc.c.Nets, lc.c.ClearanceClass, lc.skip)
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// correct inserts corners around items the funnel path passes too close,
// at most maxCorrections per segment.
func (lc *locator) correct(l int, corners []r2.Vec) []r2.Vec {
	out := []r2.Vec{corners[0]}
	for _, next := range corners[1:] {
		budget := maxCorrections
		out = append(out, lc.detour(l, out[len(out)-1], next, &budget)...)
	}
	return out
}

func (lc *locator) detour(l int, a, b r2.Vec, budget *int) []r2.Vec {
	if *budget <= 0 {
		return []r2.Vec{b}
	}
	it := lc.conflict(l, a, b)
	if it == nil {
		return []r2.Vec{b}
	}
	corner, ok := lc.cornerAround(l, a, b, it)
	if !ok || geometry.Near(corner, a) || geometry.Near(corner, b) || !geometry.ContainsPoint(lc.b.Bounds(), corner) {
		return []r2.Vec{b}
	}
	*budget--
	out := lc.detour(l, a, corner, budget)
	return append(out, lc.detour(l, corner, b, budget)...)
}

// cornerAround returns the turn corner passing it at clearance distance.
func (lc *locator) cornerAround(l int, a, b r2.Vec, it *board.Item) (r2.Vec, bool) {
	s, ok := it.Shape(l)
	if !ok {
		return r2.Vec{}, false
	}
	reach := lc.c.TraceHalfWidth[l] + lc.b.Clearance(lc.c.ClearanceClass, it.ClearanceClass) + cornerMargin
	if s.Kind == board.ShapeRect {
		return geometry.BoxCorner(a, b, geometry.Inflate(s.Rect, reach)), true
	}
	return geometry.TangentCorner(a, b, closestCorePoint(a, b, s.A, s.B), s.Radius+reach)
}

// closestCorePoint returns the point of segment pq nearest to segment ab.
func closestCorePoint(a, b, p, q r2.Vec) r2.Vec {
	cands := []r2.Vec{p, q}
	n, _ := geometry.NearestOnSegment(a, p, q)
	cands = append(cands, n)
	n, _ = geometry.NearestOnSegment(b, p, q)
	cands = append(cands, n)
	if x, ok := geometry.LineIntersection(a, b, p, q); ok && geometry.SegmentsIntersect(a, b, p, q) {
		cands = append(cands, x)
	}
	best, bestD := cands[0], math.Inf(1)
	for _, c := range cands {
		if d := geometry.PointSegmentDistance(c, a, b); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// snap replaces segments violating the angle restriction by two conforming
// segments, preferring the elbow without clearance violations.
func (lc *locator) snap(l int, corners []r2.Vec) []r2.Vec {
	if lc.c.Restriction == AngleFree {
		return corners
	}
	out := []r2.Vec{corners[0]}
	for _, b := range corners[1:] {
		a := out[len(out)-1]
		if conforms(lc.c.Restriction, a, b) {
			out = append(out, b)
			continue
		}
		e1, e2 := elbows(lc.c.Restriction, a, b)
		e := e1
		if !lc.clear(l, a, e1, b) && lc.clear(l, a, e2, b) {
			e = e2
		}
		out = append(out, e, b)
	}
	return out
}

func (lc *locator) clear(l int, a, e, b r2.Vec) bool {
	return lc.conflict(l, a, e) == nil && lc.conflict(l, e, b) == nil
}

func conforms(r AngleRestriction, a, b r2.Vec) bool {
	dx, dy := math.Abs(b.X-a.X), math.Abs(b.Y-a.Y)
	if dx <= geometry.Epsilon || dy <= geometry.Epsilon {
		return true
	}
	return r == Angle45 && math.Abs(dx-dy) <= geometry.Epsilon
}

// elbows returns the two intermediate corners joining a and b with
// conforming segments.
func elbows(r AngleRestriction, a, b r2.Vec) (r2.Vec, r2.Vec) {
	if r == Angle90 {
		return r2.Vec{X: b.X, Y: a.Y}, r2.Vec{X: a.X, Y: b.Y}
	}
	dx, dy := b.X-a.X, b.Y-a.Y
	d := math.Min(math.Abs(dx), math.Abs(dy))
	diag := r2.Vec{X: math.Copysign(d, dx), Y: math.Copysign(d, dy)}
	return r2.Add(a, diag), r2.Sub(b, diag)
}

func (lc *locator) selectVia(at r2.Vec, from, to int) (board.ViaInfo, bool) {
	for _, v := range lc.c.Vias {
		if !v.Covers(from, to) {
			continue
		}
		if lc.b.CheckVia(v, at, lc.c.Nets, lc.c.ClearanceClass, lc.skip) {
			return v, true
		}
	}
	return board.ViaInfo{}, false
}
