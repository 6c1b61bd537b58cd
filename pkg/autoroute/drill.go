package autoroute

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// drillPagesPerSide is the number of drill pages along the longer
	// board side.
	drillPagesPerSide = 8
	minDrillPageSize  = 1.0
	drillCacheSize    = 512
)

type drillKey struct {
	net, page   int
	first, last int
}

type drillPage struct {
	box    r2.Box
	drills []r2.Vec
}

// drillPages computes via candidate locations tile by tile and caches them
// until the board reports a change inside the tile.
type drillPages struct {
	bounds r2.Box
	size   float64
	nx, ny int
	cache  *lru.Cache[drillKey, *drillPage]
}

func newDrillPages(bounds r2.Box) *drillPages {
	s := bounds.Size()
	size := math.Max(math.Max(s.X, s.Y)/drillPagesPerSide, minDrillPageSize)
	cache, err := lru.New[drillKey, *drillPage](drillCacheSize)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &drillPages{
		bounds: bounds,
		size:   size,
		nx:     max(1, int(math.Ceil(s.X/size))),
		ny:     max(1, int(math.Ceil(s.Y/size))),
		cache:  cache,
	}
}

// pageBox returns the tile of page i.
func (p *drillPages) pageBox(i int) r2.Box {
	x, y := i%p.nx, i/p.nx
	lo := r2.Vec{X: p.bounds.Min.X + float64(x)*p.size, Y: p.bounds.Min.Y + float64(y)*p.size}
	box := r2.Box{Min: lo, Max: r2.Vec{X: lo.X + p.size, Y: lo.Y + p.size}}
	box.Max.X = math.Min(box.Max.X, p.bounds.Max.X)
	box.Max.Y = math.Min(box.Max.Y, p.bounds.Max.Y)
	return box
}

// invalidate drops the cached pages meeting any of the boxes.
func (p *drillPages) invalidate(boxes []r2.Box) {
	if len(boxes) == 0 {
		return
	}
	for _, k := range p.cache.Keys() {
		pb := p.pageBox(k.page)
		for _, b := range boxes {
			if geometry.Touches(pb, b) {
				p.cache.Remove(k)
				break
			}
		}
	}
}

// drills returns the drill locations of all pages in page order.
func (p *drillPages) drills(b *board.Board, c *Control, first, last int) []r2.Vec {
	var out []r2.Vec
	for i := 0; i < p.nx*p.ny; i++ {
		out = append(out, p.page(b, c, i, first, last).drills...)
	}
	return out
}

func (p *drillPages) page(b *board.Board, c *Control, i, first, last int) *drillPage {
	key := drillKey{net: c.Net, page: i, first: first, last: last}
	if pg, ok := p.cache.Get(key); ok {
		return pg
	}
	pg := &drillPage{box: p.pageBox(i)}
	area, ok := geometry.Intersect(pg.box, geometry.Inflate(b.Bounds(), -c.MaxViaRadius))
	if ok && geometry.Area(area) > 0 {
		d := decompose(area, p.obstacles(b, c, area, first, last))
		for _, r := range d.rects {
			pg.drills = append(pg.drills, r.Center())
		}
	}
	p.cache.Add(key, pg)
	return pg
}

// obstacles returns the boxes a via centre must stay out of within area.
func (p *drillPages) obstacles(b *board.Board, c *Control, area r2.Box, first, last int) []r2.Box {
	reach := c.MaxViaRadius + b.MaxClearance()
	seen := map[board.ItemID]bool{}
	var out []r2.Box
	for l := first; l <= last; l++ {
		for _, it := range b.Overlapping(geometry.Inflate(area, reach), l) {
			if seen[it.ID] || !viaObstacle(c, it) {
				continue
			}
			seen[it.ID] = true
			out = append(out, geometry.Inflate(it.Bounds(), c.MaxViaRadius+b.Clearance(c.ClearanceClass, it.ClearanceClass)))
		}
	}
	return out
}

// drillAt checks a single drill location against the real item shapes.
func (p *drillPages) drillAt(b *board.Board, c *Control, at r2.Vec, first, last int) error {
	reach := c.MaxViaRadius + b.MaxClearance()
	box := geometry.Inflate(r2.Box{Min: at, Max: at}, reach)
	for l := first; l <= last; l++ {
		for _, it := range b.Overlapping(box, l) {
			if it.HasNet(c.Net) {
				continue
			}
			s, _ := it.Shape(l)
			if s.PointDistance(at) < c.MaxViaRadius+b.Clearance(c.ClearanceClass, it.ClearanceClass)-geometry.Epsilon {
				return fmt.Errorf("%w: (%.3f, %.3f) by %s %d", ErrDrillBlocked, at.X, at.Y, it.Kind, it.ID)
			}
		}
	}
	if !geometry.ContainsPoint(geometry.Inflate(b.Bounds(), -c.MaxViaRadius), at) {
		return fmt.Errorf("%w: (%.3f, %.3f) outside the board", ErrDrillBlocked, at.X, at.Y)
	}
	return nil
}

// viaObstacle reports whether it keeps vias of the routed net away.
func viaObstacle(c *Control, it *board.Item) bool {
	if !it.HasNet(c.Net) {
		return true
	}
	return it.Kind == board.KindPin && it.SMD && !c.AttachSMD
}
