package board

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// gridIndex buckets item IDs into square cells covering the board. Items
// outside the board are clamped into the border cells.
type gridIndex struct {
	origin     r2.Vec
	cell       float64
	cols, rows int
	cells      [][]ItemID
}

const gridCellsPerSide = 64

func newGridIndex(bounds r2.Box) *gridIndex {
	s := bounds.Size()
	cell := math.Max(s.X, s.Y) / gridCellsPerSide
	if cell <= 0 {
		cell = 1
	}
	cols := int(math.Ceil(s.X/cell)) + 1
	rows := int(math.Ceil(s.Y/cell)) + 1
	return &gridIndex{
		origin: bounds.Min,
		cell:   cell,
		cols:   cols,
		rows:   rows,
		cells:  make([][]ItemID, cols*rows),
	}
}

func (g *gridIndex) span(b r2.Box) (c0, r0, c1, r1 int) {
	clamp := func(v, n int) int {
		if v < 0 {
			return 0
		}
		if v >= n {
			return n - 1
		}
		return v
	}
	c0 = clamp(int(math.Floor((b.Min.X-g.origin.X)/g.cell)), g.cols)
	r0 = clamp(int(math.Floor((b.Min.Y-g.origin.Y)/g.cell)), g.rows)
	c1 = clamp(int(math.Floor((b.Max.X-g.origin.X)/g.cell)), g.cols)
	r1 = clamp(int(math.Floor((b.Max.Y-g.origin.Y)/g.cell)), g.rows)
	return c0, r0, c1, r1
}

func (g *gridIndex) insert(id ItemID, b r2.Box) {
	c0, r0, c1, r1 := g.span(b)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			i := r*g.cols + c
			g.cells[i] = append(g.cells[i], id)
		}
	}
}

func (g *gridIndex) remove(id ItemID, b r2.Box) {
	c0, r0, c1, r1 := g.span(b)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			i := r*g.cols + c
			cell := g.cells[i]
			for k, v := range cell {
				if v == id {
					cell[k] = cell[len(cell)-1]
					g.cells[i] = cell[:len(cell)-1]
					break
				}
			}
		}
	}
}

// query returns the IDs of items whose cells meet b, sorted and without
// duplicates. Callers filter by exact geometry.
func (g *gridIndex) query(b r2.Box) []ItemID {
	c0, r0, c1, r1 := g.span(b)
	seen := make(map[ItemID]struct{})
	var ids []ItemID
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			for _, id := range g.cells[r*g.cols+c] {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *gridIndex) clone() *gridIndex {
	c := *g
	c.cells = make([][]ItemID, len(g.cells))
	for i, cell := range g.cells {
		if len(cell) > 0 {
			c.cells[i] = append([]ItemID(nil), cell...)
		}
	}
	return &c
}
