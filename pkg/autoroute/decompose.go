package autoroute

import (
	"sort"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// decomposition splits a rectangle minus a set of obstacle boxes into
// disjoint free rectangles. Obstacle edges are coordinate-compressed into a
// cell grid; free cells are merged into row runs and runs with equal column
// spans are stacked vertically.
type decomposition struct {
	area  r2.Box
	xs    []float64
	ys    []float64
	cells [][]int // cells[row][col]: rect index or -1
	rects []r2.Box
	spans [][4]int // col0, col1, row0, row1 of each rect, inclusive
}

func decompose(area r2.Box, obstacles []r2.Box) *decomposition {
	d := &decomposition{area: area}
	if !geometry.Valid(area) || geometry.Area(area) <= 0 {
		return d
	}
	clipped := make([]r2.Box, 0, len(obstacles))
	xs := []float64{area.Min.X, area.Max.X}
	ys := []float64{area.Min.Y, area.Max.Y}
	for _, o := range obstacles {
		c, ok := geometry.Intersect(area, o)
		if !ok || geometry.Area(c) <= 0 {
			continue
		}
		clipped = append(clipped, c)
		xs = append(xs, c.Min.X, c.Max.X)
		ys = append(ys, c.Min.Y, c.Max.Y)
	}
	d.xs = compress(xs)
	d.ys = compress(ys)
	nx, ny := len(d.xs)-1, len(d.ys)-1

	blocked := make([][]bool, ny)
	for j := range blocked {
		blocked[j] = make([]bool, nx)
	}
	for _, c := range clipped {
		i0, i1 := lineIndex(d.xs, c.Min.X), lineIndex(d.xs, c.Max.X)
		j0, j1 := lineIndex(d.ys, c.Min.Y), lineIndex(d.ys, c.Max.Y)
		for j := j0; j < j1; j++ {
			for i := i0; i < i1; i++ {
				blocked[j][i] = true
			}
		}
	}

	d.cells = make([][]int, ny)
	open := map[[2]int]int{}
	for j := 0; j < ny; j++ {
		d.cells[j] = make([]int, nx)
		next := map[[2]int]int{}
		for i := 0; i < nx; {
			if blocked[j][i] {
				d.cells[j][i] = -1
				i++
				continue
			}
			k := i
			for k+1 < nx && !blocked[j][k+1] {
				k++
			}
			run := [2]int{i, k}
			r, ok := open[run]
			if ok {
				d.spans[r][3] = j
				d.rects[r].Max.Y = d.ys[j+1]
			} else {
				r = len(d.rects)
				d.rects = append(d.rects, r2.Box{
					Min: r2.Vec{X: d.xs[i], Y: d.ys[j]},
					Max: r2.Vec{X: d.xs[k+1], Y: d.ys[j+1]},
				})
				d.spans = append(d.spans, [4]int{i, k, j, j})
			}
			next[run] = r
			for c := i; c <= k; c++ {
				d.cells[j][c] = r
			}
			i = k + 1
		}
		open = next
	}
	return d
}

// compress sorts v and drops values closer than Epsilon to their
// predecessor.
func compress(v []float64) []float64 {
	sort.Float64s(v)
	out := v[:1]
	for _, x := range v[1:] {
		if x-out[len(out)-1] > geometry.Epsilon {
			out = append(out, x)
		}
	}
	return out
}

// lineIndex returns the index of the grid line nearest to v.
func lineIndex(lines []float64, v float64) int {
	i := sort.Search(len(lines), func(k int) bool { return lines[k] >= v-geometry.Epsilon })
	if i >= len(lines) {
		return len(lines) - 1
	}
	return i
}

// cellRange returns the cells whose closed extent contains v.
func cellRange(lines []float64, v float64) (lo, hi int) {
	n := len(lines) - 1
	i := sort.Search(len(lines), func(k int) bool { return lines[k] > v+geometry.Epsilon }) - 1
	lo, hi = i, i
	if i >= 0 && i < len(lines) && v-lines[i] <= geometry.Epsilon {
		lo = i - 1
	}
	return max(lo, 0), min(hi, n-1)
}

// rectAt returns the free rect containing p, or -1.
func (d *decomposition) rectAt(p r2.Vec) int {
	if len(d.rects) == 0 || !geometry.ContainsPoint(d.area, p) {
		return -1
	}
	i0, i1 := cellRange(d.xs, p.X)
	j0, j1 := cellRange(d.ys, p.Y)
	for j := j0; j <= j1; j++ {
		for i := i0; i <= i1; i++ {
			if r := d.cells[j][i]; r >= 0 {
				return r
			}
		}
	}
	return -1
}

// adjacent returns each pair of free rects sharing a side, once, in a
// deterministic order.
func (d *decomposition) adjacent() [][2]int {
	var out [][2]int
	nx, ny := len(d.xs)-1, len(d.ys)-1
	for r, s := range d.spans {
		seen := map[int]bool{}
		if s[1]+1 < nx {
			for j := s[2]; j <= s[3]; j++ {
				if c := d.cells[j][s[1]+1]; c >= 0 && !seen[c] {
					seen[c] = true
					out = append(out, [2]int{r, c})
				}
			}
		}
		if s[3]+1 < ny {
			for i := s[0]; i <= s[1]; i++ {
				if c := d.cells[s[3]+1][i]; c >= 0 && !seen[c] {
					seen[c] = true
					out = append(out, [2]int{r, c})
				}
			}
		}
	}
	return out
}

// around returns the free rects touching box from outside, in a
// deterministic order. box must be aligned to the grid.
func (d *decomposition) around(box r2.Box) []int {
	if len(d.rects) == 0 {
		return nil
	}
	nx, ny := len(d.xs)-1, len(d.ys)-1
	c, ok := geometry.Intersect(d.area, box)
	if !ok {
		return nil
	}
	i0, i1 := lineIndex(d.xs, c.Min.X), lineIndex(d.xs, c.Max.X)
	j0, j1 := lineIndex(d.ys, c.Min.Y), lineIndex(d.ys, c.Max.Y)
	seen := map[int]bool{}
	var out []int
	add := func(i, j int) {
		if i < 0 || j < 0 || i >= nx || j >= ny {
			return
		}
		if r := d.cells[j][i]; r >= 0 && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for j := j0; j < j1; j++ {
		add(i0-1, j)
		add(i1, j)
	}
	for i := i0; i < i1; i++ {
		add(i, j0-1)
		add(i, j1)
	}
	return out
}
