package board

import (
	"sort"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// Connection is a maximal run of traces and vias between two forks or
// terminals.
type Connection struct {
	Net        int
	Items      []ItemID
	Start, End r2.Vec
	StartLayer int
	EndLayer   int
	Length     float64
	Vias       int
}

// DetourRatio returns the routed length divided by the straight distance
// between the ends. It is 1 for a connection whose ends coincide.
func (c *Connection) DetourRatio() float64 {
	d := geometry.Dist(c.Start, c.End)
	if d <= geometry.Epsilon {
		return 1
	}
	return c.Length / d
}

// touching reports whether two items of a common net are electrically in
// contact.
func touching(a, c *Item) bool {
	if !a.SharesLayer(c) {
		return false
	}
	l := max(a.FirstLayer, c.FirstLayer)
	sa, _ := a.Shape(l)
	sc, _ := c.Shape(l)
	return sa.Distance(sc) <= geometry.Epsilon
}

// contacts returns the items of a shared net touching it.
func (b *Board) contacts(it *Item) []*Item {
	var out []*Item
	for _, o := range b.overlappingRange(geometry.Inflate(it.Bounds(), geometry.Epsilon), it.FirstLayer, it.LastLayer) {
		if o.ID == it.ID || !o.SharesNet(it.Nets) {
			continue
		}
		if touching(it, o) {
			out = append(out, o)
		}
	}
	return out
}

// contactsAt returns the items of it's nets, other than it, whose copper
// covers p on a layer of it.
func (b *Board) contactsAt(it *Item, p r2.Vec) []*Item {
	var out []*Item
	box := geometry.Inflate(r2.Box{Min: p, Max: p}, geometry.Epsilon)
	for _, o := range b.overlappingRange(box, it.FirstLayer, it.LastLayer) {
		if o.ID == it.ID || !o.SharesNet(it.Nets) {
			continue
		}
		l := max(it.FirstLayer, o.FirstLayer)
		if s, ok := o.Shape(l); ok && s.Contains(p) {
			out = append(out, o)
		}
	}
	return out
}

type unionFind map[ItemID]ItemID

func (u unionFind) find(x ItemID) ItemID {
	for u[x] != x {
		u[x] = u[u[x]]
		x = u[x]
	}
	return x
}

func (u unionFind) union(a, c ItemID) {
	ra, rc := u.find(a), u.find(c)
	if ra == rc {
		return
	}
	if ra < rc {
		u[rc] = ra
	} else {
		u[ra] = rc
	}
}

// Components returns the connected groups of items of net n. Each group is
// sorted by ID and groups are ordered by their first ID.
func (b *Board) Components(n int) [][]ItemID {
	items := b.NetItems(n)
	uf := make(unionFind, len(items))
	for _, it := range items {
		uf[it.ID] = it.ID
	}
	for _, it := range items {
		for _, o := range b.contacts(it) {
			if o.HasNet(n) {
				uf.union(it.ID, o.ID)
			}
		}
	}
	groups := make(map[ItemID][]ItemID)
	for _, it := range items {
		r := uf.find(it.ID)
		groups[r] = append(groups[r], it.ID)
	}
	out := make([][]ItemID, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// TerminalComponents returns the components of net n that contain at least
// one pin. Components made only of stray route items are left out.
func (b *Board) TerminalComponents(n int) [][]ItemID {
	var out [][]ItemID
	for _, g := range b.Components(n) {
		for _, id := range g {
			if b.items[id].Kind == KindPin {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// NetIncomplete returns the number of missing connections of net n.
func (b *Board) NetIncomplete(n int) int {
	c := len(b.TerminalComponents(n))
	if c <= 1 {
		return 0
	}
	return c - 1
}

// IncompleteCount returns the number of missing connections over all nets.
func (b *Board) IncompleteCount() int {
	total := 0
	for _, n := range b.netNumbers() {
		total += b.NetIncomplete(n)
	}
	return total
}

// netNumbers returns the sorted numbers of all nets that carry items.
func (b *Board) netNumbers() []int {
	seen := make(map[int]struct{})
	for _, it := range b.items {
		for _, n := range it.Nets {
			seen[n] = struct{}{}
		}
	}
	for n := range b.nets {
		seen[n] = struct{}{}
	}
	nets := make([]int, 0, len(seen))
	for n := range seen {
		if n > 0 {
			nets = append(nets, n)
		}
	}
	sort.Ints(nets)
	return nets
}

// ViaCount returns the number of vias on the board.
func (b *Board) ViaCount() int {
	n := 0
	for _, it := range b.items {
		if it.Kind == KindVia {
			n++
		}
	}
	return n
}

// TraceLength returns the summed length of all traces.
func (b *Board) TraceLength() float64 {
	var l float64
	for _, it := range b.Items() {
		l += it.Length()
	}
	return l
}

// Stats returns the incomplete count, via count and trace length.
func (b *Board) Stats() Stats {
	return Stats{
		Incomplete:  b.IncompleteCount(),
		Vias:        b.ViaCount(),
		TraceLength: b.TraceLength(),
	}
}

// ConnectionOf returns the connection a trace or via belongs to. Results
// are cached until the board changes. It returns nil for other kinds.
func (b *Board) ConnectionOf(id ItemID) *Connection {
	it, ok := b.items[id]
	if !ok || !it.IsRoute() {
		return nil
	}
	if c, ok := b.connections[id]; ok {
		return c
	}
	c := b.traceConnection(it)
	if b.connections == nil {
		b.connections = make(map[ItemID]*Connection)
	}
	for _, m := range c.Items {
		b.connections[m] = c
	}
	return c
}

func (b *Board) traceConnection(start *Item) *Connection {
	visited := map[ItemID]bool{start.ID: true}
	c := &Connection{Items: []ItemID{start.ID}}
	if len(start.Nets) > 0 {
		c.Net = start.Nets[0]
	}

	switch start.Kind {
	case KindTrace:
		c.Start, c.StartLayer = b.walk(start, start.From, visited, c)
		c.End, c.EndLayer = b.walk(start, start.To, visited, c)
	case KindVia:
		var routes []*Item
		for _, o := range b.contacts(start) {
			if o.Kind == KindTrace {
				routes = append(routes, o)
			}
		}
		if len(routes) != 2 || len(b.contacts(start)) != 2 {
			c.Start, c.End = start.Center, start.Center
			c.StartLayer, c.EndLayer = start.FirstLayer, start.LastLayer
			break
		}
		for i, t := range routes {
			visited[t.ID] = true
			c.Items = append(c.Items, t.ID)
			p, l := b.walk(t, farEnd(t, start.Center), visited, c)
			if i == 0 {
				c.Start, c.StartLayer = p, l
			} else {
				c.End, c.EndLayer = p, l
			}
		}
	}

	sort.Slice(c.Items, func(i, j int) bool { return c.Items[i] < c.Items[j] })
	for _, id := range c.Items {
		it := b.items[id]
		c.Length += it.Length()
		if it.Kind == KindVia {
			c.Vias++
		}
	}
	return c
}

// walk follows the chain from trace t out of its end p until a fork, a
// terminal or a dangling end and returns that end point and layer.
func (b *Board) walk(t *Item, p r2.Vec, visited map[ItemID]bool, c *Connection) (r2.Vec, int) {
	for {
		others := b.contactsAt(t, p)
		if len(others) != 1 || !others[0].IsRoute() || visited[others[0].ID] {
			return p, t.FirstLayer
		}
		next := others[0]
		visited[next.ID] = true
		c.Items = append(c.Items, next.ID)

		if next.Kind == KindTrace {
			t, p = next, farEnd(next, p)
			continue
		}

		// Through a via: continue only when exactly one other trace leaves it.
		var out []*Item
		for _, o := range b.contacts(next) {
			if o.ID != t.ID {
				out = append(out, o)
			}
		}
		if len(out) != 1 || out[0].Kind != KindTrace || visited[out[0].ID] {
			return next.Center, t.FirstLayer
		}
		t = out[0]
		visited[t.ID] = true
		c.Items = append(c.Items, t.ID)
		p = farEnd(t, next.Center)
	}
}

// farEnd returns the end of trace t farther from p.
func farEnd(t *Item, p r2.Vec) r2.Vec {
	if geometry.Dist(t.From, p) <= geometry.Dist(t.To, p) {
		return t.To
	}
	return t.From
}
