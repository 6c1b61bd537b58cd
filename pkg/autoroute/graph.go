package autoroute

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	doorSectionLength = 2.0
	maxDoorSections   = 8
)

// RoomKind distinguishes free space from obstacle rooms.
type RoomKind int

const (
	RoomFree RoomKind = iota
	RoomObstacle
)

// Room is a rectangle of one layer.
type Room struct {
	Kind  RoomKind
	Layer int
	Box   r2.Box
	// Item is the obstacle of an obstacle room.
	Item  board.ItemID
	Ripup bool
	// Cost is added when the search enters a ripup room.
	Cost   float64
	Doors  []int
	Drills []int
}

// DoorKind distinguishes the door variants.
type DoorKind int

const (
	// DoorLine is a shared side of two rooms.
	DoorLine DoorKind = iota
	// DoorArea is the overlap of two obstacle rooms.
	DoorArea
	// DoorStart and DoorTarget join a room to a terminal item.
	DoorStart
	DoorTarget
)

// Section is a piece of a line door.
type Section struct {
	A, B r2.Vec
}

// Door joins two rooms, or a room and a terminal item. Terminal doors have
// Rooms[1] == -1 and A == B.
type Door struct {
	Kind     DoorKind
	Layer    int
	Rooms    [2]int
	A, B     r2.Vec
	Area     r2.Box
	Item     board.ItemID
	Sections []Section

	first int
}

// other returns the room across the door from r.
func (d *Door) other(r int) int {
	if d.Rooms[0] == r {
		return d.Rooms[1]
	}
	return d.Rooms[0]
}

// Drill is a via candidate location. Rooms holds the free room containing
// the drill per layer, -1 where there is none.
type Drill struct {
	At         r2.Vec
	FirstLayer int
	LastLayer  int
	Rooms      []int

	first int
}

// Graph is the expansion graph of one connection search. Rooms, doors and
// drills live in flat arenas and refer to each other by index.
type Graph struct {
	Control *Control
	Rooms   []Room
	Doors   []Door
	Drills  []Drill
	Starts  []int
	Targets []int
	// BlockedDrills counts drill candidates dropped because fewer than two
	// layers had free room at their centre.
	BlockedDrills int

	free     []*decomposition
	freeBase []int
	elements int
}

// BuildGraph builds the expansion graph for connecting the start items to
// the dest items. pages may be nil.
func BuildGraph(b *board.Board, c *Control, start, dest []*board.Item, pages *drillPages) *Graph {
	g := &Graph{
		Control:  c,
		free:     make([]*decomposition, c.LayerCount),
		freeBase: make([]int, c.LayerCount),
	}
	terminal := map[board.ItemID]bool{}
	for _, it := range start {
		terminal[it.ID] = true
	}
	for _, it := range dest {
		terminal[it.ID] = true
	}

	obstacleRooms := make([][]int, c.LayerCount)
	for l := 0; l < c.LayerCount; l++ {
		if !c.LayerActive[l] {
			continue
		}
		hw := c.TraceHalfWidth[l]
		area := geometry.Inflate(b.Bounds(), -hw)
		var boxes []r2.Box
		var items []*board.Item
		for _, it := range b.Overlapping(b.Bounds(), l) {
			if !traceObstacle(c, it, terminal) {
				continue
			}
			box, ok := geometry.Intersect(area, geometry.Inflate(it.Bounds(), hw+b.Clearance(c.ClearanceClass, it.ClearanceClass)))
			if !ok || geometry.Area(box) <= 0 {
				continue
			}
			boxes = append(boxes, box)
			items = append(items, it)
		}
		d := decompose(area, boxes)
		g.free[l] = d
		g.freeBase[l] = len(g.Rooms)
		for _, r := range d.rects {
			g.Rooms = append(g.Rooms, Room{Kind: RoomFree, Layer: l, Box: r})
		}
		for _, pair := range d.adjacent() {
			ra, rb := g.freeBase[l]+pair[0], g.freeBase[l]+pair[1]
			if p, q, ok := geometry.SharedEdge(g.Rooms[ra].Box, g.Rooms[rb].Box); ok {
				g.addLineDoor(l, ra, rb, p, q)
			}
		}
		for i, it := range items {
			r := len(g.Rooms)
			room := Room{Kind: RoomObstacle, Layer: l, Box: boxes[i], Item: it.ID}
			if c.ripupEligible(it) {
				room.Ripup = true
				room.Cost = c.ripupCost(it)
			}
			g.Rooms = append(g.Rooms, room)
			obstacleRooms[l] = append(obstacleRooms[l], r)
			if !room.Ripup {
				continue
			}
			for _, fr := range d.around(room.Box) {
				f := g.freeBase[l] + fr
				if p, q, ok := geometry.SharedEdge(room.Box, g.Rooms[f].Box); ok {
					g.addLineDoor(l, f, r, p, q)
				}
			}
		}
		rooms := obstacleRooms[l]
		for i, ra := range rooms {
			if !g.Rooms[ra].Ripup {
				continue
			}
			for _, rb := range rooms[i+1:] {
				if !g.Rooms[rb].Ripup || !geometry.Overlaps(g.Rooms[ra].Box, g.Rooms[rb].Box) {
					continue
				}
				ov, _ := geometry.Intersect(g.Rooms[ra].Box, g.Rooms[rb].Box)
				g.addDoor(Door{Kind: DoorArea, Layer: l, Rooms: [2]int{ra, rb}, Area: ov, A: ov.Min, B: ov.Max})
			}
		}
	}

	g.addTerminals(start, DoorStart, obstacleRooms)
	g.addTerminals(dest, DoorTarget, obstacleRooms)

	if c.ViasAllowed {
		if pages == nil {
			pages = newDrillPages(b.Bounds())
		}
		first, last := c.ViaSpan()
		for _, at := range pages.drills(b, c, first, last) {
			if err := g.addDrill(at, first, last); err != nil {
				g.BlockedDrills++
			}
		}
		if c.AttachSMD {
			for _, it := range append(append([]*board.Item(nil), start...), dest...) {
				if it.Kind != board.KindPin || !it.SMD || !g.attachable() {
					continue
				}
				if pages.drillAt(b, c, it.Center, first, last) != nil || g.addDrill(it.Center, first, last) != nil {
					g.BlockedDrills++
				}
			}
		}
	}

	for i := range g.Doors {
		d := &g.Doors[i]
		d.first = g.elements
		g.elements += max(1, len(d.Sections))
	}
	for i := range g.Drills {
		g.Drills[i].first = g.elements
		g.elements += c.LayerCount
	}
	return g
}

// traceObstacle reports whether it blocks traces of the routed net.
func traceObstacle(c *Control, it *board.Item, terminal map[board.ItemID]bool) bool {
	if !it.HasNet(c.Net) {
		return true
	}
	return it.Kind == board.KindPin && it.SMD && !c.AttachSMD && !terminal[it.ID]
}

func (g *Graph) attachable() bool {
	for _, v := range g.Control.Vias {
		if v.AttachSMD {
			return true
		}
	}
	return false
}

func (g *Graph) addDoor(d Door) int {
	i := len(g.Doors)
	g.Doors = append(g.Doors, d)
	for _, r := range d.Rooms {
		if r >= 0 {
			g.Rooms[r].Doors = append(g.Rooms[r].Doors, i)
		}
	}
	return i
}

func (g *Graph) addLineDoor(l, ra, rb int, p, q r2.Vec) {
	n := int(math.Ceil(geometry.Dist(p, q) / doorSectionLength))
	n = min(max(n, 1), maxDoorSections)
	sections := make([]Section, n)
	for i := range sections {
		sections[i] = Section{
			A: geometry.Lerp(p, q, float64(i)/float64(n)),
			B: geometry.Lerp(p, q, float64(i+1)/float64(n)),
		}
	}
	g.addDoor(Door{Kind: DoorLine, Layer: l, Rooms: [2]int{ra, rb}, A: p, B: q, Sections: sections})
}

func (g *Graph) addTerminals(items []*board.Item, kind DoorKind, obstacleRooms [][]int) {
	for _, it := range items {
		for l := it.FirstLayer; l <= it.LastLayer; l++ {
			if l < 0 || l >= len(g.free) || g.free[l] == nil {
				continue
			}
			for _, p := range it.ContactPoints() {
				r := g.roomAt(l, p, obstacleRooms[l])
				if r < 0 {
					continue
				}
				d := g.addDoor(Door{Kind: kind, Layer: l, Rooms: [2]int{r, -1}, A: p, B: p, Item: it.ID})
				if kind == DoorStart {
					g.Starts = append(g.Starts, d)
				} else {
					g.Targets = append(g.Targets, d)
				}
			}
		}
	}
}

// roomAt returns the free room containing p on layer l, else the first
// ripup room containing it, else -1.
func (g *Graph) roomAt(l int, p r2.Vec, obstacles []int) int {
	if r := g.free[l].rectAt(p); r >= 0 {
		return g.freeBase[l] + r
	}
	for _, r := range obstacles {
		if g.Rooms[r].Ripup && geometry.ContainsPoint(g.Rooms[r].Box, p) {
			return r
		}
	}
	return -1
}

// FreeRoomAt returns the free room containing p on layer l, or -1.
func (g *Graph) FreeRoomAt(l int, p r2.Vec) int {
	if l < 0 || l >= len(g.free) || g.free[l] == nil {
		return -1
	}
	if r := g.free[l].rectAt(p); r >= 0 {
		return g.freeBase[l] + r
	}
	return -1
}

// addDrill adds a drill at at spanning first to last. It fails with
// ErrDrillBlocked when fewer than two layers have a free room there.
func (g *Graph) addDrill(at r2.Vec, first, last int) error {
	d := Drill{At: at, FirstLayer: first, LastLayer: last, Rooms: make([]int, g.Control.LayerCount)}
	reachable := 0
	for l := range d.Rooms {
		d.Rooms[l] = -1
		if l < first || l > last {
			continue
		}
		if r := g.FreeRoomAt(l, at); r >= 0 {
			d.Rooms[l] = r
			reachable++
		}
	}
	if reachable < 2 {
		return fmt.Errorf("%w: (%.3f, %.3f) reaches %d layers", ErrDrillBlocked, at.X, at.Y, reachable)
	}
	i := len(g.Drills)
	g.Drills = append(g.Drills, d)
	for _, r := range d.Rooms {
		if r >= 0 {
			g.Rooms[r].Drills = append(g.Rooms[r].Drills, i)
		}
	}
	return nil
}

// doorElement returns the element index of section s of door d.
func (g *Graph) doorElement(d, s int) int { return g.Doors[d].first + s }

// drillElement returns the element index of drill d on layer l.
func (g *Graph) drillElement(d, l int) int { return g.Drills[d].first + l }

// FreeArea returns the total area of the free rooms on layer l.
func (g *Graph) FreeArea(l int) float64 {
	var a float64
	for _, r := range g.Rooms {
		if r.Kind == RoomFree && r.Layer == l {
			a += geometry.Area(r.Box)
		}
	}
	return a
}
