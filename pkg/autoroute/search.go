package autoroute

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// ctxPollInterval is the number of pops between context checks.
const ctxPollInterval = 256

// element is the search state of one door section or one drill layer.
type element struct {
	occupied  bool
	backtrack int
	ripped    bool
	// adjustment is -1 or 1 when the arrival point is the first or last
	// end of a door section, 0 otherwise.
	adjustment int
	at         r2.Vec
	layer      int
	cost       float64
	room       int

	door, section, drill int
	layerChange          bool
}

type entry struct {
	sortValue float64
	seq       uint64
	elem      element
	index     int
}

// queue orders entries by sort value, then insertion order.
type queue []*entry

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].sortValue != q[j].sortValue {
		return q[i].sortValue < q[j].sortValue
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Step is one element on the found path.
type Step struct {
	At    r2.Vec
	Layer int
	// Door and Section identify a door element, Drill a drill element.
	// The unused ones are -1.
	Door    int
	Section int
	Drill   int
	// Room is the room entered at this step, -1 at the target.
	Room   int
	Ripped bool
}

// SearchResult is a path from a start door to a target door.
type SearchResult struct {
	Steps      []Step
	Cost       float64
	Ripped     []board.ItemID
	Expansions int
}

type search struct {
	g        *Graph
	c        *Control
	h        *DestinationDistance
	elements []element
	q        queue
	seq      uint64
}

// Search runs A* from the graph's start doors to its target doors.
func Search(ctx context.Context, g *Graph, c *Control, h *DestinationDistance) (*SearchResult, error) {
	s := &search{g: g, c: c, h: h, elements: make([]element, g.elements)}
	for _, di := range g.Starts {
		d := &g.Doors[di]
		s.push(element{
			backtrack: -1, at: d.A, layer: d.Layer, room: d.Rooms[0],
			door: di, section: 0, drill: -1,
		}, g.doorElement(di, 0))
	}

	pops := 0
	for s.q.Len() > 0 {
		if pops%ctxPollInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if c.MaxExpansions > 0 && pops >= c.MaxExpansions {
			return nil, fmt.Errorf("%w: expansion limit %d reached", ErrSearchExhausted, c.MaxExpansions)
		}
		e := heap.Pop(&s.q).(*entry)
		idx := s.index(e.elem)
		if s.elements[idx].occupied {
			continue
		}
		pops++
		el := e.elem
		el.occupied = true
		s.elements[idx] = el

		switch {
		case el.drill < 0 && g.Doors[el.door].Kind == DoorTarget:
			res := s.backtrack(idx)
			res.Expansions = pops
			return res, nil
		case el.drill >= 0 && !el.layerChange:
			s.changeLayer(idx, el)
		default:
			s.expand(idx, el)
		}
	}
	return nil, fmt.Errorf("%w: no path after %d expansions", ErrSearchExhausted, pops)
}

func (s *search) index(el element) int {
	if el.drill >= 0 {
		return s.g.drillElement(el.drill, el.layer)
	}
	return s.g.doorElement(el.door, el.section)
}

func (s *search) push(el element, idx int) {
	if s.elements[idx].occupied {
		return
	}
	box := r2.Box{Min: el.at, Max: el.at}
	s.seq++
	heap.Push(&s.q, &entry{
		sortValue: el.cost + s.h.CalculateCheap(box, el.layer),
		seq:       s.seq,
		elem:      el,
	})
}

// expand pushes the elements reachable inside the room entered by el.
func (s *search) expand(idx int, el element) {
	if el.room < 0 {
		return
	}
	room := &s.g.Rooms[el.room]
	l := el.layer
	for _, di := range room.Doors {
		if di == el.door && el.drill < 0 {
			continue
		}
		d := &s.g.Doors[di]
		switch d.Kind {
		case DoorTarget:
			s.push(element{
				backtrack: idx, at: d.A, layer: l, room: -1,
				cost: el.cost + s.c.MoveCost(l, el.at, d.A),
				door: di, drill: -1, ripped: el.ripped,
			}, s.g.doorElement(di, 0))
		case DoorLine:
			next := d.other(el.room)
			enter, ripped := s.enterCost(next)
			for si, sec := range d.Sections {
				ei := s.g.doorElement(di, si)
				if s.elements[ei].occupied {
					continue
				}
				q, t := geometry.NearestOnSegment(el.at, sec.A, sec.B)
				adj := 0
				switch {
				case t <= 0:
					adj = -1
				case t >= 1:
					adj = 1
				}
				s.push(element{
					backtrack: idx, at: q, layer: l, room: next,
					cost: el.cost + s.c.MoveCost(l, el.at, q) + enter,
					door: di, section: si, drill: -1, ripped: ripped, adjustment: adj,
				}, ei)
			}
		case DoorArea:
			next := d.other(el.room)
			enter, ripped := s.enterCost(next)
			q := geometry.Clamp(d.Area, el.at)
			s.push(element{
				backtrack: idx, at: q, layer: l, room: next,
				cost: el.cost + s.c.MoveCost(l, el.at, q) + enter,
				door: di, drill: -1, ripped: ripped,
			}, s.g.doorElement(di, 0))
		}
	}
	if room.Kind != RoomFree || !s.c.ViasAllowed {
		return
	}
	for _, dr := range room.Drills {
		if el.drill == dr {
			continue
		}
		drill := &s.g.Drills[dr]
		s.push(element{
			backtrack: idx, at: drill.At, layer: l, room: el.room,
			cost: el.cost + s.c.MoveCost(l, el.at, drill.At),
			door: -1, section: -1, drill: dr,
		}, s.g.drillElement(dr, l))
	}
}

// changeLayer pushes the other layers of the drill entered by el.
func (s *search) changeLayer(idx int, el element) {
	drill := &s.g.Drills[el.drill]
	for l := drill.FirstLayer; l <= drill.LastLayer; l++ {
		if l == el.layer || drill.Rooms[l] < 0 || !s.c.LayerActive[l] {
			continue
		}
		if _, ok := s.c.ViaBetween(el.layer, l); !ok {
			continue
		}
		s.push(element{
			backtrack: idx, at: drill.At, layer: l, room: drill.Rooms[l],
			cost: el.cost + s.c.ViaCost,
			door: -1, section: -1, drill: el.drill, layerChange: true,
		}, s.g.drillElement(el.drill, l))
	}
}

func (s *search) enterCost(room int) (float64, bool) {
	r := &s.g.Rooms[room]
	if r.Kind == RoomObstacle {
		return r.Cost, true
	}
	return 0, false
}

func (s *search) backtrack(idx int) *SearchResult {
	res := &SearchResult{Cost: s.elements[idx].cost}
	seen := map[board.ItemID]bool{}
	for i := idx; i >= 0; i = s.elements[i].backtrack {
		el := s.elements[i]
		step := Step{
			At: el.at, Layer: el.layer, Door: el.door, Section: el.section,
			Drill: el.drill, Room: el.room, Ripped: el.ripped,
		}
		if el.drill >= 0 {
			step.Door, step.Section = -1, -1
		}
		res.Steps = append(res.Steps, step)
		if el.room >= 0 {
			r := &s.g.Rooms[el.room]
			if r.Kind == RoomObstacle && !seen[r.Item] {
				seen[r.Item] = true
				res.Ripped = append(res.Ripped, r.Item)
			}
		}
	}
	for i, j := 0, len(res.Steps)-1; i < j; i, j = i+1, j-1 {
		res.Steps[i], res.Steps[j] = res.Steps[j], res.Steps[i]
	}
	sort.Slice(res.Ripped, func(i, j int) bool { return res.Ripped[i] < res.Ripped[j] })
	return res
}
