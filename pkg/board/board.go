package board

import (
	"fmt"
	"math"
	"sort"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// Board is the routing board: layers, nets, rules and items.
type Board struct {
	bounds     r2.Box
	layers     []Layer
	nets       map[int]Net
	clearances []ClearanceClass
	netClasses []NetClass

	items  map[ItemID]*Item
	nextID ItemID
	index  *gridIndex

	// changes collects the boxes touched since the last TakeChanges.
	changes []r2.Box
	// connections caches ConnectionOf results until the next change.
	connections map[ItemID]*Connection
}

// New creates an empty board. A default clearance class and net class are
// installed so that a bare board is usable in tests.
func New(bounds r2.Box, layers []Layer) *Board {
	return &Board{
		bounds:     bounds,
		layers:     append([]Layer(nil), layers...),
		nets:       make(map[int]Net),
		clearances: []ClearanceClass{{Name: "default", Clearance: 0.2}},
		netClasses: []NetClass{{Name: "default", TraceHalfWidth: 0.125}},
		items:      make(map[ItemID]*Item),
		nextID:     1,
		index:      newGridIndex(bounds),
	}
}

// Bounds returns the board outline box.
func (b *Board) Bounds() r2.Box { return b.bounds }

// Layers returns the layer stack, top first.
func (b *Board) Layers() []Layer { return b.layers }

// LayerCount returns the number of copper layers.
func (b *Board) LayerCount() int { return len(b.layers) }

// LayerByName returns the index of the named layer.
func (b *Board) LayerByName(name string) (int, bool) {
	for i, l := range b.layers {
		if l.Name == name {
			return i, true
		}
	}
	return 0, false
}

// AddNet registers a net. A net already present is replaced.
func (b *Board) AddNet(n Net) {
	b.nets[n.Number] = n
}

// Net returns the net with the given number.
func (b *Board) Net(number int) (Net, bool) {
	n, ok := b.nets[number]
	return n, ok
}

// Nets returns all nets sorted by number.
func (b *Board) Nets() []Net {
	nets := make([]Net, 0, len(b.nets))
	for _, n := range b.nets {
		nets = append(nets, n)
	}
	sort.Slice(nets, func(i, j int) bool { return nets[i].Number < nets[j].Number })
	return nets
}

// SetClearanceClasses replaces the clearance classes. Class 0 is the default.
func (b *Board) SetClearanceClasses(classes []ClearanceClass) {
	b.clearances = append([]ClearanceClass(nil), classes...)
}

// ClearanceClasses returns the clearance classes.
func (b *Board) ClearanceClasses() []ClearanceClass { return b.clearances }

// SetNetClasses replaces the net classes. Class 0 is the default.
func (b *Board) SetNetClasses(classes []NetClass) {
	b.netClasses = append([]NetClass(nil), classes...)
}

// NetClasses returns the net classes.
func (b *Board) NetClasses() []NetClass { return b.netClasses }

// NetClass returns the rules of net n, falling back to class 0.
func (b *Board) NetClass(n int) NetClass {
	net, ok := b.nets[n]
	if ok && net.Class >= 0 && net.Class < len(b.netClasses) {
		return b.netClasses[net.Class]
	}
	if len(b.netClasses) == 0 {
		return NetClass{Name: "default"}
	}
	return b.netClasses[0]
}

// Clearance returns the required spacing between items of the two
// clearance classes.
func (b *Board) Clearance(c1, c2 int) float64 {
	return math.Max(b.classClearance(c1), b.classClearance(c2))
}

// MaxClearance returns the largest clearance of any class.
func (b *Board) MaxClearance() float64 {
	var m float64
	for _, c := range b.clearances {
		m = math.Max(m, c.Clearance)
	}
	return m
}

func (b *Board) classClearance(c int) float64 {
	if c < 0 || c >= len(b.clearances) {
		if len(b.clearances) == 0 {
			return 0
		}
		return b.clearances[0].Clearance
	}
	return b.clearances[c].Clearance
}

// AddTrace adds a trace segment on layer.
func (b *Board) AddTrace(from, to r2.Vec, halfWidth float64, layer int, nets []int, class int, fixed FixedState) *Item {
	return b.add(&Item{
		Kind:           KindTrace,
		Nets:           append([]int(nil), nets...),
		ClearanceClass: class,
		Fixed:          fixed,
		FirstLayer:     layer,
		LastLayer:      layer,
		From:           from,
		To:             to,
		HalfWidth:      halfWidth,
	})
}

// AddVia adds a via of the given type at.
func (b *Board) AddVia(info ViaInfo, at r2.Vec, nets []int, class int, fixed FixedState) *Item {
	return b.add(&Item{
		Kind:           KindVia,
		Nets:           append([]int(nil), nets...),
		ClearanceClass: class,
		Fixed:          fixed,
		FirstLayer:     info.FirstLayer,
		LastLayer:      info.LastLayer,
		Center:         at,
		Radius:         info.Radius,
		Via:            info,
	})
}

// PinSpec describes a component pad to add with AddPin.
type PinSpec struct {
	Component string
	Name      string
	Center    r2.Vec
	// Radius makes a round pad. Otherwise Pad gives the absolute box.
	Radius     float64
	Pad        r2.Box
	FirstLayer int
	LastLayer  int
	Net        int
	Class      int
	SMD        bool
}

// AddPin adds a component pad. Pins are system fixed.
func (b *Board) AddPin(p PinSpec) *Item {
	var nets []int
	if p.Net > 0 {
		nets = []int{p.Net}
	}
	return b.add(&Item{
		Kind:           KindPin,
		Nets:           nets,
		ClearanceClass: p.Class,
		Fixed:          SystemFixed,
		FirstLayer:     p.FirstLayer,
		LastLayer:      p.LastLayer,
		Center:         p.Center,
		Radius:         p.Radius,
		Pad:            p.Pad,
		SMD:            p.SMD,
		Component:      p.Component,
		PadName:        p.Name,
	})
}

// AddKeepout adds a rectangular keepout on the layer range.
func (b *Board) AddKeepout(area r2.Box, first, last int) *Item {
	return b.add(&Item{
		Kind:       KindKeepout,
		Fixed:      SystemFixed,
		FirstLayer: first,
		LastLayer:  last,
		Area:       area,
	})
}

func (b *Board) add(it *Item) *Item {
	it.ID = b.nextID
	b.nextID++
	b.put(it)
	return it
}

// put stores it under its current ID.
func (b *Board) put(it *Item) {
	b.items[it.ID] = it
	box := it.Bounds()
	b.index.insert(it.ID, box)
	b.touch(box)
}

// RemoveItem deletes the item. It reports whether the item existed.
func (b *Board) RemoveItem(id ItemID) bool {
	it, ok := b.items[id]
	if !ok {
		return false
	}
	box := it.Bounds()
	b.index.remove(id, box)
	delete(b.items, id)
	b.touch(box)
	return true
}

// update applies fn to the item and re-indexes it.
func (b *Board) update(id ItemID, fn func(*Item)) {
	it, ok := b.items[id]
	if !ok {
		return
	}
	old := it.Bounds()
	b.index.remove(id, old)
	fn(it)
	box := it.Bounds()
	b.index.insert(id, box)
	b.touch(old)
	b.touch(box)
}

func (b *Board) touch(box r2.Box) {
	b.changes = append(b.changes, box)
	b.connections = nil
}

// TakeChanges returns the boxes of all items added, removed or moved since
// the previous call and clears the list.
func (b *Board) TakeChanges() []r2.Box {
	c := b.changes
	b.changes = nil
	return c
}

// Item returns the item with the given ID or nil.
func (b *Board) Item(id ItemID) *Item {
	return b.items[id]
}

// ItemCount returns the number of items.
func (b *Board) ItemCount() int { return len(b.items) }

// Items returns all items sorted by ID.
func (b *Board) Items() []*Item {
	items := make([]*Item, 0, len(b.items))
	for _, it := range b.items {
		items = append(items, it)
	}
	sortItems(items)
	return items
}

// NetItems returns the items of net n sorted by ID.
func (b *Board) NetItems(n int) []*Item {
	var items []*Item
	for _, it := range b.items {
		if it.HasNet(n) {
			items = append(items, it)
		}
	}
	sortItems(items)
	return items
}

// Overlapping returns the items whose bounds meet box on layer, sorted by
// ID. A negative layer matches all layers.
func (b *Board) Overlapping(box r2.Box, layer int) []*Item {
	var items []*Item
	for _, id := range b.index.query(box) {
		it := b.items[id]
		if layer >= 0 && !it.OnLayer(layer) {
			continue
		}
		if !geometry.Touches(it.Bounds(), box) {
			continue
		}
		items = append(items, it)
	}
	return items
}

// overlappingRange returns the items meeting box on any layer of
// [first, last].
func (b *Board) overlappingRange(box r2.Box, first, last int) []*Item {
	var items []*Item
	for _, it := range b.Overlapping(box, -1) {
		if it.FirstLayer <= last && first <= it.LastLayer {
			items = append(items, it)
		}
	}
	return items
}

// Clone returns a deep copy of the board. Item IDs are preserved.
func (b *Board) Clone() *Board {
	c := &Board{
		bounds:     b.bounds,
		layers:     append([]Layer(nil), b.layers...),
		nets:       make(map[int]Net, len(b.nets)),
		clearances: append([]ClearanceClass(nil), b.clearances...),
		netClasses: make([]NetClass, len(b.netClasses)),
		items:      make(map[ItemID]*Item, len(b.items)),
		nextID:     b.nextID,
		index:      b.index.clone(),
	}
	for k, v := range b.nets {
		c.nets[k] = v
	}
	for i, nc := range b.netClasses {
		nc.Vias = append([]ViaInfo(nil), nc.Vias...)
		c.netClasses[i] = nc
	}
	for id, it := range b.items {
		c.items[id] = it.clone()
	}
	return c
}

// Validate checks that items lie on existing layers.
func (b *Board) Validate() error {
	for _, it := range b.Items() {
		if it.FirstLayer < 0 || it.LastLayer >= len(b.layers) || it.FirstLayer > it.LastLayer {
			return fmt.Errorf("board: %s %d has invalid layer range %d..%d", it.Kind, it.ID, it.FirstLayer, it.LastLayer)
		}
	}
	return nil
}

func sortItems(items []*Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
