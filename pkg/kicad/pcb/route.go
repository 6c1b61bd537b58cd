package pcb

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/rules"
)

// outlineMargin pads the copper box of boards without Edge.Cuts.
const outlineMargin = 5.0

// Routing is a board converted for the router together with the copper
// layer names in router order.
type Routing struct {
	Board  *board.Board
	Layers []string
}

// CopperLayers returns the copper layers ordered F.Cu, In1.Cu ... InN.Cu,
// B.Cu.
func (b *Board) CopperLayers() []Layer {
	var out []Layer
	for _, l := range b.Layers {
		if l.IsCopper() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return copperRank(out[i].Name) < copperRank(out[j].Name) })
	return out
}

func copperRank(name string) int {
	switch name {
	case "F.Cu":
		return 0
	case "B.Cu":
		return math.MaxInt
	}
	if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "In"), ".Cu")); err == nil {
		return n
	}
	return math.MaxInt - 1
}

// RoutingBoard converts the parsed board. Nets, rules and classes are set
// up before any item is added; a nil rule set means rules.Default().
func (b *Board) RoutingBoard(rs *rules.RuleSet) (*Routing, error) {
	copper := b.CopperLayers()
	if len(copper) == 0 {
		return nil, fmt.Errorf("pcb: board has no copper layers")
	}
	r := &Routing{}
	layers := make([]board.Layer, len(copper))
	for i, l := range copper {
		layers[i] = board.Layer{Name: l.Name, Signal: l.Type != "power"}
		r.Layers = append(r.Layers, l.Name)
	}
	bounds, err := b.Bounds(outlineMargin)
	if err != nil {
		return nil, err
	}

	rb := board.New(bounds, layers)
	for _, n := range b.Nets {
		if n.Number > 0 {
			rb.AddNet(board.Net{Number: n.Number, Name: n.Name})
		}
	}
	if rs == nil {
		rs = rules.Default()
	}
	if err := rs.Apply(rb); err != nil {
		return nil, fmt.Errorf("pcb: failed to apply rules: %w", err)
	}
	r.Board = rb

	for _, fp := range b.Footprints {
		for _, p := range fp.Pads {
			if err := r.addPad(fp, p); err != nil {
				return nil, err
			}
		}
	}
	for i, t := range b.Tracks {
		l, ok := rb.LayerByName(t.Layer)
		if !ok {
			continue
		}
		if t.Width <= 0 {
			return nil, fmt.Errorf("pcb: track %d has width %g", i, t.Width)
		}
		rb.AddTrace(t.Start, t.End, t.Width/2, l, nets(t.Net), r.class(t.Net), fixed(t.Locked))
	}
	for i, v := range b.Vias {
		first, last, ok := r.span(v.Layers)
		if !ok {
			return nil, fmt.Errorf("pcb: via %d has no copper layers", i)
		}
		rb.AddVia(r.viaInfo(v, first, last), v.At, nets(v.Net), r.class(v.Net), fixed(v.Locked))
	}
	for _, k := range b.Keepouts {
		for _, l := range r.expand(k.Layers) {
			rb.AddKeepout(k.Area, l, l)
		}
	}
	if err := rb.Validate(); err != nil {
		return nil, fmt.Errorf("pcb: %w", err)
	}
	return r, nil
}

func (r *Routing) addPad(fp Footprint, p Pad) error {
	first, last, ok := r.span(p.Layers)
	if !ok {
		// Mask or paste only.
		return nil
	}
	spec := board.PinSpec{
		Component:  fp.Reference,
		Name:       p.Number,
		Center:     p.At,
		FirstLayer: first,
		LastLayer:  last,
		Net:        p.Net,
		Class:      r.class(p.Net),
		SMD:        p.Type == "smd" || p.Type == "connect",
	}
	switch {
	case p.Size.X <= 0 || p.Size.Y <= 0:
		return fmt.Errorf("pcb: pad %s.%s has size %gx%g", fp.Reference, p.Number, p.Size.X, p.Size.Y)
	case p.Shape == "circle":
		spec.Radius = p.Size.X / 2
	default:
		spec.Pad = p.Box()
	}
	r.Board.AddPin(spec)
	return nil
}

// expand maps layer names to router layer indices. "*.Cu" means all copper
// and "F&B.Cu" the two outer layers.
func (r *Routing) expand(names []string) []int {
	seen := make(map[int]bool)
	var out []int
	add := func(l int) {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	n := r.Board.LayerCount()
	for _, name := range names {
		switch name {
		case "*.Cu":
			for l := 0; l < n; l++ {
				add(l)
			}
		case "F&B.Cu":
			add(0)
			add(n - 1)
		default:
			if l, ok := r.Board.LayerByName(name); ok {
				add(l)
			}
		}
	}
	sort.Ints(out)
	return out
}

// span returns the first and last copper layer of names.
func (r *Routing) span(names []string) (first, last int, ok bool) {
	ls := r.expand(names)
	if len(ls) == 0 {
		return 0, 0, false
	}
	return ls[0], ls[len(ls)-1], true
}

// class returns the clearance class of net n.
func (r *Routing) class(n int) int {
	if n <= 0 {
		return 0
	}
	return r.Board.NetClass(n).ClearanceClass
}

// viaInfo returns the rule via matching the diameter and span of v, or an
// ad hoc type named after its size.
func (r *Routing) viaInfo(v Via, first, last int) board.ViaInfo {
	radius := v.Size / 2
	if v.Net > 0 {
		for _, info := range r.Board.NetClass(v.Net).Vias {
			if math.Abs(info.Radius-radius) < 1e-6 && info.FirstLayer == first && info.LastLayer == last {
				return info
			}
		}
	}
	return board.ViaInfo{
		Name:       fmt.Sprintf("Via%g", v.Size),
		Radius:     radius,
		Drill:      v.Drill,
		FirstLayer: first,
		LastLayer:  last,
	}
}

func nets(n int) []int {
	if n <= 0 {
		return nil
	}
	return []int{n}
}

func fixed(locked bool) board.FixedState {
	if locked {
		return board.UserFixed
	}
	return board.Unfixed
}
