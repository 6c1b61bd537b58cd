package board

import (
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

// NormalizeTraces tidies the unfixed traces of net n: zero-length traces
// are dropped and two traces that continue each other in a straight line
// with nothing else attached at the joint are merged. It returns the number
// of traces removed.
func (b *Board) NormalizeTraces(n int) int {
	removed := 0
	for _, it := range b.NetItems(n) {
		if it.Kind == KindTrace && it.Fixed == Unfixed && it.Length() <= geometry.Epsilon {
			b.RemoveItem(it.ID)
			removed++
		}
	}
	for {
		merged := false
		for _, it := range b.NetItems(n) {
			if b.items[it.ID] == nil || it.Kind != KindTrace || it.Fixed != Unfixed {
				continue
			}
			if b.mergeAt(it, it.From) || b.mergeAt(it, it.To) {
				merged = true
				removed++
			}
		}
		if !merged {
			return removed
		}
	}
}

// mergeAt joins trace t with the single trace continuing it at end p.
func (b *Board) mergeAt(t *Item, p r2.Vec) bool {
	others := b.contactsAt(t, p)
	if len(others) != 1 {
		return false
	}
	o := others[0]
	if o.Kind != KindTrace || o.Fixed != Unfixed || o.FirstLayer != t.FirstLayer ||
		o.HalfWidth != t.HalfWidth || o.ClearanceClass != t.ClearanceClass {
		return false
	}
	if !geometry.Near(o.From, p) && !geometry.Near(o.To, p) {
		return false
	}
	a := farEnd(t, p)
	c := farEnd(o, p)
	if !geometry.Collinear(a, p, c) || r2.Dot(r2.Sub(p, a), r2.Sub(c, p)) <= 0 {
		return false
	}
	b.RemoveItem(o.ID)
	b.update(t.ID, func(tr *Item) {
		tr.From, tr.To = a, c
	})
	return true
}

// RemoveDanglingTraces removes unfixed traces of net n shorter than
// maxLength that have an end touching nothing, repeating until none is
// left. It returns the number of traces removed.
func (b *Board) RemoveDanglingTraces(n int, maxLength float64) int {
	removed := 0
	for {
		found := false
		for _, it := range b.NetItems(n) {
			if it.Kind != KindTrace || it.Fixed != Unfixed || it.Length() >= maxLength {
				continue
			}
			if len(b.contactsAt(it, it.From)) == 0 || len(b.contactsAt(it, it.To)) == 0 {
				b.RemoveItem(it.ID)
				removed++
				found = true
			}
		}
		if !found {
			return removed
		}
	}
}
