package autoroute

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// maxInsertRetries bounds the retries of a partially inserted run.
	maxInsertRetries = 3
	// danglingTolerance is the longest stub removed after a failed insert.
	danglingTolerance = 1.0
)

// piece is a run fragment inserted with one half-width.
type piece struct {
	corners   []r2.Vec
	halfWidth float64
	neck      bool
}

// insertRoute commits route to b. Ripped connections are removed first.
// On failure the runs and vias inserted before the failing run stay, the
// failing run is cut back to its last clean corner and short same-net
// stubs are cleaned up.
func insertRoute(b *board.Board, c *Control, route *Route) error {
	for _, id := range route.Ripped {
		ripConnection(b, id)
	}
	for i, run := range route.Runs {
		if err := insertRun(b, c, run); err != nil {
			b.RemoveDanglingTraces(c.Net, danglingTolerance)
			return err
		}
		if i >= len(route.Vias) {
			continue
		}
		v := route.Vias[i]
		if !b.InsertVia(v.Info, v.At, c.Nets, c.ClearanceClass, c.Shove) {
			b.RemoveDanglingTraces(c.Net, danglingTolerance)
			return fmt.Errorf("%w: via %s at (%.3f, %.3f)", ErrGeometryInsert, v.Info.Name, v.At.X, v.At.Y)
		}
	}
	return nil
}

// ripConnection removes the connection containing id.
func ripConnection(b *board.Board, id board.ItemID) {
	it := b.Item(id)
	if it == nil {
		return
	}
	if conn := b.ConnectionOf(id); conn != nil {
		for _, cid := range conn.Items {
			b.RemoveItem(cid)
		}
		return
	}
	if it.IsRoute() {
		b.RemoveItem(id)
	}
}

func insertRun(b *board.Board, c *Control, run Run) error {
	if len(run.Corners) < 2 || geometry.PolylineLength(run.Corners) <= geometry.Epsilon {
		return nil
	}
	for _, p := range neckDown(b, c, run) {
		err := insertPiece(b, c, run.Layer, p.corners, p.halfWidth)
		if err != nil && p.neck {
			err = insertPiece(b, c, run.Layer, p.corners, c.TraceHalfWidth[run.Layer])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// insertPiece inserts corners, retrying from the reached point after a
// partial insert. On failure every trace the piece added beyond its last
// fully reached corner is removed again.
func insertPiece(b *board.Board, c *Control, l int, corners []r2.Vec, hw float64) error {
	existing := make(map[board.ItemID]bool)
	for _, it := range b.NetItems(c.Net) {
		existing[it.ID] = true
	}
	full := corners
	for try := 0; ; try++ {
		end := corners[len(corners)-1]
		ok := b.InsertForcedTracePolyline(corners, hw, l, c.Nets, c.ClearanceClass, c.Shove)
		if geometry.Near(ok, end) {
			return nil
		}
		if geometry.Near(ok, corners[0]) || try >= maxInsertRetries {
			rollbackPiece(b, c, l, cleanPrefix(full, ok), existing)
			return fmt.Errorf("%w: layer %d at (%.3f, %.3f)", ErrGeometryInsert, l, ok.X, ok.Y)
		}
		corners = remaining(corners, ok)
	}
}

// cleanPrefix returns the corners up to the last one reached
// before p.
func cleanPrefix(corners []r2.Vec, p r2.Vec) []r2.Vec {
	for k := 0; k+1 < len(corners); k++ {
		if geometry.Near(p, corners[k+1]) {
			return corners[:k+2]
		}
		if geometry.PointSegmentDistance(p, corners[k], corners[k+1]) <= geometry.Epsilon {
			return corners[:k+1]
		}
	}
	return corners[:1]
}

// rollbackPiece removes the traces of the net on layer l that were added
// after existing was taken and do not lie on the clean polyline.
func rollbackPiece(b *board.Board, c *Control, l int, clean []r2.Vec, existing map[board.ItemID]bool) {
	for _, it := range b.NetItems(c.Net) {
		if existing[it.ID] || it.Kind != board.KindTrace || it.FirstLayer != l {
			continue
		}
		if onPolyline(clean, it.From) && onPolyline(clean, it.To) {
			continue
		}
		b.RemoveItem(it.ID)
	}
}

func onPolyline(corners []r2.Vec, p r2.Vec) bool {
	for k := 0; k+1 < len(corners); k++ {
		if geometry.PointSegmentDistance(p, corners[k], corners[k+1]) <= geometry.Epsilon {
			return true
		}
	}
	return false
}

// remaining returns the corners from p on, where p lies on the polyline.
func remaining(corners []r2.Vec, p r2.Vec) []r2.Vec {
	for k := 0; k+1 < len(corners); k++ {
		if geometry.PointSegmentDistance(p, corners[k], corners[k+1]) <= geometry.Epsilon {
			return append([]r2.Vec{p}, corners[k+1:]...)
		}
	}
	return []r2.Vec{p, corners[len(corners)-1]}
}

// neckDown splits run into pieces, narrowing the ends that meet a pin
// smaller than the trace.
func neckDown(b *board.Board, c *Control, run Run) []piece {
	hw := c.TraceHalfWidth[run.Layer]
	full := []piece{{corners: run.Corners, halfWidth: hw}}
	if !c.NeckDown {
		return full
	}
	corners := run.Corners
	var head, tail *piece
	if pin := smallPin(b, c, run.Layer, corners[0], hw); pin != nil {
		head, corners = splitNeck(corners, pin)
	}
	if len(corners) >= 2 {
		if pin := smallPin(b, c, run.Layer, corners[len(corners)-1], hw); pin != nil {
			rev := reversed(corners)
			var p *piece
			p, rev = splitNeck(rev, pin)
			if p != nil {
				p.corners = reversed(p.corners)
				tail = p
			}
			corners = reversed(rev)
		}
	}
	if head == nil && tail == nil {
		return full
	}
	var out []piece
	if head != nil {
		out = append(out, *head)
	}
	if len(corners) >= 2 {
		out = append(out, piece{corners: corners, halfWidth: hw})
	}
	if tail != nil {
		out = append(out, *tail)
	}
	return out
}

// splitNeck cuts the first segment of corners where it enters the neck
// circle of pin, walking from the far end. It returns nil and corners
// unchanged when the run is too short.
func splitNeck(corners []r2.Vec, pin *board.Item) (*piece, []r2.Vec) {
	r := neckRadius(pin)
	if geometry.PolylineLength(corners) < 2*r {
		return nil, corners
	}
	entry, ok := geometry.SegmentCircleEntry(corners[1], corners[0], pin.Center, r)
	if !ok {
		return nil, corners
	}
	p := &piece{corners: []r2.Vec{corners[0], entry}, halfWidth: pin.MinHalfSize(), neck: true}
	return p, append([]r2.Vec{entry}, corners[1:]...)
}

func neckRadius(pin *board.Item) float64 {
	return 2 * pin.MinHalfSize()
}

// smallPin returns a pin of the net centred at p whose smaller half size is
// below hw.
func smallPin(b *board.Board, c *Control, l int, p r2.Vec, hw float64) *board.Item {
	for _, it := range b.Overlapping(r2.Box{Min: p, Max: p}, l) {
		if it.Kind == board.KindPin && it.HasNet(c.Net) && geometry.Near(it.Center, p) && it.MinHalfSize() < hw {
			return it
		}
	}
	return nil
}

func reversed(v []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, len(v))
	for i, p := range v {
		out[len(v)-1-i] = p
	}
	return out
}
