package pcb

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
	"github.com/google/uuid"
)

// WriteRoutes writes the unfixed traces and vias of b as KiCad (segment ...)
// and (via ...) elements, one per line, in item order. layerNames maps
// router layers to KiCad names.
func WriteRoutes(w io.Writer, b *board.Board, layerNames []string) error {
	if len(layerNames) != b.LayerCount() {
		return fmt.Errorf("pcb: %d layer names for %d layers", len(layerNames), b.LayerCount())
	}
	bw := bufio.NewWriter(w)
	for _, it := range b.Items() {
		if !it.IsRoute() || it.Fixed != board.Unfixed {
			continue
		}
		net := 0
		if len(it.Nets) > 0 {
			net = it.Nets[0]
		}
		switch it.Kind {
		case board.KindTrace:
			fmt.Fprintf(bw, "  (segment (start %s %s) (end %s %s) (width %s) (layer %q) (net %d) (uuid %q))\n",
				num(it.From.X), num(it.From.Y), num(it.To.X), num(it.To.Y),
				num(2*it.HalfWidth), layerNames[it.FirstLayer], net, uuid.NewString())
		case board.KindVia:
			fmt.Fprintf(bw, "  (via (at %s %s) (size %s) (drill %s) (layers %q %q) (net %d) (uuid %q))\n",
				num(it.Center.X), num(it.Center.Y), num(2*it.Radius), num(it.Via.Drill),
				layerNames[it.FirstLayer], layerNames[it.LastLayer], net, uuid.NewString())
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("pcb: failed to write routes: %w", err)
	}
	return nil
}

// num formats a millimetre value with at most six decimals.
func num(v float64) string {
	v = math.Round(v*1e6) / 1e6
	if v == 0 {
		v = 0 // no "-0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
