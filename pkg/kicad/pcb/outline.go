package pcb

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
	"gonum.org/v1/gonum/spatial/r2"
)

// edgeLayer is the board outline layer.
const edgeLayer = "Edge.Cuts"

// parseOutline collects the points of Edge.Cuts graphics. Arcs contribute
// their three defining points and circles their bounding corners.
func parseOutline(root kicadsexp.List) ([]r2.Vec, error) {
	var pts []r2.Vec
	for _, kind := range []string{"gr_line", "gr_rect", "gr_arc", "gr_circle", "gr_poly"} {
		for i, node := range sexp.FindAllNodes(root, kind) {
			if l := layersOf(node); len(l) == 0 || l[0] != edgeLayer {
				continue
			}
			p, err := outlinePoints(kind, node)
			if err != nil {
				return nil, fmt.Errorf("%s %d: %w", kind, i, err)
			}
			pts = append(pts, p...)
		}
	}
	return pts, nil
}

func outlinePoints(kind string, node kicadsexp.List) ([]r2.Vec, error) {
	switch kind {
	case "gr_poly":
		return polygonPoints(node)
	case "gr_circle":
		c, err := point(node, "center")
		if err != nil {
			return nil, err
		}
		e, err := point(node, "end")
		if err != nil {
			return nil, err
		}
		r := r2.Norm(r2.Sub(e, c))
		return []r2.Vec{{X: c.X - r, Y: c.Y - r}, {X: c.X + r, Y: c.Y + r}}, nil
	}
	var out []r2.Vec
	for _, key := range []string{"start", "mid", "end"} {
		if _, found := sexp.FindNode(node, key); !found {
			continue
		}
		p, err := point(node, key)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("missing start or end")
	}
	return out, nil
}

// Bounds returns the box of the board outline. Without Edge.Cuts graphics
// it falls back to the box of all pads, tracks and vias grown by margin.
func (b *Board) Bounds(margin float64) (r2.Box, error) {
	if len(b.Outline) > 0 {
		return boundsOf(b.Outline), nil
	}
	var pts []r2.Vec
	for _, fp := range b.Footprints {
		for _, p := range fp.Pads {
			box := p.Box()
			pts = append(pts, box.Min, box.Max)
		}
	}
	for _, t := range b.Tracks {
		pts = append(pts, t.Start, t.End)
	}
	for _, v := range b.Vias {
		pts = append(pts, v.At)
	}
	if len(pts) == 0 {
		return r2.Box{}, fmt.Errorf("pcb: board has no outline and no copper")
	}
	box := boundsOf(pts)
	m := r2.Vec{X: margin, Y: margin}
	return r2.Box{Min: r2.Sub(box.Min, m), Max: r2.Add(box.Max, m)}, nil
}
