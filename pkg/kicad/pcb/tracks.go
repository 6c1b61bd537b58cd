package pcb

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
	"gonum.org/v1/gonum/spatial/r2"
)

// defaultTrackWidth applies to segments without a (width w) field.
const defaultTrackWidth = 0.15

// parseTracks extracts (segment ...) and (arc ...) tracks. An arc becomes
// two straight tracks through its midpoint.
func parseTracks(root kicadsexp.List) ([]Track, error) {
	var tracks []Track
	for i, node := range sexp.FindAllNodes(root, "segment") {
		t, err := parseTrack(node, "end")
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		tracks = append(tracks, *t)
	}
	for i, node := range sexp.FindAllNodes(root, "arc") {
		first, err := parseTrack(node, "mid")
		if err != nil {
			return nil, fmt.Errorf("arc %d: %w", i, err)
		}
		end, err := point(node, "end")
		if err != nil {
			return nil, fmt.Errorf("arc %d: %w", i, err)
		}
		second := *first
		second.Start, second.End = first.End, end
		tracks = append(tracks, *first, second)
	}
	return tracks, nil
}

// parseTrack reads a track from (start) to the node named end.
// Expected format: (segment (start x y) (end x y) (width w) (layer "F.Cu") (net n) ...)
func parseTrack(node kicadsexp.List, end string) (*Track, error) {
	t := &Track{Width: defaultTrackWidth, Locked: sexp.Flag(node, "locked")}
	var err error
	if t.Start, err = point(node, "start"); err != nil {
		return nil, err
	}
	if t.End, err = point(node, end); err != nil {
		return nil, err
	}
	if w, found, err := sexp.FloatOf(node, "width"); err != nil {
		return nil, fmt.Errorf("failed to parse width: %w", err)
	} else if found {
		t.Width = w
	}
	layers := layersOf(node)
	if len(layers) == 0 {
		return nil, fmt.Errorf("missing required 'layer' field")
	}
	t.Layer = layers[0]
	if t.Net, err = netOf(node); err != nil {
		return nil, fmt.Errorf("failed to parse net: %w", err)
	}
	return t, nil
}

// parseVias extracts vias.
// Expected format: (via (at x y) (size d) (drill d) (layers "F.Cu" "B.Cu") (net n))
func parseVias(root kicadsexp.List) ([]Via, error) {
	var vias []Via
	for i, node := range sexp.FindAllNodes(root, "via") {
		v := Via{Locked: sexp.Flag(node, "locked")}
		var err error
		if v.At, err = point(node, "at"); err != nil {
			return nil, fmt.Errorf("via %d: %w", i, err)
		}
		size, found, err := sexp.FloatOf(node, "size")
		if err != nil || !found {
			return nil, fmt.Errorf("via %d: missing or invalid 'size'", i)
		}
		v.Size = size
		if v.Drill, _, err = sexp.FloatOf(node, "drill"); err != nil {
			return nil, fmt.Errorf("via %d: failed to parse drill: %w", i, err)
		}
		v.Layers = layersOf(node)
		if v.Net, err = netOf(node); err != nil {
			return nil, fmt.Errorf("via %d: failed to parse net: %w", i, err)
		}
		vias = append(vias, v)
	}
	return vias, nil
}

// parseKeepouts extracts rule areas that forbid tracks.
// Expected format: (zone (layers "F.Cu") (keepout (tracks not_allowed) ...) (polygon (pts (xy x y) ...)))
func parseKeepouts(root kicadsexp.List) ([]Keepout, error) {
	var out []Keepout
	for i, node := range sexp.FindAllNodes(root, "zone") {
		keep, found := sexp.FindNode(node, "keepout")
		if !found {
			continue
		}
		tracks, found := sexp.FindNode(keep, "tracks")
		if !found {
			continue
		}
		if rule, _ := sexp.GetString(tracks, 1); rule != "not_allowed" {
			continue
		}
		poly, found := sexp.FindNode(node, "polygon")
		if !found {
			return nil, fmt.Errorf("zone %d: keepout without polygon", i)
		}
		pts, err := polygonPoints(poly)
		if err != nil {
			return nil, fmt.Errorf("zone %d: %w", i, err)
		}
		if len(pts) == 0 {
			continue
		}
		out = append(out, Keepout{Layers: layersOf(node), Area: boundsOf(pts)})
	}
	return out, nil
}

// polygonPoints reads the (xy x y) entries of a (pts ...) child.
func polygonPoints(node kicadsexp.List) ([]r2.Vec, error) {
	pts, found := sexp.FindNode(node, "pts")
	if !found {
		return nil, fmt.Errorf("missing 'pts'")
	}
	var out []r2.Vec
	for _, xy := range sexp.FindAllNodes(pts, "xy") {
		x, y, err := sexp.GetXY(xy)
		if err != nil {
			return nil, err
		}
		out = append(out, r2.Vec{X: x, Y: y})
	}
	return out, nil
}

func boundsOf(pts []r2.Vec) r2.Box {
	box := r2.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		box.Min.X = min(box.Min.X, p.X)
		box.Min.Y = min(box.Min.Y, p.Y)
		box.Max.X = max(box.Max.X, p.X)
		box.Max.Y = max(box.Max.Y, p.Y)
	}
	return box
}
