package pcb

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
	"gonum.org/v1/gonum/spatial/r2"
)

// parseFootprints extracts all placed footprints.
func parseFootprints(root kicadsexp.List) ([]Footprint, error) {
	var out []Footprint
	for i, node := range sexp.FindAllNodes(root, "footprint") {
		fp, err := parseFootprint(node)
		if err != nil {
			return nil, fmt.Errorf("footprint %d: %w", i, err)
		}
		out = append(out, *fp)
	}
	return out, nil
}

// parseFootprint extracts a footprint (component) definition
// Expected format: (footprint "library:name" (layer "F.Cu") (at x y [angle]) ...)
func parseFootprint(node kicadsexp.List) (*Footprint, error) {
	name, err := sexp.GetString(node, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse footprint name: %w", err)
	}
	fp := &Footprint{Name: name, Locked: sexp.Flag(node, "locked")}
	if l := layersOf(node); len(l) > 0 {
		fp.Layer = l[0]
	}

	at, found := sexp.FindNode(node, "at")
	if !found {
		return nil, fmt.Errorf("missing required 'at' position")
	}
	x, y, err := sexp.GetXY(at)
	if err != nil {
		return nil, fmt.Errorf("failed to parse position: %w", err)
	}
	fp.At = r2.Vec{X: x, Y: y}
	if angle, err := sexp.GetFloat(at, 3); err == nil {
		fp.Angle = angle
	}

	fp.Reference = reference(node)

	for _, padNode := range sexp.FindAllNodes(node, "pad") {
		pad, err := parsePad(padNode, fp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fp.Reference, err)
		}
		fp.Pads = append(fp.Pads, *pad)
	}
	return fp, nil
}

// reference reads (property "Reference" "U1") or the older
// (fp_text reference "U1").
func reference(node kicadsexp.List) string {
	for _, p := range sexp.FindAllNodes(node, "property") {
		if key, _ := sexp.GetString(p, 1); key == "Reference" {
			ref, _ := sexp.GetString(p, 2)
			return ref
		}
	}
	for _, t := range sexp.FindAllNodes(node, "fp_text") {
		if kind, _ := sexp.GetString(t, 1); kind == "reference" {
			ref, _ := sexp.GetString(t, 2)
			return ref
		}
	}
	return ""
}

// parsePad extracts a pad definition from a footprint
// Expected format: (pad "number" type shape (at x y [angle]) (size w h) (layers ...) (net n) ...)
// The pad position is relative to the footprint; the result is absolute.
func parsePad(node kicadsexp.List, fp *Footprint) (*Pad, error) {
	number, err := sexp.GetString(node, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pad number: %w", err)
	}
	pad := &Pad{Number: number}
	if pad.Type, err = sexp.GetString(node, 2); err != nil {
		return nil, fmt.Errorf("pad %s: failed to parse pad type: %w", number, err)
	}
	if pad.Shape, err = sexp.GetString(node, 3); err != nil {
		return nil, fmt.Errorf("pad %s: failed to parse pad shape: %w", number, err)
	}

	at, found := sexp.FindNode(node, "at")
	if !found {
		return nil, fmt.Errorf("pad %s: missing required 'at' position", number)
	}
	x, y, err := sexp.GetXY(at)
	if err != nil {
		return nil, fmt.Errorf("pad %s: %w", number, err)
	}
	// KiCad 6+ stores the pad angle with the footprint rotation included.
	if angle, err := sexp.GetFloat(at, 3); err == nil {
		pad.Angle = angle
	} else {
		pad.Angle = fp.Angle
	}
	pad.At = transform(fp.At, fp.Angle, r2.Vec{X: x, Y: y})

	size, found := sexp.FindNode(node, "size")
	if !found {
		return nil, fmt.Errorf("pad %s: missing required 'size' field", number)
	}
	w, h, err := sexp.GetXY(size)
	if err != nil {
		return nil, fmt.Errorf("pad %s: failed to parse size: %w", number, err)
	}
	pad.Size = r2.Vec{X: w, Y: h}

	if drill, found := sexp.FindNode(node, "drill"); found {
		// (drill d) or (drill oval w h)
		if d, err := sexp.GetFloat(drill, 1); err == nil {
			pad.Drill = d
		} else if d, err := sexp.GetFloat(drill, 2); err == nil {
			pad.Drill = d
		}
	}

	pad.Layers = layersOf(node)
	if len(pad.Layers) == 0 {
		return nil, fmt.Errorf("pad %s: missing required 'layers' field", number)
	}
	if pad.Net, err = netOf(node); err != nil {
		return nil, fmt.Errorf("pad %s: failed to parse net: %w", number, err)
	}
	return pad, nil
}

// transform maps a footprint-relative point to board coordinates. KiCad
// angles turn counter-clockwise on screen, where Y points down.
func transform(origin r2.Vec, angle float64, rel r2.Vec) r2.Vec {
	if angle != 0 {
		rad := -angle * math.Pi / 180
		sin, cos := math.Sincos(rad)
		rel = r2.Vec{X: rel.X*cos - rel.Y*sin, Y: rel.X*sin + rel.Y*cos}
	}
	return r2.Add(origin, rel)
}

// Box returns the axis-aligned copper box of the pad. Pads turned by other
// than a multiple of 90 degrees get the box of the rotated rectangle.
func (p Pad) Box() r2.Box {
	w, h := p.Size.X, p.Size.Y
	quarter := math.Mod(math.Abs(p.Angle), 180)
	switch {
	case math.Abs(quarter) < 1e-6:
	case math.Abs(quarter-90) < 1e-6:
		w, h = h, w
	default:
		sin, cos := math.Sincos(p.Angle * math.Pi / 180)
		w, h = math.Abs(w*cos)+math.Abs(h*sin), math.Abs(w*sin)+math.Abs(h*cos)
	}
	half := r2.Vec{X: w / 2, Y: h / 2}
	return r2.Box{Min: r2.Sub(p.At, half), Max: r2.Add(p.At, half)}
}
