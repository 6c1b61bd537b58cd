package pcb

import (
	"fmt"
	"io"
	"os"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
	"gonum.org/v1/gonum/spatial/r2"
)

// Minimum supported KiCad version (6.0 = 20211014)
const MinSupportedVersion = 20211014

// ParseFile reads and parses a KiCad board file.
func ParseFile(filename string) (*Board, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("pcb: failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads and parses a KiCad board.
func Parse(r io.Reader) (*Board, error) {
	sexps, err := kicadsexp.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("pcb: failed to parse s-expression: %w", err)
	}
	if len(sexps) == 0 {
		return nil, fmt.Errorf("pcb: empty file")
	}

	root, ok := sexps[0].(kicadsexp.List)
	if !ok || root.Head() != "kicad_pcb" {
		return nil, fmt.Errorf("pcb: not a KiCad PCB file: expected 'kicad_pcb', got %q", sexps[0].String())
	}

	version, generator, err := parseHeader(root)
	if err != nil {
		return nil, fmt.Errorf("pcb: failed to parse header: %w", err)
	}
	board := &Board{Version: version, Generator: generator}

	if layersNode, found := sexp.FindNode(root, "layers"); found {
		if board.Layers, err = parseLayers(layersNode); err != nil {
			return nil, fmt.Errorf("pcb: failed to parse layers: %w", err)
		}
	}
	if board.Nets, err = parseNets(root); err != nil {
		return nil, fmt.Errorf("pcb: failed to parse nets: %w", err)
	}
	if board.Footprints, err = parseFootprints(root); err != nil {
		return nil, fmt.Errorf("pcb: failed to parse footprints: %w", err)
	}
	if board.Tracks, err = parseTracks(root); err != nil {
		return nil, fmt.Errorf("pcb: failed to parse tracks: %w", err)
	}
	if board.Vias, err = parseVias(root); err != nil {
		return nil, fmt.Errorf("pcb: failed to parse vias: %w", err)
	}
	if board.Keepouts, err = parseKeepouts(root); err != nil {
		return nil, fmt.Errorf("pcb: failed to parse zones: %w", err)
	}
	if board.Outline, err = parseOutline(root); err != nil {
		return nil, fmt.Errorf("pcb: failed to parse board outline: %w", err)
	}
	return board, nil
}

// parseHeader extracts version and generator information from the root node
// Expected format: (kicad_pcb (version 20221018) (generator pcbnew) ...)
func parseHeader(root kicadsexp.List) (version int, generator string, err error) {
	versionNode, found := sexp.FindNode(root, "version")
	if !found {
		return 0, "", fmt.Errorf("missing required 'version' field")
	}
	ver, err := sexp.GetInt(versionNode, 1)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse version: %w", err)
	}
	if ver < MinSupportedVersion {
		return 0, "", fmt.Errorf("unsupported KiCad version: %d (minimum required: %d / KiCad 6.0)", ver, MinSupportedVersion)
	}

	gen := "unknown"
	if node, found := sexp.FindNode(root, "generator"); found {
		if name, err := sexp.GetString(node, 1); err == nil {
			gen = name
		}
	} else if node, found := sexp.FindNode(root, "host"); found {
		if name, err := sexp.GetString(node, 1); err == nil {
			gen = name
		}
	}
	return ver, gen, nil
}

// parseLayers extracts layer definitions
// Expected format: (layers (0 "F.Cu" signal) (31 "B.Cu" signal) ...)
func parseLayers(node kicadsexp.List) ([]Layer, error) {
	var layers []Layer
	for _, item := range node[1:] {
		entry, ok := item.(kicadsexp.List)
		if !ok {
			continue
		}
		number, err := sexp.GetInt(entry, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to parse layer number: %w", err)
		}
		name, err := sexp.GetString(entry, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to parse layer name: %w", err)
		}
		typ, err := sexp.GetString(entry, 2)
		if err != nil {
			typ = "user"
		}
		layers = append(layers, Layer{Number: number, Name: name, Type: typ})
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers defined")
	}
	return layers, nil
}

// parseNets extracts the top-level (net <number> "<name>") entries.
func parseNets(root kicadsexp.List) ([]Net, error) {
	var nets []Net
	for _, node := range sexp.FindAllNodes(root, "net") {
		number, err := sexp.GetInt(node, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to parse net number: %w", err)
		}
		name, _ := sexp.GetString(node, 2)
		nets = append(nets, Net{Number: number, Name: name})
	}
	return nets, nil
}

// point parses a (key x y) child of node.
func point(node kicadsexp.Sexp, key string) (r2.Vec, error) {
	n, found := sexp.FindNode(node, key)
	if !found {
		return r2.Vec{}, fmt.Errorf("missing required '%s' position", key)
	}
	x, y, err := sexp.GetXY(n)
	if err != nil {
		return r2.Vec{}, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return r2.Vec{X: x, Y: y}, nil
}

// netOf returns the number of the (net n ...) child, 0 if absent.
func netOf(node kicadsexp.Sexp) (int, error) {
	n, found := sexp.FindNode(node, "net")
	if !found {
		return 0, nil
	}
	return sexp.GetInt(n, 1)
}

// layersOf returns the names of a (layer x) or (layers x y ...) child.
func layersOf(node kicadsexp.Sexp) []string {
	if n, found := sexp.FindNode(node, "layers"); found {
		return sexp.Atoms(n)
	}
	if n, found := sexp.FindNode(node, "layer"); found {
		if name, err := sexp.GetString(n, 1); err == nil {
			return []string{name}
		}
	}
	return nil
}
