package pcb

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// Board is a parsed KiCad board file. Coordinates are in millimetres.
type Board struct {
	Version    int
	Generator  string
	Layers     []Layer
	Nets       []Net
	Footprints []Footprint
	Tracks     []Track
	Vias       []Via
	Keepouts   []Keepout
	// Outline holds the points of all Edge.Cuts graphics.
	Outline []r2.Vec
}

// Layer is an entry of the (layers ...) table.
type Layer struct {
	Number int
	Name   string
	Type   string // signal, power, mixed, jumper or user
}

// IsCopper reports whether the layer carries copper.
func (l Layer) IsCopper() bool {
	return strings.HasSuffix(l.Name, ".Cu")
}

// Net is an electrical net. Net 0 is "no net".
type Net struct {
	Number int
	Name   string
}

// Footprint is a placed component.
type Footprint struct {
	Name      string
	Reference string
	Layer     string
	At        r2.Vec
	Angle     float64 // degrees
	Locked    bool
	Pads      []Pad
}

// Pad is a footprint pad. At is absolute; Angle includes the footprint
// rotation.
type Pad struct {
	Number string
	Type   string // thru_hole, smd, connect or np_thru_hole
	Shape  string // circle, rect, oval, roundrect, trapezoid or custom
	At     r2.Vec
	Angle  float64
	Size   r2.Vec
	Drill  float64
	Layers []string
	Net    int
}

// Track is a copper segment.
type Track struct {
	Start  r2.Vec
	End    r2.Vec
	Width  float64
	Layer  string
	Net    int
	Locked bool
}

// Via is a plated hole joining copper layers.
type Via struct {
	At     r2.Vec
	Size   float64
	Drill  float64
	Layers []string
	Net    int
	Locked bool
}

// Keepout is a rule area that forbids tracks. Polygons are reduced to
// their bounding box.
type Keepout struct {
	Layers []string
	Area   r2.Box
}

// NetInfo summarizes the copper of one net.
type NetInfo struct {
	Net    Net
	Pads   int
	Tracks int
	Vias   int
}

// NetInfos returns a summary of every named net in file order.
func (b *Board) NetInfos() []NetInfo {
	byNet := make(map[int]*NetInfo)
	var out []*NetInfo
	for _, n := range b.Nets {
		if n.Number == 0 {
			continue
		}
		info := &NetInfo{Net: n}
		byNet[n.Number] = info
		out = append(out, info)
	}
	for _, fp := range b.Footprints {
		for _, p := range fp.Pads {
			if info := byNet[p.Net]; info != nil {
				info.Pads++
			}
		}
	}
	for _, t := range b.Tracks {
		if info := byNet[t.Net]; info != nil {
			info.Tracks++
		}
	}
	for _, v := range b.Vias {
		if info := byNet[v.Net]; info != nil {
			info.Vias++
		}
	}
	infos := make([]NetInfo, len(out))
	for i, info := range out {
		infos[i] = *info
	}
	return infos
}
