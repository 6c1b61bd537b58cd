package board

import "fmt"

// ItemID identifies an item on a board. IDs survive Clone.
type ItemID int

// ItemKind distinguishes the item variants.
type ItemKind int

const (
	KindTrace ItemKind = iota
	KindVia
	KindPin
	KindKeepout
)

func (k ItemKind) String() string {
	switch k {
	case KindTrace:
		return "trace"
	case KindVia:
		return "via"
	case KindPin:
		return "pin"
	case KindKeepout:
		return "keepout"
	default:
		return fmt.Sprintf("ItemKind(%d)", int(k))
	}
}

// FixedState tells how freely the router may move or remove an item.
type FixedState int

const (
	// Unfixed items may be shoved and ripped up.
	Unfixed FixedState = iota
	// ShoveFixed items may be ripped up but not shoved.
	ShoveFixed
	// UserFixed items were locked in the design.
	UserFixed
	// SystemFixed items are never touched.
	SystemFixed
)

func (f FixedState) String() string {
	switch f {
	case Unfixed:
		return "unfixed"
	case ShoveFixed:
		return "shove_fixed"
	case UserFixed:
		return "user_fixed"
	case SystemFixed:
		return "system_fixed"
	default:
		return fmt.Sprintf("FixedState(%d)", int(f))
	}
}

// Layer is one copper layer of the stack.
type Layer struct {
	Name   string
	Signal bool
}

// Net is an electrical net.
type Net struct {
	Number int
	Name   string
	// Class indexes the board's net classes.
	Class int
}

// ClearanceClass is a named spacing rule.
type ClearanceClass struct {
	Name      string
	Clearance float64
}

// ViaInfo describes a via type a net may use.
type ViaInfo struct {
	Name       string
	Radius     float64
	Drill      float64
	FirstLayer int
	LastLayer  int
	// AttachSMD allows the via to be placed on an SMD pad.
	AttachSMD bool
}

// Covers reports whether the via connects layers a and b.
func (v ViaInfo) Covers(a, b int) bool {
	if a > b {
		a, b = b, a
	}
	return v.FirstLayer <= a && b <= v.LastLayer
}

// NetClass groups the routing rules shared by a set of nets.
type NetClass struct {
	Name           string
	TraceHalfWidth float64
	ClearanceClass int
	// Vias lists the via types of the class' via rule, preferred first.
	Vias []ViaInfo
}

// Stats summarises the routing state of a board.
type Stats struct {
	Incomplete  int
	Vias        int
	TraceLength float64
}

func (s Stats) String() string {
	return fmt.Sprintf("incomplete=%d vias=%d length=%.3fmm", s.Incomplete, s.Vias, s.TraceLength)
}
