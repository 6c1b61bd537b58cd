package rules

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
)

// ErrUnknownReference is returned when a rule names a via, via rule or
// layer that does not exist.
var ErrUnknownReference = errors.New("rules: unknown reference")

// DefaultViaRule is the via rule used by nets without a class.
const DefaultViaRule = "default"

// ViaDef is a via padstack from the rules file.
type ViaDef struct {
	Name     string
	Diameter float64
	Drill    float64
	// FirstLayer and LastLayer name the copper span. Empty means the
	// outer layers.
	FirstLayer string
	LastLayer  string
	AttachSMD  bool
}

// ClassDef is a net class from the rules file. Zero values inherit the
// board defaults.
type ClassDef struct {
	Name      string
	Nets      []string
	Width     float64
	Clearance float64
	ViaRule   string
}

// RuleSet holds the evaluated rules.
type RuleSet struct {
	Clearance float64
	Width     float64
	Vias      []ViaDef
	// ViaRules maps a rule name to via names, preferred first.
	ViaRules map[string][]string
	Classes  []ClassDef
}

// Default returns the rules used when no file is given.
func Default() *RuleSet {
	return &RuleSet{
		Clearance: 0.2,
		Width:     0.25,
		Vias:      []ViaDef{{Name: "Via0.6", Diameter: 0.6, Drill: 0.3}},
		ViaRules:  map[string][]string{DefaultViaRule: {"Via0.6"}},
	}
}

func evaluate(doc *Document) (*RuleSet, error) {
	root := doc.Root
	if root == nil || root.Head != "rules" {
		return nil, fmt.Errorf("rules: expected (rules ...) at top level")
	}
	rs := &RuleSet{ViaRules: make(map[string][]string)}
	for _, e := range root.Lists() {
		var err error
		switch e.Head {
		case "clearance":
			rs.Clearance, err = number(e)
		case "width":
			rs.Width, err = number(e)
		case "via":
			var v ViaDef
			v, err = evalVia(e)
			rs.Vias = append(rs.Vias, v)
		case "via_rule":
			atoms := e.Atoms()
			if len(atoms) < 2 {
				err = fmt.Errorf("rules: %s: via_rule needs a name and at least one via", e.Pos)
				break
			}
			rs.ViaRules[atoms[0]] = atoms[1:]
		case "class":
			var c ClassDef
			c, err = evalClass(e)
			rs.Classes = append(rs.Classes, c)
		default:
			err = fmt.Errorf("rules: %s: unknown element %q", e.Pos, e.Head)
		}
		if err != nil {
			return nil, err
		}
	}
	if rs.Clearance <= 0 {
		rs.Clearance = Default().Clearance
	}
	if rs.Width <= 0 {
		rs.Width = Default().Width
	}
	if len(rs.Vias) == 0 {
		rs.Vias = Default().Vias
	}
	if _, ok := rs.ViaRules[DefaultViaRule]; !ok {
		names := make([]string, len(rs.Vias))
		for i, v := range rs.Vias {
			names[i] = v.Name
		}
		rs.ViaRules[DefaultViaRule] = names
	}
	return rs, rs.Validate()
}

func evalVia(e *Expr) (ViaDef, error) {
	atoms := e.Atoms()
	if len(atoms) != 1 {
		return ViaDef{}, fmt.Errorf("rules: %s: via needs exactly one name", e.Pos)
	}
	v := ViaDef{Name: atoms[0]}
	for _, sub := range e.Lists() {
		var err error
		switch sub.Head {
		case "diameter":
			v.Diameter, err = number(sub)
		case "drill":
			v.Drill, err = number(sub)
		case "layers":
			l := sub.Atoms()
			if len(l) != 2 {
				return v, fmt.Errorf("rules: %s: layers needs two layer names", sub.Pos)
			}
			v.FirstLayer, v.LastLayer = l[0], l[1]
		case "attach_smd":
			v.AttachSMD = true
		default:
			err = fmt.Errorf("rules: %s: unknown via attribute %q", sub.Pos, sub.Head)
		}
		if err != nil {
			return v, err
		}
	}
	return v, nil
}

func evalClass(e *Expr) (ClassDef, error) {
	atoms := e.Atoms()
	if len(atoms) != 1 {
		return ClassDef{}, fmt.Errorf("rules: %s: class needs exactly one name", e.Pos)
	}
	c := ClassDef{Name: atoms[0]}
	for _, sub := range e.Lists() {
		var err error
		switch sub.Head {
		case "nets":
			c.Nets = append(c.Nets, sub.Atoms()...)
		case "width":
			c.Width, err = number(sub)
		case "clearance":
			c.Clearance, err = number(sub)
		case "via_rule":
			l := sub.Atoms()
			if len(l) != 1 {
				return c, fmt.Errorf("rules: %s: via_rule needs one name", sub.Pos)
			}
			c.ViaRule = l[0]
		default:
			err = fmt.Errorf("rules: %s: unknown class attribute %q", sub.Pos, sub.Head)
		}
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

func number(e *Expr) (float64, error) {
	atoms := e.Atoms()
	if len(atoms) != 1 {
		return 0, fmt.Errorf("rules: %s: %s needs one value", e.Pos, e.Head)
	}
	f, err := strconv.ParseFloat(atoms[0], 64)
	if err != nil {
		return 0, fmt.Errorf("rules: %s: invalid %s value %q", e.Pos, e.Head, atoms[0])
	}
	if f < 0 {
		return 0, fmt.Errorf("rules: %s: negative %s value %g", e.Pos, e.Head, f)
	}
	return f, nil
}

// Validate checks cross references between vias, via rules and classes.
func (rs *RuleSet) Validate() error {
	vias := make(map[string]bool, len(rs.Vias))
	for _, v := range rs.Vias {
		if vias[v.Name] {
			return fmt.Errorf("rules: duplicate via %q", v.Name)
		}
		if v.Diameter <= 0 {
			return fmt.Errorf("rules: via %q has no diameter", v.Name)
		}
		if v.Drill > v.Diameter {
			return fmt.Errorf("rules: via %q drill %g exceeds diameter %g", v.Name, v.Drill, v.Diameter)
		}
		vias[v.Name] = true
	}
	for name, list := range rs.ViaRules {
		for _, v := range list {
			if !vias[v] {
				return fmt.Errorf("%w: via rule %q names via %q", ErrUnknownReference, name, v)
			}
		}
	}
	classes := make(map[string]bool, len(rs.Classes))
	for _, c := range rs.Classes {
		if classes[c.Name] {
			return fmt.Errorf("rules: duplicate class %q", c.Name)
		}
		classes[c.Name] = true
		if c.ViaRule != "" {
			if _, ok := rs.ViaRules[c.ViaRule]; !ok {
				return fmt.Errorf("%w: class %q names via rule %q", ErrUnknownReference, c.Name, c.ViaRule)
			}
		}
	}
	return nil
}

// Apply installs the rules on b: clearance classes, net classes with their
// via lists, and the class of every net named by a class. It must run
// before items are added, since items keep the clearance class they were
// created with.
func (rs *RuleSet) Apply(b *board.Board) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	infos := make(map[string]board.ViaInfo, len(rs.Vias))
	for _, v := range rs.Vias {
		info, err := rs.viaInfo(b, v)
		if err != nil {
			return err
		}
		infos[v.Name] = info
	}
	viaList := func(rule string) []board.ViaInfo {
		if rule == "" {
			rule = DefaultViaRule
		}
		var out []board.ViaInfo
		for _, name := range rs.ViaRules[rule] {
			out = append(out, infos[name])
		}
		return out
	}

	clearances := []board.ClearanceClass{{Name: "default", Clearance: rs.Clearance}}
	netClasses := []board.NetClass{{
		Name:           "default",
		TraceHalfWidth: rs.Width / 2,
		Vias:           viaList(DefaultViaRule),
	}}
	byNet := make(map[string]int)
	for _, c := range rs.Classes {
		nc := board.NetClass{
			Name:           c.Name,
			TraceHalfWidth: rs.Width / 2,
			Vias:           viaList(c.ViaRule),
		}
		if c.Width > 0 {
			nc.TraceHalfWidth = c.Width / 2
		}
		if c.Clearance > 0 {
			nc.ClearanceClass = len(clearances)
			clearances = append(clearances, board.ClearanceClass{Name: c.Name, Clearance: c.Clearance})
		}
		for _, n := range c.Nets {
			byNet[n] = len(netClasses)
		}
		netClasses = append(netClasses, nc)
	}
	b.SetClearanceClasses(clearances)
	b.SetNetClasses(netClasses)

	for _, n := range b.Nets() {
		n.Class = byNet[n.Name]
		b.AddNet(n)
	}
	return nil
}

func (rs *RuleSet) viaInfo(b *board.Board, v ViaDef) (board.ViaInfo, error) {
	info := board.ViaInfo{
		Name:      v.Name,
		Radius:    v.Diameter / 2,
		Drill:     v.Drill,
		LastLayer: b.LayerCount() - 1,
		AttachSMD: v.AttachSMD,
	}
	if v.FirstLayer != "" {
		l, ok := b.LayerByName(v.FirstLayer)
		if !ok {
			return info, fmt.Errorf("%w: via %q layer %q", ErrUnknownReference, v.Name, v.FirstLayer)
		}
		info.FirstLayer = l
	}
	if v.LastLayer != "" {
		l, ok := b.LayerByName(v.LastLayer)
		if !ok {
			return info, fmt.Errorf("%w: via %q layer %q", ErrUnknownReference, v.Name, v.LastLayer)
		}
		info.LastLayer = l
	}
	if info.FirstLayer > info.LastLayer {
		info.FirstLayer, info.LastLayer = info.LastLayer, info.FirstLayer
	}
	return info, nil
}

// String renders the rule set in the file syntax.
func (rs *RuleSet) String() string {
	var sb strings.Builder
	sb.WriteString("(rules\n")
	fmt.Fprintf(&sb, "  (clearance %g)\n", rs.Clearance)
	fmt.Fprintf(&sb, "  (width %g)\n", rs.Width)
	for _, v := range rs.Vias {
		fmt.Fprintf(&sb, "  (via %s (diameter %g) (drill %g)", quote(v.Name), v.Diameter, v.Drill)
		if v.FirstLayer != "" || v.LastLayer != "" {
			fmt.Fprintf(&sb, " (layers %s %s)", quote(v.FirstLayer), quote(v.LastLayer))
		}
		if v.AttachSMD {
			sb.WriteString(" (attach_smd)")
		}
		sb.WriteString(")\n")
	}
	names := make([]string, 0, len(rs.ViaRules))
	for name := range rs.ViaRules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "  (via_rule %s", quote(name))
		for _, v := range rs.ViaRules[name] {
			sb.WriteString(" " + quote(v))
		}
		sb.WriteString(")\n")
	}
	for _, c := range rs.Classes {
		fmt.Fprintf(&sb, "  (class %s", quote(c.Name))
		if len(c.Nets) > 0 {
			sb.WriteString(" (nets")
			for _, n := range c.Nets {
				sb.WriteString(" " + quote(n))
			}
			sb.WriteString(")")
		}
		if c.Width > 0 {
			fmt.Fprintf(&sb, " (width %g)", c.Width)
		}
		if c.Clearance > 0 {
			fmt.Fprintf(&sb, " (clearance %g)", c.Clearance)
		}
		if c.ViaRule != "" {
			fmt.Fprintf(&sb, " (via_rule %s)", quote(c.ViaRule))
		}
		sb.WriteString(")\n")
	}
	sb.WriteString(")\n")
	return sb.String()
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n()\"#") {
		return s
	}
	return strconv.Quote(s)
}
