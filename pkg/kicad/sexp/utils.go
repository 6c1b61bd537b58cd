// Package sexp holds navigation helpers over kicadsexp trees shared by the
// KiCad readers.
package sexp

import (
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
)

// FindNode returns the first child list of s whose keyword is key.
// Example: FindNode(seg, "start") finds (start 1 2).
func FindNode(s kicadsexp.Sexp, key string) (kicadsexp.List, bool) {
	l, ok := s.(kicadsexp.List)
	if !ok {
		return nil, false
	}
	for _, item := range l {
		if sub, ok := item.(kicadsexp.List); ok && sub.Head() == key {
			return sub, true
		}
	}
	return nil, false
}

// FindAllNodes returns all child lists of s whose keyword is key.
func FindAllNodes(s kicadsexp.Sexp, key string) []kicadsexp.List {
	l, ok := s.(kicadsexp.List)
	if !ok {
		return nil
	}
	var out []kicadsexp.List
	for _, item := range l {
		if sub, ok := item.(kicadsexp.List); ok && sub.Head() == key {
			out = append(out, sub)
		}
	}
	return out
}

// GetString returns the atom at index. Index 0 is the keyword.
func GetString(l kicadsexp.List, index int) (string, error) {
	if index < 0 || index >= len(l) {
		return "", fmt.Errorf("index %d out of bounds in (%s ...)", index, l.Head())
	}
	sym, ok := l[index].(kicadsexp.Symbol)
	if !ok {
		return "", fmt.Errorf("expected atom at index %d in (%s ...)", index, l.Head())
	}
	return string(sym), nil
}

// GetFloat returns the number at index.
func GetFloat(l kicadsexp.List, index int) (float64, error) {
	str, err := GetString(l, index)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", str, err)
	}
	return v, nil
}

// GetInt returns the integer at index.
func GetInt(l kicadsexp.List, index int) (int, error) {
	str, err := GetString(l, index)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}
	return v, nil
}

// GetXY returns the two numbers after the keyword of nodes like (start x y).
func GetXY(l kicadsexp.List) (x, y float64, err error) {
	if x, err = GetFloat(l, 1); err != nil {
		return 0, 0, err
	}
	if y, err = GetFloat(l, 2); err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// FloatOf returns the number in the child node key, as in (width 0.25).
func FloatOf(s kicadsexp.Sexp, key string) (float64, bool, error) {
	node, ok := FindNode(s, key)
	if !ok {
		return 0, false, nil
	}
	v, err := GetFloat(node, 1)
	return v, true, err
}

// Atoms returns the atoms after the keyword.
// Example: Atoms((layers "F.Cu" "B.Cu")) is ["F.Cu", "B.Cu"].
func Atoms(l kicadsexp.List) []string {
	var out []string
	for _, item := range l[min(1, len(l)):] {
		if sym, ok := item.(kicadsexp.Symbol); ok {
			out = append(out, string(sym))
		}
	}
	return out
}

// HasSymbol reports whether symbol appears as a direct atom of s.
func HasSymbol(s kicadsexp.Sexp, symbol string) bool {
	l, ok := s.(kicadsexp.List)
	if !ok {
		return false
	}
	for _, item := range l {
		if sym, ok := item.(kicadsexp.Symbol); ok && string(sym) == symbol {
			return true
		}
	}
	return false
}

// Flag reports a yes/no property that is either a bare atom, as in
// (segment locked ...), or a child node, as in (locked yes).
func Flag(s kicadsexp.Sexp, key string) bool {
	if HasSymbol(s, key) {
		return true
	}
	node, ok := FindNode(s, key)
	if !ok {
		return false
	}
	v, err := GetString(node, 1)
	return err != nil || v == "yes" || v == "true"
}
