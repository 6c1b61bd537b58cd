package optimize

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/board"
)

// lengthTolerance is the smallest length gain that counts as better.
const lengthTolerance = 1e-4

// Score is the routing quality of a board. Lower is better.
type Score struct {
	Incomplete int
	Vias       int
	Length     float64
}

// ScoreOf returns the score of b.
func ScoreOf(b *board.Board) Score {
	s := b.Stats()
	return Score{Incomplete: s.Incomplete, Vias: s.Vias, Length: s.TraceLength}
}

// Better reports whether s is strictly better than o: fewer incomplete
// connections, then fewer vias, then a shorter length beyond the
// tolerance.
func (s Score) Better(o Score) bool {
	if s.Incomplete != o.Incomplete {
		return s.Incomplete < o.Incomplete
	}
	if s.Vias != o.Vias {
		return s.Vias < o.Vias
	}
	return s.Length < o.Length-lengthTolerance
}

func (s Score) String() string {
	return fmt.Sprintf("incomplete=%d vias=%d length=%.3f", s.Incomplete, s.Vias, s.Length)
}

// RouteResult is the outcome of optimizing one item.
type RouteResult struct {
	Improved bool
	Before   Score
	After    Score
}
