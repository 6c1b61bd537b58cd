package autoroute

import "errors"

var (
	// ErrSearchExhausted is returned when the maze search runs out of
	// elements or expansions before reaching a target.
	ErrSearchExhausted = errors.New("autoroute: search exhausted")

	// ErrGeometryInsert is returned when a located route could not be
	// committed to the board.
	ErrGeometryInsert = errors.New("autoroute: geometry insert failed")

	// ErrNoViaCandidate is returned when no via type fits a layer change.
	ErrNoViaCandidate = errors.New("autoroute: no via candidate")

	// ErrDrillBlocked is returned when an obstacle covers a drill location.
	ErrDrillBlocked = errors.New("autoroute: drill blocked")

	// ErrInvalidCosts is returned by NewControl for non-positive costs.
	ErrInvalidCosts = errors.New("autoroute: invalid costs")
)
