// Package board holds the mutable routing board the autorouter works on.
//
// A Board is a set of items on an ordered stack of copper layers:
//
//   - traces: straight segments with a half width, on one layer
//   - vias: round pads spanning a layer range
//   - pins: component pads, round or rectangular, on one or more layers
//   - keepouts: rectangular areas no copper of another net may enter
//
// Items carry the nets they belong to, a clearance class and a fixed state.
// Spacing between two items is the larger of their clearance class values.
//
// Besides plain add/remove/query operations the board offers the primitives
// the router commits geometry with:
//
//   - InsertForcedTracePolyline places a polyline segment by segment and
//     shoves conflicting traces and vias of other nets aside, bounded by the
//     depths in ShoveParams. Its return value is the last corner that was
//     reached: the requested end on success, the start on total failure.
//   - InsertVia places a via with the same shove rules.
//   - NormalizeTraces and RemoveDanglingTraces tidy a net after routing.
//
// Every forced insert runs inside a transaction; a failed insert leaves the
// board exactly as it was before the call.
//
// Connectivity helpers (Components, ConnectionOf, IncompleteCount) derive
// electrical connectivity from geometric contact between items of a net.
//
// A Board is not safe for concurrent mutation. Clone returns an independent
// deep copy that keeps item IDs, which is how the optimizer gives every
// worker its own board.
package board
