// Package autoroute implements the maze-search router.
//
// Routing one connection runs a fixed pipeline:
//
//	BuildGraph      free space, obstacle rooms, doors and drills per layer
//	Search          A* over door sections and drill layers
//	Locate          funnel corners, clearance corrections, angle snapping, vias
//	insertRoute     forced insert with shove, neck-down at small pins
//
// Engine.RouteNet repeats the pipeline until every terminal of a net is
// connected. BatchAutorouter runs passes of RouteNet over all incomplete
// nets with a rising ripup cost.
//
// An Engine keeps a drill page cache bound to the last board it routed and
// is not safe for concurrent use. Use one Engine per goroutine.
package autoroute
