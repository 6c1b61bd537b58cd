// Package geometry provides the planar primitives the router needs on top of
// gonum's r2 vectors and boxes: distances between points, segments and boxes,
// box inflation and overlap tests, line intersections and the tangent
// constructions used to walk around round obstacles.
//
// All coordinates are in millimetres. Boxes are treated as closed sets, and
// degenerate boxes (zero width or height) are valid inputs everywhere; this
// differs from r2.Box.Contains, which treats a degenerate box as empty.
package geometry
