// Package optimize improves a routed board by rerouting its connections
// one at a time on private board copies and keeping the copies that score
// better.
//
// A Scheduler runs passes. Each pass collects one item per connection,
// hands every item to a worker together with a clone of the master board,
// and arbitrates the results: fewer incomplete connections win, then fewer
// vias, then a shorter length. The greedy strategy adopts winners at once,
// the global strategy only adopts the best one when the pass ends.
package optimize
