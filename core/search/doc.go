// Package search drives candidate evaluations toward the feasibility
// boundary. Traverse sweeps a full PV x battery grid in parallel; Climb walks
// a single greedy path.
//
// Climb only grows PV on success and battery on failure, never both and never
// shrinking either. The point it reports depends on the starting point and
// step sizes and is not guaranteed to lie on the global frontier found by
// Traverse.
package search
