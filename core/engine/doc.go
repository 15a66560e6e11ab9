// Package engine defines the power-flow engine collaborator used by the
// time-series runner and the element descriptors attached to a compiled
// circuit.
package engine
