// Package feeder implements a balanced, radial power-flow engine using a
// backward/forward sweep. Feeders are described in YAML and solved on a
// per-unit system; every engine instance owns its circuit and storage state.
package feeder
