package feeder

import (
	"math"
	"math/cmplx"
)

const (
	sweepTolerance = 1e-6
	sweepMaxIter   = 100
	collapsePU     = 0.5
	regulatorRange = 0.1
)

// sweepInput holds the per-bus injections of one step in per-unit.
type sweepInput struct {
	power []complex128 // constant power injection, generation positive
	shunt []complex128 // constant admittance, e.g. capacitors
}

// sweepState is the solution of one step.
type sweepState struct {
	v       []complex128
	current []complex128 // branch currents on the parent side
	tap     []float64
}

// sweep runs a backward/forward sweep on the tree and reports convergence.
func (t *topology) sweep(sourcePU float64, in sweepInput) (sweepState, bool) {
	n := len(t.buses)
	st := sweepState{
		v:       make([]complex128, n),
		current: make([]complex128, len(t.branches)),
		tap:     make([]float64, len(t.branches)),
	}
	for i := range st.v {
		st.v[i] = complex(sourcePU, 0)
	}
	for i, br := range t.branches {
		st.tap[i] = br.tap
	}
	inject := make([]complex128, n)
	through := make([]complex128, len(t.branches)) // child side
	for iter := 0; iter < sweepMaxIter; iter++ {
		for i := 0; i < n; i++ {
			// current drawn from the network by bus i
			inject[i] = -cmplx.Conj(in.power[i]/st.v[i]) + in.shunt[i]*st.v[i]
		}
		for i := range through {
			through[i] = 0
		}
		for k := len(t.order) - 1; k >= 0; k-- {
			bus := t.order[k]
			b := t.up[bus]
			if b < 0 {
				continue
			}
			through[b] += inject[bus]
			st.current[b] = through[b] * complex(st.tap[b], 0)
			if pb := t.up[t.branches[b].parent]; pb >= 0 {
				through[pb] += st.current[b]
			}
		}

		var delta float64
		for _, bus := range t.order {
			b := t.up[bus]
			if b < 0 {
				continue
			}
			br := t.branches[b]
			primary := st.v[br.parent] - br.z*st.current[b]
			if br.regulate > 0 {
				if m := cmplx.Abs(primary); m > 0 {
					st.tap[b] = math.Max(1-regulatorRange, math.Min(1+regulatorRange, br.regulate/m))
				}
			}
			next := primary * complex(st.tap[b], 0)
			delta = math.Max(delta, cmplx.Abs(next-st.v[bus]))
			st.v[bus] = next
		}
		if !valid(st.v) {
			return st, false
		}
		if delta < sweepTolerance {
			return st, true
		}
	}
	return st, false
}

func valid(v []complex128) bool {
	for _, x := range v {
		m := cmplx.Abs(x)
		if math.IsNaN(m) || math.IsInf(m, 0) || m < collapsePU {
			return false
		}
	}
	return true
}
