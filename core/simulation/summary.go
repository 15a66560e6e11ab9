package simulation

import (
	"math"
	"sort"

	"github.com/kilianp07/dersize/core/model"
	"gonum.org/v1/gonum/stat"
)

// ViolationSummary condenses the breaches of one entity.
type ViolationSummary struct {
	Entity     string  `json:"entity"`
	Count      int     `json:"count"`
	High       int     `json:"high"`
	Low        int     `json:"low"`
	WorstStep  int     `json:"worst_step"`
	WorstValue float64 `json:"worst_value"`
	Mean       float64 `json:"mean"`
}

// SummarizeViolations reports every entity with at least one breach, sorted
// by entity name. The worst breach is the one furthest outside the band
// [low, high]; loadings use low = -Inf.
func SummarizeViolations(log model.ViolationLog, low, high float64) []ViolationSummary {
	var out []ViolationSummary
	for entity, vs := range log {
		if len(vs) == 0 {
			continue
		}
		s := ViolationSummary{Entity: entity, Count: len(vs), WorstStep: -1}
		worst := -1.0
		values := make([]float64, len(vs))
		for i, v := range vs {
			values[i] = v.Value
			var dev float64
			if v.Value > high {
				s.High++
				dev = v.Value - high
			} else if v.Value < low {
				s.Low++
				dev = low - v.Value
			}
			if dev > worst {
				worst = dev
				s.WorstStep = v.Step
				s.WorstValue = v.Value
			}
		}
		s.Mean = stat.Mean(values, nil)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

// VoltageSummary summarizes the voltage violations of a run.
func VoltageSummary(res *model.SimulationResult, limits model.Limits) []ViolationSummary {
	return SummarizeViolations(res.VoltageViolations, limits.LowPU, limits.HighPU)
}

// LoadingSummary summarizes the loading violations of a run.
func LoadingSummary(res *model.SimulationResult, limits model.Limits) []ViolationSummary {
	return SummarizeViolations(res.LoadingViolations, math.Inf(-1), limits.LoadingPct)
}
