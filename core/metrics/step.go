package metrics

import (
	"math"
	"time"

	"github.com/kilianp07/dersize/core/model"
)

// NewStepEvent condenses a step record into its extreme voltages and loading.
// Non-converged steps keep NaN extremes.
func NewStepEvent(runID, label string, cand model.CandidateSize, rec model.StepRecord, ts time.Time) StepEvent {
	ev := StepEvent{
		RunID:      runID,
		Label:      label,
		Candidate:  cand,
		Step:       rec.Step,
		Converged:  rec.Converged,
		MinVoltage: math.NaN(),
		MaxVoltage: math.NaN(),
		MaxLoading: math.NaN(),
		TotalKW:    rec.TotalPower.P,
		LossesKW:   rec.Losses.P,
		Time:       ts,
	}
	for _, v := range rec.BusVoltages {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(ev.MinVoltage) || v < ev.MinVoltage {
			ev.MinVoltage = v
		}
		if math.IsNaN(ev.MaxVoltage) || v > ev.MaxVoltage {
			ev.MaxVoltage = v
		}
	}
	for _, l := range rec.ElementLoadings {
		if !math.IsNaN(l) && (math.IsNaN(ev.MaxLoading) || l > ev.MaxLoading) {
			ev.MaxLoading = l
		}
	}
	return ev
}
