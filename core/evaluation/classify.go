// Package evaluation reduces a completed run to a Verdict.
package evaluation

import (
	"math"

	"github.com/kilianp07/dersize/core/model"
)

// Options configures the oversize advisory.
type Options struct {
	// FinalSoCLimitPct is the highest acceptable end-of-horizon state of charge.
	FinalSoCLimitPct float64 `json:"final_soc_limit_pct"`
	// MinReservePct is the state of charge the battery should be down to at CheckHour.
	MinReservePct float64 `json:"min_reserve_pct"`
	// CheckHour is the time of day at which the reserve is checked. The
	// horizon is taken to span one day, whatever its step count.
	CheckHour float64 `json:"check_hour"`
}

// DefaultOptions checks for 60% final SoC and reserve at 06:45.
func DefaultOptions() Options {
	return Options{FinalSoCLimitPct: 60, MinReservePct: 20, CheckHour: 6.75}
}

// Classify evaluates every rule independently. It does not modify res.
func Classify(res *model.SimulationResult, cand model.CandidateSize, opts Options) model.Verdict {
	reasons := model.NewReasonSet()
	if hasInvalidData(res) {
		reasons.Add(model.ReasonInvalidData)
	}
	if !res.AllConverged() || len(res.Records) < res.Steps {
		reasons.Add(model.ReasonConvergenceFailure)
	}
	if res.VoltageViolations.Any() {
		reasons.Add(model.ReasonVoltageViolation)
	}
	if res.LoadingViolations.Any() {
		reasons.Add(model.ReasonLoadingViolation)
	}
	if oversized(res, cand, opts) {
		reasons.Add(model.ReasonBatteryOversized)
	}
	return model.NewVerdict(reasons)
}

// CheckStep maps the check hour, as a fraction of a day, to the nearest
// step of a horizon of steps steps, clamped to [0, steps-1].
func CheckStep(checkHour float64, steps int) int {
	if steps <= 0 {
		return 0
	}
	idx := int(math.Round(checkHour / 24 * float64(steps)))
	if idx < 0 {
		return 0
	}
	if idx > steps-1 {
		return steps - 1
	}
	return idx
}

func hasInvalidData(res *model.SimulationResult) bool {
	for _, rec := range res.Records {
		if !rec.Converged {
			continue
		}
		if !rec.TotalPower.Finite() || !rec.Losses.Finite() {
			return true
		}
		for _, group := range []map[string]model.PowerPQ{rec.Loads, rec.PV, rec.Storage, rec.Capacitors} {
			for _, p := range group {
				if !p.Finite() {
					return true
				}
			}
		}
		for _, soc := range rec.StorageSoC {
			if math.IsNaN(soc) || math.IsInf(soc, 0) {
				return true
			}
		}
	}
	return false
}

func oversized(res *model.SimulationResult, cand model.CandidateSize, opts Options) bool {
	if cand.BatteryKW > cand.PVKW {
		return true
	}
	if len(res.Records) == 0 {
		return false
	}
	check := CheckStep(opts.CheckHour, len(res.Records))
	for _, name := range res.Identity.Storage {
		soc := res.StorageSoC(name)
		if final, ok := lastFinite(soc); ok && final > opts.FinalSoCLimitPct {
			return true
		}
		if v := soc[check]; !math.IsNaN(v) && v > opts.MinReservePct {
			return true
		}
	}
	return false
}

func lastFinite(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i], true
		}
	}
	return 0, false
}
