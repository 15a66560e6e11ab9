package dispatch

import (
	"math"

	"github.com/kilianp07/dersize/core/engine"
)

// Rule holds the thresholds shared by the self-consumption policies.
type Rule struct {
	// DeadbandKW is the magnitude below which a unit idles.
	DeadbandKW float64
}

// chargeHeadroomKW is the power that brings the unit to 100% in one step.
func chargeHeadroomKW(info engine.StorageInfo, soc, stepHours float64) float64 {
	if soc >= 100 || stepHours <= 0 {
		return 0
	}
	return (100 - soc) / 100 * info.KWhRated / stepHours
}

// dischargeHeadroomKW is the power that brings the unit to its reserve in one step.
func dischargeHeadroomKW(info engine.StorageInfo, soc, stepHours float64) float64 {
	if soc <= info.ReservePct || stepHours <= 0 {
		return 0
	}
	return (soc - info.ReservePct) / 100 * info.KWhRated / stepHours
}

// Bound clamps kw (positive discharge) to the unit rating and state of charge
// limits and derives the operating mode. A NaN state of charge idles the unit.
func (r Rule) Bound(kw float64, info engine.StorageInfo, soc, stepHours float64) engine.Setpoint {
	if math.IsNaN(kw) || math.IsNaN(soc) {
		return engine.Idle
	}
	switch {
	case kw > 0:
		kw = math.Min(kw, info.KWRated)
		kw = math.Min(kw, dischargeHeadroomKW(info, soc, stepHours))
	case kw < 0:
		kw = -math.Min(-kw, info.KWRated)
		kw = -math.Min(-kw, chargeHeadroomKW(info, soc, stepHours))
	}
	if math.Abs(kw) <= r.DeadbandKW {
		return engine.Idle
	}
	if kw > 0 {
		return engine.Setpoint{KW: kw, Mode: engine.ModeDischarge}
	}
	return engine.Setpoint{KW: kw, Mode: engine.ModeCharge}
}

// SelfConsume turns a net power (generation plus load, injection positive)
// into a setpoint: surplus charges, deficit discharges.
func (r Rule) SelfConsume(net float64, info engine.StorageInfo, soc, stepHours float64) engine.Setpoint {
	return r.Bound(-net, info, soc, stepHours)
}

// shares splits total across units proportionally to their rating.
func shares(units []engine.StorageInfo, total float64) []float64 {
	out := make([]float64, len(units))
	var rated float64
	for _, u := range units {
		rated += u.KWRated
	}
	for i, u := range units {
		if rated > 0 {
			out[i] = total * u.KWRated / rated
		} else {
			out[i] = total / float64(len(units))
		}
	}
	return out
}

// ClampReactive limits a reactive setpoint so that the apparent power stays
// within kva. The sign of kvar is preserved; clamped reports whether the
// request was reduced.
func ClampReactive(kvar, kva, kw float64) (float64, bool) {
	avail := 0.0
	if kva > math.Abs(kw) {
		avail = math.Sqrt(kva*kva - kw*kw)
	}
	if math.Abs(kvar) <= avail {
		return kvar, false
	}
	return math.Copysign(avail, kvar), true
}
