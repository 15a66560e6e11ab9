package feeder

import (
	"math"

	"github.com/kilianp07/dersize/core/engine"
)

// battery tracks the energy state of one storage element.
type battery struct {
	desc engine.Storage
	soc  float64 // percent of KWhRated
	sp   engine.Setpoint
	kw   float64 // effective power of the last planned step, discharge positive
}

func newBattery(d engine.Storage) *battery {
	if d.ChargeEffPct == 0 {
		d.ChargeEffPct = 90
	}
	if d.DischargeEffPct == 0 {
		d.DischargeEffPct = 90
	}
	return &battery{desc: d, soc: d.StoredPct}
}

// plan returns the power the unit can actually deliver over the next step
// given the current setpoint. Positive power means discharge (injection),
// negative means charging.
func (b *battery) plan(hours float64) float64 {
	b.kw = 0
	if hours <= 0 || b.desc.KWhRated <= 0 {
		return 0
	}
	req := b.sp.KW
	switch b.sp.Mode {
	case engine.ModeIdle:
		return 0
	case engine.ModeCharge:
		req = -math.Abs(req)
	case engine.ModeDischarge:
		req = math.Abs(req)
	}
	if math.IsNaN(req) {
		return 0
	}

	capacity := b.desc.KWhRated
	actual := req
	if req > 0 {
		if actual > b.desc.KWRated {
			actual = b.desc.KWRated
		}
		avail := (b.soc - b.desc.ReservePct) / 100 * capacity * b.desc.DischargeEffPct / 100
		if avail <= 0 {
			return 0
		}
		if actual*hours > avail {
			actual = avail / hours
		}
	} else if req < 0 {
		p := -req
		if p > b.desc.KWRated {
			p = b.desc.KWRated
		}
		room := (100 - b.soc) / 100 * capacity / (b.desc.ChargeEffPct / 100)
		if room <= 0 {
			return 0
		}
		if p*hours > room {
			p = room / hours
		}
		actual = -p
	}
	b.kw = actual
	return actual
}

// commit applies the planned power to the state of charge.
func (b *battery) commit(hours float64) {
	capacity := b.desc.KWhRated
	if capacity <= 0 || hours <= 0 {
		return
	}
	var delta float64
	switch {
	case b.kw > 0:
		delta = -b.kw * hours / (b.desc.DischargeEffPct / 100)
	case b.kw < 0:
		delta = -b.kw * hours * b.desc.ChargeEffPct / 100
	default:
		delta = -b.desc.KWRated * b.desc.IdlingPct / 100 * hours
	}
	b.soc += delta / capacity * 100
	if b.soc < 0 {
		b.soc = 0
	}
	if b.soc > 100 {
		b.soc = 100
	}
}
