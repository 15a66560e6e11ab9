package model

import (
	"fmt"
	"math"
)

// CandidateSize is one (PV, battery) sizing attempt. It is passed by value
// and never mutated once an evaluation has started.
type CandidateSize struct {
	PVKW          float64 `json:"pv_kw"`           // rated PV active power
	BatteryKW     float64 `json:"battery_kw"`      // rated battery active power
	InitialSoCPct float64 `json:"initial_soc_pct"` // initial state of charge in percent
}

// Validate checks the candidate is physically meaningful.
func (c CandidateSize) Validate() error {
	if c.PVKW < 0 || math.IsNaN(c.PVKW) {
		return fmt.Errorf("pv_kw must be >= 0, got %v", c.PVKW)
	}
	if c.BatteryKW < 0 || math.IsNaN(c.BatteryKW) {
		return fmt.Errorf("battery_kw must be >= 0, got %v", c.BatteryKW)
	}
	if c.InitialSoCPct < 0 || c.InitialSoCPct > 100 {
		return fmt.Errorf("initial_soc_pct must be within [0,100], got %v", c.InitialSoCPct)
	}
	return nil
}

// BatteryKWh returns the energy capacity for the given duration ratio in hours.
func (c CandidateSize) BatteryKWh(durationHours float64) float64 {
	return durationHours * c.BatteryKW
}

// InverterKVA returns the storage inverter rating for the given sizing factor.
func (c CandidateSize) InverterKVA(sizingFactor float64) float64 {
	return sizingFactor * c.BatteryKW
}

func (c CandidateSize) String() string {
	return fmt.Sprintf("pv=%.1fkW battery=%.1fkW soc=%.0f%%", c.PVKW, c.BatteryKW, c.InitialSoCPct)
}

// Limits are the feeder constraints each converged step is checked against.
type Limits struct {
	LowPU      float64 `json:"low_limit"`     // minimum bus voltage in p.u.
	HighPU     float64 `json:"high_limit"`    // maximum bus voltage in p.u.
	LoadingPct float64 `json:"loading_limit"` // maximum thermal loading in percent
}

// VoltageOK reports whether v lies within the voltage band.
func (l Limits) VoltageOK(v float64) bool {
	return v >= l.LowPU && v <= l.HighPU
}

// LoadingOK reports whether the loading is within the thermal limit.
func (l Limits) LoadingOK(pct float64) bool {
	return pct <= l.LoadingPct
}
