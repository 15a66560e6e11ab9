package model

import (
	"math"
	"strings"
)

// PowerPQ is an active/reactive power pair in kW/kvar. Values follow the
// injection convention: generation and battery discharge are positive, load
// consumption and battery charge are negative.
type PowerPQ struct {
	P float64 `json:"p"`
	Q float64 `json:"q"`
}

// NaNPower is the sentinel recorded for non-converged steps.
var NaNPower = PowerPQ{P: math.NaN(), Q: math.NaN()}

// Finite reports whether both components are finite numbers.
func (p PowerPQ) Finite() bool {
	return isFinite(p.P) && isFinite(p.Q)
}

// Add returns the component-wise sum.
func (p PowerPQ) Add(o PowerPQ) PowerPQ {
	return PowerPQ{P: p.P + o.P, Q: p.Q + o.Q}
}

// StepRecord is the snapshot of one solved (or failed) time step.
type StepRecord struct {
	Step            int                `json:"step"`
	Converged       bool               `json:"converged"`
	BusVoltages     map[string]float64 `json:"bus_voltages"`
	ElementLoadings map[string]float64 `json:"element_loadings"`
	Loads           map[string]PowerPQ `json:"loads"`
	PV              map[string]PowerPQ `json:"pv"`
	Storage         map[string]PowerPQ `json:"storage"`
	Capacitors      map[string]PowerPQ `json:"capacitors"`
	TotalPower      PowerPQ            `json:"total_power"`
	Losses          PowerPQ            `json:"losses"`
	StorageSoC      map[string]float64 `json:"storage_soc"`
}

// Violation is one limit breach.
type Violation struct {
	Step  int     `json:"step"`
	Value float64 `json:"value"`
}

// ViolationLog maps an entity identifier to its breaches in step order.
type ViolationLog map[string][]Violation

// Any reports whether at least one entity has a breach.
func (l ViolationLog) Any() bool {
	for _, v := range l {
		if len(v) > 0 {
			return true
		}
	}
	return false
}

// Count returns the total number of breaches.
func (l ViolationLog) Count() int {
	n := 0
	for _, v := range l {
		n += len(v)
	}
	return n
}

// Identity lists the entities present in a compiled model.
type Identity struct {
	Buses      []string `json:"buses"` // lower-cased, ordered by distance from the meter
	Elements   []string `json:"elements"`
	Loads      []string `json:"loads"`
	PV         []string `json:"pv"`
	Storage    []string `json:"storage"`
	Capacitors []string `json:"capacitors"`
}

// SimulationResult is the full time series of one run. It is owned by the
// runner that built it and read-only for everyone else.
type SimulationResult struct {
	Label             string       `json:"label"`
	Steps             int          `json:"steps"`
	StepHours         float64      `json:"step_hours"`
	Identity          Identity     `json:"identity"`
	Records           []StepRecord `json:"records"`
	Converged         []bool       `json:"converged"`
	VoltageViolations ViolationLog `json:"voltage_violations"`
	LoadingViolations ViolationLog `json:"loading_violations"`
}

// NewSimulationResult allocates empty containers sized for steps records.
func NewSimulationResult(label string, steps int, stepHours float64, id Identity) *SimulationResult {
	res := &SimulationResult{
		Label:             label,
		Steps:             steps,
		StepHours:         stepHours,
		Identity:          id,
		Records:           make([]StepRecord, 0, steps),
		Converged:         make([]bool, 0, steps),
		VoltageViolations: make(ViolationLog, len(id.Buses)),
		LoadingViolations: make(ViolationLog, len(id.Elements)),
	}
	for _, b := range id.Buses {
		res.VoltageViolations[b] = []Violation{}
	}
	for _, e := range id.Elements {
		res.LoadingViolations[e] = []Violation{}
	}
	return res
}

// AllConverged reports whether every recorded step converged.
func (r *SimulationResult) AllConverged() bool {
	for _, c := range r.Converged {
		if !c {
			return false
		}
	}
	return true
}

// FailedSteps returns the indices of non-converged steps.
func (r *SimulationResult) FailedSteps() []int {
	var out []int
	for i, c := range r.Converged {
		if !c {
			out = append(out, i)
		}
	}
	return out
}

// BusVoltage returns the voltage series of a bus. The lookup is
// case-insensitive; unknown buses yield a NaN series.
func (r *SimulationResult) BusVoltage(bus string) []float64 {
	key := strings.ToLower(bus)
	return r.series(func(s StepRecord) float64 { return valueOrNaN(s.BusVoltages, key) })
}

// ElementLoading returns the loading series of an element.
func (r *SimulationResult) ElementLoading(element string) []float64 {
	return r.series(func(s StepRecord) float64 { return valueOrNaN(s.ElementLoadings, element) })
}

// StorageSoC returns the state-of-charge series of a storage unit.
func (r *SimulationResult) StorageSoC(name string) []float64 {
	return r.series(func(s StepRecord) float64 { return valueOrNaN(s.StorageSoC, name) })
}

// StoragePower returns the active power series of a storage unit.
func (r *SimulationResult) StoragePower(name string) []float64 {
	return r.series(func(s StepRecord) float64 { return powerOrNaN(s.Storage, name).P })
}

// PVPower returns the active power series of a PV unit.
func (r *SimulationResult) PVPower(name string) []float64 {
	return r.series(func(s StepRecord) float64 { return powerOrNaN(s.PV, name).P })
}

// LoadPower returns the active power series of a load.
func (r *SimulationResult) LoadPower(name string) []float64 {
	return r.series(func(s StepRecord) float64 { return powerOrNaN(s.Loads, name).P })
}

// TotalPower returns the active power drawn from the source at each step.
func (r *SimulationResult) TotalPower() []float64 {
	return r.series(func(s StepRecord) float64 { return s.TotalPower.P })
}

// Losses returns the active losses at each step.
func (r *SimulationResult) Losses() []float64 {
	return r.series(func(s StepRecord) float64 { return s.Losses.P })
}

func (r *SimulationResult) series(get func(StepRecord) float64) []float64 {
	out := make([]float64, len(r.Records))
	for i, rec := range r.Records {
		out[i] = get(rec)
	}
	return out
}

func valueOrNaN(m map[string]float64, key string) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return math.NaN()
}

func powerOrNaN(m map[string]PowerPQ, key string) PowerPQ {
	if v, ok := m[key]; ok {
		return v
	}
	return NaNPower
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
