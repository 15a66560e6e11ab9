package simulation

import (
	"math"
	"strings"

	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/model"
)

// Evaluator turns the solved state of an engine into a StepRecord and logs
// limit breaches.
type Evaluator struct {
	Limits model.Limits
}

// Converged reads every quantity of a solved step and appends breaches to res.
func (e Evaluator) Converged(eng engine.Engine, step int, res *model.SimulationResult) model.StepRecord {
	id := res.Identity
	rec := model.StepRecord{
		Step:            step,
		Converged:       true,
		BusVoltages:     make(map[string]float64, len(id.Buses)),
		ElementLoadings: make(map[string]float64, len(id.Elements)),
		TotalPower:      eng.TotalPower(),
		Losses:          eng.Losses(),
	}

	reported := make(map[string]float64)
	for bus, v := range eng.BusVoltages() {
		reported[strings.ToLower(bus)] = v
	}
	for _, bus := range id.Buses {
		v, ok := reported[bus]
		if !ok {
			v = math.NaN()
		}
		rec.BusVoltages[bus] = v
		if ok && !e.Limits.VoltageOK(v) {
			res.VoltageViolations[bus] = append(res.VoltageViolations[bus], model.Violation{Step: step, Value: v})
		}
	}

	loadings := eng.ElementLoadings()
	for _, el := range id.Elements {
		v, ok := loadings[el]
		if !ok {
			v = math.NaN()
		}
		rec.ElementLoadings[el] = v
		if ok && !e.Limits.LoadingOK(v) {
			res.LoadingViolations[el] = append(res.LoadingViolations[el], model.Violation{Step: step, Value: v})
		}
	}

	rec.Loads = powers(eng, engine.KindLoad, id.Loads)
	rec.PV = powers(eng, engine.KindPV, id.PV)
	rec.Storage = powers(eng, engine.KindStorage, id.Storage)
	rec.Capacitors = powers(eng, engine.KindCapacitor, id.Capacitors)
	rec.StorageSoC = make(map[string]float64, len(id.Storage))
	for _, s := range id.Storage {
		rec.StorageSoC[s] = eng.StorageSoC(s)
	}
	return rec
}

// NotConverged builds the sentinel record of a failed step. No limit is
// evaluated.
func (Evaluator) NotConverged(step int, id model.Identity) model.StepRecord {
	rec := model.StepRecord{
		Step:            step,
		BusVoltages:     nanValues(id.Buses),
		ElementLoadings: nanValues(id.Elements),
		Loads:           nanPowers(id.Loads),
		PV:              nanPowers(id.PV),
		Storage:         nanPowers(id.Storage),
		Capacitors:      nanPowers(id.Capacitors),
		TotalPower:      model.NaNPower,
		Losses:          model.NaNPower,
		StorageSoC:      nanValues(id.Storage),
	}
	return rec
}

func powers(eng engine.Engine, kind engine.Kind, names []string) map[string]model.PowerPQ {
	out := make(map[string]model.PowerPQ, len(names))
	for _, n := range names {
		out[n] = eng.Power(kind, n)
	}
	return out
}

func nanValues(keys []string) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		out[k] = math.NaN()
	}
	return out
}

func nanPowers(keys []string) map[string]model.PowerPQ {
	out := make(map[string]model.PowerPQ, len(keys))
	for _, k := range keys {
		out[k] = model.NaNPower
	}
	return out
}
