package dispatch

import (
	"math"

	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/model"
)

// SelfConsumption charges from measured PV surplus and discharges into
// measured deficit, using the previous step's results.
type SelfConsumption struct {
	Rule Rule
}

// NewSelfConsumptionFactory returns a factory for measured self-consumption.
func NewSelfConsumptionFactory(cfg SelfConsumptionConfig) Factory {
	return func() Policy {
		return &SelfConsumption{Rule: Rule{DeadbandKW: cfg.DeadbandKW}}
	}
}

func (p *SelfConsumption) Dispatch(ctl engine.Controller, step int, res *model.SimulationResult) error {
	units := ctl.StorageUnits()
	if len(units) == 0 {
		return nil
	}
	net := 0.0
	if step > 0 && step-1 < len(res.Records) {
		net = measuredNet(res.Records[step-1])
	}
	for i, share := range shares(units, net) {
		u := units[i]
		var sp engine.Setpoint
		if step == 0 {
			sp = engine.Idle
		} else {
			sp = p.Rule.SelfConsume(share, u, ctl.StorageSoC(u.Name), ctl.StepHours())
		}
		if err := ctl.SetStorage(u.Name, sp); err != nil {
			return err
		}
	}
	return nil
}

// measuredNet sums PV and load active power, skipping NaN values.
func measuredNet(rec model.StepRecord) float64 {
	var net float64
	for _, p := range rec.PV {
		if !math.IsNaN(p.P) {
			net += p.P
		}
	}
	for _, p := range rec.Loads {
		if !math.IsNaN(p.P) {
			net += p.P
		}
	}
	return net
}
