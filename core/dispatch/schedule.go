package dispatch

import (
	"fmt"
	"math"

	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/model"
)

// Schedule follows a fixed kW profile (positive discharge) split across the
// storage units, subject to rating and state of charge limits.
type Schedule struct {
	Rule Rule

	src    ProfileSource
	values []float64
	loaded bool
	err    error
}

// NewScheduleFactory returns a factory for a file schedule policy.
func NewScheduleFactory(cfg ScheduleConfig, src ProfileSource) Factory {
	return func() Policy {
		return &Schedule{Rule: Rule{DeadbandKW: cfg.DeadbandKW}, src: src}
	}
}

func (p *Schedule) Dispatch(ctl engine.Controller, step int, _ *model.SimulationResult) error {
	if p.err != nil {
		return p.err
	}
	units := ctl.StorageUnits()
	if len(units) == 0 {
		return nil
	}
	if !p.loaded {
		p.loaded = true
		if p.values, p.err = load(p.src); p.err != nil {
			return p.err
		}
	}
	if step >= len(p.values) || math.IsNaN(p.values[step]) {
		p.err = &ProfileError{Source: p.src.Name(), Err: fmt.Errorf("no value for step %d", step)}
		return p.err
	}
	for i, share := range shares(units, p.values[step]) {
		u := units[i]
		if err := ctl.SetStorage(u.Name, p.Rule.Bound(share, u, ctl.StorageSoC(u.Name), ctl.StepHours())); err != nil {
			return err
		}
	}
	return nil
}
