package dispatch

import (
	"fmt"
	"math"

	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/model"
)

// Forecast dispatches against predicted net power built from PV and load
// profiles. Profiles are loaded on first use and cached for the run.
type Forecast struct {
	Rule Rule
	// RampKW limits the change from the previously recorded setpoint; 0 disables it.
	RampKW float64

	pvSrc, loadSrc ProfileSource
	pv, load       []float64
	loaded         bool
	err            error
}

// NewForecastFactory returns a factory sharing the sources but not the caches.
func NewForecastFactory(cfg ForecastConfig, pv, load ProfileSource) Factory {
	return func() Policy {
		return &Forecast{
			Rule:    Rule{DeadbandKW: cfg.DeadbandKW},
			RampKW:  cfg.RampKWPerStep,
			pvSrc:   pv,
			loadSrc: load,
		}
	}
}

func (p *Forecast) Dispatch(ctl engine.Controller, step int, res *model.SimulationResult) error {
	if p.err != nil {
		return p.err
	}
	units := ctl.StorageUnits()
	if len(units) == 0 {
		return nil
	}
	if err := p.ensureLoaded(); err != nil {
		return err
	}
	pvMult, err := p.at(p.pv, p.pvSrc, step)
	if err != nil {
		return err
	}
	loadMult, err := p.at(p.load, p.loadSrc, step)
	if err != nil {
		return err
	}
	net := ctl.PVRatedKW()*pvMult - ctl.LoadBaseKW()*loadMult

	for i, share := range shares(units, net) {
		u := units[i]
		target := -share
		if p.RampKW > 0 && step > 0 && step-1 < len(res.Records) {
			if prev, ok := res.Records[step-1].Storage[u.Name]; ok && !math.IsNaN(prev.P) {
				target = math.Max(prev.P-p.RampKW, math.Min(prev.P+p.RampKW, target))
			}
		}
		sp := p.Rule.Bound(target, u, ctl.StorageSoC(u.Name), ctl.StepHours())
		if err := ctl.SetStorage(u.Name, sp); err != nil {
			return err
		}
	}
	return nil
}

func (p *Forecast) ensureLoaded() error {
	if p.loaded {
		return nil
	}
	p.loaded = true
	var err error
	if p.pv, err = load(p.pvSrc); err != nil {
		p.err = err
		return err
	}
	if p.load, err = load(p.loadSrc); err != nil {
		p.err = err
		return err
	}
	return nil
}

func (p *Forecast) at(series []float64, src ProfileSource, step int) (float64, error) {
	if step >= len(series) {
		p.err = &ProfileError{Source: src.Name(), Err: fmt.Errorf("no value for step %d (%d points)", step, len(series))}
		return 0, p.err
	}
	v := series[step]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.err = &ProfileError{Source: src.Name(), Err: fmt.Errorf("non-finite value at step %d", step)}
		return 0, p.err
	}
	return v, nil
}

func load(src ProfileSource) ([]float64, error) {
	if src == nil {
		return nil, &ProfileError{Source: "<nil>", Err: fmt.Errorf("no source configured")}
	}
	vals, err := src.Load()
	if err != nil {
		return nil, &ProfileError{Source: src.Name(), Err: err}
	}
	if len(vals) == 0 {
		return nil, &ProfileError{Source: src.Name(), Err: fmt.Errorf("empty profile")}
	}
	return vals, nil
}
