// Package enginetest provides a scriptable in-memory engine for tests.
package enginetest

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/model"
)

// Fake implements engine.Engine with per-step callbacks. Zero callbacks
// yield a converged flat feeder at 1.0 p.u. with 50% loadings.
type Fake struct {
	mu sync.Mutex

	BusNames     []string
	ElementNames []string
	LoadKW       map[string]float64 // nominal consumption per load
	Capacitors   []string

	Converge func(step int) bool
	SolveErr func(step int) error
	Voltage  func(step int, bus string) float64
	Loading  func(step int, element string) float64
	// PVOutput returns the per-unit irradiance at step.
	PVOutput func(step int) float64

	CompileErr error

	pv       []engine.PVSystem
	storage  []engine.Storage
	soc      map[string]float64
	setpoint map[string]engine.Setpoint
	shapes   []engine.LoadShape

	Attached  []engine.Descriptor
	Setpoints []SetpointCall

	steps     int
	stepHours float64
	step      int
	solved    int
	compiled  bool
	Closed    bool
}

// SetpointCall records one SetStorage invocation.
type SetpointCall struct {
	Step     int
	Name     string
	Setpoint engine.Setpoint
}

// New returns a Fake with a small default topology.
func New() *Fake {
	return &Fake{
		BusNames:     []string{"sourcebus", "650", "671"},
		ElementNames: []string{"Line.650671", "Transformer.sub"},
		LoadKW:       map[string]float64{"l671": 1000},
	}
}

// Factory returns an engine.Factory producing fakes configured by init.
func Factory(init func(*Fake)) engine.Factory {
	return func() (engine.Engine, error) {
		f := New()
		if init != nil {
			init(f)
		}
		return f, nil
	}
}

func (f *Fake) Compile(_ context.Context, _ string) error {
	if f.CompileErr != nil {
		return f.CompileErr
	}
	f.compiled = true
	f.soc = map[string]float64{}
	f.setpoint = map[string]engine.Setpoint{}
	return nil
}

func (f *Fake) Attach(d engine.Descriptor) error {
	if !f.compiled {
		return engine.ErrNotCompiled
	}
	f.Attached = append(f.Attached, d)
	switch v := d.(type) {
	case engine.PVSystem:
		f.pv = append(f.pv, v)
	case engine.Storage:
		f.storage = append(f.storage, v)
		f.soc[v.Name] = v.StoredPct
	case engine.LoadShape:
		f.shapes = append(f.shapes, v)
	}
	return nil
}

func (f *Fake) Configure(steps int, stepHours float64) error {
	if steps <= 0 || stepHours <= 0 {
		return errors.New("invalid horizon")
	}
	f.steps, f.stepHours = steps, stepHours
	return nil
}

func (f *Fake) Solve(_ context.Context) (bool, error) {
	if f.step >= f.steps {
		return false, engine.ErrHorizonExceeded
	}
	step := f.step
	f.solved = step
	f.step++
	if f.SolveErr != nil {
		if err := f.SolveErr(step); err != nil {
			return false, err
		}
	}
	ok := f.Converge == nil || f.Converge(step)
	if ok {
		f.advanceStorage()
	}
	return ok, nil
}

func (f *Fake) advanceStorage() {
	for _, s := range f.storage {
		sp := f.setpoint[s.Name]
		if s.KWhRated <= 0 {
			continue
		}
		f.soc[s.Name] -= sp.KW * f.stepHours / s.KWhRated * 100
		f.soc[s.Name] = math.Max(0, math.Min(100, f.soc[s.Name]))
	}
}

func (f *Fake) Buses() []string    { return append([]string(nil), f.BusNames...) }
func (f *Fake) Elements() []string { return append([]string(nil), f.ElementNames...) }

func (f *Fake) Names(kind engine.Kind) []string {
	var out []string
	switch kind {
	case engine.KindLoad:
		for n := range f.LoadKW {
			out = append(out, n)
		}
		sort.Strings(out)
	case engine.KindPV:
		for _, p := range f.pv {
			out = append(out, p.Name)
		}
	case engine.KindStorage:
		for _, s := range f.storage {
			out = append(out, s.Name)
		}
	case engine.KindCapacitor:
		out = append(out, f.Capacitors...)
	}
	return out
}

func (f *Fake) BusVoltages() map[string]float64 {
	out := make(map[string]float64, len(f.BusNames))
	for _, b := range f.BusNames {
		v := 1.0
		if f.Voltage != nil {
			v = f.Voltage(f.solved, b)
		}
		out[b] = v
	}
	return out
}

func (f *Fake) ElementLoadings() map[string]float64 {
	out := make(map[string]float64, len(f.ElementNames))
	for _, e := range f.ElementNames {
		v := 50.0
		if f.Loading != nil {
			v = f.Loading(f.solved, e)
		}
		out[e] = v
	}
	return out
}

func (f *Fake) loadMult(step int) float64 {
	for _, s := range f.shapes {
		if s.ApplyToLoads {
			return s.At(step)
		}
	}
	return 1
}

func (f *Fake) irradiance(step int) float64 {
	if f.PVOutput != nil {
		return f.PVOutput(step)
	}
	return 1
}

func (f *Fake) Power(kind engine.Kind, name string) model.PowerPQ {
	switch kind {
	case engine.KindLoad:
		if kw, ok := f.LoadKW[name]; ok {
			return model.PowerPQ{P: -kw * f.loadMult(f.solved)}
		}
	case engine.KindPV:
		for _, p := range f.pv {
			if p.Name == name {
				return model.PowerPQ{P: p.PmppKW * f.irradiance(f.solved), Q: p.KVAR}
			}
		}
	case engine.KindStorage:
		if sp, ok := f.setpoint[name]; ok {
			return model.PowerPQ{P: sp.KW}
		}
		for _, s := range f.storage {
			if s.Name == name {
				return model.PowerPQ{}
			}
		}
	case engine.KindCapacitor:
		for _, c := range f.Capacitors {
			if c == name {
				return model.PowerPQ{Q: 100}
			}
		}
	}
	return model.NaNPower
}

func (f *Fake) TotalPower() model.PowerPQ {
	var sum model.PowerPQ
	for _, k := range []engine.Kind{engine.KindLoad, engine.KindPV, engine.KindStorage} {
		for _, n := range f.Names(k) {
			sum = sum.Add(f.Power(k, n))
		}
	}
	return model.PowerPQ{P: -sum.P, Q: -sum.Q}
}

func (f *Fake) Losses() model.PowerPQ { return model.PowerPQ{P: 1, Q: 0.5} }

func (f *Fake) StorageUnits() []engine.StorageInfo {
	out := make([]engine.StorageInfo, len(f.storage))
	for i, s := range f.storage {
		out[i] = s.Info()
	}
	return out
}

func (f *Fake) StorageSoC(name string) float64 {
	if v, ok := f.soc[name]; ok {
		return v
	}
	return math.NaN()
}

// SetSoC overrides the state of charge of a storage unit.
func (f *Fake) SetSoC(name string, pct float64) { f.soc[name] = pct }

func (f *Fake) PVRatedKW() float64 {
	var sum float64
	for _, p := range f.pv {
		sum += p.PmppKW
	}
	return sum
}

func (f *Fake) LoadBaseKW() float64 {
	var sum float64
	for _, kw := range f.LoadKW {
		sum += kw
	}
	return sum
}

func (f *Fake) StepHours() float64 { return f.stepHours }

func (f *Fake) SetStorage(name string, sp engine.Setpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, s := range f.storage {
		if s.Name == name {
			found = true
		}
	}
	if !found {
		return errors.New("unknown storage " + name)
	}
	f.setpoint[name] = sp
	f.Setpoints = append(f.Setpoints, SetpointCall{Step: f.step, Name: name, Setpoint: sp})
	return nil
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
