package feeder

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"

	"github.com/kilianp07/dersize/core/dispatch"
	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/model"
)

type pvUnit struct {
	desc  engine.PVSystem
	bus   int
	shape *engine.LoadShape
	out   model.PowerPQ
}

// Engine is the built-in power-flow engine.
type Engine struct {
	mu sync.Mutex

	preloaded *Model
	model     *Model
	topo      *topology

	meterBus  int
	loadShape *engine.LoadShape
	shapes    map[string]engine.LoadShape
	pv        []*pvUnit
	storage   []*battery
	storeBus  []int

	steps     int
	stepHours float64
	step      int
	state     sweepState
	ok        bool
	loadMult  float64
}

var _ engine.Engine = (*Engine)(nil)

// New returns an engine that reads its feeder from the path given to Compile.
func New() *Engine { return &Engine{} }

// NewFactory returns an engine.Factory. When m is non-nil every engine shares
// the parsed model and Compile ignores its path argument.
func NewFactory(m *Model) engine.Factory {
	return func() (engine.Engine, error) {
		return &Engine{preloaded: m}, nil
	}
}

func (e *Engine) Compile(ctx context.Context, modelPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := e.preloaded
	if m == nil {
		var err error
		if m, err = LoadModel(modelPath); err != nil {
			return fmt.Errorf("compile: %w", err)
		}
	}
	return e.compileModel(m)
}

func (e *Engine) compileModel(m *Model) error {
	topo, err := buildTopology(m)
	if err != nil {
		return fmt.Errorf("compile %s: %w", m.Name, err)
	}
	e.model, e.topo = m, topo
	e.meterBus = topo.source
	e.shapes = make(map[string]engine.LoadShape)
	e.loadShape = nil
	e.pv, e.storage, e.storeBus = nil, nil, nil
	e.step, e.ok = 0, false
	return nil
}

func (e *Engine) Attach(d engine.Descriptor) error {
	if e.topo == nil {
		return engine.ErrNotCompiled
	}
	switch v := d.(type) {
	case engine.LoadShape:
		e.shapes[strings.ToLower(v.Name)] = v
		if v.ApplyToLoads {
			shape := v
			e.loadShape = &shape
		}
	case engine.EnergyMeter:
		bus, ok := e.topo.elementBus(v.Element, v.Terminal)
		if !ok {
			return fmt.Errorf("meter %s: %w %q", v.Name, ErrUnknownElement, v.Element)
		}
		e.meterBus = bus
	case engine.PVSystem:
		bus, ok := e.topo.index[strings.ToLower(v.Bus)]
		if !ok {
			return fmt.Errorf("pvsystem %s: %w %q", v.Name, ErrUnknownBus, v.Bus)
		}
		u := &pvUnit{desc: v, bus: bus}
		if v.Daily != "" {
			s, ok := e.shapes[strings.ToLower(v.Daily)]
			if !ok {
				return fmt.Errorf("pvsystem %s: %w loadshape %q", v.Name, ErrUnknownElement, v.Daily)
			}
			u.shape = &s
		}
		e.pv = append(e.pv, u)
	case engine.Storage:
		bus, ok := e.topo.index[strings.ToLower(v.Bus)]
		if !ok {
			return fmt.Errorf("storage %s: %w %q", v.Name, ErrUnknownBus, v.Bus)
		}
		e.storage = append(e.storage, newBattery(v))
		e.storeBus = append(e.storeBus, bus)
	default:
		return fmt.Errorf("unsupported element %s", d.ElementName())
	}
	return nil
}

func (e *Engine) Configure(steps int, stepHours float64) error {
	if e.topo == nil {
		return engine.ErrNotCompiled
	}
	if steps <= 0 || stepHours <= 0 || math.IsNaN(stepHours) {
		return fmt.Errorf("invalid horizon: %d steps of %vh", steps, stepHours)
	}
	e.steps, e.stepHours = steps, stepHours
	return nil
}

func (e *Engine) Solve(ctx context.Context) (bool, error) {
	if e.topo == nil {
		return false, engine.ErrNotCompiled
	}
	if e.step >= e.steps {
		return false, engine.ErrHorizonExceeded
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	step := e.step
	e.step++

	base := e.model.BaseKVA
	n := len(e.topo.buses)
	in := sweepInput{power: make([]complex128, n), shunt: make([]complex128, n)}

	e.loadMult = 1
	if e.loadShape != nil {
		e.loadMult = e.loadShape.At(step)
	}
	for _, l := range e.model.Loads {
		i := e.topo.index[l.Bus]
		in.power[i] -= complex(l.KW*e.loadMult, l.KVAR*e.loadMult) / complex(base, 0)
	}
	for _, c := range e.model.Capacitors {
		i := e.topo.index[c.Bus]
		in.shunt[i] += complex(0, c.KVAR/base)
	}
	for _, u := range e.pv {
		u.out = pvOutput(u.desc, u.shape, step)
		in.power[u.bus] += complex(u.out.P, u.out.Q) / complex(base, 0)
	}
	for i, b := range e.storage {
		kw := b.plan(e.stepHours)
		kvar, _ := dispatch.ClampReactive(b.desc.KVAR, b.desc.KVA, kw)
		in.power[e.storeBus[i]] += complex(kw, kvar) / complex(base, 0)
	}

	state, ok := e.topo.sweep(e.model.Source.PU, in)
	e.state, e.ok = state, ok
	if !ok {
		for _, b := range e.storage {
			b.kw = 0
		}
		return false, nil
	}
	for _, b := range e.storage {
		b.commit(e.stepHours)
	}
	return true, nil
}

func pvOutput(d engine.PVSystem, shape *engine.LoadShape, step int) model.PowerPQ {
	irr := d.Irradiance
	if irr == 0 {
		irr = 1
	}
	p := d.PmppKW * irr
	if shape != nil {
		p *= shape.At(step)
	}
	if p < 0 {
		p = 0
	}
	if d.KVA > 0 && p > d.KVA {
		p = d.KVA
	}
	var q float64
	if d.PF != 0 {
		pf := math.Min(math.Abs(d.PF), 1)
		q = math.Copysign(p*math.Tan(math.Acos(pf)), d.PF)
	} else {
		q = d.KVAR
	}
	if d.KVA > 0 {
		q, _ = dispatch.ClampReactive(q, d.KVA, p)
	}
	return model.PowerPQ{P: p, Q: q}
}

// Buses returns the bus names ordered by electrical distance from the meter.
func (e *Engine) Buses() []string {
	if e.topo == nil {
		return nil
	}
	return e.topo.distanceOrder(e.meterBus)
}

func (e *Engine) Elements() []string {
	if e.model == nil {
		return nil
	}
	out := make([]string, 0, len(e.model.Lines)+len(e.model.Transformers))
	for _, l := range e.model.Lines {
		out = append(out, "Line."+l.Name)
	}
	for _, t := range e.model.Transformers {
		out = append(out, "Transformer."+t.Name)
	}
	return out
}

func (e *Engine) Names(kind engine.Kind) []string {
	var out []string
	switch kind {
	case engine.KindLoad:
		if e.model != nil {
			for _, l := range e.model.Loads {
				out = append(out, l.Name)
			}
		}
	case engine.KindCapacitor:
		if e.model != nil {
			for _, c := range e.model.Capacitors {
				out = append(out, c.Name)
			}
		}
	case engine.KindPV:
		for _, u := range e.pv {
			out = append(out, u.desc.Name)
		}
	case engine.KindStorage:
		for _, b := range e.storage {
			out = append(out, b.desc.Name)
		}
	}
	return out
}

func (e *Engine) BusVoltages() map[string]float64 {
	out := make(map[string]float64)
	if !e.ok {
		return out
	}
	for i, name := range e.topo.buses {
		out[name] = cmplx.Abs(e.state.v[i])
	}
	return out
}

func (e *Engine) ElementLoadings() map[string]float64 {
	out := make(map[string]float64)
	if !e.ok {
		return out
	}
	base := e.model.BaseKVA
	for i, br := range e.topo.branches {
		amps := cmplx.Abs(e.state.current[i])
		switch br.kind {
		case branchLine:
			out[br.name] = amps * e.topo.currentBase(br.parent, base) / br.normAmps * 100
		case branchTransformer:
			s := cmplx.Abs(e.state.v[br.parent]) * amps * base
			out[br.name] = s / br.kva * 100
		}
	}
	return out
}

func (e *Engine) Power(kind engine.Kind, name string) model.PowerPQ {
	if !e.ok {
		return model.NaNPower
	}
	switch kind {
	case engine.KindLoad:
		for _, l := range e.model.Loads {
			if l.Name == name {
				return model.PowerPQ{P: -l.KW * e.loadMult, Q: -l.KVAR * e.loadMult}
			}
		}
	case engine.KindCapacitor:
		for _, c := range e.model.Capacitors {
			if c.Name == name {
				v := cmplx.Abs(e.state.v[e.topo.index[c.Bus]])
				return model.PowerPQ{Q: c.KVAR * v * v}
			}
		}
	case engine.KindPV:
		for _, u := range e.pv {
			if u.desc.Name == name {
				return u.out
			}
		}
	case engine.KindStorage:
		for _, b := range e.storage {
			if b.desc.Name == name {
				q, _ := dispatch.ClampReactive(b.desc.KVAR, b.desc.KVA, b.kw)
				return model.PowerPQ{P: b.kw, Q: q}
			}
		}
	}
	return model.NaNPower
}

// TotalPower returns the complex power delivered by the source, positive
// when the feeder imports.
func (e *Engine) TotalPower() model.PowerPQ {
	if !e.ok {
		return model.NaNPower
	}
	var out complex128
	src := e.topo.source
	for i, br := range e.topo.branches {
		if br.parent == src {
			out += e.state.v[src] * cmplx.Conj(e.state.current[i])
		}
	}
	out *= complex(e.model.BaseKVA, 0)
	return model.PowerPQ{P: real(out), Q: imag(out)}
}

func (e *Engine) Losses() model.PowerPQ {
	if !e.ok {
		return model.NaNPower
	}
	var out complex128
	for i, br := range e.topo.branches {
		a := cmplx.Abs(e.state.current[i])
		out += complex(a*a, 0) * br.z
	}
	out *= complex(e.model.BaseKVA, 0)
	return model.PowerPQ{P: real(out), Q: imag(out)}
}

func (e *Engine) StorageUnits() []engine.StorageInfo {
	out := make([]engine.StorageInfo, len(e.storage))
	for i, b := range e.storage {
		out[i] = b.desc.Info()
	}
	return out
}

func (e *Engine) StorageSoC(name string) float64 {
	for _, b := range e.storage {
		if b.desc.Name == name {
			return b.soc
		}
	}
	return math.NaN()
}

func (e *Engine) PVRatedKW() float64 {
	var sum float64
	for _, u := range e.pv {
		sum += u.desc.PmppKW
	}
	return sum
}

func (e *Engine) LoadBaseKW() float64 {
	if e.model == nil {
		return 0
	}
	var sum float64
	for _, l := range e.model.Loads {
		sum += l.KW
	}
	return sum
}

func (e *Engine) StepHours() float64 { return e.stepHours }

func (e *Engine) SetStorage(name string, sp engine.Setpoint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.storage {
		if b.desc.Name == name {
			b.sp = sp
			return nil
		}
	}
	return fmt.Errorf("storage %q: %w", name, ErrUnknownElement)
}

func (e *Engine) Close() error {
	e.topo, e.model = nil, nil
	e.pv, e.storage = nil, nil
	return nil
}

func equalFold(a, b string) bool { return strings.EqualFold(a, b) }
