package engine

import (
	"context"
	"errors"

	"github.com/kilianp07/dersize/core/model"
)

// Kind identifies a class of circuit components.
type Kind string

const (
	KindLoad      Kind = "load"
	KindPV        Kind = "pvsystem"
	KindStorage   Kind = "storage"
	KindCapacitor Kind = "capacitor"
)

// Mode is the operating state written to a storage device.
type Mode int

const (
	ModeIdle Mode = iota
	ModeCharge
	ModeDischarge
)

func (m Mode) String() string {
	switch m {
	case ModeCharge:
		return "charging"
	case ModeDischarge:
		return "discharging"
	default:
		return "idling"
	}
}

// Setpoint is a live storage command. KW > 0 discharges, KW < 0 charges.
type Setpoint struct {
	KW   float64
	Mode Mode
}

// Idle is the zero setpoint.
var Idle = Setpoint{Mode: ModeIdle}

// StorageInfo exposes the ratings of an attached storage unit.
type StorageInfo struct {
	Name       string
	KWRated    float64
	KWhRated   float64
	ReservePct float64
}

var (
	// ErrNotCompiled is returned when an operation requires a compiled circuit.
	ErrNotCompiled = errors.New("engine: circuit not compiled")
	// ErrHorizonExceeded is returned when Solve is called past the configured steps.
	ErrHorizonExceeded = errors.New("engine: horizon exceeded")
)

// Controller is the subset of an engine a dispatch policy may use.
type Controller interface {
	StorageUnits() []StorageInfo
	StorageSoC(name string) float64
	PVRatedKW() float64
	LoadBaseKW() float64
	StepHours() float64
	SetStorage(name string, sp Setpoint) error
}

// Engine compiles a circuit, advances it step by step and exposes the solved
// electrical quantities. One instance serves exactly one run.
type Engine interface {
	Controller

	Compile(ctx context.Context, modelPath string) error
	Attach(d Descriptor) error
	Configure(steps int, stepHours float64) error
	// Solve advances the circuit by one step and reports convergence.
	Solve(ctx context.Context) (bool, error)

	// Buses returns lower-cased bus names ordered by distance from the meter.
	Buses() []string
	Elements() []string
	Names(kind Kind) []string
	BusVoltages() map[string]float64
	ElementLoadings() map[string]float64
	Power(kind Kind, name string) model.PowerPQ
	TotalPower() model.PowerPQ
	Losses() model.PowerPQ

	Close() error
}

// Factory builds a fresh engine instance.
type Factory func() (Engine, error)

// Identity snapshots the entity lists of a compiled engine.
func Identity(e Engine) model.Identity {
	return model.Identity{
		Buses:      e.Buses(),
		Elements:   e.Elements(),
		Loads:      e.Names(KindLoad),
		PV:         e.Names(KindPV),
		Storage:    e.Names(KindStorage),
		Capacitors: e.Names(KindCapacitor),
	}
}
