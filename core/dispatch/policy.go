package dispatch

import (
	"errors"
	"fmt"

	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/factory"
	"github.com/kilianp07/dersize/core/model"
)

// Policy decides the storage setpoints of one run. Dispatch is called right
// before the solve of step and may only read res.Records[:step].
type Policy interface {
	Dispatch(ctl engine.Controller, step int, res *model.SimulationResult) error
}

// Factory builds a fresh Policy for every run so that no state is shared
// between concurrent evaluations.
type Factory func() Policy

// PolicyFunc adapts a stateless function to Policy.
type PolicyFunc func(ctl engine.Controller, step int, res *model.SimulationResult) error

func (f PolicyFunc) Dispatch(ctl engine.Controller, step int, res *model.SimulationResult) error {
	return f(ctl, step, res)
}

// ErrProfile marks failures to obtain dispatch profile data.
var ErrProfile = errors.New("dispatch profile unavailable")

// ProfileError attributes a profile failure to its source.
type ProfileError struct {
	Source string
	Err    error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("dispatch profile %s: %v", e.Source, e.Err)
}

// Unwrap exposes both ErrProfile and the underlying cause.
func (e *ProfileError) Unwrap() []error { return []error{ErrProfile, e.Err} }

// ProfileSource yields a per-step series such as irradiance or load multipliers.
type ProfileSource interface {
	Name() string
	Load() ([]float64, error)
}

// StaticProfile is an in-memory ProfileSource.
type StaticProfile struct {
	Label  string
	Values []float64
	Err    error
}

func (s StaticProfile) Name() string { return s.Label }

func (s StaticProfile) Load() ([]float64, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]float64(nil), s.Values...), nil
}

var policyRegistry = factory.NewRegistry[Factory]()

// RegisterPolicy adds a policy factory builder identified by name.
func RegisterPolicy(name string, f factory.Factory[Factory]) error {
	return policyRegistry.Register(name, f)
}

// NewPolicyFactory resolves the configured policy. An empty type disables
// dispatch and returns a nil Factory.
func NewPolicyFactory(cfg factory.ModuleConfig) (Factory, error) {
	if cfg.Type == "" || cfg.Type == "none" {
		return nil, nil
	}
	return policyRegistry.Create(cfg)
}

// Policies lists the registered policy names.
func Policies() []string { return policyRegistry.Names() }
