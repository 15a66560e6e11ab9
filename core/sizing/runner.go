// Package sizing evaluates one candidate size through a baseline run and a
// run with PV and storage connected.
package sizing

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/dersize/core/dispatch"
	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/evaluation"
	"github.com/kilianp07/dersize/core/logger"
	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/simulation"
)

const (
	LabelBaseline = "baseline"
	LabelDER      = "der"
)

// ErrNoEngine is returned when the runner has no engine factory.
var ErrNoEngine = errors.New("sizing: no engine factory")

// CaseResult bundles both runs of one candidate and the verdict of the DER run.
type CaseResult struct {
	Candidate  model.CandidateSize     `json:"candidate"`
	Baseline   *model.SimulationResult `json:"baseline"`
	DER        *model.SimulationResult `json:"der"`
	Verdict    model.Verdict           `json:"verdict"`
	Advisories []string                `json:"advisories,omitempty"`
}

// Runner is immutable once built and safe for concurrent Evaluate calls: every
// call builds its own engines and policy.
type Runner struct {
	ModelPath  string
	Steps      int
	StepHours  float64
	Limits     model.Limits
	LoadShape  engine.LoadShape
	PVShape    engine.LoadShape
	Meter      engine.EnergyMeter
	PV         PVConfig
	Storage    StorageConfig
	Policy     dispatch.Factory
	Evaluation evaluation.Options
	NewEngine  engine.Factory
	Logger     logger.Logger
	Observer   simulation.StepObserver
}

// Evaluate runs the baseline and the DER case for cand. A dispatch profile
// failure is returned as an error alongside the complete result.
func (r *Runner) Evaluate(ctx context.Context, cand model.CandidateSize) (CaseResult, error) {
	out := CaseResult{Candidate: cand}
	if err := cand.Validate(); err != nil {
		return out, err
	}
	if r.NewEngine == nil {
		return out, ErrNoEngine
	}
	log := logger.OrNop(r.Logger)

	base, err := r.run(ctx, LabelBaseline, nil, nil)
	if err != nil {
		return out, fmt.Errorf("baseline %s: %w", cand, err)
	}
	out.Baseline = base

	descs, advisories := r.Descriptors(cand)
	for _, a := range advisories {
		log.Warnf("%s: %s", cand, a)
	}
	out.Advisories = advisories

	var policy dispatch.Policy
	if r.Policy != nil {
		policy = r.Policy()
	}
	der, runErr := r.run(ctx, LabelDER, descs, policy)
	if der == nil {
		return out, fmt.Errorf("der %s: %w", cand, runErr)
	}
	out.DER = der
	out.Verdict = evaluation.Classify(der, cand, r.Evaluation)
	log.Debugw("case evaluated", map[string]any{
		"pv_kw":      cand.PVKW,
		"battery_kw": cand.BatteryKW,
		"status":     out.Verdict.Status.String(),
		"reasons":    out.Verdict.Reasons.String(),
	})
	if runErr != nil {
		return out, fmt.Errorf("der %s: %w", cand, runErr)
	}
	return out, nil
}

func (r *Runner) run(ctx context.Context, label string, descs []engine.Descriptor, policy dispatch.Policy) (res *model.SimulationResult, err error) {
	eng, err := r.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := eng.Compile(ctx, r.ModelPath); err != nil {
		return nil, fmt.Errorf("compile %s: %w", r.ModelPath, err)
	}
	if err := eng.Configure(r.Steps, r.StepHours); err != nil {
		return nil, err
	}
	base := []engine.Descriptor{r.LoadShape}
	if r.Meter.Element != "" {
		base = append(base, r.Meter)
	}
	if len(descs) > 0 && r.PVShape.Name != "" {
		base = append(base, r.PVShape)
	}
	for _, d := range append(base, descs...) {
		if err := eng.Attach(d); err != nil {
			return nil, fmt.Errorf("attach %s: %w", d.ElementName(), err)
		}
	}
	sim := simulation.Runner{
		Label:     label,
		Steps:     r.Steps,
		StepHours: r.StepHours,
		Evaluator: simulation.Evaluator{Limits: r.Limits},
		Logger:    r.Logger,
		Observer:  r.Observer,
	}
	return sim.Run(ctx, eng, policy)
}

// Descriptors builds the PV and storage elements for cand. Sizes are split
// evenly across the configured units and zero sizes attach nothing.
func (r *Runner) Descriptors(cand model.CandidateSize) ([]engine.Descriptor, []string) {
	var descs []engine.Descriptor
	var advisories []string

	if n := len(r.PV.Units); cand.PVKW > 0 && n > 0 {
		pmpp := cand.PVKW / float64(n)
		kva := r.PV.KVAFactor * pmpp
		for _, u := range r.PV.Units {
			pv := engine.PVSystem{
				Name:   u.Name,
				Bus:    u.Bus,
				Phases: u.Phases,
				KV:     u.KV,
				PmppKW: pmpp,
				KVA:    kva,
				PF:     r.PV.PF,
				Daily:  r.PVShape.Name,
			}
			if r.PV.PF == 0 {
				kvar, clamped := dispatch.ClampReactive(r.PV.KVAR, kva, pmpp)
				if clamped {
					advisories = append(advisories, fmt.Sprintf("PVSystem.%s kvar %.2f clamped to %.2f (kVA %.2f, Pmpp %.2f)", u.Name, r.PV.KVAR, kvar, kva, pmpp))
				}
				pv.KVAR = kvar
			}
			descs = append(descs, pv)
		}
	}

	if n := len(r.Storage.Units); cand.BatteryKW > 0 && n > 0 {
		share := model.CandidateSize{PVKW: cand.PVKW, BatteryKW: cand.BatteryKW / float64(n), InitialSoCPct: cand.InitialSoCPct}
		kva := share.InverterKVA(r.Storage.InverterFactor)
		for _, u := range r.Storage.Units {
			kvar, clamped := dispatch.ClampReactive(r.Storage.KVAR, kva, share.BatteryKW)
			if clamped {
				advisories = append(advisories, fmt.Sprintf("Storage.%s kvar %.2f clamped to %.2f (kVA %.2f, kW %.2f)", u.Name, r.Storage.KVAR, kvar, kva, share.BatteryKW))
			}
			descs = append(descs, engine.Storage{
				Name:       u.Name,
				Bus:        u.Bus,
				Phases:     u.Phases,
				KV:         u.KV,
				KWRated:    share.BatteryKW,
				KWhRated:   share.BatteryKWh(r.Storage.DurationHours),
				KVA:        kva,
				KVAR:       kvar,
				StoredPct:  cand.InitialSoCPct,
				ReservePct: r.Storage.ReservePct,
				IdlingPct:  r.Storage.IdlingPct,
			})
		}
	}
	return descs, advisories
}
