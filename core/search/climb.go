package search

import (
	"context"
	"fmt"

	"github.com/kilianp07/dersize/core/model"
)

// StrategyClimb labels rows produced by Climb.
const StrategyClimb = "climb"

// Axis configures one dimension of the hill climb.
type Axis struct {
	Initial float64 `json:"initial"`
	Step    float64 `json:"step"`
	Max     float64 `json:"max"`
}

// ClimbConfig configures the hill climb.
type ClimbConfig struct {
	PV             Axis    `json:"pv"`
	Battery        Axis    `json:"battery"`
	InitialSoCPct  float64 `json:"initial_soc_pct"`
	RequireMinimal bool    `json:"require_minimal"`
	// MaxEvaluations caps the path length; 0 means no cap.
	MaxEvaluations int   `json:"max_evaluations"`
	Hooks          Hooks `json:"-"`
}

// ClimbResult is the path walked and the last feasible point on it.
type ClimbResult struct {
	Path     model.SearchPath    `json:"path"`
	Rows     []Row               `json:"rows"`
	Best     model.CandidateSize `json:"best"`
	Feasible bool                `json:"feasible"`
}

// Validate checks that both axes make progress.
func (c ClimbConfig) Validate() error {
	if c.PV.Step <= 0 {
		return fmt.Errorf("%w: pv step %v", ErrInvalidStep, c.PV.Step)
	}
	if c.Battery.Step <= 0 {
		return fmt.Errorf("%w: battery step %v", ErrInvalidStep, c.Battery.Step)
	}
	return nil
}

// Climb evaluates the current point; success grows PV, failure (including an
// evaluation error) grows the battery at the same PV. It stops as soon as
// either axis exceeds its maximum.
func Climb(ctx context.Context, ev Evaluator, cfg ClimbConfig) (ClimbResult, error) {
	if err := cfg.Validate(); err != nil {
		return ClimbResult{}, err
	}
	var res ClimbResult
	pv, bat := cfg.PV.Initial, cfg.Battery.Initial
	for pv <= cfg.PV.Max+tolerance*cfg.PV.Step && bat <= cfg.Battery.Max+tolerance*cfg.Battery.Step {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if cfg.MaxEvaluations > 0 && len(res.Path) >= cfg.MaxEvaluations {
			break
		}
		cand := model.CandidateSize{PVKW: pv, BatteryKW: bat, InitialSoCPct: cfg.InitialSoCPct}
		row := evaluate(ctx, ev, cand, cfg.Hooks)
		ok := row.Success(cfg.RequireMinimal)
		res.Rows = append(res.Rows, row)
		res.Path.Append(model.PathEntry{Candidate: cand, Success: ok, Reasons: row.Verdict.Reasons, Error: row.Error})
		cfg.Hooks.row(StrategyClimb, row)

		if ok {
			res.Best, res.Feasible = cand, true
			pv += cfg.PV.Step
		} else {
			bat += cfg.Battery.Step
		}
	}
	return res, nil
}
