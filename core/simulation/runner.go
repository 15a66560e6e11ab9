package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/dersize/core/dispatch"
	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/logger"
	"github.com/kilianp07/dersize/core/model"
)

// ErrInvalidHorizon is returned when the step count or size is not positive.
var ErrInvalidHorizon = errors.New("invalid simulation horizon")

// StepObserver receives every record as soon as it is produced.
type StepObserver func(label string, rec model.StepRecord)

// Runner executes one time-series run. The engine must already be compiled
// and configured; Run does not close it.
type Runner struct {
	Label     string
	Steps     int
	StepHours float64
	Evaluator Evaluator
	Logger    logger.Logger
	Observer  StepObserver
}

// Run performs INIT then (dispatch?, solve, evaluate) for every step. A nil
// policy disables dispatch. Non-convergence and engine solve errors are
// recorded inline and never stop the loop. A policy error stops further
// dispatch and idles every storage unit; the remaining steps still run and
// the error is returned with the complete result.
func (r Runner) Run(ctx context.Context, eng engine.Engine, policy dispatch.Policy) (*model.SimulationResult, error) {
	if r.Steps <= 0 || r.StepHours <= 0 {
		return nil, fmt.Errorf("%w: steps=%d step_hours=%v", ErrInvalidHorizon, r.Steps, r.StepHours)
	}
	log := logger.OrNop(r.Logger)
	res := model.NewSimulationResult(r.Label, r.Steps, r.StepHours, engine.Identity(eng))

	var policyErr error
	for step := 0; step < r.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if policy != nil && policyErr == nil {
			if err := policy.Dispatch(eng, step, res); err != nil {
				policyErr = fmt.Errorf("dispatch step %d: %w", step, err)
				log.Errorf("%s: dispatch disabled for the rest of the run: %v", r.Label, err)
				idleStorage(eng, r.Label, log)
			}
		}

		converged, err := eng.Solve(ctx)
		if err != nil {
			log.Warnf("%s: solve step %d: %v", r.Label, step, err)
			converged = false
		}

		var rec model.StepRecord
		if converged {
			rec = r.Evaluator.Converged(eng, step, res)
		} else {
			rec = r.Evaluator.NotConverged(step, res.Identity)
			log.Debugf("%s: step %d did not converge", r.Label, step)
		}
		res.Records = append(res.Records, rec)
		res.Converged = append(res.Converged, converged)
		if r.Observer != nil {
			r.Observer(r.Label, rec)
		}
	}
	if failed := len(res.FailedSteps()); failed > 0 {
		log.Infof("%s: %d/%d steps did not converge", r.Label, failed, r.Steps)
	}
	return res, policyErr
}

func idleStorage(eng engine.Engine, label string, log logger.Logger) {
	for _, u := range eng.StorageUnits() {
		if err := eng.SetStorage(u.Name, engine.Idle); err != nil {
			log.Warnf("%s: idle storage %s: %v", label, u.Name, err)
		}
	}
}
