package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/sizing"
)

var (
	// ErrInvalidStep is returned for a non-positive range or axis step.
	ErrInvalidStep = errors.New("search: step must be positive")
	// ErrInvalidRange is returned when a range stops before it starts.
	ErrInvalidRange = errors.New("search: stop before start")
)

// Evaluator evaluates one candidate. sizing.Runner implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, cand model.CandidateSize) (sizing.CaseResult, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, cand model.CandidateSize) (sizing.CaseResult, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, cand model.CandidateSize) (sizing.CaseResult, error) {
	return f(ctx, cand)
}

// Row is the flat outcome of one evaluated candidate.
type Row struct {
	Candidate model.CandidateSize `json:"candidate"`
	Verdict   model.Verdict       `json:"verdict"`
	Error     string              `json:"error,omitempty"`
	Duration  time.Duration       `json:"duration"`
}

// Success reports whether the row counts as a success. With requireMinimal an
// oversized battery is a failure.
func (r Row) Success(requireMinimal bool) bool {
	if r.Error != "" {
		return false
	}
	if requireMinimal {
		return r.Verdict.Minimal()
	}
	return r.Verdict.Feasible()
}

// Hooks observe evaluations as they complete. Callbacks from Traverse run on
// worker goroutines and must be safe for concurrent use.
type Hooks struct {
	OnRow   func(strategy string, row Row)
	OnError func(cand model.CandidateSize, err error)
}

func (h Hooks) row(strategy string, r Row) {
	if h.OnRow != nil {
		h.OnRow(strategy, r)
	}
}

func (h Hooks) err(cand model.CandidateSize, err error) {
	if h.OnError != nil {
		h.OnError(cand, err)
	}
}

// evaluate runs one candidate and converts errors and panics into failure rows.
func evaluate(ctx context.Context, ev Evaluator, cand model.CandidateSize, hooks Hooks) (row Row) {
	start := time.Now()
	row = Row{Candidate: cand, Verdict: model.Verdict{Status: model.StatusFailure, Reasons: model.NewReasonSet()}}
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic evaluating %s: %v\n%s", cand, rec, debug.Stack())
			hooks.err(cand, err)
			row.Verdict = model.Verdict{Status: model.StatusFailure, Reasons: model.NewReasonSet()}
			row.Error = fmt.Sprintf("panic: %v", rec)
		}
		row.Duration = time.Since(start)
	}()
	res, err := ev.Evaluate(ctx, cand)
	if err != nil {
		hooks.err(cand, err)
		row.Error = err.Error()
		return row
	}
	row.Verdict = res.Verdict
	return row
}

// better orders successful candidates: larger PV first, then smaller battery.
func better(a, b model.CandidateSize) bool {
	if a.PVKW != b.PVKW {
		return a.PVKW > b.PVKW
	}
	return a.BatteryKW < b.BatteryKW
}

const tolerance = 1e-9

// Range is a closed, step-quantized interval.
type Range struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Step  float64 `json:"step"`
}

// Values enumerates Start, Start+Step, ... up to and including Stop.
func (r Range) Values() ([]float64, error) {
	if r.Step <= 0 || math.IsNaN(r.Step) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, r.Step)
	}
	if r.Stop < r.Start {
		return nil, fmt.Errorf("%w: %v < %v", ErrInvalidRange, r.Stop, r.Start)
	}
	n := int(math.Floor((r.Stop-r.Start)/r.Step+tolerance)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Start + float64(i)*r.Step
	}
	return out, nil
}
