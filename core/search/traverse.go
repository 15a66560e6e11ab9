package search

import (
	"context"
	"runtime"
	"sort"

	"github.com/kilianp07/dersize/core/model"
	"golang.org/x/sync/errgroup"
)

// StrategyTraversal labels rows produced by Traverse.
const StrategyTraversal = "traversal"

// TraversalConfig describes the grid to sweep.
type TraversalConfig struct {
	PV            Range   `json:"pv"`
	Battery       Range   `json:"battery"`
	InitialSoCPct float64 `json:"initial_soc_pct"`
	// Workers bounds parallel evaluations; 0 uses GOMAXPROCS.
	Workers int `json:"workers"`
	// RequireMinimal treats BatteryOversized rows as failures.
	RequireMinimal bool  `json:"require_minimal"`
	Hooks          Hooks `json:"-"`
}

// TraversalResult holds one row per grid point in PV-major order.
type TraversalResult struct {
	Rows     []Row               `json:"rows"`
	Best     model.CandidateSize `json:"best"`
	Feasible bool                `json:"feasible"`
}

// Grid enumerates the candidates of cfg in PV-major order.
func Grid(cfg TraversalConfig) ([]model.CandidateSize, error) {
	pvs, err := cfg.PV.Values()
	if err != nil {
		return nil, err
	}
	bats, err := cfg.Battery.Values()
	if err != nil {
		return nil, err
	}
	out := make([]model.CandidateSize, 0, len(pvs)*len(bats))
	for _, pv := range pvs {
		for _, b := range bats {
			out = append(out, model.CandidateSize{PVKW: pv, BatteryKW: b, InitialSoCPct: cfg.InitialSoCPct})
		}
	}
	return out, nil
}

// Traverse evaluates every grid point independently. Candidate failures
// become rows and never abort the sweep. When ctx is cancelled the rows
// evaluated so far are returned with ctx.Err().
func Traverse(ctx context.Context, ev Evaluator, cfg TraversalConfig) (TraversalResult, error) {
	grid, err := Grid(cfg)
	if err != nil {
		return TraversalResult{}, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rows := make([]Row, len(grid))
	done := make([]bool, len(grid))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, cand := range grid {
		if ctx.Err() != nil {
			break
		}
		i, cand := i, cand
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			row := evaluate(ctx, ev, cand, cfg.Hooks)
			rows[i] = row
			done[i] = true
			cfg.Hooks.row(StrategyTraversal, row)
			return nil
		})
	}
	_ = g.Wait()

	res := TraversalResult{Rows: make([]Row, 0, len(grid))}
	for i, ok := range done {
		if ok {
			res.Rows = append(res.Rows, rows[i])
		}
	}
	res.Best, res.Feasible = Optimum(res.Rows, cfg.RequireMinimal)
	return res, ctx.Err()
}

// Optimum picks the successful row with the largest PV, breaking ties by the
// smallest battery.
func Optimum(rows []Row, requireMinimal bool) (model.CandidateSize, bool) {
	var ok []model.CandidateSize
	for _, r := range rows {
		if r.Success(requireMinimal) {
			ok = append(ok, r.Candidate)
		}
	}
	if len(ok) == 0 {
		return model.CandidateSize{}, false
	}
	sort.SliceStable(ok, func(i, j int) bool { return better(ok[i], ok[j]) })
	return ok[0], true
}
