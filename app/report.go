package app

import (
	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/simulation"
	"github.com/kilianp07/dersize/core/sizing"
)

// report logs the convergence and violation summary of both runs of a case.
func (s *Service) report(name string, c sizing.CaseResult) {
	s.log.Infof("%s %s: %s", name, c.Candidate, c.Verdict)
	for _, a := range c.Advisories {
		s.log.Warnf("%s advisory: %s", name, a)
	}
	limits := s.runner.Limits
	for _, res := range []*model.SimulationResult{c.Baseline, c.DER} {
		if res == nil {
			continue
		}
		if failed := res.FailedSteps(); len(failed) > 0 {
			human := make([]int, len(failed))
			for i, f := range failed {
				human[i] = f + 1
			}
			s.log.Warnf("%s %s: convergence failed at steps %v", name, res.Label, human)
		} else {
			s.log.Infof("%s %s: all %d steps converged", name, res.Label, res.Steps)
		}
		for _, v := range simulation.VoltageSummary(res, limits) {
			s.log.Warnf("%s %s: bus %s voltage out of band %d times (%d high, %d low), worst %.4f p.u. at step %d",
				name, res.Label, v.Entity, v.Count, v.High, v.Low, v.WorstValue, v.WorstStep+1)
		}
		for _, v := range simulation.LoadingSummary(res, limits) {
			s.log.Warnf("%s %s: %s overloaded %d times, worst %.1f%% at step %d",
				name, res.Label, v.Entity, v.Count, v.WorstValue, v.WorstStep+1)
		}
	}
}
