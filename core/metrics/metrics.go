package metrics

import (
	"time"

	"github.com/kilianp07/dersize/core/model"
)

// EvaluationEvent is the outcome of one candidate evaluation.
type EvaluationEvent struct {
	RunID     string
	Strategy  string
	Candidate model.CandidateSize
	Verdict   model.Verdict
	Error     string
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records candidate evaluations for observability purposes.
type MetricsSink interface {
	RecordEvaluation(ev EvaluationEvent) error
}

// SearchEvent summarizes a finished search.
type SearchEvent struct {
	RunID     string
	Strategy  string
	Best      model.CandidateSize
	Feasible  bool
	Evaluated int
	Duration  time.Duration
	Time      time.Time
}

// SearchRecorder records finished searches.
type SearchRecorder interface {
	RecordSearch(ev SearchEvent) error
}

// StepEvent is a per-step snapshot of one simulated run.
type StepEvent struct {
	RunID      string
	Label      string
	Candidate  model.CandidateSize
	Step       int
	Converged  bool
	MinVoltage float64
	MaxVoltage float64
	MaxLoading float64
	TotalKW    float64
	LossesKW   float64
	Time       time.Time
}

// StepRecorder records per-step snapshots.
type StepRecorder interface {
	RecordStep(ev StepEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordEvaluation(EvaluationEvent) error { return nil }
func (NopSink) RecordSearch(SearchEvent) error         { return nil }
func (NopSink) RecordStep(StepEvent) error             { return nil }
