package events

import (
	"time"

	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search"
)

// SearchStartedEvent is published before the first evaluation.
type SearchStartedEvent struct {
	RunID    string
	Strategy string
	// Candidates is the grid size for a traversal and 0 for a climb.
	Candidates int
	Time       time.Time
}

// EvaluationEvent is published for every evaluated candidate.
type EvaluationEvent struct {
	RunID    string
	Strategy string
	Row      search.Row
	Time     time.Time
}

// SearchFinishedEvent is published once the search returns.
type SearchFinishedEvent struct {
	RunID     string
	Strategy  string
	Best      model.CandidateSize
	Feasible  bool
	Evaluated int
	Duration  time.Duration
	Err       error
}
