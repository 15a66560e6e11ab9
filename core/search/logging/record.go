package logging

import (
	"time"

	"github.com/kilianp07/dersize/core/search"
)

// FromRow converts a search row into a LogRecord.
func FromRow(runID, strategy string, row search.Row, ts time.Time) LogRecord {
	return LogRecord{
		Timestamp:  ts,
		RunID:      runID,
		Strategy:   strategy,
		PVKW:       row.Candidate.PVKW,
		BatteryKW:  row.Candidate.BatteryKW,
		SoCPct:     row.Candidate.InitialSoCPct,
		Status:     row.Verdict.Status,
		Reasons:    row.Verdict.Reasons,
		Error:      row.Error,
		DurationMS: row.Duration.Milliseconds(),
	}
}
