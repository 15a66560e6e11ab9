// Package monitoring defines the error reporting hooks used by the searches.
package monitoring

import (
	"strconv"
	"time"

	"github.com/kilianp07/dersize/core/model"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CaptureMessage(msg string, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CaptureMessage(string, map[string]string)  {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

// OrNop returns m, or a NopMonitor when m is nil.
func OrNop(m Monitor) Monitor {
	if m == nil {
		return NopMonitor{}
	}
	return m
}

// CandidateTags describes a failing evaluation for error reports.
func CandidateTags(runID, strategy string, c model.CandidateSize) map[string]string {
	return map[string]string{
		"run_id":     runID,
		"strategy":   strategy,
		"pv_kw":      strconv.FormatFloat(c.PVKW, 'f', -1, 64),
		"battery_kw": strconv.FormatFloat(c.BatteryKW, 'f', -1, 64),
	}
}
