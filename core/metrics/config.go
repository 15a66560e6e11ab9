package metrics

import "github.com/kilianp07/dersize/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort enables the /metrics endpoint when set.
	PrometheusPort string `json:"prometheus_port"`
	// RecordSteps forwards per-step snapshots to sinks implementing StepRecorder.
	RecordSteps bool `json:"record_steps"`
}
