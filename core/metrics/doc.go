// Package metrics defines the sinks that observe a sizing search. Every sink
// records evaluated candidates; sinks may additionally implement the
// SearchRecorder and StepRecorder interfaces. Sinks like PromSink and
// InfluxSink are registered by infra/metrics and combined with NewMultiSink
// when several are configured.
package metrics
