package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordEvaluation forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordEvaluation(ev EvaluationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordEvaluation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSearch forwards search summaries when supported by the sink.
func (m *MultiSink) RecordSearch(ev SearchEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SearchRecorder); ok {
			if err := rec.RecordSearch(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStep forwards step snapshots when supported by the sink.
func (m *MultiSink) RecordStep(ev StepEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StepRecorder); ok {
			if err := rec.RecordStep(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases every sink that holds a client.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
