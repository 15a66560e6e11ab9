package metrics

import "testing"

// TestMultiSink ensures events are forwarded to all sinks.

type recordSink struct {
	count int
}

func (r *recordSink) RecordEvaluation(EvaluationEvent) error {
	r.count++
	return nil
}

func (r *recordSink) RecordSearch(SearchEvent) error {
	r.count++
	return nil
}

type evalOnly struct {
	count int
}

func (e *evalOnly) RecordEvaluation(EvaluationEvent) error {
	e.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	s3 := &evalOnly{}
	m := NewMultiSink(s1, s2, s3)
	if err := m.RecordEvaluation(EvaluationEvent{}); err != nil {
		t.Fatalf("record evaluation: %v", err)
	}
	if err := m.RecordSearch(SearchEvent{}); err != nil {
		t.Fatalf("record search: %v", err)
	}
	if err := m.RecordStep(StepEvent{}); err != nil {
		t.Fatalf("record step: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("events not forwarded")
	}
	if s3.count != 1 {
		t.Fatalf("expected evaluation only, got %d", s3.count)
	}
}

type closingSink struct {
	evalOnly
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

func TestMultiSinkClose(t *testing.T) {
	c := &closingSink{}
	NewMultiSink(&evalOnly{}, c).Close()
	if !c.closed {
		t.Fatalf("sink not closed")
	}
}
