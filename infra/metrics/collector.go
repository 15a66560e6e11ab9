package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/dersize/core/events"
	coremetrics "github.com/kilianp07/dersize/core/metrics"
	"github.com/kilianp07/dersize/infra/logger"
	"github.com/kilianp07/dersize/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// search events. It stops when the context is canceled or the bus closes;
// the returned channel is closed once the collector has exited.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("metrics sink: %v", err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.EvaluationEvent:
		return sink.RecordEvaluation(coremetrics.EvaluationEvent{
			RunID:     e.RunID,
			Strategy:  e.Strategy,
			Candidate: e.Row.Candidate,
			Verdict:   e.Row.Verdict,
			Error:     e.Row.Error,
			Duration:  e.Row.Duration,
			Time:      e.Time,
		})
	case events.SearchFinishedEvent:
		if r, ok := sink.(coremetrics.SearchRecorder); ok {
			return r.RecordSearch(coremetrics.SearchEvent{
				RunID:     e.RunID,
				Strategy:  e.Strategy,
				Best:      e.Best,
				Feasible:  e.Feasible,
				Evaluated: e.Evaluated,
				Duration:  e.Duration,
				Time:      time.Now(),
			})
		}
	case coremetrics.StepEvent:
		if r, ok := sink.(coremetrics.StepRecorder); ok {
			return r.RecordStep(e)
		}
	}
	return nil
}
