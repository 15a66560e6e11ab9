package mqtt

import (
	"context"
	"time"

	"github.com/kilianp07/dersize/core/events"
	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/infra/logger"
	"github.com/kilianp07/dersize/internal/eventbus"
)

// StartedMessage announces a search.
type StartedMessage struct {
	RunID      string    `json:"run_id"`
	Strategy   string    `json:"strategy"`
	Candidates int       `json:"candidates,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EvaluationMessage is the payload of one evaluated candidate.
type EvaluationMessage struct {
	RunID         string          `json:"run_id"`
	Strategy      string          `json:"strategy"`
	PVKW          float64         `json:"pv_kw"`
	BatteryKW     float64         `json:"battery_kw"`
	InitialSoCPct float64         `json:"initial_soc_pct"`
	Status        model.Status    `json:"status"`
	Reasons       model.ReasonSet `json:"reason_codes"`
	Error         string          `json:"error,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
	Timestamp     time.Time       `json:"timestamp"`
}

// FinishedMessage reports the outcome of a search.
type FinishedMessage struct {
	RunID     string               `json:"run_id"`
	Strategy  string               `json:"strategy"`
	Feasible  bool                 `json:"feasible"`
	Best      *model.CandidateSize `json:"best,omitempty"`
	Evaluated int                  `json:"evaluated"`
	DurationS float64              `json:"duration_s"`
	Error     string               `json:"error,omitempty"`
}

type publisher interface {
	Publish(topic string, payload any) error
	Topic(parts ...string) string
}

// Forward publishes search events from bus until ctx is canceled or the bus
// closes. Topics are <prefix>/<run_id>/{started,evaluation,finished}. The
// returned channel is closed once forwarding has stopped.
func Forward(ctx context.Context, bus eventbus.EventBus, pub publisher, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
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
				topic, msg := message(pub, ev)
				if msg == nil {
					continue
				}
				if err := pub.Publish(topic, msg); err != nil {
					log.Warnf("mqtt forward: %v", err)
				}
			}
		}
	}()
	return done
}

func message(pub publisher, ev eventbus.Event) (string, any) {
	switch e := ev.(type) {
	case events.SearchStartedEvent:
		return pub.Topic(e.RunID, "started"), StartedMessage{
			RunID: e.RunID, Strategy: e.Strategy, Candidates: e.Candidates, Timestamp: e.Time,
		}
	case events.EvaluationEvent:
		r := e.Row
		return pub.Topic(e.RunID, "evaluation"), EvaluationMessage{
			RunID:         e.RunID,
			Strategy:      e.Strategy,
			PVKW:          r.Candidate.PVKW,
			BatteryKW:     r.Candidate.BatteryKW,
			InitialSoCPct: r.Candidate.InitialSoCPct,
			Status:        r.Verdict.Status,
			Reasons:       r.Verdict.Reasons,
			Error:         r.Error,
			DurationMS:    r.Duration.Milliseconds(),
			Timestamp:     e.Time,
		}
	case events.SearchFinishedEvent:
		m := FinishedMessage{
			RunID:     e.RunID,
			Strategy:  e.Strategy,
			Feasible:  e.Feasible,
			Evaluated: e.Evaluated,
			DurationS: e.Duration.Seconds(),
		}
		if e.Feasible {
			best := e.Best
			m.Best = &best
		}
		if e.Err != nil {
			m.Error = e.Err.Error()
		}
		return pub.Topic(e.RunID, "finished"), m
	}
	return "", nil
}
