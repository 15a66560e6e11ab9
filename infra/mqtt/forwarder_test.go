package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dersize/core/events"
	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search"
	"github.com/kilianp07/dersize/internal/eventbus"
)

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	bodies [][]byte
}

func (f *fakePublisher) Topic(parts ...string) string {
	t := "test"
	for _, p := range parts {
		t += "/" + p
	}
	return t
}

func (f *fakePublisher) Publish(topic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.bodies = append(f.bodies, b)
	return nil
}

func TestForwardPublishesSearchEvents(t *testing.T) {
	bus := eventbus.New()
	pub := &fakePublisher{}
	done := Forward(context.Background(), bus, pub, nil)

	row := search.Row{
		Candidate: model.CandidateSize{PVKW: 400, BatteryKW: 200, InitialSoCPct: 60},
		Verdict:   model.NewVerdict(model.NewReasonSet(model.ReasonVoltageViolation)),
		Duration:  1500 * time.Millisecond,
	}
	bus.Publish(events.SearchStartedEvent{RunID: "r1", Strategy: search.StrategyClimb})
	bus.Publish(events.EvaluationEvent{RunID: "r1", Strategy: search.StrategyClimb, Row: row})
	bus.Publish(events.SearchFinishedEvent{RunID: "r1", Strategy: search.StrategyClimb, Evaluated: 1, Err: errors.New("boom")})
	bus.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Equal(t, []string{"test/r1/started", "test/r1/evaluation", "test/r1/finished"}, pub.topics)

	var eval map[string]any
	require.NoError(t, json.Unmarshal(pub.bodies[1], &eval))
	assert.Equal(t, "Failure", eval["status"])
	assert.Equal(t, []any{"VoltageViolation"}, eval["reason_codes"])
	assert.Equal(t, 400.0, eval["pv_kw"])
	assert.Equal(t, 1500.0, eval["duration_ms"])

	var fin FinishedMessage
	require.NoError(t, json.Unmarshal(pub.bodies[2], &fin))
	assert.False(t, fin.Feasible)
	assert.Nil(t, fin.Best)
	assert.Equal(t, "boom", fin.Error)
}
