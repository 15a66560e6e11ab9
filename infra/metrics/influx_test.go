package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/dersize/core/metrics"
	"github.com/kilianp07/dersize/core/model"
)

func TestInfluxSink_RecordEvaluation(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Now()
	ev := coremetrics.EvaluationEvent{
		RunID:     "run1",
		Strategy:  "climb",
		Candidate: model.CandidateSize{PVKW: 400, BatteryKW: 200, InitialSoCPct: 60},
		Verdict:   model.NewVerdict(model.NewReasonSet(model.ReasonLoadingViolation)),
		Duration:  250 * time.Millisecond,
		Time:      now,
	}
	if err := sink.RecordEvaluation(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("sizing_evaluation").
		AddTag("run_id", "run1").
		AddTag("strategy", "climb").
		AddTag("status", "Failure").
		AddTag("reasons", "LoadingViolation").
		AddField("pv_kw", 400.0).
		AddField("battery_kw", 200.0).
		AddField("initial_soc_pct", 60.0).
		AddField("duration_ms", int64(250)).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s\nwant: %s", body, expected)
	}
}

func TestInfluxSink_RecordSearchAndStep(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "t", Org: "o", Bucket: "b"})
	defer sink.Close()
	if err := sink.RecordSearch(coremetrics.SearchEvent{RunID: "r", Strategy: "traversal", Feasible: true, Evaluated: 12,
		Best: model.CandidateSize{PVKW: 1000, BatteryKW: 500}, Time: time.Now()}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if err := sink.RecordStep(coremetrics.StepEvent{RunID: "r", Label: "der", Step: 3, Converged: true, MinVoltage: 0.97, MaxVoltage: 1.02, Time: time.Now()}); err != nil {
		t.Fatalf("step: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(bodies))
	}
	if !strings.HasPrefix(bodies[0], "sizing_search,") || !strings.Contains(bodies[0], "strategy=traversal") || !strings.Contains(bodies[0], "best_pv_kw=1000") {
		t.Errorf("unexpected search line: %s", bodies[0])
	}
	if !strings.HasPrefix(bodies[1], "sizing_step,") || !strings.Contains(bodies[1], "label=der") || !strings.Contains(bodies[1], "min_voltage_pu=0.97") {
		t.Errorf("unexpected step line: %s", bodies[1])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
