package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/dersize/core/metrics"
	"github.com/kilianp07/dersize/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving sizing events.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes sizing events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordEvaluation writes one evaluated candidate.
func (s *InfluxSink) RecordEvaluation(ev coremetrics.EvaluationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, evaluationPoint(ev))
}

func evaluationPoint(ev coremetrics.EvaluationEvent) *write.Point {
	p := write.NewPointWithMeasurement("sizing_evaluation").
		AddTag("run_id", ev.RunID).
		AddTag("strategy", ev.Strategy).
		AddTag("status", ev.Verdict.Status.String())
	if len(ev.Verdict.Reasons) > 0 {
		p = p.AddTag("reasons", ev.Verdict.Reasons.String())
	}
	p = p.AddField("pv_kw", round3(ev.Candidate.PVKW)).
		AddField("battery_kw", round3(ev.Candidate.BatteryKW)).
		AddField("initial_soc_pct", round3(ev.Candidate.InitialSoCPct)).
		AddField("duration_ms", ev.Duration.Milliseconds())
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	return p.SetTime(ev.Time)
}

// RecordSearch writes the summary of a finished search.
func (s *InfluxSink) RecordSearch(ev coremetrics.SearchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sizing_search").
		AddTag("run_id", ev.RunID).
		AddTag("strategy", ev.Strategy).
		AddField("feasible", ev.Feasible).
		AddField("evaluated", ev.Evaluated).
		AddField("duration_ms", ev.Duration.Milliseconds())
	if ev.Feasible {
		p = p.AddField("best_pv_kw", round3(ev.Best.PVKW)).
			AddField("best_battery_kw", round3(ev.Best.BatteryKW))
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Time))
}

// RecordStep writes a per-step grid snapshot.
func (s *InfluxSink) RecordStep(ev coremetrics.StepEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sizing_step").
		AddTag("run_id", ev.RunID).
		AddTag("label", ev.Label).
		AddField("step", ev.Step).
		AddField("converged", ev.Converged)
	if ev.Converged {
		p = p.AddField("min_voltage_pu", round3(ev.MinVoltage)).
			AddField("max_voltage_pu", round3(ev.MaxVoltage)).
			AddField("max_loading_pct", round3(ev.MaxLoading)).
			AddField("total_kw", round3(ev.TotalKW)).
			AddField("losses_kw", round3(ev.LossesKW))
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ev.Time))
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
