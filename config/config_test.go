package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `files:
  feeder: feeders/ieee13.yaml
  load_profile: profiles/load_curve.txt
  pv_profile: /abs/pv.csv#pv
pv:
  units:
    - name: pv1
      bus: "675"
storage:
  units:
    - name: bess1
      bus: "675"
`

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	data := minimal + `time_series:
  steps: 48
  step_size: 30m
limits:
  low_limit: 0.94
meter:
  element: Line.650632
dispatch:
  type: forecast
  conf:
    pv_profile: profiles/pv.txt
    load_profile: profiles/load.txt
traversal:
  pv: {start: 0, stop: 1000, step: 500}
  workers: 2
climb:
  require_minimal: true
logging:
  backend: sqlite
  path: results.db
metrics:
  sinks:
    - type: "nop"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "sizing"
`
	path := writeConfig(t, "config.yaml", data)
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"feeder", cfg.Files.Feeder, filepath.Join(dir, "feeders/ieee13.yaml")},
		{"pv_profile", cfg.Files.PVProfile, "/abs/pv.csv#pv"},
		{"steps", cfg.TimeSeries.Steps, 48},
		{"step_hours", cfg.TimeSeries.StepHours(), 0.5},
		{"low", cfg.Limits.LowPU, 0.94},
		{"high", cfg.Limits.HighPU, 1.05},
		{"loading", cfg.Limits.LoadingPct, 100.0},
		{"meter", cfg.Meter.Descriptor().Name, "feeder_head"},
		{"phases", cfg.PV.Units[0].Phases, 3},
		{"kva_factor", cfg.PV.KVAFactor, 1.1},
		{"duration", cfg.Storage.DurationHours, 4.0},
		{"inverter_factor", cfg.Storage.InverterFactor, 1.7},
		{"reserve", cfg.Storage.ReservePct, 20.0},
		{"soc", cfg.Battery.InitialSoCPct, 60.0},
		{"dispatch", cfg.Dispatch.Type, "forecast"},
		{"dispatch_profile", cfg.Dispatch.Conf["pv_profile"], filepath.Join(dir, "profiles/pv.txt")},
		{"check_hour", cfg.Evaluation.Options().CheckHour, 6.75},
		{"final_soc", cfg.Evaluation.Options().FinalSoCLimitPct, 60.0},
		{"min_reserve", cfg.Evaluation.Options().MinReservePct, 20.0},
		{"traversal_stop", cfg.Traversal.PV.Stop, 1000.0},
		{"traversal_battery_start", cfg.Traversal.Battery.Start, 100.0},
		{"traversal_soc", cfg.Traversal.InitialSoCPct, 60.0},
		{"climb_minimal", cfg.Climb.RequireMinimal, true},
		{"climb_pv_step", cfg.Climb.PV.Step, 200.0},
		{"single_pv", cfg.SingleRun.Candidate().PVKW, 3000.0},
		{"single_battery", cfg.SingleRun.Candidate().BatteryKW, 2000.0},
		{"logging", cfg.Logging.Store().Backend, "sqlite"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "sizing"},
		{"output", cfg.Output.Dir, "results"},
		{"charts", cfg.Output.ChartsEnabled(), true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaultsDispatch(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", minimal))
	require.NoError(t, err)
	assert.Equal(t, "self_consumption", cfg.Dispatch.Type)
	assert.Equal(t, 96, cfg.TimeSeries.Steps)
	assert.InDelta(t, 0.25, cfg.TimeSeries.StepHours(), 1e-12)
	assert.Equal(t, "jsonl", cfg.Logging.Backend)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", minimal)
	t.Setenv("DERSIZE_TIME_SERIES__STEPS", "24")
	t.Setenv("DERSIZE_SINGLE_RUN__PV_KW", "1500")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.TimeSeries.Steps)
	assert.Equal(t, 1500.0, cfg.SingleRun.Candidate().PVKW)
	assert.Equal(t, 6.75, cfg.Evaluation.Options().CheckHour)
}

func TestLoadKeepsExplicitZeros(t *testing.T) {
	data := minimal + `single_run:
  pv_kw: 0
  battery_kw: 0
evaluation:
  final_soc_limit_pct: 0
  min_reserve_pct: 0
`
	cfg, err := Load(writeConfig(t, "config.yaml", data))
	require.NoError(t, err)
	cand := cfg.SingleRun.Candidate()
	assert.Zero(t, cand.PVKW)
	assert.Zero(t, cand.BatteryKW)
	assert.Equal(t, 60.0, cand.InitialSoCPct)
	opts := cfg.Evaluation.Options()
	assert.Zero(t, opts.FinalSoCLimitPct)
	assert.Zero(t, opts.MinReservePct)
}

func TestLoadMinReserveFollowsStorage(t *testing.T) {
	data := strings.Replace(minimal, "storage:\n", "storage:\n  reserve_pct: 35\n", 1)
	cfg, err := Load(writeConfig(t, "config.yaml", data))
	require.NoError(t, err)
	assert.Equal(t, 35.0, cfg.Storage.ReservePct)
	assert.Equal(t, 35.0, cfg.Evaluation.Options().MinReservePct)

	cfg, err = Load(writeConfig(t, "config.yaml", data+"evaluation:\n  min_reserve_pct: 10\n"))
	require.NoError(t, err)
	assert.Equal(t, 10.0, cfg.Evaluation.Options().MinReservePct)
}

func TestLoadJSON(t *testing.T) {
	data := `{"files":{"feeder":"f.yaml","load_profile":"l.txt","pv_profile":"p.txt"},
"pv":{"units":[{"name":"pv1","bus":"675"}]},
"storage":{"units":[{"name":"b1","bus":"675"}]},
"output":{"charts":false}}`
	cfg, err := Load(writeConfig(t, "config.json", data))
	require.NoError(t, err)
	assert.False(t, cfg.Output.ChartsEnabled())
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"missing files", "pv:\n  units: [{name: a, bus: b}]\n", "feeder is required"},
		{"bad step size", minimal + "time_series:\n  step_size: soon\n", "step_size"},
		{"empty band", minimal + "limits:\n  low_limit: 1.1\n", "voltage band"},
		{"check hour", minimal + "evaluation:\n  check_hour: 30\n", "check_hour"},
		{"bad range", minimal + "traversal:\n  pv: {start: 10, stop: 0, step: 1}\n", "traversal: pv"},
		{"bad backend", minimal + "logging:\n  backend: csv\n", "unknown backend"},
		{"duplicate unit", strings.Replace(minimal, "    - name: bess1\n", "    - name: pv1\n      bus: \"632\"\n    - name: pv1\n", 1), "duplicate name pv1"},
	}
	for _, c := range cases {
		_, err := Load(writeConfig(t, "config.yaml", c.data))
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: expected error containing %q, got %v", c.name, c.want, err)
		}
	}
	_, err := Load(writeConfig(t, "config.toml", minimal))
	assert.Error(t, err)
}
