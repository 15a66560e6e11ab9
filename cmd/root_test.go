package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search/logging"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "traverse", "climb", "results"} {
		if !names[want] {
			t.Fatalf("missing subcommand %s", want)
		}
	}
}

func TestMissingConfigFails(t *testing.T) {
	rootCmd.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "nope.yaml")})
	rootCmd.SilenceErrors = true
	err := Execute()
	assert.ErrorContains(t, err, "load config")
}

const resultsConfig = `files: {feeder: feeder.yaml, load_profile: load.txt, pv_profile: pv.txt}
pv:
  units: [{name: pv1, bus: b}]
storage:
  units: [{name: bess1, bus: b}]
logging: {backend: jsonl, path: %q}
`

func TestResultsFiltersByRunID(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "results.jsonl")
	store, err := logging.NewJSONLStore(logPath)
	require.NoError(t, err)
	ts := time.Date(2025, 8, 12, 10, 0, 0, 0, time.UTC)
	for _, rec := range []logging.LogRecord{
		{Timestamp: ts, RunID: "run-a", Strategy: "traversal", PVKW: 400, BatteryKW: 100, SoCPct: 60, Status: model.StatusSuccess, Reasons: model.NewReasonSet()},
		{Timestamp: ts, RunID: "run-b", Strategy: "climb", PVKW: 800, BatteryKW: 200, SoCPct: 60, Status: model.StatusFailure, Reasons: model.NewReasonSet(model.ReasonVoltageViolation)},
	} {
		require.NoError(t, store.Append(context.Background(), rec))
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(resultsConfig, logPath)), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"results", "--config", cfgPath, "--run-id", "run-b"})
	require.NoError(t, Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,run_id,strategy"))
	assert.Equal(t, "2025-08-12T10:00:00Z,run-b,climb,800,200,60,Failure,VoltageViolation,,0", lines[1])
}
