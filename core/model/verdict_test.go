package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerdictStatus(t *testing.T) {
	cases := []struct {
		name    string
		reasons []ReasonCode
		want    Status
	}{
		{"no reasons", nil, StatusSuccess},
		{"oversized only", []ReasonCode{ReasonBatteryOversized}, StatusSuccess},
		{"voltage", []ReasonCode{ReasonVoltageViolation}, StatusFailure},
		{"loading and oversized", []ReasonCode{ReasonLoadingViolation, ReasonBatteryOversized}, StatusFailure},
		{"invalid", []ReasonCode{ReasonInvalidData}, StatusFailure},
		{"convergence", []ReasonCode{ReasonConvergenceFailure}, StatusFailure},
	}
	for _, c := range cases {
		v := NewVerdict(NewReasonSet(c.reasons...))
		if v.Status != c.want {
			t.Errorf("%s: expected %s got %s", c.name, c.want, v.Status)
		}
	}
}

func TestVerdictMinimal(t *testing.T) {
	v := NewVerdict(NewReasonSet(ReasonBatteryOversized))
	assert.True(t, v.Feasible())
	assert.False(t, v.Minimal())
	assert.True(t, NewVerdict(nil).Minimal())
}

func TestReasonSetString(t *testing.T) {
	s := NewReasonSet(ReasonBatteryOversized, ReasonVoltageViolation)
	assert.Equal(t, "VoltageViolation & BatteryOversized", s.String())
}

func TestVerdictJSON(t *testing.T) {
	v := NewVerdict(NewReasonSet(ReasonLoadingViolation, ReasonConvergenceFailure))
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Failure","reason_codes":["ConvergenceFailure","LoadingViolation"]}`, string(b))

	var back Verdict
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, v.Status, back.Status)
	assert.True(t, back.Reasons.Has(ReasonLoadingViolation))
	assert.True(t, back.Reasons.Has(ReasonConvergenceFailure))
}

func TestCandidateDerivedRatings(t *testing.T) {
	c := CandidateSize{PVKW: 3000, BatteryKW: 1000, InitialSoCPct: 60}
	require.NoError(t, c.Validate())
	assert.Equal(t, 4000.0, c.BatteryKWh(4))
	assert.InDelta(t, 1700.0, c.InverterKVA(1.7), 1e-9)
	assert.Error(t, CandidateSize{PVKW: -1}.Validate())
	assert.Error(t, CandidateSize{InitialSoCPct: 120}.Validate())
}

func TestSeriesLookupUnknownIsNaN(t *testing.T) {
	res := NewSimulationResult("der", 2, 0.25, Identity{Buses: []string{"671"}})
	res.Records = append(res.Records,
		StepRecord{Step: 0, BusVoltages: map[string]float64{"671": 1.01}},
		StepRecord{Step: 1, BusVoltages: map[string]float64{"671": 1.02}},
	)
	assert.Equal(t, []float64{1.01, 1.02}, res.BusVoltage("671"))
	missing := res.BusVoltage("nope")
	require.Len(t, missing, 2)
	assert.True(t, math.IsNaN(missing[0]))
}

func TestSearchPathLastSuccess(t *testing.T) {
	var p SearchPath
	p.Append(PathEntry{Candidate: CandidateSize{PVKW: 200}, Success: true})
	p.Append(PathEntry{Candidate: CandidateSize{PVKW: 400}, Success: false})
	e, ok := p.LastSuccess()
	require.True(t, ok)
	assert.Equal(t, 200.0, e.Candidate.PVKW)
	assert.Equal(t, 1, p.Successes())
}
