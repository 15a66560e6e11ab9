package evaluation

import (
	"math"
	"testing"

	"github.com/kilianp07/dersize/core/model"
	"github.com/stretchr/testify/assert"
)

func result(steps int, soc func(step int) float64) *model.SimulationResult {
	id := model.Identity{Buses: []string{"671"}, Elements: []string{"Line.a"}, Loads: []string{"l1"}}
	if soc != nil {
		id.Storage = []string{"b1"}
	}
	res := model.NewSimulationResult("der", steps, 0.25, id)
	for i := 0; i < steps; i++ {
		rec := model.StepRecord{
			Step:       i,
			Converged:  true,
			Loads:      map[string]model.PowerPQ{"l1": {P: -100, Q: -20}},
			Storage:    map[string]model.PowerPQ{},
			StorageSoC: map[string]float64{},
		}
		if soc != nil {
			rec.Storage["b1"] = model.PowerPQ{}
			rec.StorageSoC["b1"] = soc(i)
		}
		res.Records = append(res.Records, rec)
		res.Converged = append(res.Converged, true)
	}
	return res
}

func TestClassifyCleanNoDER(t *testing.T) {
	v := Classify(result(96, nil), model.CandidateSize{}, DefaultOptions())
	assert.Equal(t, model.StatusSuccess, v.Status)
	assert.Empty(t, v.Reasons)
	assert.True(t, v.Minimal())
}

func TestClassifyRulesIndependent(t *testing.T) {
	res := result(8, nil)
	res.Converged[3] = false
	res.Records[3].Converged = false
	res.VoltageViolations["671"] = []model.Violation{{Step: 1, Value: 1.07}}
	res.LoadingViolations["Line.a"] = []model.Violation{{Step: 2, Value: 140}}
	res.Records[4].Loads["l1"] = model.PowerPQ{P: math.Inf(1)}

	v := Classify(res, model.CandidateSize{PVKW: 100, BatteryKW: 200}, DefaultOptions())
	assert.Equal(t, model.StatusFailure, v.Status)
	for _, c := range model.AllReasons {
		assert.True(t, v.Reasons.Has(c), c.String())
	}
}

func TestClassifyIgnoresSentinelOnNonConvergedSteps(t *testing.T) {
	res := result(4, nil)
	res.Converged[1] = false
	res.Records[1].Converged = false
	res.Records[1].Loads["l1"] = model.NaNPower
	res.Records[1].TotalPower = model.NaNPower
	v := Classify(res, model.CandidateSize{}, DefaultOptions())
	assert.True(t, v.Reasons.Has(model.ReasonConvergenceFailure))
	assert.False(t, v.Reasons.Has(model.ReasonInvalidData))
}

func TestClassifyInvalidDataOnConvergedStep(t *testing.T) {
	res := result(4, nil)
	res.Records[2].Losses = model.PowerPQ{P: math.NaN()}
	v := Classify(res, model.CandidateSize{}, DefaultOptions())
	assert.Equal(t, model.StatusFailure, v.Status)
	assert.Equal(t, model.NewReasonSet(model.ReasonInvalidData), v.Reasons)
}

func TestClassifyOversizedIsAdvisory(t *testing.T) {
	cases := []struct {
		name string
		soc  func(int) float64
		cand model.CandidateSize
		want bool
	}{
		{"drained", func(i int) float64 {
			if i >= 20 && i < 60 {
				return 20
			}
			return 50
		}, model.CandidateSize{PVKW: 1000, BatteryKW: 100}, false},
		{"final soc high", func(i int) float64 {
			if i == 95 {
				return 61
			}
			return 20
		}, model.CandidateSize{PVKW: 1000, BatteryKW: 100}, true},
		{"reserve not reached at 06:45", func(i int) float64 {
			if i == 27 {
				return 25
			}
			return 20
		}, model.CandidateSize{PVKW: 1000, BatteryKW: 100}, true},
		{"battery larger than pv", func(int) float64 { return 20 }, model.CandidateSize{PVKW: 100, BatteryKW: 200}, true},
	}
	for _, c := range cases {
		v := Classify(result(96, c.soc), c.cand, DefaultOptions())
		assert.Equal(t, model.StatusSuccess, v.Status, c.name)
		assert.Equal(t, c.want, v.Reasons.Has(model.ReasonBatteryOversized), c.name)
	}
}

func TestClassifyFinalSoCSkipsTrailingSentinel(t *testing.T) {
	res := result(96, func(int) float64 { return 20 })
	res.Records[94].StorageSoC["b1"] = 70
	res.Records[95].Converged = false
	res.Converged[95] = false
	res.Records[95].StorageSoC["b1"] = math.NaN()
	v := Classify(res, model.CandidateSize{PVKW: 1000, BatteryKW: 100}, DefaultOptions())
	assert.True(t, v.Reasons.Has(model.ReasonBatteryOversized))
}

func TestClassifyIsPure(t *testing.T) {
	res := result(96, func(i int) float64 { return float64(i % 70) })
	res.VoltageViolations["671"] = []model.Violation{{Step: 5, Value: 0.9}}
	cand := model.CandidateSize{PVKW: 400, BatteryKW: 300}
	first := Classify(res, cand, DefaultOptions())
	second := Classify(res, cand, DefaultOptions())
	assert.Equal(t, first, second)
	assert.Len(t, res.VoltageViolations["671"], 1)
}

func TestCheckStep(t *testing.T) {
	cases := []struct {
		hour  float64
		steps int
		want  int
	}{
		{6.75, 96, 27},
		{6.75, 24, 7},
		{6.75, 10, 3},
		{6.75, 4, 1},
		{24, 10, 9},
		{-1, 10, 0},
		{6.75, 0, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CheckStep(c.hour, c.steps), "hour %v over %d steps", c.hour, c.steps)
	}
}

func TestClassifyCheckHourShortHorizon(t *testing.T) {
	// 6 hourly steps: 06:45 falls on step 2.
	soc := func(i int) float64 {
		if i == 2 {
			return 40
		}
		return 20
	}
	res := result(6, soc)
	res.StepHours = 1
	v := Classify(res, model.CandidateSize{PVKW: 1000, BatteryKW: 100}, DefaultOptions())
	assert.True(t, v.Reasons.Has(model.ReasonBatteryOversized))

	opts := DefaultOptions()
	opts.MinReservePct = 40
	v = Classify(res, model.CandidateSize{PVKW: 1000, BatteryKW: 100}, opts)
	assert.False(t, v.Reasons.Has(model.ReasonBatteryOversized))
}
