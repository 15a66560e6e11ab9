package feeder

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dersize/core/engine"
)

const tinyFeeder = `
name: tiny
source: {bus: SRC, pu: 1.0}
buses:
  - {name: src, kv: 4.16}
  - {name: a, kv: 4.16}
  - {name: b, kv: 4.16}
lines:
  - {name: sa, from: src, to: a, r_ohm: 0.1, x_ohm: 0.2, length_km: 1}
  - {name: ab, from: a, to: b, r_ohm: 0.1, x_ohm: 0.2, length_km: 1}
loads:
  - {name: lb, bus: b, kw: 500, kvar: 200}
`

func compileTiny(t *testing.T, yaml string) *Engine {
	t.Helper()
	m, err := ParseModel([]byte(yaml))
	require.NoError(t, err)
	e := NewFactory(m)
	eng, err := e()
	require.NoError(t, err)
	require.NoError(t, eng.Compile(context.Background(), ""))
	return eng.(*Engine)
}

func TestParseModelValidation(t *testing.T) {
	_, err := ParseModel([]byte(`
source: {bus: x}
buses: [{name: a, kv: 1}]
`))
	assert.ErrorIs(t, err, ErrUnknownBus)

	_, err = ParseModel([]byte(`
source: {bus: a}
buses: [{name: a, kv: 1}]
loads: [{name: l, bus: z, kw: 1}]
`))
	assert.ErrorIs(t, err, ErrUnknownBus)

	_, err = ParseModel([]byte(`
source: {bus: a}
buses: [{name: a, kv: 1}, {name: b, kv: 0}]
`))
	assert.Error(t, err)
}

func TestCompileRejectsMeshedAndIslanded(t *testing.T) {
	meshed := `
source: {bus: a}
buses: [{name: a, kv: 1}, {name: b, kv: 1}, {name: c, kv: 1}]
lines:
  - {name: ab, from: a, to: b, r_ohm: 1, x_ohm: 1}
  - {name: bc, from: b, to: c, r_ohm: 1, x_ohm: 1}
  - {name: ca, from: c, to: a, r_ohm: 1, x_ohm: 1}
`
	m, err := ParseModel([]byte(meshed))
	require.NoError(t, err)
	assert.ErrorIs(t, New().compileModel(m), ErrNotRadial)

	islanded := strings.Replace(meshed, "{name: c, kv: 1}]", "{name: c, kv: 1}, {name: d, kv: 1}]", 1)
	m, err = ParseModel([]byte(islanded))
	require.NoError(t, err)
	assert.ErrorIs(t, New().compileModel(m), ErrNotRadial)
}

func TestSolveTinyFeeder(t *testing.T) {
	e := compileTiny(t, tinyFeeder)
	require.NoError(t, e.Configure(2, 0.25))

	ok, err := e.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	v := e.BusVoltages()
	assert.InDelta(t, 1.0, v["src"], 1e-12)
	assert.Less(t, v["a"], v["src"])
	assert.Less(t, v["b"], v["a"])
	assert.Greater(t, v["b"], 0.97)

	load := e.Power(engine.KindLoad, "lb")
	assert.Equal(t, -500.0, load.P)
	total := e.TotalPower()
	losses := e.Losses()
	assert.Greater(t, losses.P, 0.0)
	assert.InDelta(t, 500+losses.P, total.P, 0.01)
	assert.InDelta(t, 200+losses.Q, total.Q, 0.01)

	loadings := e.ElementLoadings()
	assert.Greater(t, loadings["Line.sa"], 0.0)
	assert.InDelta(t, loadings["Line.sa"], loadings["Line.ab"], 1e-9)
	assert.Equal(t, []string{"Line.sa", "Line.ab"}, e.Elements())
	assert.Equal(t, []string{"lb"}, e.Names(engine.KindLoad))
	assert.Equal(t, 500.0, e.LoadBaseKW())
}

func TestSolveHorizon(t *testing.T) {
	_, err := New().Solve(context.Background())
	assert.ErrorIs(t, err, engine.ErrNotCompiled)

	e := compileTiny(t, tinyFeeder)
	require.NoError(t, e.Configure(1, 0.25))
	_, err = e.Solve(context.Background())
	require.NoError(t, err)
	_, err = e.Solve(context.Background())
	assert.ErrorIs(t, err, engine.ErrHorizonExceeded)

	assert.Error(t, e.Configure(0, 0.25))
}

func TestSolveCollapseIsNotConverged(t *testing.T) {
	heavy := strings.Replace(tinyFeeder, "kw: 500, kvar: 200", "kw: 500000, kvar: 200000", 1)
	e := compileTiny(t, heavy)
	require.NoError(t, e.Configure(1, 0.25))
	ok, err := e.Solve(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, e.BusVoltages())
	assert.True(t, math.IsNaN(e.TotalPower().P))
	assert.True(t, math.IsNaN(e.Power(engine.KindLoad, "lb").P))
}

func TestLoadShapeAndPV(t *testing.T) {
	e := compileTiny(t, tinyFeeder)
	require.NoError(t, e.Attach(engine.LoadShape{Name: "load", Points: []float64{1, 0.5}, IntervalHours: 0.25, ApplyToLoads: true}))
	require.NoError(t, e.Attach(engine.LoadShape{Name: "sun", Points: []float64{0, 1}, IntervalHours: 0.25}))
	require.NoError(t, e.Attach(engine.PVSystem{Name: "pv1", Bus: "B", KV: 4.16, PmppKW: 400, KVA: 440, PF: 1, Daily: "sun"}))
	require.NoError(t, e.Configure(2, 0.25))

	ok, err := e.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	night := e.BusVoltages()["b"]
	assert.Equal(t, 0.0, e.Power(engine.KindPV, "pv1").P)

	ok, err = e.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, e.BusVoltages()["b"], night)
	assert.Equal(t, 400.0, e.Power(engine.KindPV, "pv1").P)
	assert.Equal(t, -250.0, e.Power(engine.KindLoad, "lb").P)
	assert.InDelta(t, 0.0, e.Power(engine.KindPV, "pv1").Q, 1e-9)
	assert.Equal(t, 400.0, e.PVRatedKW())
}

func TestAttachErrors(t *testing.T) {
	e := New()
	assert.ErrorIs(t, e.Attach(engine.PVSystem{Name: "p"}), engine.ErrNotCompiled)

	e = compileTiny(t, tinyFeeder)
	assert.ErrorIs(t, e.Attach(engine.PVSystem{Name: "p", Bus: "nope"}), ErrUnknownBus)
	assert.ErrorIs(t, e.Attach(engine.PVSystem{Name: "p", Bus: "b", Daily: "missing"}), ErrUnknownElement)
	assert.ErrorIs(t, e.Attach(engine.EnergyMeter{Name: "m", Element: "Line.zz"}), ErrUnknownElement)
	assert.ErrorIs(t, e.SetStorage("nope", engine.Idle), ErrUnknownElement)
}

func TestMeterOrdersBusesByDistance(t *testing.T) {
	eng := New()
	require.NoError(t, eng.Compile(context.Background(), "testdata/ieee13.yaml"))
	require.NoError(t, eng.Attach(engine.EnergyMeter{Name: "m1", Element: "Line.650632", Terminal: 1}))
	buses := eng.Buses()
	require.Len(t, buses, 15)
	assert.Equal(t, "650", buses[0])
	assert.Equal(t, "sourcebus", buses[1])
	assert.Equal(t, "632", buses[2])
	assert.Len(t, eng.Elements(), 14)
}

func TestIEEE13Converges(t *testing.T) {
	eng := New()
	require.NoError(t, eng.Compile(context.Background(), "testdata/ieee13.yaml"))
	require.NoError(t, eng.Attach(engine.LoadShape{Name: "load", Points: []float64{0.5}, IntervalHours: 0.25, ApplyToLoads: true}))
	require.NoError(t, eng.Configure(1, 0.25))

	ok, err := eng.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	var load float64
	for _, n := range eng.Names(engine.KindLoad) {
		load -= eng.Power(engine.KindLoad, n).P
	}
	assert.InDelta(t, 3466*0.5, load, 1e-6)
	assert.InDelta(t, load+eng.Losses().P, eng.TotalPower().P, 0.5)
	for bus, v := range eng.BusVoltages() {
		assert.Greater(t, v, 0.9, bus)
		assert.Less(t, v, 1.06, bus)
	}
	for _, c := range eng.Names(engine.KindCapacitor) {
		assert.Greater(t, eng.Power(engine.KindCapacitor, c).Q, 0.0)
	}
	require.NoError(t, eng.Close())
}

func TestCapacitorSuppliesReactivePower(t *testing.T) {
	plain := compileTiny(t, tinyFeeder)
	require.NoError(t, plain.Configure(1, 0.25))
	ok, err := plain.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	e := compileTiny(t, tinyFeeder+"capacitors:\n  - {name: c1, bus: b, kvar: 150}\n")
	require.NoError(t, e.Configure(1, 0.25))
	ok, err = e.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	capQ := e.Power(engine.KindCapacitor, "c1").Q
	assert.Greater(t, capQ, 140.0)
	assert.InDelta(t, 200-capQ+e.Losses().Q, e.TotalPower().Q, 0.01)
	assert.Greater(t, e.BusVoltages()["b"], plain.BusVoltages()["b"])
}

const regulatedFeeder = `
source: {bus: src, pu: 1.0}
buses:
  - {name: src, kv: 115}
  - {name: a, kv: 4.16}
  - {name: b, kv: 4.16}
transformers:
  - {name: reg, from: src, to: a, kva: 5000, pct_r: 0.5, pct_x: 4, regulate_pu: %s}
lines:
  - {name: ab, from: a, to: b, r_ohm: 0.1, x_ohm: 0.2}
loads:
  - {name: lb, bus: b, kw: 2000, kvar: 800}
`

func TestRegulatorHoldsSecondaryVoltage(t *testing.T) {
	cases := []struct {
		target string
		want   float64
		delta  float64
	}{
		{"1.03", 1.03, 1e-9},
		{"0.98", 0.98, 1e-9},
		// out of tap range: the tap sticks at +10%
		{"1.3", 1.09, 0.01},
	}
	for _, c := range cases {
		e := compileTiny(t, strings.Replace(regulatedFeeder, "%s", c.target, 1))
		require.NoError(t, e.Configure(1, 0.25))
		ok, err := e.Solve(context.Background())
		require.NoError(t, err)
		require.True(t, ok, c.target)
		v := e.BusVoltages()
		assert.InDelta(t, c.want, v["a"], c.delta, c.target)
		assert.Less(t, v["b"], v["a"], c.target)
		assert.InDelta(t, 2000+e.Losses().P, e.TotalPower().P, 0.01, c.target)
	}
}

func TestFixedTap(t *testing.T) {
	noLoad := strings.Replace(regulatedFeeder, "regulate_pu: %s", "tap: 1.025", 1)
	noLoad = strings.Replace(noLoad, "kw: 2000, kvar: 800", "kw: 0, kvar: 0", 1)
	e := compileTiny(t, noLoad)
	require.NoError(t, e.Configure(1, 0.25))
	ok, err := e.Solve(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 1.025, e.BusVoltages()["b"], 1e-9)

	_, err = ParseModel([]byte(strings.Replace(regulatedFeeder, "regulate_pu: %s", "tap: 1.2", 1)))
	assert.ErrorContains(t, err, "tap 1.2 outside")
}

func TestIEEE13BaselineWithinLimits(t *testing.T) {
	eng := New()
	require.NoError(t, eng.Compile(context.Background(), "testdata/ieee13.yaml"))
	require.NoError(t, eng.Attach(engine.LoadShape{Name: "load", Points: []float64{0.9, 0.45}, IntervalHours: 0.25, ApplyToLoads: true}))
	require.NoError(t, eng.Configure(2, 0.25))
	for step := 0; step < 2; step++ {
		ok, err := eng.Solve(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		v := eng.BusVoltages()
		assert.InDelta(t, 1.049, v["650"], 1e-9)
		for bus, pu := range v {
			assert.GreaterOrEqual(t, pu, 0.95, "step %d bus %s", step, bus)
			assert.LessOrEqual(t, pu, 1.05, "step %d bus %s", step, bus)
		}
		for el, pct := range eng.ElementLoadings() {
			assert.LessOrEqual(t, pct, 100.0, "step %d %s", step, el)
		}
	}
	require.NoError(t, eng.Close())
}
