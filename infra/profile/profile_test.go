package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dersize/core/dispatch"
	"github.com/kilianp07/dersize/core/factory"
)

func TestReadText(t *testing.T) {
	v, err := ReadText(strings.NewReader("# header\n0.5\n0.75 1\n\n0.25\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.75, 1, 0.25}, v)

	_, err = ReadText(strings.NewReader("\n# nothing\n"))
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ReadText(strings.NewReader("1\nNaN\n"))
	assert.Error(t, err)
	_, err = ReadText(strings.NewReader("1\nabc\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestReadCSVColumns(t *testing.T) {
	doc := "hour,load,pv\n0,0.4,0\n0.25,0.5,0.1\n"
	v, err := ReadCSV(strings.NewReader(doc), "pv")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.1}, v)

	v, err = ReadCSV(strings.NewReader(doc), "1")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.5}, v)

	_, err = ReadCSV(strings.NewReader(doc), "wind")
	assert.Error(t, err)

	v, err = ReadCSV(strings.NewReader("0.1\n0.2\n"), "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, v)

	_, err = ReadCSV(strings.NewReader("0.1\n"), "load")
	assert.Error(t, err)
}

func TestFileLoad(t *testing.T) {
	txt, err := File{Path: "testdata/load.txt"}.Load()
	require.NoError(t, err)
	require.Len(t, txt, 96)

	csv, err := File{Path: "testdata/profiles.csv", Column: "load"}.Load()
	require.NoError(t, err)
	assert.Equal(t, txt, csv)

	_, err = File{Path: "testdata/missing.txt"}.Load()
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	assert.Equal(t, File{Path: "a.csv", Column: "pv"}, ParseFile("a.csv#pv"))
	assert.Equal(t, File{Path: "a.txt"}, ParseFile("a.txt"))
	assert.Equal(t, "a.csv#pv", ParseFile("a.csv#pv").Name())
}

func TestLoadShape(t *testing.T) {
	shape, err := LoadShape("load", File{Path: "testdata/load.txt"}, 96, 0.25, true)
	require.NoError(t, err)
	assert.Len(t, shape.Points, 96)
	assert.True(t, shape.ApplyToLoads)
	assert.Equal(t, 0.25, shape.IntervalHours)

	_, err = LoadShape("load", File{Path: "testdata/load.txt"}, 97, 0.25, true)
	assert.Error(t, err)
}

type countingSource struct {
	calls int
}

func (c *countingSource) Name() string { return "count" }

func (c *countingSource) Load() ([]float64, error) {
	c.calls++
	return []float64{1, 2}, nil
}

func TestCachedLoadsOnce(t *testing.T) {
	src := &countingSource{}
	c := &Cached{Source: src}
	for i := 0; i < 3; i++ {
		v, err := c.Load()
		require.NoError(t, err)
		v[0] = 42
	}
	v, _ := c.Load()
	assert.Equal(t, []float64{1, 2}, v)
	assert.Equal(t, 1, src.calls)
}

func TestRegisteredPolicies(t *testing.T) {
	assert.Subset(t, dispatch.Policies(), []string{"forecast", "schedule", "self_consumption"})

	f, err := dispatch.NewPolicyFactory(factory.ModuleConfig{Type: "forecast", Conf: map[string]any{
		"pv_profile":   "testdata/profiles.csv#pv",
		"load_profile": "testdata/load.txt",
	}})
	require.NoError(t, err)
	require.NotNil(t, f)
	p, ok := f().(*dispatch.Forecast)
	require.True(t, ok)
	assert.Equal(t, dispatch.DefaultForecastDeadbandKW, p.Rule.DeadbandKW)

	_, err = dispatch.NewPolicyFactory(factory.ModuleConfig{Type: "forecast"})
	assert.Error(t, err)
	_, err = dispatch.NewPolicyFactory(factory.ModuleConfig{Type: "schedule"})
	assert.Error(t, err)
}
