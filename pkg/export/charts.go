package export

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search"
	"gonum.org/v1/gonum/floats"
)

// sumSeries adds the series of every named entity step by step.
func sumSeries(res *model.SimulationResult, names []string, get func(string) []float64) []float64 {
	out := make([]float64, len(res.Records))
	for _, n := range names {
		floats.Add(out, get(n))
	}
	return out
}

// echarts cannot encode NaN, "-" marks a gap.
func chartValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return v
}

func labels(vs []float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = formatFloat(v)
	}
	return out
}

// FeasibilityMap renders the traversal grid as a heatmap coloured by
// outcome category, battery on the x axis and PV on the y axis.
func FeasibilityMap(rows []search.Row, title string) *charts.HeatMap {
	pvs, bats := axes(rows)
	byKey := index(rows)

	colors := make([]string, len(Categories))
	for i, c := range Categories {
		colors[i] = c.Color()
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: legend()}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Battery (kW)", Type: "category", Data: labels(bats)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "PV (kW)", Type: "category", Data: labels(pvs)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min:     0,
			Max:     float32(len(Categories) - 1),
			InRange: &opts.VisualMapInRange{Color: colors},
		}),
	)

	data := make([]opts.HeatMapData, 0, len(rows))
	for yi, pv := range pvs {
		for xi, b := range bats {
			r, ok := byKey[gridKey{pv, b}]
			if !ok {
				continue
			}
			cat := Categorize(r)
			data = append(data, opts.HeatMapData{
				Name:  cat.String(),
				Value: [3]any{xi, yi, int(cat)},
			})
		}
	}
	hm.SetXAxis(labels(bats)).AddSeries("outcome", data)
	return hm
}

func legend() string {
	s := ""
	for i, c := range Categories {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d=%s", int(c), c)
	}
	return s
}

// ClimbPathChart renders the hill-climb path in the battery/PV plane with
// successful points highlighted.
func ClimbPathChart(path model.SearchPath, title string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Battery (kW)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "PV (kW)", Type: "value"}),
	)

	steps := make([]opts.LineData, len(path))
	var ok, failed []opts.ScatterData
	for i, e := range path {
		pt := []float64{e.Candidate.BatteryKW, e.Candidate.PVKW}
		steps[i] = opts.LineData{Name: fmt.Sprintf("#%d", i+1), Value: pt}
		sd := opts.ScatterData{Name: e.Reasons.String(), Value: pt}
		if e.Success {
			ok = append(ok, sd)
		} else {
			failed = append(failed, sd)
		}
	}
	line.AddSeries("path", steps)

	scatter := charts.NewScatter()
	scatter.AddSeries("success", ok, charts.WithItemStyleOpts(opts.ItemStyle{Color: CategorySuccess.Color()}))
	scatter.AddSeries("failure", failed, charts.WithItemStyleOpts(opts.ItemStyle{Color: CategoryConvergenceVoltage.Color()}))
	if best, found := path.LastSuccess(); found {
		star := []opts.ScatterData{{
			Name:       "best",
			Value:      []float64{best.Candidate.BatteryKW, best.Candidate.PVKW},
			Symbol:     "pin",
			SymbolSize: 30,
		}}
		scatter.AddSeries("best", star, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffd600"}))
	}
	line.Overlap(scatter)
	return line
}

// seriesLine builds a line chart with one series per entity of run.
func seriesLine(title, yName string, timeAxis []string, names []string, get func(string) []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (h)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithLegendOpts(opts.Legend{Type: "scroll", Bottom: "0"}),
	)
	line.SetXAxis(timeAxis)
	for _, n := range names {
		vals := get(n)
		data := make([]opts.LineData, len(vals))
		for i, v := range vals {
			data[i] = opts.LineData{Value: chartValue(v)}
		}
		line.AddSeries(n, data)
	}
	return line
}

func timeAxis(res *model.SimulationResult) []string {
	out := make([]string, res.Steps)
	for i := range out {
		out[i] = formatFloat(float64(i) * res.StepHours)
	}
	return out
}

// TimeSeriesPage renders bus voltages, element loadings, grid exchange and
// storage state for every non-nil run.
func TimeSeriesPage(title string, runs ...*model.SimulationResult) *components.Page {
	page := components.NewPage()
	page.PageTitle = title
	for _, res := range runs {
		if res == nil {
			continue
		}
		t := timeAxis(res)
		page.AddCharts(
			seriesLine(res.Label+": bus voltages", "Voltage (p.u.)", t, res.Identity.Buses, res.BusVoltage),
			seriesLine(res.Label+": element loadings", "Loading (%)", t, res.Identity.Elements, res.ElementLoading),
			seriesLine(res.Label+": power balance", "Power (kW)", t,
				[]string{"grid", "losses", "load", "pv", "storage"},
				func(name string) []float64 {
					switch name {
					case "grid":
						return res.TotalPower()
					case "losses":
						return res.Losses()
					case "load":
						return sumSeries(res, res.Identity.Loads, res.LoadPower)
					case "pv":
						return sumSeries(res, res.Identity.PV, res.PVPower)
					default:
						return sumSeries(res, res.Identity.Storage, res.StoragePower)
					}
				}),
		)
		if len(res.Identity.Storage) > 0 {
			page.AddCharts(seriesLine(res.Label+": state of charge", "SoC (%)", t, res.Identity.Storage, res.StorageSoC))
		}
	}
	return page
}

// Renderer is satisfied by every go-echarts chart and page.
type Renderer interface {
	Render(w io.Writer) error
}

// Render writes a chart or page as a standalone HTML document.
func Render(w io.Writer, r Renderer) error {
	if err := r.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
