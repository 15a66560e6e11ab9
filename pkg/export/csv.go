// Package export writes search results and time series as CSV, JSON and
// HTML charts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search"
	"github.com/kilianp07/dersize/core/search/logging"
)

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteRowsCSV writes one line per evaluated candidate.
func WriteRowsCSV(w io.Writer, rows []search.Row) error {
	cw := csv.NewWriter(w)
	header := []string{"pv_kw", "battery_kw", "initial_soc_pct", "status", "reason_codes", "category", "error", "duration_ms"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			formatFloat(r.Candidate.PVKW),
			formatFloat(r.Candidate.BatteryKW),
			formatFloat(r.Candidate.InitialSoCPct),
			r.Verdict.Status.String(),
			r.Verdict.Reasons.String(),
			Categorize(r).String(),
			r.Error,
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRecordsCSV writes result log records, one line per evaluation.
func WriteRecordsCSV(w io.Writer, recs []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "run_id", "strategy", "pv_kw", "battery_kw", "initial_soc_pct", "status", "reason_codes", "error", "duration_ms"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.RunID,
			r.Strategy,
			formatFloat(r.PVKW),
			formatFloat(r.BatteryKW),
			formatFloat(r.SoCPct),
			r.Status.String(),
			r.Reasons.String(),
			r.Error,
			strconv.FormatInt(r.DurationMS, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatusMatrixCSV pivots rows into a PV by battery matrix of statuses.
func WriteStatusMatrixCSV(w io.Writer, rows []search.Row) error {
	return writeMatrix(w, rows, func(r search.Row) string {
		if r.Error != "" {
			return "Error"
		}
		return r.Verdict.Status.String()
	})
}

// WriteReasonMatrixCSV pivots rows into a PV by battery matrix of reason codes.
func WriteReasonMatrixCSV(w io.Writer, rows []search.Row) error {
	return writeMatrix(w, rows, func(r search.Row) string {
		if r.Error != "" {
			return "Error: " + r.Error
		}
		if len(r.Verdict.Reasons) == 0 {
			return r.Verdict.Status.String()
		}
		return r.Verdict.Reasons.String()
	})
}

// axes returns the distinct PV and battery sizes of rows in ascending order.
func axes(rows []search.Row) (pvs, bats []float64) {
	seenPV := map[float64]bool{}
	seenBat := map[float64]bool{}
	for _, r := range rows {
		if !seenPV[r.Candidate.PVKW] {
			seenPV[r.Candidate.PVKW] = true
			pvs = append(pvs, r.Candidate.PVKW)
		}
		if !seenBat[r.Candidate.BatteryKW] {
			seenBat[r.Candidate.BatteryKW] = true
			bats = append(bats, r.Candidate.BatteryKW)
		}
	}
	sort.Float64s(pvs)
	sort.Float64s(bats)
	return pvs, bats
}

type gridKey struct{ pv, bat float64 }

func index(rows []search.Row) map[gridKey]search.Row {
	out := make(map[gridKey]search.Row, len(rows))
	for _, r := range rows {
		out[gridKey{r.Candidate.PVKW, r.Candidate.BatteryKW}] = r
	}
	return out
}

func writeMatrix(w io.Writer, rows []search.Row, cell func(search.Row) string) error {
	pvs, bats := axes(rows)
	byKey := index(rows)
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(bats)+1)
	header = append(header, "pv_kw\\battery_kw")
	for _, b := range bats {
		header = append(header, formatFloat(b))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, pv := range pvs {
		rec := make([]string, 0, len(bats)+1)
		rec = append(rec, formatFloat(pv))
		for _, b := range bats {
			r, ok := byKey[gridKey{pv, b}]
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, cell(r))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePathCSV writes the hill-climb path in visiting order.
func WritePathCSV(w io.Writer, path model.SearchPath) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iteration", "pv_kw", "battery_kw", "initial_soc_pct", "success", "reason_codes", "error"}); err != nil {
		return err
	}
	for i, e := range path {
		rec := []string{
			strconv.Itoa(i + 1),
			formatFloat(e.Candidate.PVKW),
			formatFloat(e.Candidate.BatteryKW),
			formatFloat(e.Candidate.InitialSoCPct),
			strconv.FormatBool(e.Success),
			e.Reasons.String(),
			e.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type column struct {
	name   string
	values []float64
}

// seriesColumns flattens one run into named columns prefixed by its label.
func seriesColumns(res *model.SimulationResult) []column {
	if res == nil {
		return nil
	}
	p := res.Label + "."
	var cols []column
	for _, b := range res.Identity.Buses {
		cols = append(cols, column{p + "voltage_pu." + b, res.BusVoltage(b)})
	}
	for _, e := range res.Identity.Elements {
		cols = append(cols, column{p + "loading_pct." + e, res.ElementLoading(e)})
	}
	totalQ := make([]float64, len(res.Records))
	for i, rec := range res.Records {
		totalQ[i] = rec.TotalPower.Q
	}
	cols = append(cols,
		column{p + "grid_kw", res.TotalPower()},
		column{p + "grid_kvar", totalQ},
		column{p + "losses_kw", res.Losses()},
		column{p + "load_kw", sumSeries(res, res.Identity.Loads, res.LoadPower)},
		column{p + "pv_kw", sumSeries(res, res.Identity.PV, res.PVPower)},
		column{p + "storage_kw", sumSeries(res, res.Identity.Storage, res.StoragePower)},
	)
	for _, s := range res.Identity.Storage {
		cols = append(cols, column{p + "soc_pct." + s, res.StorageSoC(s)})
	}
	return cols
}

// WriteTimeSeriesCSV writes the baseline and DER runs side by side, one line
// per step. Either run may be nil.
func WriteTimeSeriesCSV(w io.Writer, baseline, der *model.SimulationResult) error {
	cols := append(seriesColumns(baseline), seriesColumns(der)...)
	steps, stepHours, err := horizon(baseline, der)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := make([]string, 0, len(cols)+1)
	header = append(header, "time_h")
	for _, c := range cols {
		header = append(header, c.name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < steps; i++ {
		rec := make([]string, 0, len(cols)+1)
		rec = append(rec, formatFloat(float64(i)*stepHours))
		for _, c := range cols {
			if i < len(c.values) {
				rec = append(rec, formatFloat(c.values[i]))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func horizon(runs ...*model.SimulationResult) (int, float64, error) {
	steps, hours := -1, 0.0
	for _, r := range runs {
		if r == nil {
			continue
		}
		if steps >= 0 && r.Steps != steps {
			return 0, 0, fmt.Errorf("export: step count mismatch %d != %d", steps, r.Steps)
		}
		steps, hours = r.Steps, r.StepHours
	}
	if steps < 0 {
		return 0, 0, fmt.Errorf("export: no simulation result")
	}
	return steps, hours, nil
}
