package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search"
	"github.com/kilianp07/dersize/core/sizing"
)

// Dir writes export files below a directory, creating it on first use.
type Dir struct {
	Path   string
	Charts bool
}

func (d Dir) write(name string, fn func(io.Writer) error) (err error) {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(filepath.Join(d.Path, name))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Traversal writes the grid list, both pivot matrices and the feasibility map.
func (d Dir) Traversal(res search.TraversalResult) error {
	if err := d.write("traversal_results.csv", func(w io.Writer) error { return WriteRowsCSV(w, res.Rows) }); err != nil {
		return err
	}
	if err := d.write("traversal_status_matrix.csv", func(w io.Writer) error { return WriteStatusMatrixCSV(w, res.Rows) }); err != nil {
		return err
	}
	if err := d.write("traversal_reason_matrix.csv", func(w io.Writer) error { return WriteReasonMatrixCSV(w, res.Rows) }); err != nil {
		return err
	}
	if !d.Charts {
		return nil
	}
	return d.write("feasibility_map.html", func(w io.Writer) error {
		return Render(w, FeasibilityMap(res.Rows, "Sizing feasibility map"))
	})
}

// Climb writes the path, its rows and the path chart.
func (d Dir) Climb(res search.ClimbResult) error {
	if err := d.write("climb_path.csv", func(w io.Writer) error { return WritePathCSV(w, res.Path) }); err != nil {
		return err
	}
	if err := d.write("climb_results.csv", func(w io.Writer) error { return WriteRowsCSV(w, res.Rows) }); err != nil {
		return err
	}
	if !d.Charts {
		return nil
	}
	return d.write("climb_path.html", func(w io.Writer) error {
		return Render(w, ClimbPathChart(res.Path, "Hill-climbing path"))
	})
}

// Case writes the detailed time series of one evaluated candidate.
func (d Dir) Case(prefix string, c sizing.CaseResult) error {
	if err := d.write(prefix+"_timeseries.csv", func(w io.Writer) error {
		return WriteTimeSeriesCSV(w, c.Baseline, c.DER)
	}); err != nil {
		return err
	}
	if err := d.write(prefix+"_verdict.json", func(w io.Writer) error { return WriteJSON(w, newCaseSummary(c)) }); err != nil {
		return err
	}
	if !d.Charts {
		return nil
	}
	return d.write(prefix+"_timeseries.html", func(w io.Writer) error {
		return Render(w, TimeSeriesPage(fmt.Sprintf("%s (%s)", prefix, c.Candidate), c.Baseline, c.DER))
	})
}

// caseSummary is the JSON-safe digest of a case; step records may hold NaN.
type caseSummary struct {
	Candidate           model.CandidateSize `json:"candidate"`
	Verdict             model.Verdict       `json:"verdict"`
	Advisories          []string            `json:"advisories,omitempty"`
	BaselineFailedSteps []int               `json:"baseline_failed_steps"`
	DERFailedSteps      []int               `json:"der_failed_steps"`
}

func newCaseSummary(c sizing.CaseResult) caseSummary {
	s := caseSummary{Candidate: c.Candidate, Verdict: c.Verdict, Advisories: c.Advisories}
	if c.Baseline != nil {
		s.BaselineFailedSteps = c.Baseline.FailedSteps()
	}
	if c.DER != nil {
		s.DERFailedSteps = c.DER.FailedSteps()
	}
	return s
}
