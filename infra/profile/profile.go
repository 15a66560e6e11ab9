// Package profile reads per-step series such as load and irradiance curves
// from disk.
package profile

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kilianp07/dersize/core/dispatch"
	"github.com/kilianp07/dersize/core/engine"
)

// ErrEmpty is returned when a profile holds no value.
var ErrEmpty = errors.New("profile: no values")

// File is a dispatch.ProfileSource backed by a text or CSV file. Text files
// hold whitespace separated values; CSV files are read from Column, which is
// either a header name or a zero-based index. An empty Column selects the
// first column.
type File struct {
	Path   string
	Column string
}

// ParseFile splits a "path#column" reference.
func ParseFile(ref string) File {
	path, col, _ := strings.Cut(ref, "#")
	return File{Path: path, Column: col}
}

func (f File) Name() string {
	if f.Column != "" {
		return f.Path + "#" + f.Column
	}
	return f.Path
}

func (f File) Load() ([]float64, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	if strings.EqualFold(filepath.Ext(f.Path), ".csv") {
		return ReadCSV(fh, f.Column)
	}
	return ReadText(fh)
}

// ReadText parses whitespace separated numbers. Lines starting with # are
// skipped.
func ReadText(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		for _, field := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			v, err := parse(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			out = append(out, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// ReadCSV reads one column of a CSV document. A first row that does not parse
// as numbers is treated as a header.
func ReadCSV(r io.Reader, column string) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	idx := 0
	header := false
	if _, err := parse(rows[0][0]); err != nil {
		header = true
	}
	if column != "" {
		if n, err := strconv.Atoi(column); err == nil {
			idx = n
		} else {
			if !header {
				return nil, fmt.Errorf("column %q requested but csv has no header", column)
			}
			idx = -1
			for i, h := range rows[0] {
				if strings.EqualFold(strings.TrimSpace(h), column) {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, fmt.Errorf("column %q not found", column)
			}
		}
	}
	if header {
		rows = rows[1:]
	}

	out := make([]float64, 0, len(rows))
	for i, row := range rows {
		if idx >= len(row) {
			return nil, fmt.Errorf("row %d: missing column %d", i+1, idx)
		}
		v, err := parse(row[idx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

func parse(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// Cached wraps a source so that concurrent runs read the underlying file once.
type Cached struct {
	Source dispatch.ProfileSource

	once   sync.Once
	values []float64
	err    error
}

func (c *Cached) Name() string { return c.Source.Name() }

func (c *Cached) Load() ([]float64, error) {
	c.once.Do(func() { c.values, c.err = c.Source.Load() })
	if c.err != nil {
		return nil, c.err
	}
	return append([]float64(nil), c.values...), nil
}

// LoadShape reads a file into a shape of the given step size. The shape
// must cover at least steps points.
func LoadShape(name string, src File, steps int, stepHours float64, applyToLoads bool) (engine.LoadShape, error) {
	values, err := src.Load()
	if err != nil {
		return engine.LoadShape{}, fmt.Errorf("loadshape %s: %w", name, err)
	}
	if len(values) < steps {
		return engine.LoadShape{}, fmt.Errorf("loadshape %s: %d points for %d steps", name, len(values), steps)
	}
	return engine.LoadShape{
		Name:          name,
		Points:        values[:steps],
		IntervalHours: stepHours,
		ApplyToLoads:  applyToLoads,
	}, nil
}
