package config

import (
	"fmt"

	"github.com/kilianp07/dersize/core/evaluation"
	"github.com/kilianp07/dersize/core/model"
	"github.com/kilianp07/dersize/core/search"
)

// EvaluationConfig tunes the oversized battery advisory. Unset fields take
// their defaults, so an explicit 0 is kept.
type EvaluationConfig struct {
	FinalSoCLimitPct *float64 `json:"final_soc_limit_pct"`
	// MinReservePct defaults to storage.reserve_pct.
	MinReservePct *float64 `json:"min_reserve_pct"`
	// CheckHour is a time of day; it is mapped onto the horizon as a
	// fraction of 24 hours.
	CheckHour *float64 `json:"check_hour"`
}

func (c *EvaluationConfig) SetDefaults(reservePct float64) {
	d := evaluation.DefaultOptions()
	if c.FinalSoCLimitPct == nil {
		c.FinalSoCLimitPct = &d.FinalSoCLimitPct
	}
	if c.MinReservePct == nil {
		c.MinReservePct = &reservePct
	}
	if c.CheckHour == nil {
		c.CheckHour = &d.CheckHour
	}
}

func (c EvaluationConfig) Validate() error {
	o := c.Options()
	if o.CheckHour < 0 || o.CheckHour > 24 {
		return fmt.Errorf("check_hour must be within [0,24], got %v", o.CheckHour)
	}
	if o.FinalSoCLimitPct < 0 || o.FinalSoCLimitPct > 100 {
		return fmt.Errorf("final_soc_limit_pct must be within [0,100], got %v", o.FinalSoCLimitPct)
	}
	if o.MinReservePct < 0 || o.MinReservePct > 100 {
		return fmt.Errorf("min_reserve_pct must be within [0,100], got %v", o.MinReservePct)
	}
	return nil
}

func (c EvaluationConfig) Options() evaluation.Options {
	o := evaluation.DefaultOptions()
	if c.FinalSoCLimitPct != nil {
		o.FinalSoCLimitPct = *c.FinalSoCLimitPct
	}
	if c.MinReservePct != nil {
		o.MinReservePct = *c.MinReservePct
	}
	if c.CheckHour != nil {
		o.CheckHour = *c.CheckHour
	}
	return o
}

// TraversalConfig describes the exhaustive grid.
type TraversalConfig struct {
	PV             search.Range `json:"pv"`
	Battery        search.Range `json:"battery"`
	InitialSoCPct  float64      `json:"initial_soc_pct"`
	Workers        int          `json:"workers"`
	RequireMinimal bool         `json:"require_minimal"`
}

func (c *TraversalConfig) SetDefaults(initialSoC float64) {
	if c.PV.Step == 0 {
		c.PV = search.Range{Start: 0, Stop: 10000, Step: 200}
	}
	if c.Battery.Step == 0 {
		c.Battery = search.Range{Start: 100, Stop: 10000, Step: 100}
	}
	if c.InitialSoCPct == 0 {
		c.InitialSoCPct = initialSoC
	}
}

func (c TraversalConfig) Validate() error {
	if _, err := c.PV.Values(); err != nil {
		return fmt.Errorf("pv: %w", err)
	}
	if _, err := c.Battery.Values(); err != nil {
		return fmt.Errorf("battery: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

func (c TraversalConfig) Search() search.TraversalConfig {
	return search.TraversalConfig{
		PV:             c.PV,
		Battery:        c.Battery,
		InitialSoCPct:  c.InitialSoCPct,
		Workers:        c.Workers,
		RequireMinimal: c.RequireMinimal,
	}
}

// ClimbConfig describes the hill-climbing walk.
type ClimbConfig struct {
	PV             search.Axis `json:"pv"`
	Battery        search.Axis `json:"battery"`
	InitialSoCPct  float64     `json:"initial_soc_pct"`
	RequireMinimal bool        `json:"require_minimal"`
	MaxEvaluations int         `json:"max_evaluations"`
}

func (c *ClimbConfig) SetDefaults(initialSoC float64) {
	if c.PV.Step == 0 {
		c.PV = search.Axis{Initial: 200, Step: 200, Max: 10000}
	}
	if c.Battery.Step == 0 {
		c.Battery = search.Axis{Initial: 100, Step: 100, Max: 10000}
	}
	if c.InitialSoCPct == 0 {
		c.InitialSoCPct = initialSoC
	}
}

func (c ClimbConfig) Validate() error {
	if err := c.Search().Validate(); err != nil {
		return err
	}
	if c.MaxEvaluations < 0 {
		return fmt.Errorf("max_evaluations must be >= 0, got %d", c.MaxEvaluations)
	}
	return nil
}

func (c ClimbConfig) Search() search.ClimbConfig {
	return search.ClimbConfig{
		PV:             c.PV,
		Battery:        c.Battery,
		InitialSoCPct:  c.InitialSoCPct,
		RequireMinimal: c.RequireMinimal,
		MaxEvaluations: c.MaxEvaluations,
	}
}

// SingleRunConfig is the candidate simulated by the run command. Sizes
// left unset default to 3000 kW PV and 2000 kW battery; an explicit 0 runs
// the feeder without that resource.
type SingleRunConfig struct {
	PVKW          *float64 `json:"pv_kw"`
	BatteryKW     *float64 `json:"battery_kw"`
	InitialSoCPct float64  `json:"initial_soc_pct"`
}

func (c *SingleRunConfig) SetDefaults(initialSoC float64) {
	if c.PVKW == nil {
		pv := 3000.0
		c.PVKW = &pv
	}
	if c.BatteryKW == nil {
		bat := 2000.0
		c.BatteryKW = &bat
	}
	if c.InitialSoCPct == 0 {
		c.InitialSoCPct = initialSoC
	}
}

func (c SingleRunConfig) Validate() error { return c.Candidate().Validate() }

func (c SingleRunConfig) Candidate() model.CandidateSize {
	cand := model.CandidateSize{InitialSoCPct: c.InitialSoCPct}
	if c.PVKW != nil {
		cand.PVKW = *c.PVKW
	}
	if c.BatteryKW != nil {
		cand.BatteryKW = *c.BatteryKW
	}
	return cand
}

// OutputConfig selects where exports go.
type OutputConfig struct {
	Dir string `json:"dir"`
	// Charts also renders HTML charts next to the CSV files.
	Charts *bool `json:"charts"`
}

func (c *OutputConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "results"
	}
	if c.Charts == nil {
		on := true
		c.Charts = &on
	}
}

// ChartsEnabled reports whether HTML charts are rendered.
func (c OutputConfig) ChartsEnabled() bool { return c.Charts == nil || *c.Charts }
