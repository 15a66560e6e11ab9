package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/dersize/core/engine"
	"github.com/kilianp07/dersize/core/model"
)

// FilesConfig locates the feeder model and the daily profiles. Profiles
// accept "path#column" to pick a CSV column.
type FilesConfig struct {
	Feeder      string `json:"feeder"`
	LoadProfile string `json:"load_profile"`
	PVProfile   string `json:"pv_profile"`
}

func (c FilesConfig) Validate() error {
	var errs []error
	if c.Feeder == "" {
		errs = append(errs, errors.New("feeder is required"))
	}
	if c.LoadProfile == "" {
		errs = append(errs, errors.New("load_profile is required"))
	}
	if c.PVProfile == "" {
		errs = append(errs, errors.New("pv_profile is required"))
	}
	return errors.Join(errs...)
}

// TimeSeriesConfig sets the simulated horizon.
type TimeSeriesConfig struct {
	Steps int `json:"steps"`
	// StepSize is a Go duration such as "15m".
	StepSize string `json:"step_size"`
}

func (c *TimeSeriesConfig) SetDefaults() {
	if c.Steps == 0 {
		c.Steps = 96
	}
	if c.StepSize == "" {
		c.StepSize = "15m"
	}
}

func (c TimeSeriesConfig) Validate() error {
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	}
	d, err := time.ParseDuration(c.StepSize)
	if err != nil {
		return fmt.Errorf("step_size: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("step_size must be positive, got %s", c.StepSize)
	}
	return nil
}

// StepHours returns the step length in hours.
func (c TimeSeriesConfig) StepHours() float64 {
	d, err := time.ParseDuration(c.StepSize)
	if err != nil {
		return 0
	}
	return d.Hours()
}

// LimitsConfig holds the feeder constraints.
type LimitsConfig struct {
	LowPU      float64 `json:"low_limit"`
	HighPU     float64 `json:"high_limit"`
	LoadingPct float64 `json:"loading_limit"`
}

func (c *LimitsConfig) SetDefaults() {
	if c.LowPU == 0 {
		c.LowPU = 0.95
	}
	if c.HighPU == 0 {
		c.HighPU = 1.05
	}
	if c.LoadingPct == 0 {
		c.LoadingPct = 100
	}
}

func (c LimitsConfig) Validate() error {
	if c.LowPU <= 0 || c.HighPU <= c.LowPU {
		return fmt.Errorf("voltage band [%v, %v] is empty", c.LowPU, c.HighPU)
	}
	if c.LoadingPct <= 0 {
		return fmt.Errorf("loading_limit must be positive, got %v", c.LoadingPct)
	}
	return nil
}

func (c LimitsConfig) Model() model.Limits {
	return model.Limits{LowPU: c.LowPU, HighPU: c.HighPU, LoadingPct: c.LoadingPct}
}

// MeterConfig places the energy meter that orders buses by distance.
type MeterConfig struct {
	Name     string `json:"name"`
	Element  string `json:"element"`
	Terminal int    `json:"terminal"`
}

// Descriptor returns the meter element, or a zero value when unset.
func (c MeterConfig) Descriptor() engine.EnergyMeter {
	if c.Element == "" {
		return engine.EnergyMeter{}
	}
	name := c.Name
	if name == "" {
		name = "feeder_head"
	}
	return engine.EnergyMeter{Name: name, Element: c.Element, Terminal: c.Terminal}
}
