package config

import (
	"errors"
	"fmt"

	"github.com/kilianp07/dersize/core/sizing"
)

// PVConfig places the PV systems of every candidate.
type PVConfig struct {
	Units     []sizing.Unit `json:"units"`
	KVAFactor float64       `json:"kva_factor"`
	KVAR      float64       `json:"kvar"`
	PF        float64       `json:"pf"`
}

func (c *PVConfig) SetDefaults() {
	if c.KVAFactor == 0 {
		c.KVAFactor = 1.1
	}
	setUnitDefaults(c.Units)
}

func (c PVConfig) Validate() error {
	if len(c.Units) == 0 {
		return errors.New("at least one unit is required")
	}
	if c.KVAFactor < 1 {
		return fmt.Errorf("kva_factor must be >= 1, got %v", c.KVAFactor)
	}
	if c.PF < -1 || c.PF > 1 {
		return fmt.Errorf("pf must be within [-1,1], got %v", c.PF)
	}
	return validateUnits(c.Units)
}

func (c PVConfig) Sizing() sizing.PVConfig {
	return sizing.PVConfig{Units: c.Units, KVAFactor: c.KVAFactor, KVAR: c.KVAR, PF: c.PF}
}

// StorageConfig places the batteries of every candidate and sets their ratios.
type StorageConfig struct {
	Units          []sizing.Unit `json:"units"`
	DurationHours  float64       `json:"duration_hours"`
	InverterFactor float64       `json:"inverter_factor"`
	ReservePct     float64       `json:"reserve_pct"`
	IdlingPct      float64       `json:"idling_pct"`
	KVAR           float64       `json:"kvar"`
}

func (c *StorageConfig) SetDefaults() {
	if c.DurationHours == 0 {
		c.DurationHours = 4
	}
	if c.InverterFactor == 0 {
		c.InverterFactor = 1.7
	}
	if c.ReservePct == 0 {
		c.ReservePct = 20
	}
	setUnitDefaults(c.Units)
}

func (c StorageConfig) Validate() error {
	if len(c.Units) == 0 {
		return errors.New("at least one unit is required")
	}
	if c.DurationHours <= 0 {
		return fmt.Errorf("duration_hours must be positive, got %v", c.DurationHours)
	}
	if c.InverterFactor < 1 {
		return fmt.Errorf("inverter_factor must be >= 1, got %v", c.InverterFactor)
	}
	if c.ReservePct < 0 || c.ReservePct >= 100 {
		return fmt.Errorf("reserve_pct must be within [0,100), got %v", c.ReservePct)
	}
	if c.IdlingPct < 0 {
		return fmt.Errorf("idling_pct must be >= 0, got %v", c.IdlingPct)
	}
	return validateUnits(c.Units)
}

func (c StorageConfig) Sizing() sizing.StorageConfig {
	return sizing.StorageConfig{
		Units:          c.Units,
		DurationHours:  c.DurationHours,
		InverterFactor: c.InverterFactor,
		ReservePct:     c.ReservePct,
		IdlingPct:      c.IdlingPct,
		KVAR:           c.KVAR,
	}
}

// BatteryConfig holds the state every candidate battery starts from.
type BatteryConfig struct {
	InitialSoCPct float64 `json:"initial_soc_pct"`
}

func (c *BatteryConfig) SetDefaults() {
	if c.InitialSoCPct == 0 {
		c.InitialSoCPct = 60
	}
}

func (c BatteryConfig) Validate() error {
	if c.InitialSoCPct < 0 || c.InitialSoCPct > 100 {
		return fmt.Errorf("initial_soc_pct must be within [0,100], got %v", c.InitialSoCPct)
	}
	return nil
}

func setUnitDefaults(units []sizing.Unit) {
	for i := range units {
		if units[i].Phases == 0 {
			units[i].Phases = 3
		}
	}
}

func validateUnits(units []sizing.Unit) error {
	seen := map[string]bool{}
	for i, u := range units {
		if u.Name == "" || u.Bus == "" {
			return fmt.Errorf("unit %d: name and bus are required", i)
		}
		if seen[u.Name] {
			return fmt.Errorf("unit %d: duplicate name %s", i, u.Name)
		}
		seen[u.Name] = true
	}
	return nil
}
