package sizing

// Unit places one PV or storage element on a bus.
type Unit struct {
	Name   string  `json:"name"`
	Bus    string  `json:"bus"`
	KV     float64 `json:"kv"`
	Phases int     `json:"phases"`
}

// PVConfig describes how a PV size is turned into PVSystem elements.
type PVConfig struct {
	Units []Unit `json:"units"`
	// KVAFactor scales the inverter rating from Pmpp.
	KVAFactor float64 `json:"kva_factor"`
	// KVAR is the requested reactive setpoint per unit, clamped to the inverter.
	KVAR float64 `json:"kvar"`
	// PF selects power factor mode when non-zero.
	PF float64 `json:"pf"`
}

// StorageConfig describes how a battery size is turned into Storage elements.
type StorageConfig struct {
	Units          []Unit  `json:"units"`
	DurationHours  float64 `json:"duration_hours"`
	InverterFactor float64 `json:"inverter_factor"`
	ReservePct     float64 `json:"reserve_pct"`
	IdlingPct      float64 `json:"idling_pct"`
	KVAR           float64 `json:"kvar"`
}
