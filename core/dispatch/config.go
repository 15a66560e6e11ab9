package dispatch

import "github.com/kilianp07/dersize/core/factory"

// SelfConsumptionConfig configures the measured self-consumption policy.
type SelfConsumptionConfig struct {
	DeadbandKW float64 `json:"deadband_kw"`
}

// ForecastConfig configures the forecast self-consumption policy.
type ForecastConfig struct {
	PVProfile     string  `json:"pv_profile"`
	LoadProfile   string  `json:"load_profile"`
	DeadbandKW    float64 `json:"deadband_kw"`
	RampKWPerStep float64 `json:"ramp_kw_per_step"`
}

// ScheduleConfig configures the file schedule policy.
type ScheduleConfig struct {
	Profile    string  `json:"profile"`
	DeadbandKW float64 `json:"deadband_kw"`
}

// DefaultForecastDeadbandKW is the mode threshold used by the forecast policy.
const DefaultForecastDeadbandKW = 0.1

func init() {
	_ = RegisterPolicy("self_consumption", func(conf map[string]any) (Factory, error) {
		var c SelfConsumptionConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSelfConsumptionFactory(c), nil
	})
}
