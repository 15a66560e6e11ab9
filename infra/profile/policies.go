package profile

import (
	"fmt"

	"github.com/kilianp07/dersize/core/dispatch"
	"github.com/kilianp07/dersize/core/factory"
)

func init() {
	_ = dispatch.RegisterPolicy("forecast", func(conf map[string]any) (dispatch.Factory, error) {
		c := dispatch.ForecastConfig{DeadbandKW: dispatch.DefaultForecastDeadbandKW}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.PVProfile == "" || c.LoadProfile == "" {
			return nil, fmt.Errorf("forecast policy requires pv_profile and load_profile")
		}
		pv := &Cached{Source: ParseFile(c.PVProfile)}
		load := &Cached{Source: ParseFile(c.LoadProfile)}
		return dispatch.NewForecastFactory(c, pv, load), nil
	})
	_ = dispatch.RegisterPolicy("schedule", func(conf map[string]any) (dispatch.Factory, error) {
		var c dispatch.ScheduleConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Profile == "" {
			return nil, fmt.Errorf("schedule policy requires profile")
		}
		return dispatch.NewScheduleFactory(c, &Cached{Source: ParseFile(c.Profile)}), nil
	})
}
