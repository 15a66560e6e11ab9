package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/dersize/core/factory"
	"github.com/kilianp07/dersize/core/metrics"
	"github.com/kilianp07/dersize/infra/mqtt"
)

// EnvPrefix selects the environment variables overriding file values.
// DERSIZE_TIME_SERIES__STEPS=48 sets time_series.steps.
const EnvPrefix = "DERSIZE_"

type Config struct {
	Files      FilesConfig          `json:"files"`
	TimeSeries TimeSeriesConfig     `json:"time_series"`
	Limits     LimitsConfig         `json:"limits"`
	Meter      MeterConfig          `json:"meter"`
	PV         PVConfig             `json:"pv"`
	Storage    StorageConfig        `json:"storage"`
	Battery    BatteryConfig        `json:"battery"`
	Dispatch   factory.ModuleConfig `json:"dispatch"`
	Evaluation EvaluationConfig     `json:"evaluation"`
	Traversal  TraversalConfig      `json:"traversal"`
	Climb      ClimbConfig          `json:"climb"`
	SingleRun  SingleRunConfig      `json:"single_run"`
	Logging    LoggingConfig        `json:"logging"`
	Metrics    metrics.Config       `json:"metrics"`
	MQTT       mqtt.Config          `json:"mqtt"`
	Sentry     SentryConfig         `json:"sentry"`
	Output     OutputConfig         `json:"output"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every unset section value.
func (c *Config) SetDefaults() {
	c.TimeSeries.SetDefaults()
	c.Limits.SetDefaults()
	c.PV.SetDefaults()
	c.Storage.SetDefaults()
	c.Battery.SetDefaults()
	c.Evaluation.SetDefaults(c.Storage.ReservePct)
	c.Traversal.SetDefaults(c.Battery.InitialSoCPct)
	c.Climb.SetDefaults(c.Battery.InitialSoCPct)
	c.SingleRun.SetDefaults(c.Battery.InitialSoCPct)
	c.Output.SetDefaults()
	c.Logging.SetDefaults()
	if c.Dispatch.Type == "" {
		c.Dispatch.Type = "self_consumption"
	}
}

// Validate checks every section and reports all failures at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	add("files", c.Files.Validate())
	add("time_series", c.TimeSeries.Validate())
	add("limits", c.Limits.Validate())
	add("pv", c.PV.Validate())
	add("storage", c.Storage.Validate())
	add("battery", c.Battery.Validate())
	add("evaluation", c.Evaluation.Validate())
	add("traversal", c.Traversal.Validate())
	add("climb", c.Climb.Validate())
	add("single_run", c.SingleRun.Validate())
	add("logging", c.Logging.Validate())
	return errors.Join(errs...)
}

// resolvePaths makes relative file references relative to the config file.
func (c *Config) resolvePaths(dir string) {
	c.Files.Feeder = resolve(dir, c.Files.Feeder)
	c.Files.LoadProfile = resolve(dir, c.Files.LoadProfile)
	c.Files.PVProfile = resolve(dir, c.Files.PVProfile)
	for _, key := range []string{"profile", "pv_profile", "load_profile"} {
		if v, ok := c.Dispatch.Conf[key].(string); ok {
			c.Dispatch.Conf[key] = resolve(dir, v)
		}
	}
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
