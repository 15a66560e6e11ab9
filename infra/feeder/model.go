package feeder

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownBus is returned when an element references a missing bus.
	ErrUnknownBus = errors.New("feeder: unknown bus")
	// ErrUnknownElement is returned when a meter or shape references a missing element.
	ErrUnknownElement = errors.New("feeder: unknown element")
	// ErrNotRadial is returned for meshed or disconnected feeders.
	ErrNotRadial = errors.New("feeder: network is not radial")
)

// DefaultNormAmps is the thermal rating assumed for lines without norm_amps.
const DefaultNormAmps = 400

// Model is the on-disk feeder description.
type Model struct {
	Name         string        `yaml:"name"`
	BaseKVA      float64       `yaml:"base_kva"`
	Source       Source        `yaml:"source"`
	Buses        []Bus         `yaml:"buses"`
	Lines        []Line        `yaml:"lines"`
	Transformers []Transformer `yaml:"transformers"`
	Loads        []Load        `yaml:"loads"`
	Capacitors   []Capacitor   `yaml:"capacitors"`

	Path string `yaml:"-"`
}

// Source is the slack bus.
type Source struct {
	Bus string  `yaml:"bus"`
	PU  float64 `yaml:"pu"`
}

// Bus is a node with its line-to-line base voltage.
type Bus struct {
	Name string  `yaml:"name"`
	KV   float64 `yaml:"kv"`
}

// Line is a series impedance with a thermal rating.
type Line struct {
	Name     string  `yaml:"name"`
	From     string  `yaml:"from"`
	To       string  `yaml:"to"`
	ROhm     float64 `yaml:"r_ohm"`
	XOhm     float64 `yaml:"x_ohm"`
	LengthKM float64 `yaml:"length_km"`
	NormAmps float64 `yaml:"norm_amps"`
}

// Transformer is a two-winding transformer with impedance on its own base.
// Tap is the off-nominal secondary ratio in p.u. A non-zero RegulatePU turns
// it into a regulator whose tap holds the secondary voltage at that value
// within +/-10%.
type Transformer struct {
	Name       string  `yaml:"name"`
	From       string  `yaml:"from"`
	To         string  `yaml:"to"`
	KVA        float64 `yaml:"kva"`
	PctR       float64 `yaml:"pct_r"`
	PctX       float64 `yaml:"pct_x"`
	Tap        float64 `yaml:"tap"`
	RegulatePU float64 `yaml:"regulate_pu"`
}

// Load is a constant power consumer.
type Load struct {
	Name string  `yaml:"name"`
	Bus  string  `yaml:"bus"`
	KW   float64 `yaml:"kw"`
	KVAR float64 `yaml:"kvar"`
}

// Capacitor is a shunt capacitor bank rated at 1 p.u. voltage.
type Capacitor struct {
	Name string  `yaml:"name"`
	Bus  string  `yaml:"bus"`
	KVAR float64 `yaml:"kvar"`
}

// LoadModel reads and validates a feeder file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// ParseModel decodes YAML feeder data, applies defaults and validates it.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) normalize() {
	if m.BaseKVA == 0 {
		m.BaseKVA = 1000
	}
	if m.Source.PU == 0 {
		m.Source.PU = 1
	}
	m.Source.Bus = strings.ToLower(m.Source.Bus)
	for i := range m.Buses {
		m.Buses[i].Name = strings.ToLower(m.Buses[i].Name)
	}
	for i := range m.Lines {
		if m.Lines[i].NormAmps == 0 {
			m.Lines[i].NormAmps = DefaultNormAmps
		}
		m.Lines[i].From = strings.ToLower(m.Lines[i].From)
		m.Lines[i].To = strings.ToLower(m.Lines[i].To)
	}
	for i := range m.Transformers {
		if m.Transformers[i].Tap == 0 {
			m.Transformers[i].Tap = 1
		}
		m.Transformers[i].From = strings.ToLower(m.Transformers[i].From)
		m.Transformers[i].To = strings.ToLower(m.Transformers[i].To)
	}
	for i := range m.Loads {
		m.Loads[i].Bus = strings.ToLower(m.Loads[i].Bus)
	}
	for i := range m.Capacitors {
		m.Capacitors[i].Bus = strings.ToLower(m.Capacitors[i].Bus)
	}
}

// Validate checks references and ratings.
func (m *Model) Validate() error {
	if m.BaseKVA < 0 {
		return fmt.Errorf("base_kva must be positive")
	}
	buses := make(map[string]bool, len(m.Buses))
	for _, b := range m.Buses {
		if b.Name == "" {
			return fmt.Errorf("bus without name")
		}
		if b.KV <= 0 {
			return fmt.Errorf("bus %s: kv must be positive", b.Name)
		}
		if buses[b.Name] {
			return fmt.Errorf("duplicate bus %s", b.Name)
		}
		buses[b.Name] = true
	}
	if !buses[m.Source.Bus] {
		return fmt.Errorf("source: %w %q", ErrUnknownBus, m.Source.Bus)
	}
	for _, l := range m.Lines {
		if !buses[l.From] || !buses[l.To] {
			return fmt.Errorf("line %s: %w", l.Name, ErrUnknownBus)
		}
		if l.ROhm == 0 && l.XOhm == 0 {
			return fmt.Errorf("line %s: zero impedance", l.Name)
		}
	}
	for _, t := range m.Transformers {
		if !buses[t.From] || !buses[t.To] {
			return fmt.Errorf("transformer %s: %w", t.Name, ErrUnknownBus)
		}
		if t.KVA <= 0 {
			return fmt.Errorf("transformer %s: kva must be positive", t.Name)
		}
		if t.PctR == 0 && t.PctX == 0 {
			return fmt.Errorf("transformer %s: zero impedance", t.Name)
		}
		if t.Tap < 1-regulatorRange || t.Tap > 1+regulatorRange {
			return fmt.Errorf("transformer %s: tap %v outside [%v,%v]", t.Name, t.Tap, 1-regulatorRange, 1+regulatorRange)
		}
		if t.RegulatePU < 0 || t.RegulatePU > 1.5 {
			return fmt.Errorf("transformer %s: regulate_pu %v out of range", t.Name, t.RegulatePU)
		}
	}
	for _, l := range m.Loads {
		if !buses[l.Bus] {
			return fmt.Errorf("load %s: %w %q", l.Name, ErrUnknownBus, l.Bus)
		}
	}
	for _, c := range m.Capacitors {
		if !buses[c.Bus] {
			return fmt.Errorf("capacitor %s: %w %q", c.Name, ErrUnknownBus, c.Bus)
		}
	}
	return nil
}
