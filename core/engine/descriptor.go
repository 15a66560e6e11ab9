package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Descriptor is a structured element definition attached to a compiled
// circuit. DSS renders it as OpenDSS command text.
type Descriptor interface {
	ElementName() string
	DSS() string
}

// PVSystem describes a photovoltaic unit. When PF is non-zero the unit runs
// in power factor mode and KVAR is ignored.
type PVSystem struct {
	Name       string
	Bus        string
	Phases     int
	KV         float64
	PmppKW     float64
	KVA        float64
	KVAR       float64
	PF         float64
	Irradiance float64
	Daily      string // load shape driving the irradiance
}

func (p PVSystem) ElementName() string { return "PVSystem." + p.Name }

func (p PVSystem) DSS() string {
	var b strings.Builder
	fmt.Fprintf(&b, "New PVSystem.%s bus1=%s phases=%d kV=%s Pmpp=%s kVA=%s irradiance=%s",
		p.Name, p.Bus, phasesOrDefault(p.Phases), num(p.KV), num(p.PmppKW), num(p.KVA), num(irr(p.Irradiance)))
	if p.Daily != "" {
		fmt.Fprintf(&b, " daily=%s", p.Daily)
	}
	if p.PF != 0 {
		fmt.Fprintf(&b, " pf=%s", num(p.PF))
	} else {
		fmt.Fprintf(&b, " kvar=%s", num(p.KVAR))
	}
	return b.String()
}

// Storage describes a battery unit under external dispatch.
type Storage struct {
	Name            string
	Bus             string
	Phases          int
	KV              float64
	KWRated         float64
	KWhRated        float64
	KVA             float64
	KVAR            float64
	StoredPct       float64
	ReservePct      float64
	IdlingPct       float64
	ChargeEffPct    float64
	DischargeEffPct float64
}

func (s Storage) ElementName() string { return "Storage." + s.Name }

func (s Storage) DSS() string {
	return fmt.Sprintf("New Storage.%s bus1=%s phases=%d kV=%s kWrated=%s kWhrated=%s kVA=%s kvar=%s %%stored=%s %%reserve=%s %%idlingkW=%s %%EffCharge=%s %%EffDischarge=%s dispmode=external",
		s.Name, s.Bus, phasesOrDefault(s.Phases), num(s.KV), num(s.KWRated), num(s.KWhRated), num(s.KVA), num(s.KVAR),
		num(s.StoredPct), num(s.ReservePct), num(s.IdlingPct), num(effOrDefault(s.ChargeEffPct)), num(effOrDefault(s.DischargeEffPct)))
}

// Info returns the ratings visible to dispatch policies.
func (s Storage) Info() StorageInfo {
	return StorageInfo{Name: s.Name, KWRated: s.KWRated, KWhRated: s.KWhRated, ReservePct: s.ReservePct}
}

// LoadShape is a per-step multiplier curve. When ApplyToLoads is set every
// load in the circuit follows it.
type LoadShape struct {
	Name          string
	Points        []float64
	IntervalHours float64
	ApplyToLoads  bool
}

func (l LoadShape) ElementName() string { return "LoadShape." + l.Name }

func (l LoadShape) DSS() string {
	vals := make([]string, len(l.Points))
	for i, v := range l.Points {
		vals[i] = num(v)
	}
	out := fmt.Sprintf("New LoadShape.%s npts=%d interval=%s mult=(%s)",
		l.Name, len(l.Points), num(l.IntervalHours), strings.Join(vals, " "))
	if l.ApplyToLoads {
		out += "\nBatchEdit Load..* daily=" + l.Name
	}
	return out
}

// At returns the multiplier for step, wrapping around the curve.
func (l LoadShape) At(step int) float64 {
	if len(l.Points) == 0 {
		return 1
	}
	return l.Points[step%len(l.Points)]
}

// EnergyMeter marks the element from which bus distances are measured.
type EnergyMeter struct {
	Name     string
	Element  string
	Terminal int
}

func (m EnergyMeter) ElementName() string { return "EnergyMeter." + m.Name }

func (m EnergyMeter) DSS() string {
	t := m.Terminal
	if t == 0 {
		t = 1
	}
	return fmt.Sprintf("New EnergyMeter.%s element=%s terminal=%d", m.Name, m.Element, t)
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func phasesOrDefault(p int) int {
	if p == 0 {
		return 3
	}
	return p
}

func irr(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func effOrDefault(v float64) float64 {
	if v == 0 {
		return 90
	}
	return v
}
