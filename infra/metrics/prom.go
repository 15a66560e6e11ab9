package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/dersize/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records sizing evaluations in Prometheus metrics.
type PromSink struct {
	evaluations *prometheus.CounterVec
	reasons     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	best        *prometheus.GaugeVec
	voltage     *prometheus.GaugeVec
}

// NewPromSink registers sizing metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dersize_evaluations_total",
			Help: "Total number of evaluated candidates",
		}, []string{"strategy", "status"}),
		reasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dersize_reason_codes_total",
			Help: "Reason codes reported by evaluated candidates",
		}, []string{"strategy", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dersize_evaluation_duration_seconds",
			Help:    "Wall time spent simulating one candidate",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"strategy"}),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dersize_best_size_kw",
			Help: "Best feasible size found by the last search",
		}, []string{"strategy", "component"}),
		voltage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dersize_step_voltage_pu",
			Help: "Extreme bus voltages of the last simulated step",
		}, []string{"label", "bound"}),
	}
	var err error
	if s.evaluations, err = register(reg, s.evaluations); err != nil {
		return nil, err
	}
	if s.reasons, err = register(reg, s.reasons); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.best, err = register(reg, s.best); err != nil {
		return nil, err
	}
	if s.voltage, err = register(reg, s.voltage); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordEvaluation increments the evaluation and reason counters.
func (s *PromSink) RecordEvaluation(ev coremetrics.EvaluationEvent) error {
	status := ev.Verdict.Status.String()
	if ev.Error != "" {
		status = "Error"
	}
	s.evaluations.WithLabelValues(ev.Strategy, status).Inc()
	for _, r := range ev.Verdict.Reasons.Sorted() {
		s.reasons.WithLabelValues(ev.Strategy, r.String()).Inc()
	}
	s.duration.WithLabelValues(ev.Strategy).Observe(ev.Duration.Seconds())
	return nil
}

// RecordSearch sets the best-size gauges of a finished search.
func (s *PromSink) RecordSearch(ev coremetrics.SearchEvent) error {
	if !ev.Feasible {
		s.best.DeletePartialMatch(prometheus.Labels{"strategy": ev.Strategy})
		return nil
	}
	s.best.WithLabelValues(ev.Strategy, "pv").Set(ev.Best.PVKW)
	s.best.WithLabelValues(ev.Strategy, "battery").Set(ev.Best.BatteryKW)
	return nil
}

// RecordStep exposes the voltage band of the latest converged step.
func (s *PromSink) RecordStep(ev coremetrics.StepEvent) error {
	if !ev.Converged {
		return nil
	}
	s.voltage.WithLabelValues(ev.Label, "min").Set(ev.MinVoltage)
	s.voltage.WithLabelValues(ev.Label, "max").Set(ev.MaxVoltage)
	return nil
}

var (
	_ coremetrics.SearchRecorder = (*PromSink)(nil)
	_ coremetrics.StepRecorder   = (*PromSink)(nil)
)
