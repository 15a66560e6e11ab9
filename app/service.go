// Package app wires configuration, the feeder engine, the sizing runner and
// the observability stack into runnable sizing jobs.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/dersize/config"
	"github.com/kilianp07/dersize/core/dispatch"
	"github.com/kilianp07/dersize/core/events"
	coremetrics "github.com/kilianp07/dersize/core/metrics"
	"github.com/kilianp07/dersize/core/model"
	coremon "github.com/kilianp07/dersize/core/monitoring"
	"github.com/kilianp07/dersize/core/search"
	"github.com/kilianp07/dersize/core/search/logging"
	"github.com/kilianp07/dersize/core/sizing"
	"github.com/kilianp07/dersize/infra/feeder"
	"github.com/kilianp07/dersize/infra/logger"
	"github.com/kilianp07/dersize/infra/metrics"
	"github.com/kilianp07/dersize/infra/monitoring"
	"github.com/kilianp07/dersize/infra/mqtt"
	"github.com/kilianp07/dersize/infra/profile"
	"github.com/kilianp07/dersize/internal/eventbus"
	"github.com/kilianp07/dersize/pkg/export"
)

// Service runs sizing jobs for one configuration. Every job gets its own run
// ID; evaluations are published on the event bus, persisted to the log
// store and forwarded to the metrics sinks and the MQTT broker.
type Service struct {
	cfg    *config.Config
	runner *sizing.Runner
	bus    *eventbus.Bus
	sink   coremetrics.MetricsSink
	store  logging.LogStore
	mon    coremon.Monitor
	pub    *mqtt.PahoClient
	out    export.Dir
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	runner, err := NewRunner(cfg, logger.New("sizing"))
	if err != nil {
		return nil, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := logging.NewLogStore(cfg.Logging.Store())
	if err != nil {
		return nil, fmt.Errorf("log store: %w", err)
	}

	svc := &Service{
		cfg:    cfg,
		runner: runner,
		bus:    eventbus.NewWithBuffer(busBuffer(cfg)),
		sink:   sink,
		store:  store,
		mon:    mon,
		out:    export.Dir{Path: cfg.Output.Dir, Charts: cfg.Output.ChartsEnabled()},
		log:    logg,
	}
	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewPahoClient(cfg.MQTT, mon)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.pub = client
	}
	return svc, nil
}

// NewRunner builds the case runner shared by every job: the feeder is parsed
// once and the daily shapes are read once.
func NewRunner(cfg *config.Config, log logger.Logger) (*sizing.Runner, error) {
	m, err := feeder.LoadModel(cfg.Files.Feeder)
	if err != nil {
		return nil, fmt.Errorf("feeder model: %w", err)
	}
	steps, stepHours := cfg.TimeSeries.Steps, cfg.TimeSeries.StepHours()
	loadShape, err := profile.LoadShape("load_curve", profile.ParseFile(cfg.Files.LoadProfile), steps, stepHours, true)
	if err != nil {
		return nil, err
	}
	pvShape, err := profile.LoadShape("pv_curve", profile.ParseFile(cfg.Files.PVProfile), steps, stepHours, false)
	if err != nil {
		return nil, err
	}
	policy, err := dispatch.NewPolicyFactory(cfg.Dispatch)
	if err != nil {
		return nil, fmt.Errorf("dispatch policy %s: %w", cfg.Dispatch.Type, err)
	}
	return &sizing.Runner{
		ModelPath:  cfg.Files.Feeder,
		Steps:      steps,
		StepHours:  stepHours,
		Limits:     cfg.Limits.Model(),
		LoadShape:  loadShape,
		PVShape:    pvShape,
		Meter:      cfg.Meter.Descriptor(),
		PV:         cfg.PV.Sizing(),
		Storage:    cfg.Storage.Sizing(),
		Policy:     policy,
		Evaluation: cfg.Evaluation.Options(),
		NewEngine:  feeder.NewFactory(m),
		Logger:     log,
	}, nil
}

// Start launches the event consumers and the Prometheus endpoint. They stop
// when ctx is canceled or the bus is closed; the returned function closes the
// bus and waits for them.
func (s *Service) Start(ctx context.Context) (stop func()) {
	done := []<-chan struct{}{
		metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics")),
	}
	if s.pub != nil {
		done = append(done, mqtt.Forward(ctx, s.bus, s.pub, logger.New("mqtt")))
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port, nil, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return func() {
		s.bus.Close()
		for _, d := range done {
			<-d
		}
		if n := s.bus.Dropped(); n > 0 {
			s.log.Warnf("event bus dropped %d deliveries; metrics and mqtt may undercount", n)
		}
	}
}

// busBuffer sizes subscriber buffers so that the step events of every
// in-flight candidate (baseline and DER runs) fit alongside the search events.
func busBuffer(cfg *config.Config) int {
	if !cfg.Metrics.RecordSteps {
		return eventbus.DefaultBuffer
	}
	workers := cfg.Traversal.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return eventbus.DefaultBuffer + 2*cfg.TimeSeries.Steps*workers
}

// job carries the identity of one search or single run.
type job struct {
	runID    string
	strategy string
	started  time.Time
}

func (s *Service) newJob(strategy string) job {
	return job{runID: uuid.NewString(), strategy: strategy, started: time.Now()}
}

// evaluator returns the runner, or a per-candidate copy forwarding step
// snapshots when step recording is enabled.
func (s *Service) evaluator(j job) search.Evaluator {
	if !s.cfg.Metrics.RecordSteps {
		return s.runner
	}
	return search.EvaluatorFunc(func(ctx context.Context, cand model.CandidateSize) (sizing.CaseResult, error) {
		r := *s.runner
		r.Observer = func(label string, rec model.StepRecord) {
			s.bus.Publish(coremetrics.NewStepEvent(j.runID, label, cand, rec, time.Now()))
		}
		return r.Evaluate(ctx, cand)
	})
}

func (s *Service) hooks(j job) search.Hooks {
	return search.Hooks{
		OnRow: func(strategy string, row search.Row) {
			now := time.Now()
			s.bus.Publish(events.EvaluationEvent{RunID: j.runID, Strategy: strategy, Row: row, Time: now})
			if s.store != nil {
				if err := s.store.Append(context.Background(), logging.FromRow(j.runID, strategy, row, now)); err != nil {
					s.log.Warnf("log store: %v", err)
				}
			}
		},
		OnError: func(cand model.CandidateSize, err error) {
			s.log.Warnf("%s %s: %v", j.strategy, cand, err)
			if !errors.Is(err, context.Canceled) {
				s.mon.CaptureException(err, coremon.CandidateTags(j.runID, j.strategy, cand))
			}
		},
	}
}

func (s *Service) started(j job, candidates int) {
	s.log.Infof("%s %s started (%d candidates)", j.strategy, j.runID, candidates)
	s.bus.Publish(events.SearchStartedEvent{RunID: j.runID, Strategy: j.strategy, Candidates: candidates, Time: j.started})
}

func (s *Service) finished(j job, best model.CandidateSize, feasible bool, evaluated int, err error) {
	d := time.Since(j.started)
	s.bus.Publish(events.SearchFinishedEvent{
		RunID:     j.runID,
		Strategy:  j.strategy,
		Best:      best,
		Feasible:  feasible,
		Evaluated: evaluated,
		Duration:  d,
		Err:       err,
	})
	if feasible {
		s.log.Infof("%s %s finished in %s: best %s after %d evaluations", j.strategy, j.runID, d.Round(time.Millisecond), best, evaluated)
		return
	}
	s.log.Warnf("%s %s finished in %s: no feasible candidate in %d evaluations", j.strategy, j.runID, d.Round(time.Millisecond), evaluated)
}

// Traverse evaluates the configured grid and exports the grid files.
func (s *Service) Traverse(ctx context.Context) (search.TraversalResult, error) {
	j := s.newJob(search.StrategyTraversal)
	cfg := s.cfg.Traversal.Search()
	cfg.Hooks = s.hooks(j)
	grid, err := search.Grid(cfg)
	if err != nil {
		return search.TraversalResult{}, err
	}
	s.started(j, len(grid))
	res, err := search.Traverse(ctx, s.evaluator(j), cfg)
	s.finished(j, res.Best, res.Feasible, len(res.Rows), err)
	if xerr := s.out.Traversal(res); xerr != nil {
		return res, errors.Join(err, fmt.Errorf("export: %w", xerr))
	}
	return res, err
}

// Climb walks the hill-climbing path, exports it and re-runs the best point
// for its detailed time series.
func (s *Service) Climb(ctx context.Context) (search.ClimbResult, error) {
	j := s.newJob(search.StrategyClimb)
	cfg := s.cfg.Climb.Search()
	cfg.Hooks = s.hooks(j)
	s.started(j, 0)
	res, err := search.Climb(ctx, s.evaluator(j), cfg)
	s.finished(j, res.Best, res.Feasible, len(res.Rows), err)
	if xerr := s.out.Climb(res); xerr != nil {
		return res, errors.Join(err, fmt.Errorf("export: %w", xerr))
	}
	if err != nil || !res.Feasible {
		return res, err
	}
	best, err := s.runner.Evaluate(ctx, res.Best)
	if err != nil {
		return res, fmt.Errorf("re-run best candidate: %w", err)
	}
	s.report("climb_best", best)
	return res, s.out.Case("climb_best", best)
}

// Single simulates the configured candidate, logs its convergence and
// violation report and exports its time series.
func (s *Service) Single(ctx context.Context) (sizing.CaseResult, error) {
	j := s.newJob("single")
	cand := s.cfg.SingleRun.Candidate()
	s.started(j, 1)
	res, err := s.evaluator(j).Evaluate(ctx, cand)
	row := search.Row{Candidate: cand, Verdict: res.Verdict, Duration: time.Since(j.started)}
	if err != nil {
		row.Error = err.Error()
		s.hooks(j).OnError(cand, err)
	}
	s.hooks(j).OnRow(j.strategy, row)
	s.finished(j, cand, row.Success(false), 1, err)
	if res.DER == nil {
		return res, err
	}
	s.report("single_run", res)
	if xerr := s.out.Case("single_run", res); xerr != nil {
		return res, errors.Join(err, fmt.Errorf("export: %w", xerr))
	}
	return res, err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.pub != nil {
		s.pub.Disconnect()
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.mon != nil {
		s.mon.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
