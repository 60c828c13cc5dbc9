// Package service runs the metrics pipeline and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/curvewatch/internal/adapters/repository"
	"github.com/okian/curvewatch/internal/adapters/sink"
	"github.com/okian/curvewatch/internal/adapters/source"
	"github.com/okian/curvewatch/internal/config"
	"github.com/okian/curvewatch/internal/domain/aggregate"
	"github.com/okian/curvewatch/internal/domain/model"
	"github.com/okian/curvewatch/internal/domain/ratio"
	"github.com/okian/curvewatch/pkg/logger"
)

// Service runs the pipeline on demand or on a schedule and serves the
// latest run.
type Service struct {
	mu sync.RWMutex

	cfg        *config.Config
	loader     source.Loader
	store      repository.Store
	sink       sink.Writer
	aggregator *aggregate.Aggregator
	calc       *ratio.Calculator
	variant    model.Variant

	// State
	started   bool
	stopping  bool
	running   atomic.Bool
	runs      sync.WaitGroup
	scheduler *cron.Cron
	baseCtx   context.Context
	cancel    context.CancelFunc

	// Counters for /stats
	runsTotal   int
	runFailures int
	lastRun     *runSummary
	lastErr     string

	logger logger.Logger
}

type runSummary struct {
	RunID    string         `json:"run_id"`
	Finished time.Time      `json:"finished_at"`
	Duration time.Duration  `json:"-"`
	Stats    model.RunStats `json:"stats"`
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLoader sets where facts and assumptions are read from.
func WithLoader(l source.Loader) Option {
	return func(s *Service) {
		if l != nil {
			s.loader = l
		}
	}
}

// WithStore sets the store the latest run is published to.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithSink adds an output every finished run is written to.
func WithSink(w sink.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.sink = w
		}
	}
}

// New constructs a Service. Without options it reads the configured CSV
// files and keeps runs in memory.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	calc, err := ratio.New(ratio.WithPvolDenominator(cfg.Ratio.PvolDenominator))
	if err != nil {
		return nil, fmt.Errorf("ratio: %w", err)
	}
	s := &Service{
		cfg:        cfg,
		aggregator: aggregate.New(cfg.Dimension.Mapper()),
		calc:       calc,
		variant: model.Variant{
			PbadScale:       cfg.Ratio.PbadScale,
			PvolDenominator: calc.PvolDenominator(),
			ClampNegative:   cfg.Presentation.ClampNegative,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loader == nil {
		s.loader = source.NewCSV(cfg.Source.FactsPath, cfg.Source.AssumptionsPath)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}
	return s, nil
}

// Start triggers the first run in the background and, when a schedule is
// configured, re-runs on it. Runs stop when ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	started, err := s.start(ctx)
	if err != nil || !started {
		return err
	}
	s.TriggerRun(ctx)
	return nil
}

func (s *Service) start(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return false, nil
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	if s.cfg.Schedule != "" {
		cl := cronLogger{l: s.logger.Named("cron")}
		s.scheduler = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
		if _, err := s.scheduler.AddFunc(s.cfg.Schedule, s.scheduledRun); err != nil {
			s.cancel()
			return false, fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
		}
		s.scheduler.Start()
	}

	s.started = true
	s.logger.Info(ctx, "pipeline service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.String("schedule", s.cfg.Schedule),
	)
	return true, nil
}

func (s *Service) scheduledRun() {
	if _, ok := s.TriggerRun(context.Background()); !ok {
		s.logger.Warn(context.Background(), "scheduled run skipped; previous run still in flight")
	}
}

// Stop stops the scheduler, cancels the run in flight and waits for it.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	scheduler, cancel := s.scheduler, s.cancel
	s.scheduler = nil
	s.started = false
	s.stopping = true
	s.mu.Unlock()

	s.logger.Info(context.Background(), "stopping pipeline service...")
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	cancel()
	s.runs.Wait()

	s.mu.Lock()
	s.stopping = false
	s.baseCtx = nil
	s.mu.Unlock()
	s.logger.Info(context.Background(), "pipeline service stopped")
}

// TriggerRun starts a run in the background. It returns false when a run
// is already in flight or the service is stopping.
func (s *Service) TriggerRun(_ context.Context) (string, bool) {
	if !s.running.CompareAndSwap(false, true) {
		return "", false
	}
	runID := uuid.NewString()

	// Add under the lock so Stop cannot be waiting on a zero counter.
	s.mu.RLock()
	if s.stopping {
		s.mu.RUnlock()
		s.running.Store(false)
		return "", false
	}
	ctx := s.baseCtx
	s.runs.Add(1)
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer s.runs.Done()
		defer s.running.Store(false)
		if _, err := s.execute(ctx, runID); err != nil {
			s.logger.Error(ctx, "background run failed", logger.String("run_id", runID), logger.Error(err))
		}
	}()
	return runID, true
}

// Run executes the pipeline once and waits for it.
func (s *Service) Run(ctx context.Context) (*model.Run, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInFlight
	}
	defer s.running.Store(false)
	return s.execute(ctx, uuid.NewString())
}

func (s *Service) execute(ctx context.Context, runID string) (*model.Run, error) {
	start := time.Now()
	run, err := s.safePipeline(ctx, runID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.runFailures++
		s.lastErr = err.Error()
		return nil, err
	}
	s.runsTotal++
	s.lastErr = ""
	s.lastRun = &runSummary{
		RunID:    run.RunID,
		Finished: run.FinishedAt,
		Duration: time.Since(start),
		Stats:    run.Stats,
	}
	return run, nil
}

// safePipeline turns a panic in any stage into a failed run.
func (s *Service) safePipeline(ctx context.Context, runID string) (run *model.Run, err error) {
	defer func() {
		if r := recover(); r != nil {
			run, err = nil, fmt.Errorf("%w: %v", ErrRunPanicked, r)
		}
	}()
	return s.pipeline(ctx, runID)
}

// Latest returns the most recently published run.
func (s *Service) Latest(ctx context.Context) (*model.Run, error) {
	return s.store.Latest(ctx)
}

// Rows returns filtered rows of the latest run, clamped when configured.
func (s *Service) Rows(ctx context.Context, f repository.Filter) ([]model.MetricRow, error) {
	rows, err := s.store.Rows(ctx, f)
	if err != nil {
		return nil, err
	}
	if s.variant.ClampNegative {
		return ratio.ClampAll(rows), nil
	}
	return rows, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	// the store may be remote; count outside the lock
	storedRows := s.store.Count(context.Background())

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.QueueSize,
		"schedule":    s.cfg.Schedule,
		"runInFlight": s.running.Load(),
		"runsTotal":   s.runsTotal,
		"runFailures": s.runFailures,
		"storedRows":  storedRows,
		"variant":     s.variant,
	}
	if s.lastRun != nil {
		stats["lastRun"] = s.lastRun
		stats["lastRunDurationMs"] = s.lastRun.Duration.Milliseconds()
	}
	if s.lastErr != "" {
		stats["lastError"] = s.lastErr
	}
	return stats
}
