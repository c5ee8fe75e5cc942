// Package engine runs one complete workload: preflight, optional reset and
// warmup, the measured run, and threshold evaluation.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wesleyorama2/kvlunge/internal/config"
	"github.com/wesleyorama2/kvlunge/internal/kv"
	"github.com/wesleyorama2/kvlunge/internal/performance"
	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
	"github.com/wesleyorama2/kvlunge/internal/performance/rate"
	"github.com/wesleyorama2/kvlunge/internal/scenario"
)

// Name is reported as the test name.
const Name = "kv-scenario"

// MetricsNamespace prefixes every exported Prometheus metric.
const MetricsNamespace = "kvlunge"

// Engine orchestrates a run.
//
// Example usage:
//
//	cfg, _ := config.Load("kvlunge.yaml")
//	eng, _ := engine.NewEngine(cfg)
//	result, _ := eng.Run(context.Background())
//	fmt.Printf("passed: %v\n", result.Passed)
type Engine struct {
	config     *config.Config
	logger     *zap.Logger
	httpClient *http.Client

	mu            sync.RWMutex
	metricsEngine *metrics.Engine
	executor      executor.Executor
	running       bool
	metricsAddr   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHTTPClient overrides the pooled client built from the configuration.
func WithHTTPClient(hc *http.Client) Option {
	return func(e *Engine) {
		if hc != nil {
			e.httpClient = hc
		}
	}
}

// NewEngine validates cfg and creates an engine. Defaults are applied to
// cfg in place.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{
		config: cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "engine"))

	if e.httpClient == nil {
		e.httpClient = performance.NewHTTPClient(
			performance.HTTPClientConfigFor(cfg.VUs, cfg.Timeout.Std()),
		)
	}

	return e, nil
}

// Run executes the workload and returns its result.
//
// Preflight, reset and warmup failures abort the run with an error and no
// result. Cancelling ctx during the measured run ends it early; the partial
// result is returned with Interrupted set.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	cfg := e.config
	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))
	startTime := time.Now()

	var observers []metrics.Observer
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheusObserver(MetricsNamespace)
		srv, err := startMetricsServer(cfg.MetricsAddr, prom.Handler(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer srv.Shutdown(5 * time.Second)
		observers = append(observers, prom)

		e.mu.Lock()
		e.metricsAddr = srv.Addr()
		e.mu.Unlock()
	}

	metricsEngine := metrics.NewEngine(observers...)
	defer metricsEngine.Stop()
	e.mu.Lock()
	e.metricsEngine = metricsEngine
	e.mu.Unlock()

	setup := e.newClient(logger)

	if !cfg.SkipHealth {
		if err := setup.Health(ctx); err != nil {
			return nil, fmt.Errorf("preflight health check failed: %w", err)
		}
		logger.Info("preflight passed", zap.String("base_url", cfg.BaseURL))
	}

	if cfg.Reset {
		if err := setup.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset failed: %w", err)
		}
		logger.Info("store reset")
	}

	var warmup *WarmupResult
	if cfg.Warmup {
		metricsEngine.SetPhase(metrics.PhaseWarmup)
		logger.Info("warmup started",
			zap.Int("keys", cfg.Keys),
			zap.Int("concurrency", cfg.WarmupConcurrency))

		var err error
		warmup, err = Warmup(ctx, setup, cfg.Keys, cfg.WarmupConcurrency, logger)
		if err != nil {
			return nil, fmt.Errorf("warmup failed: %w", err)
		}
		logger.Info("warmup finished",
			zap.Duration("duration", warmup.Duration),
			zap.Int64("failed", warmup.Failed))
	}

	client := e.newClient(logger, kv.WithRecorder(metricsEngine))
	runner := scenario.NewRunner(client, scenario.Config{
		Keys: cfg.Keys,
		VUs:  cfg.VUs,
		TTL:  cfg.TTL,
	}, metricsEngine, logger)

	var schedOpts []performance.SchedulerOption
	if cfg.Rate > 0 {
		schedOpts = append(schedOpts, performance.WithLimiter(rate.NewLeakyBucket(cfg.Rate)))
	}
	scheduler := performance.NewVUScheduler(runner, metricsEngine, schedOpts...)

	execConfig := e.executorConfig()
	exec, err := executor.CreateAndInitExecutor(ctx, execConfig)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.executor = exec
	e.mu.Unlock()

	logger.Info("run started",
		zap.String("executor", string(execConfig.Type)),
		zap.Int("vus", cfg.VUs),
		zap.Int("keys", cfg.Keys),
		zap.Duration("duration", execConfig.Duration),
		zap.Int64("iterations", execConfig.Iterations),
		zap.Float64("rate", cfg.Rate))

	runErr := exec.Run(ctx, scheduler, metricsEngine)
	scheduler.Shutdown(cfg.GracefulStop.Std())

	snapshot := metricsEngine.GetSnapshot()
	thresholds := EvaluateThresholds(cfg.Thresholds, snapshot)
	stats := exec.GetStats()

	result := &TestResult{
		RunID:        runID,
		Name:         Name,
		BaseURL:      cfg.BaseURL,
		Executor:     string(exec.Type()),
		StartTime:    startTime,
		EndTime:      time.Now(),
		Duration:     time.Since(startTime),
		Keys:         cfg.Keys,
		VUs:          cfg.VUs,
		Iterations:   stats.Iterations,
		Warmup:       warmup,
		Metrics:      snapshot,
		Checks:       metricsEngine.GetCheckStats(),
		RequestStats: requestStats(metricsEngine),
		TimeSeries:   metricsEngine.GetTimeSeries(),
		Thresholds:   thresholds,
		Passed:       allPassed(thresholds),
		Interrupted:  ctx.Err() != nil,
	}

	for _, t := range thresholds {
		if !t.Passed {
			logger.Warn("threshold failed",
				zap.String("metric", t.Metric),
				zap.String("expression", t.Expression),
				zap.String("value", t.Value))
		}
	}
	logger.Info("run finished",
		zap.Bool("passed", result.Passed),
		zap.Bool("interrupted", result.Interrupted),
		zap.Int64("iterations", result.Iterations),
		zap.Int64("requests", snapshot.TotalRequests),
		zap.Int64("failed_checks", snapshot.FailedChecks))

	return result, runErr
}

func (e *Engine) newClient(logger *zap.Logger, extra ...kv.ClientOption) *kv.Client {
	opts := []kv.ClientOption{
		kv.WithBaseURL(e.config.BaseURL),
		kv.WithHTTPClient(e.httpClient),
		kv.WithLogger(logger),
	}
	for k, v := range e.config.Headers {
		opts = append(opts, kv.WithHeader(k, v))
	}
	return kv.NewClient(append(opts, extra...)...)
}

func (e *Engine) executorConfig() *executor.Config {
	cfg := e.config
	ec := &executor.Config{
		Name:         Name,
		Type:         executor.TypeFor(cfg.Iterations),
		VUs:          cfg.VUs,
		GracefulStop: cfg.GracefulStop.Std(),
	}
	if ec.Type == executor.TypePerVUIterations {
		ec.Iterations = cfg.Iterations
	} else {
		ec.Duration = cfg.Duration.Std()
	}
	return ec
}

func requestStats(m *metrics.Engine) map[string]RequestStats {
	perRequest := m.GetRequestStats()
	if len(perRequest) == 0 {
		return nil
	}

	out := make(map[string]RequestStats, len(perRequest))
	for name, s := range perRequest {
		out[name] = RequestStats{Name: name, Count: s.Count, Latency: s}
	}
	return out
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config {
	return e.config
}

// PlannedDuration returns the run length for progress display, zero for
// iteration-bounded runs.
func (e *Engine) PlannedDuration() time.Duration {
	if e.config.Iterations > 0 {
		return 0
	}
	return e.config.Duration.Std()
}

// GetMetrics returns the current metrics snapshot, nil before Run.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	e.mu.RLock()
	m := e.metricsEngine
	e.mu.RUnlock()
	if m == nil {
		return nil
	}
	return m.GetSnapshot()
}

// GetCheckStats returns per-check counts so far.
func (e *Engine) GetCheckStats() []metrics.CheckStats {
	e.mu.RLock()
	m := e.metricsEngine
	e.mu.RUnlock()
	if m == nil {
		return nil
	}
	return m.GetCheckStats()
}

// GetProgress returns run progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.executor == nil {
		return 0.0
	}
	return e.executor.GetProgress()
}

// IsRunning returns true while Run is executing.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// MetricsAddr returns the bound Prometheus address, empty when disabled.
func (e *Engine) MetricsAddr() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metricsAddr
}

// Stop ends the measured run early.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	exec := e.executor
	running := e.running
	e.mu.RUnlock()

	if !running || exec == nil {
		return nil
	}
	return exec.Stop(ctx)
}
