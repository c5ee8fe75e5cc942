package perf

import (
	"context"

	"go.uber.org/zap"

	"github.com/wesleyorama2/kvlunge/internal/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

type (
	// Config is the configuration of one run.
	Config = config.Config
	// ThresholdsConfig holds pass/fail expressions per metric.
	ThresholdsConfig = config.ThresholdsConfig
	// Duration accepts Go duration syntax or bare integer seconds.
	Duration = config.Duration

	// TestResult contains the complete results of a run.
	TestResult = engine.TestResult
	// ThresholdResult contains the result of a single threshold evaluation.
	ThresholdResult = engine.ThresholdResult

	// Snapshot is a point-in-time view of the run metrics.
	Snapshot = metrics.Snapshot
	// CheckStats aggregates one check label.
	CheckStats = metrics.CheckStats
)

// Option configures a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger used by the run.
func WithLogger(logger *zap.Logger) Option {
	return func(o *runnerOptions) {
		o.logger = logger
	}
}

// Runner runs the kv scenario once.
type Runner struct {
	engine *engine.Engine
}

// NewRunner validates cfg and prepares a run. Defaults are applied to cfg in
// place.
func NewRunner(cfg *Config, opts ...Option) (*Runner, error) {
	o := &runnerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	eng, err := engine.NewEngine(cfg, engine.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return &Runner{engine: eng}, nil
}

// Run executes the scenario. See RunTest for the error contract.
func (r *Runner) Run(ctx context.Context) (*TestResult, error) {
	return r.engine.Run(ctx)
}

// IsRunning returns true while Run is executing.
func (r *Runner) IsRunning() bool {
	return r.engine.IsRunning()
}

// Metrics returns the current metrics snapshot, nil before Run.
func (r *Runner) Metrics() *Snapshot {
	return r.engine.GetMetrics()
}

// Checks returns per-check pass and fail counts so far.
func (r *Runner) Checks() []CheckStats {
	return r.engine.GetCheckStats()
}

// Progress returns run progress (0.0 to 1.0).
func (r *Runner) Progress() float64 {
	return r.engine.GetProgress()
}

// Stop ends the measured run early.
func (r *Runner) Stop(ctx context.Context) error {
	return r.engine.Stop(ctx)
}

// RunTest runs the scenario with cfg.
//
// A non-nil error means the run never started measuring: invalid
// configuration or a failed preflight, reset or warmup. Failed checks and
// thresholds are reported through the result, not as an error.
func RunTest(ctx context.Context, cfg *Config, opts ...Option) (*TestResult, error) {
	runner, err := NewRunner(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

// LoadConfig reads a configuration file, applies the environment and
// defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultThresholds returns http_req_failed rate<0.01 and
// http_req_duration p(95)<25.
func DefaultThresholds() *ThresholdsConfig {
	return config.DefaultThresholds()
}
