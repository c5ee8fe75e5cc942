package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// ConstantVUs runs a fixed number of VUs for a duration.
//
// Every VU loops iterations back to back (closed model) until the duration
// expires. Iterations in flight at the deadline get GracefulStop to finish
// before their context is cancelled.
type ConstantVUs struct {
	config *Config
	pool   vuPool
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{}
}

// Type returns the executor type.
func (e *ConstantVUs) Type() Type {
	return TypeConstantVUs
}

// Init initializes the executor with configuration.
func (e *ConstantVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantVUs, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the executor and blocks until completion.
func (e *ConstantVUs) Run(ctx context.Context, scheduler *performance.VUScheduler, metricsEngine *metrics.Engine) error {
	if e.config == nil {
		return fmt.Errorf("executor not initialized")
	}
	if scheduler == nil || metricsEngine == nil {
		return fmt.Errorf("scheduler and metrics engine are required")
	}

	e.pool.run(ctx, e.config.VUs, 0, e.config.Duration, e.config.gracefulStop(),
		scheduler, metricsEngine)
	return nil
}

// GetProgress returns elapsed time over the configured duration.
func (e *ConstantVUs) GetProgress() float64 {
	if e.pool.finished.Load() {
		return 1.0
	}
	if !e.pool.running.Load() {
		return 0.0
	}

	progress := float64(time.Since(e.pool.started())) / float64(e.config.Duration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active VU count.
func (e *ConstantVUs) GetActiveVUs() int {
	return int(e.pool.activeVUs.Load())
}

// GetStats returns executor statistics.
func (e *ConstantVUs) GetStats() *Stats {
	start := e.pool.started()
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}

	return &Stats{
		StartTime:     start,
		CurrentTime:   time.Now(),
		Elapsed:       elapsed,
		TotalDuration: e.config.Duration,
		ActiveVUs:     e.GetActiveVUs(),
		TargetVUs:     e.config.VUs,
		Iterations:    e.pool.iterations(),
	}
}

// Stop gracefully stops the executor.
func (e *ConstantVUs) Stop(ctx context.Context) error {
	return e.pool.stop(ctx, e.config.gracefulStop())
}

var _ Executor = (*ConstantVUs)(nil)
