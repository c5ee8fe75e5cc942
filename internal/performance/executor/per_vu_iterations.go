package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// PerVUIterations runs exactly Iterations iterations on each of VUs VUs.
//
// With a fixed VU count and iteration count the sequence of keys touched is
// fully determined, which makes a run replayable. MaxDuration bounds the run
// in case the target stalls.
type PerVUIterations struct {
	config *Config
	pool   vuPool
}

// NewPerVUIterations creates a new per-vu-iterations executor.
func NewPerVUIterations() *PerVUIterations {
	return &PerVUIterations{}
}

// Type returns the executor type.
func (e *PerVUIterations) Type() Type {
	return TypePerVUIterations
}

// Init initializes the executor with configuration.
func (e *PerVUIterations) Init(ctx context.Context, config *Config) error {
	if config.Type != TypePerVUIterations {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypePerVUIterations, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the executor and blocks until every VU has finished its
// iterations or MaxDuration expires.
func (e *PerVUIterations) Run(ctx context.Context, scheduler *performance.VUScheduler, metricsEngine *metrics.Engine) error {
	if e.config == nil {
		return fmt.Errorf("executor not initialized")
	}
	if scheduler == nil || metricsEngine == nil {
		return fmt.Errorf("scheduler and metrics engine are required")
	}

	e.pool.run(ctx, e.config.VUs, e.config.Iterations, e.config.TotalDuration(), e.config.gracefulStop(),
		scheduler, metricsEngine)
	return nil
}

func (e *PerVUIterations) planned() int64 {
	return int64(e.config.VUs) * e.config.Iterations
}

// GetProgress returns completed iterations over planned iterations.
func (e *PerVUIterations) GetProgress() float64 {
	if e.pool.finished.Load() {
		return 1.0
	}
	if !e.pool.running.Load() || e.planned() == 0 {
		return 0.0
	}

	progress := float64(e.pool.iterations()) / float64(e.planned())
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active VU count.
func (e *PerVUIterations) GetActiveVUs() int {
	return int(e.pool.activeVUs.Load())
}

// GetStats returns executor statistics.
func (e *PerVUIterations) GetStats() *Stats {
	start := e.pool.started()
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}

	return &Stats{
		StartTime:       start,
		CurrentTime:     time.Now(),
		Elapsed:         elapsed,
		TotalDuration:   e.config.TotalDuration(),
		ActiveVUs:       e.GetActiveVUs(),
		TargetVUs:       e.config.VUs,
		Iterations:      e.pool.iterations(),
		TotalIterations: e.planned(),
	}
}

// Stop gracefully stops the executor.
func (e *PerVUIterations) Stop(ctx context.Context) error {
	return e.pool.stop(ctx, e.config.gracefulStop())
}

var _ Executor = (*PerVUIterations)(nil)
