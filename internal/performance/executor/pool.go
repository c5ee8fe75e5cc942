package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// vuPool is the VU bookkeeping shared by both executors.
type vuPool struct {
	scheduler *performance.VUScheduler
	metrics   *metrics.Engine

	startTime  time.Time
	startMu    sync.RWMutex
	activeVUs  atomic.Int32
	running    atomic.Bool
	finished   atomic.Bool
	cancelFunc context.CancelFunc
	cancelMu   sync.Mutex
	wg         sync.WaitGroup
}

// run spawns n VUs, each limited to maxIterations (zero for unlimited), and
// waits for all of them.
//
// At stopAfter the VUs are asked to stop, so no new iteration starts, while
// the iterations in flight keep running. Their context is cancelled only
// once graceful has also elapsed, or when ctx is done.
func (p *vuPool) run(ctx context.Context, n int, maxIterations int64, stopAfter, graceful time.Duration,
	scheduler *performance.VUScheduler, metricsEngine *metrics.Engine) {
	iterCtx, cancel := context.WithTimeout(ctx, stopAfter+graceful)
	defer cancel()

	p.cancelMu.Lock()
	p.scheduler = scheduler
	p.metrics = metricsEngine
	p.cancelFunc = cancel
	p.cancelMu.Unlock()

	p.startMu.Lock()
	p.startTime = time.Now()
	p.startMu.Unlock()
	p.running.Store(true)

	metricsEngine.SetPhase(metrics.PhaseSteady)

	for i := 0; i < n; i++ {
		vu := scheduler.SpawnVU()
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()

			metricsEngine.SetActiveVUs(int(p.activeVUs.Add(1)))
			defer func() {
				metricsEngine.SetActiveVUs(int(p.activeVUs.Add(-1)))
			}()

			scheduler.RunVU(iterCtx, vu, maxIterations)
		}()
	}

	deadline := time.AfterFunc(stopAfter, func() {
		metricsEngine.SetPhase(metrics.PhaseStopped)
		scheduler.StopAllVUs()
	})
	defer deadline.Stop()

	p.wg.Wait()

	metricsEngine.SetPhase(metrics.PhaseDone)
	p.running.Store(false)
	p.finished.Store(true)
}

func (p *vuPool) started() time.Time {
	p.startMu.RLock()
	defer p.startMu.RUnlock()
	return p.startTime
}

func (p *vuPool) iterations() int64 {
	p.cancelMu.Lock()
	scheduler := p.scheduler
	p.cancelMu.Unlock()

	if scheduler == nil {
		return 0
	}
	return scheduler.TotalIterations()
}

// stop asks every VU to stop after its current iteration and waits up to
// graceful before cancelling the iterations still running.
func (p *vuPool) stop(ctx context.Context, graceful time.Duration) error {
	p.cancelMu.Lock()
	scheduler, cancel := p.scheduler, p.cancelFunc
	p.cancelMu.Unlock()

	if scheduler != nil {
		scheduler.StopAllVUs()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(graceful)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		if cancel != nil {
			cancel()
		}
		return fmt.Errorf("graceful stop timeout after %v", graceful)
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
}
