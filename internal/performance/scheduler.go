package performance

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// VUScheduler manages the lifecycle of Virtual Users.
//
// It provides:
// - VU pool management (spawning/stopping VUs)
// - Optional global pacing through a Limiter
// - Graceful shutdown coordination
//
// The scheduler is used by executors to control VU counts.
type VUScheduler struct {
	workload Workload
	metrics  *metrics.Engine
	limiter  Limiter

	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	// VU ID counter; IDs start at 1
	nextVUID atomic.Int32

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup
}

// SchedulerOption configures a VUScheduler.
type SchedulerOption func(*VUScheduler)

// WithLimiter paces iterations across all VUs.
func WithLimiter(l Limiter) SchedulerOption {
	return func(s *VUScheduler) {
		s.limiter = l
	}
}

// NewVUScheduler creates a new VU scheduler. metricsEngine may be nil.
func NewVUScheduler(workload Workload, metricsEngine *metrics.Engine, opts ...SchedulerOption) *VUScheduler {
	s := &VUScheduler{
		workload:   workload,
		metrics:    metricsEngine,
		vus:        make(map[int]*VirtualUser),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpawnVU creates and registers a new Virtual User.
//
// The VU is registered with the scheduler but not started.
// The caller is responsible for running the VU.
func (s *VUScheduler) SpawnVU() *VirtualUser {
	id := int(s.nextVUID.Add(1))
	vu := NewVirtualUser(id, s.workload)

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu
}

// GetVU returns a VU by ID, or nil if not found.
func (s *VUScheduler) GetVU(id int) *VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()
	return s.vus[id]
}

// GetActiveVUs returns all non-stopped VUs ordered by ID.
func (s *VUScheduler) GetActiveVUs() []*VirtualUser {
	s.vusMu.RLock()
	result := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			result = append(result, vu)
		}
	}
	s.vusMu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// GetActiveVUCount returns the count of non-stopped VUs.
func (s *VUScheduler) GetActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			count++
		}
	}
	return count
}

// TotalIterations sums the iterations started by every VU ever spawned.
func (s *VUScheduler) TotalIterations() int64 {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	var total int64
	for _, vu := range s.vus {
		total += vu.GetIteration()
	}
	return total
}

// StopVU requests a specific VU to stop.
func (s *VUScheduler) StopVU(id int) {
	s.vusMu.RLock()
	vu, exists := s.vus[id]
	s.vusMu.RUnlock()

	if exists {
		vu.RequestStop()
	}
}

// StopAllVUs requests all VUs to stop.
func (s *VUScheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// WaitForAllVUs waits for all VUs to stop with a timeout.
//
// Returns the number of VUs that did not stop within the timeout.
func (s *VUScheduler) WaitForAllVUs(timeout time.Duration) int {
	deadline := time.Now().Add(timeout)

	s.vusMu.RLock()
	vus := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		vus = append(vus, vu)
	}
	s.vusMu.RUnlock()

	notStopped := 0
	for _, vu := range vus {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			notStopped++
			continue
		}
		if !vu.WaitForStop(remaining) {
			notStopped++
		}
	}

	return notStopped
}

// RunVU runs iterations on vu until it is stopped, ctx is done, or
// maxIterations have been started. Zero maxIterations means no limit.
func (s *VUScheduler) RunVU(ctx context.Context, vu *VirtualUser, maxIterations int64) {
	s.shutdownWg.Add(1)
	defer s.shutdownWg.Done()
	defer vu.MarkStopped()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		if vu.Stopping() {
			return
		}
		if maxIterations > 0 && vu.GetIteration() >= maxIterations {
			return
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		if err := vu.RunIteration(ctx); err != nil {
			if ctx.Err() != nil || vu.Stopping() {
				return
			}
		}
	}
}

// Shutdown gracefully shuts down all VUs.
func (s *VUScheduler) Shutdown(timeout time.Duration) {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })

	s.StopAllVUs()

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// UpdateMetrics publishes the current VU count.
func (s *VUScheduler) UpdateMetrics() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetActiveVUs(s.GetActiveVUCount())
}
