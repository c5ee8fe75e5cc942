// Package performance provides the virtual-user runtime that drives a
// Workload under load.
//
// Executors decide how many VUs run and for how long; the VUScheduler owns
// the VU pool and the shared HTTP transport; each VirtualUser calls the
// Workload once per iteration with its own ID and iteration counter.
package performance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Workload is the unit of work a VU repeats.
//
// RunIteration receives the VU's 1-based ID and its 0-based iteration
// counter. Implementations record their own outcomes and return an error
// only when the iteration could not run at all (typically ctx is done).
type Workload interface {
	RunIteration(ctx context.Context, vu int, iteration int64) error
}

// WorkloadFunc adapts a function to the Workload interface.
type WorkloadFunc func(ctx context.Context, vu int, iteration int64) error

// RunIteration calls f.
func (f WorkloadFunc) RunIteration(ctx context.Context, vu int, iteration int64) error {
	return f(ctx, vu, iteration)
}

// Limiter paces iterations across all VUs.
type Limiter interface {
	Wait(ctx context.Context) error
}

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is actively running an iteration.
	VUStateRunning
	// VUStateStopping indicates the VU has been requested to stop.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is one independent execution context. It owns nothing but its
// ID and iteration counter; everything it touches is reached through the
// Workload.
type VirtualUser struct {
	// ID is 1-based and unique within a scheduler.
	ID int

	Workload Workload

	state atomic.Int32

	stopCh chan struct{}
	doneCh chan struct{}

	// iteration is the number of iterations started so far, which is also
	// the counter handed to the next one.
	iteration atomic.Int64

	lastIterDuration atomic.Int64
}

// NewVirtualUser creates a new Virtual User.
func NewVirtualUser(id int, workload Workload) *VirtualUser {
	return &VirtualUser{
		ID:       id,
		Workload: workload,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations started.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// LastIterationDuration returns how long the most recent iteration took.
func (vu *VirtualUser) LastIterationDuration() time.Duration {
	return time.Duration(vu.lastIterDuration.Load())
}

// RunIteration runs one iteration of the workload with the current counter
// and advances it.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	currentState := vu.GetState()
	if currentState == VUStateStopping || currentState == VUStateStopped {
		return fmt.Errorf("VU %d is stopping or stopped", vu.ID)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-vu.stopCh:
		return nil
	default:
	}

	// A stop that lands between the checks above and this swap wins.
	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning)) {
		return fmt.Errorf("VU %d is stopping or stopped", vu.ID)
	}
	counter := vu.iteration.Add(1) - 1

	start := time.Now()
	err := vu.Workload.RunIteration(ctx, vu.ID, counter)
	vu.lastIterDuration.Store(int64(time.Since(start)))

	vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))
	return err
}

// RequestStop signals the VU to stop after completing the current iteration.
func (vu *VirtualUser) RequestStop() {
	for {
		s := vu.state.Load()
		if s == int32(VUStateStopping) || s == int32(VUStateStopped) {
			return
		}
		if vu.state.CompareAndSwap(s, int32(VUStateStopping)) {
			close(vu.stopCh)
			return
		}
	}
}

// Stopping reports whether a stop was requested or completed.
func (vu *VirtualUser) Stopping() bool {
	s := vu.GetState()
	return s == VUStateStopping || s == VUStateStopped
}

// WaitForStop waits for the VU to stop with a timeout.
//
// Returns true if the VU stopped within the timeout, false otherwise.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped marks the VU as fully stopped.
// Should be called by the scheduler when the VU goroutine exits.
func (vu *VirtualUser) MarkStopped() {
	vu.state.Store(int32(VUStateStopped))
	select {
	case <-vu.doneCh:
	default:
		close(vu.doneCh)
	}
}
