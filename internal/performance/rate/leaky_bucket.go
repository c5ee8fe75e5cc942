// Package rate paces iterations shared by many virtual users.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// LeakyBucket hands out start times spaced 1/rate apart.
//
// Each call to Next reserves the next free slot on a virtual schedule, so
// concurrent callers are spread out rather than released together. A caller
// that falls behind may start immediately, but the schedule never lags more
// than maxBurst-1 slots behind the wall clock, which bounds catch-up bursts.
//
// LeakyBucket is safe for concurrent use.
type LeakyBucket struct {
	mu       sync.Mutex
	rate     float64
	maxBurst float64
	next     time.Time
	last     time.Time

	totalIterations atomic.Int64
	totalWaitTime   atomic.Int64
}

// NewLeakyBucket creates a bucket releasing rate iterations per second with
// no bursting. Non-positive rates are treated as 1.
func NewLeakyBucket(rate float64) *LeakyBucket {
	return NewLeakyBucketWithBurst(rate, 1)
}

// NewLeakyBucketWithBurst creates a bucket that tolerates up to maxBurst
// back-to-back releases after an idle period.
func NewLeakyBucketWithBurst(rate float64, maxBurst float64) *LeakyBucket {
	if rate <= 0 {
		rate = 1.0
	}
	if maxBurst < 1.0 {
		maxBurst = 1.0
	}
	return &LeakyBucket{
		rate:     rate,
		maxBurst: maxBurst,
	}
}

func (lb *LeakyBucket) interval() time.Duration {
	return time.Duration(float64(time.Second) / lb.rate)
}

// Next reserves a slot and returns when it starts. The result is never
// before now.
func (lb *LeakyBucket) Next() time.Time {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := time.Now()
	interval := lb.interval()

	earliest := now.Add(-time.Duration((lb.maxBurst - 1) * float64(interval)))
	if lb.next.Before(earliest) {
		lb.next = earliest
	}

	slot := lb.next
	lb.last = slot
	lb.next = slot.Add(interval)
	lb.totalIterations.Add(1)

	if !slot.After(now) {
		return now
	}
	lb.totalWaitTime.Add(int64(slot.Sub(now)))
	return slot
}

// Wait blocks until the next slot or until ctx is done.
func (lb *LeakyBucket) Wait(ctx context.Context) error {
	d := time.Until(lb.Next())
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetRate changes the rate. The next slot is placed one new interval after
// the last one handed out, so a lower rate takes effect at once and does not
// release a backlog.
func (lb *LeakyBucket) SetRate(rate float64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if rate <= 0 {
		rate = 1.0
	}
	lb.rate = rate

	now := time.Now()
	lb.next = lb.last.Add(lb.interval())
	if lb.next.Before(now) {
		lb.next = now
	}
}

// GetRate returns the current rate in iterations per second.
func (lb *LeakyBucket) GetRate() float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.rate
}

// Stats returns statistics about the bucket.
func (lb *LeakyBucket) Stats() LeakyBucketStats {
	lb.mu.Lock()
	rate, maxBurst := lb.rate, lb.maxBurst
	lb.mu.Unlock()

	return LeakyBucketStats{
		Rate:            rate,
		MaxBurst:        maxBurst,
		TotalIterations: lb.totalIterations.Load(),
		TotalWaitTime:   time.Duration(lb.totalWaitTime.Load()),
	}
}

// Reset clears the schedule and counters.
func (lb *LeakyBucket) Reset() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.next = time.Time{}
	lb.last = time.Time{}
	lb.totalIterations.Store(0)
	lb.totalWaitTime.Store(0)
}

// LeakyBucketStats contains statistics about the leaky bucket.
type LeakyBucketStats struct {
	Rate            float64       `json:"rate"`
	MaxBurst        float64       `json:"maxBurst"`
	TotalIterations int64         `json:"totalIterations"`
	TotalWaitTime   time.Duration `json:"totalWaitTime"`
}
