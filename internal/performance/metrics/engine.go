package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine collects request latencies, request outcomes and check outcomes.
//
// Latencies go into HDR histograms (overall and per request name); counters
// are atomic; a background emitter closes a TimeBucket every
// BucketInterval. Observers see every sample as it is recorded.
//
// Engine is safe for concurrent use.
type Engine struct {
	// 1µs to 1h, 3 significant figures by default
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	requestHists   map[string]*hdrhistogram.Histogram
	requestHistsMu sync.RWMutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	totalBytes      atomic.Int64

	checks      map[string]*checkCounter
	checkOrder  []string
	checksMu    sync.RWMutex
	totalChecks atomic.Int64
	failChecks  atomic.Int64

	activeVUs atomic.Int32

	bucketStore *TimeBucketStore

	currentPhase Phase
	phaseMu      sync.RWMutex
	phaseHistory []PhaseChange

	startTime   time.Time
	startTimeMu sync.RWMutex

	observers []Observer

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once

	config EngineConfig
}

type checkCounter struct {
	passes atomic.Int64
	fails  atomic.Int64
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// BucketInterval is the interval for time-series buckets (default: 1s)
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int

	Observers []Observer
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine(observers ...Observer) *Engine {
	cfg := DefaultEngineConfig()
	cfg.Observers = observers
	return NewEngineWithConfig(cfg)
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if config.BucketInterval <= 0 {
		config.BucketInterval = defaults.BucketInterval
	}
	if config.HistogramMin <= 0 {
		config.HistogramMin = defaults.HistogramMin
	}
	if config.HistogramMax <= config.HistogramMin {
		config.HistogramMax = defaults.HistogramMax
	}
	if config.HistogramSigFigs <= 0 {
		config.HistogramSigFigs = defaults.HistogramSigFigs
	}

	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		requestHists:  make(map[string]*hdrhistogram.Histogram),
		checks:        make(map[string]*checkCounter),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		currentPhase:  PhaseInit,
		startTime:     time.Now(),
		observers:     config.Observers,
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	engine.emitterWg.Add(1)
	go engine.runEmitter()

	return engine
}

// RecordLatency records one request.
//
// requestName selects the per-request histogram; empty skips it. success
// is false for transport errors and unexpected statuses.
func (e *Engine) RecordLatency(duration time.Duration, requestName string, success bool, bytes int64) {
	latencyMicros := e.clamp(duration.Microseconds())

	e.latencyHistMu.Lock()
	_ = e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	if requestName != "" {
		e.recordRequestHistogram(requestName, latencyMicros)
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
	if success {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}

	e.bucketStore.RecordRequest(success)

	for _, o := range e.observers {
		o.ObserveRequest(requestName, duration, success, bytes)
	}
}

func (e *Engine) clamp(v int64) int64 {
	if v < e.config.HistogramMin {
		return e.config.HistogramMin
	}
	if v > e.config.HistogramMax {
		return e.config.HistogramMax
	}
	return v
}

// HDR histograms are not safe for concurrent writes.
func (e *Engine) recordRequestHistogram(name string, latencyMicros int64) {
	e.requestHistsMu.Lock()
	defer e.requestHistsMu.Unlock()

	hist, exists := e.requestHists[name]
	if !exists {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.requestHists[name] = hist
	}

	_ = hist.RecordValue(latencyMicros)
}

// RecordCheck records the outcome of a named check.
func (e *Engine) RecordCheck(name string, passed bool) {
	e.checksMu.RLock()
	c, ok := e.checks[name]
	e.checksMu.RUnlock()

	if !ok {
		e.checksMu.Lock()
		if c, ok = e.checks[name]; !ok {
			c = &checkCounter{}
			e.checks[name] = c
			e.checkOrder = append(e.checkOrder, name)
		}
		e.checksMu.Unlock()
	}

	e.totalChecks.Add(1)
	if passed {
		c.passes.Add(1)
	} else {
		c.fails.Add(1)
		e.failChecks.Add(1)
	}

	e.bucketStore.RecordCheck(passed)

	for _, o := range e.observers {
		o.ObserveCheck(name, passed)
	}
}

// GetCheckStats returns per-check totals in first-seen order.
func (e *Engine) GetCheckStats() []CheckStats {
	e.checksMu.RLock()
	defer e.checksMu.RUnlock()

	result := make([]CheckStats, 0, len(e.checkOrder))
	for _, name := range e.checkOrder {
		c := e.checks[name]
		s := CheckStats{
			Name:   name,
			Passes: c.passes.Load(),
			Fails:  c.fails.Load(),
		}
		if total := s.Passes + s.Fails; total > 0 {
			s.Rate = float64(s.Passes) / float64(total)
		}
		result = append(result, s)
	}
	return result
}

// SetPhase updates the current phase. Setting PhaseSteady for the first
// time restarts the elapsed clock so RPS excludes warmup.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}

	now := time.Now()
	if phase == PhaseSteady && !e.seenPhase(PhaseSteady) {
		e.startTimeMu.Lock()
		e.startTime = now
		e.startTimeMu.Unlock()
	}

	e.currentPhase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:     phase,
		Timestamp: now,
		Requests:  e.totalRequests.Load(),
	})
}

// seenPhase must be called with phaseMu held.
func (e *Engine) seenPhase(phase Phase) bool {
	for _, pc := range e.phaseHistory {
		if pc.Phase == phase {
			return true
		}
	}
	return false
}

// GetPhase returns the current phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// SetActiveVUs updates the active VU count.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
	for _, o := range e.observers {
		o.ObserveVUs(count)
	}
}

// GetActiveVUs returns the current active VU count.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.bucketStore.CreateBucket(
		e.totalRequests.Load(),
		e.successRequests.Load(),
		e.failedRequests.Load(),
		e.totalBytes.Load(),
		e.GetLatencyPercentiles(),
		e.GetActiveVUs(),
		e.GetPhase(),
	)
}

// GetLatencyPercentiles returns current latency percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyPercentiles{
		Min: micros(e.latencyHist.Min()),
		Max: micros(e.latencyHist.Max()),
		P50: micros(e.latencyHist.ValueAtQuantile(50)),
		P90: micros(e.latencyHist.ValueAtQuantile(90)),
		P95: micros(e.latencyHist.ValueAtQuantile(95)),
		P99: micros(e.latencyHist.ValueAtQuantile(99)),
	}
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

func statsOf(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    micros(h.Min()),
		Max:    micros(h.Max()),
		Mean:   time.Duration(h.Mean() * float64(time.Microsecond)),
		StdDev: time.Duration(h.StdDev() * float64(time.Microsecond)),
		P50:    micros(h.ValueAtQuantile(50)),
		P90:    micros(h.ValueAtQuantile(90)),
		P95:    micros(h.ValueAtQuantile(95)),
		P99:    micros(h.ValueAtQuantile(99)),
		Count:  h.TotalCount(),
	}
}

// GetSnapshot returns a point-in-time snapshot of all metrics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := statsOf(e.latencyHist)
	e.latencyHistMu.Unlock()

	start := e.StartTime()
	elapsed := time.Since(start)
	totalReqs := e.totalRequests.Load()
	failedReqs := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(totalReqs) / elapsed.Seconds()
	}
	steadyRPS, _ := e.bucketStore.CalculateSteadyStateRPS()

	errorRate := 0.0
	if totalReqs > 0 {
		errorRate = float64(failedReqs) / float64(totalReqs)
	}

	totalChecks := e.totalChecks.Load()
	failedChecks := e.failChecks.Load()
	checkRate := 0.0
	if totalChecks > 0 {
		checkRate = float64(totalChecks-failedChecks) / float64(totalChecks)
	}

	return &Snapshot{
		TotalRequests:   totalReqs,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failedReqs,
		TotalBytes:      e.totalBytes.Load(),
		Latency:         latency,
		RPS:             rps,
		SteadyStateRPS:  steadyRPS,
		ErrorRate:       errorRate,
		TotalChecks:     totalChecks,
		PassedChecks:    totalChecks - failedChecks,
		FailedChecks:    failedChecks,
		CheckRate:       checkRate,
		ActiveVUs:       e.GetActiveVUs(),
		CurrentPhase:    e.GetPhase(),
		Elapsed:         elapsed,
		StartTime:       start,
		Timestamp:       time.Now(),
	}
}

// StartTime returns the start of the measured run.
func (e *Engine) StartTime() time.Time {
	e.startTimeMu.RLock()
	defer e.startTimeMu.RUnlock()
	return e.startTime
}

// GetTimeSeries returns all time-series buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}

// GetPhaseHistory returns the history of phase changes.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

// GetRequestStats returns per-request-name latency statistics.
func (e *Engine) GetRequestStats() map[string]LatencyStats {
	e.requestHistsMu.RLock()
	defer e.requestHistsMu.RUnlock()

	result := make(map[string]LatencyStats, len(e.requestHists))
	for name, hist := range e.requestHists {
		result[name] = statsOf(hist)
	}
	return result
}

// Stop stops the emitter and emits a final bucket. Safe to call twice.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()
		e.emitBucket()
	})
}

// Reset clears all metrics and restarts the clock. Observers are kept.
func (e *Engine) Reset() {
	e.latencyHistMu.Lock()
	e.latencyHist.Reset()
	e.latencyHistMu.Unlock()

	e.requestHistsMu.Lock()
	e.requestHists = make(map[string]*hdrhistogram.Histogram)
	e.requestHistsMu.Unlock()

	e.checksMu.Lock()
	e.checks = make(map[string]*checkCounter)
	e.checkOrder = nil
	e.checksMu.Unlock()

	e.totalRequests.Store(0)
	e.successRequests.Store(0)
	e.failedRequests.Store(0)
	e.totalBytes.Store(0)
	e.totalChecks.Store(0)
	e.failChecks.Store(0)
	e.activeVUs.Store(0)

	e.phaseMu.Lock()
	e.currentPhase = PhaseInit
	e.phaseHistory = nil
	e.phaseMu.Unlock()

	e.bucketStore.Reset()

	e.startTimeMu.Lock()
	e.startTime = time.Now()
	e.startTimeMu.Unlock()
}
