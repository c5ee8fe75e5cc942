package metrics

import "time"

// Phase is a stage of a run.
type Phase string

const (
	PhaseInit    Phase = "init"
	PhaseWarmup  Phase = "warmup"
	PhaseSteady  Phase = "steady"
	PhaseStopped Phase = "stopping"
	PhaseDone    Phase = "done"
)

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalRequests   int64 `json:"totalRequests"`
	SuccessRequests int64 `json:"successRequests"`
	FailedRequests  int64 `json:"failedRequests"`
	TotalBytes      int64 `json:"totalBytes"`

	Latency LatencyStats `json:"latency"`

	RPS            float64 `json:"rps"`
	SteadyStateRPS float64 `json:"steadyStateRps"`

	// ErrorRate is FailedRequests / TotalRequests, the http_req_failed rate.
	ErrorRate float64 `json:"errorRate"`

	TotalChecks  int64   `json:"totalChecks"`
	PassedChecks int64   `json:"passedChecks"`
	FailedChecks int64   `json:"failedChecks"`
	CheckRate    float64 `json:"checkRate"`

	ActiveVUs    int           `json:"activeVUs"`
	CurrentPhase Phase         `json:"currentPhase"`
	Elapsed      time.Duration `json:"elapsed"`
	StartTime    time.Time     `json:"startTime"`
	Timestamp    time.Time     `json:"timestamp"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// Percentile returns the stored percentile p (50, 90, 95 or 99).
func (s LatencyStats) Percentile(p int) (time.Duration, bool) {
	switch p {
	case 50:
		return s.P50, true
	case 90:
		return s.P90, true
	case 95:
		return s.P95, true
	case 99:
		return s.P99, true
	}
	return 0, false
}

// LatencyPercentiles holds latency percentile values.
type LatencyPercentiles struct {
	Min time.Duration
	Max time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// CheckStats aggregates one check label.
type CheckStats struct {
	Name   string  `json:"name"`
	Passes int64   `json:"passes"`
	Fails  int64   `json:"fails"`
	Rate   float64 `json:"rate"`
}

// TimeBucket represents metrics for one emitter interval.
//
// Totals are cumulative since the start of the run; Interval fields cover
// only the time since the previous bucket.
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	TotalRequests  int64 `json:"totalRequests"`
	TotalSuccesses int64 `json:"totalSuccesses"`
	TotalFailures  int64 `json:"totalFailures"`
	TotalBytes     int64 `json:"totalBytes"`

	IntervalRequests     int64   `json:"intervalRequests"`
	IntervalRPS          float64 `json:"intervalRPS"`
	IntervalErrorRate    float64 `json:"intervalErrorRate"`
	IntervalChecks       int64   `json:"intervalChecks"`
	IntervalFailedChecks int64   `json:"intervalFailedChecks"`

	LatencyMin time.Duration `json:"latencyMin"`
	LatencyMax time.Duration `json:"latencyMax"`
	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP90 time.Duration `json:"latencyP90"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`

	ActiveVUs int   `json:"activeVUs"`
	Phase     Phase `json:"phase"`
}

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase     Phase     `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
	Requests  int64     `json:"requests"`
}
