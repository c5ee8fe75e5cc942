package engine

import (
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// TestResult contains the complete results of a run.
type TestResult struct {
	RunID     string        `json:"runId"`
	Name      string        `json:"name"`
	BaseURL   string        `json:"baseUrl"`
	Executor  string        `json:"executor"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Keys       int   `json:"keys"`
	VUs        int   `json:"vus"`
	Iterations int64 `json:"iterations"`

	Warmup *WarmupResult `json:"warmup,omitempty"`

	Metrics      *metrics.Snapshot       `json:"metrics"`
	Checks       []metrics.CheckStats    `json:"checks,omitempty"`
	RequestStats map[string]RequestStats `json:"requestStats,omitempty"`
	TimeSeries   []*metrics.TimeBucket   `json:"timeSeries,omitempty"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	// Interrupted is set when the run was cancelled before its planned end.
	Interrupted bool `json:"interrupted,omitempty"`
}

// RequestStats contains statistics for one operation.
type RequestStats struct {
	Name    string               `json:"name"`
	Count   int64                `json:"count"`
	Latency metrics.LatencyStats `json:"latency"`
}

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// WarmupResult summarizes the pre-fill phase.
type WarmupResult struct {
	Keys     int           `json:"keys"`
	Failed   int64         `json:"failed"`
	Duration time.Duration `json:"duration"`
}
