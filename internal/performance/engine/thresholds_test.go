package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/kvlunge/internal/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

func sampleSnapshot() *metrics.Snapshot {
	return &metrics.Snapshot{
		TotalRequests:  1000,
		FailedRequests: 5,
		ErrorRate:      0.005,
		RPS:            250,
		TotalChecks:    400,
		PassedChecks:   398,
		CheckRate:      0.995,
		Latency: metrics.LatencyStats{
			Min:  time.Millisecond,
			Mean: 8 * time.Millisecond,
			P50:  7 * time.Millisecond,
			P90:  15 * time.Millisecond,
			P95:  20 * time.Millisecond,
			P99:  40 * time.Millisecond,
			Max:  90 * time.Millisecond,
		},
	}
}

func TestEvaluateThresholds_Defaults(t *testing.T) {
	results := EvaluateThresholds(config.DefaultThresholds(), sampleSnapshot())
	require.Len(t, results, 2)

	assert.Equal(t, "http_req_failed", results[0].Metric)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "0.0050", results[0].Value)

	assert.Equal(t, "http_req_duration", results[1].Metric)
	assert.True(t, results[1].Passed, results[1].Message)
	assert.Equal(t, "20ms", results[1].Value)

	assert.True(t, allPassed(results))
}

func TestEvaluateThresholds_Failures(t *testing.T) {
	thresholds := &config.ThresholdsConfig{
		HTTPReqDuration: []string{"p(99)<25"},
		HTTPReqFailed:   []string{"rate<0.001"},
		Checks:          []string{"rate>0.999"},
	}

	results := EvaluateThresholds(thresholds, sampleSnapshot())
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Passed, r.Expression)
		assert.NotEmpty(t, r.Message, r.Expression)
	}
	assert.False(t, allPassed(results))
}

func TestEvaluateThreshold_DurationStats(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"p(95)<25", true},
		{"p95 < 20ms", false},
		{"p95 <= 20ms", true},
		{"p(90)<16", true},
		{"p(50)<7", false},
		{"med<8ms", true},
		{"avg<10", true},
		{"min>=1ms", true},
		{"max<50ms", false},
		{"p99<0.05s", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r := evaluateThreshold(config.ThresholdEntry{Metric: config.MetricHTTPReqDuration, Expression: tt.expr}, sampleSnapshot())
			assert.Equal(t, tt.want, r.Passed, r.Message)
		})
	}
}

func TestEvaluateThreshold_Requests(t *testing.T) {
	r := evaluateThreshold(config.ThresholdEntry{Metric: config.MetricHTTPReqs, Expression: "count>=1000"}, sampleSnapshot())
	assert.True(t, r.Passed)
	assert.Equal(t, "1000.00", r.Value)

	r = evaluateThreshold(config.ThresholdEntry{Metric: config.MetricHTTPReqs, Expression: "rate>300"}, sampleSnapshot())
	assert.False(t, r.Passed)
}

func TestEvaluateThreshold_Malformed(t *testing.T) {
	tests := []config.ThresholdEntry{
		{Metric: config.MetricHTTPReqDuration, Expression: "p95"},
		{Metric: config.MetricHTTPReqDuration, Expression: "p(42)<1"},
		{Metric: config.MetricHTTPReqDuration, Expression: "p95<soon"},
		{Metric: config.MetricHTTPReqFailed, Expression: "count<1"},
		{Metric: config.MetricChecks, Expression: "rate>most"},
		{Metric: config.MetricHTTPReqs, Expression: "p95>1"},
		{Metric: "iterations", Expression: "count>1"},
	}

	for _, entry := range tests {
		t.Run(entry.Metric+"/"+entry.Expression, func(t *testing.T) {
			r := evaluateThreshold(entry, sampleSnapshot())
			assert.False(t, r.Passed)
			assert.NotEmpty(t, r.Message)
		})
	}
}

func TestCompareValues(t *testing.T) {
	assert.True(t, compareValues(1, "<", 2))
	assert.True(t, compareValues(2, "<=", 2))
	assert.True(t, compareValues(3, ">", 2))
	assert.True(t, compareValues(2, ">=", 2))
	assert.True(t, compareValues(2, "==", 2))
	assert.True(t, compareValues(2, "=", 2))
	assert.True(t, compareValues(1, "!=", 2))
	assert.False(t, compareValues(1, "~", 2))
}
