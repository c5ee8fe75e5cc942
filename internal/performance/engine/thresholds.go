package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// EvaluateThresholds evaluates every configured threshold against snapshot.
func EvaluateThresholds(thresholds *config.ThresholdsConfig, snapshot *metrics.Snapshot) []ThresholdResult {
	var results []ThresholdResult
	for _, entry := range thresholds.Entries() {
		results = append(results, evaluateThreshold(entry, snapshot))
	}
	return results
}

func allPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func evaluateThreshold(entry config.ThresholdEntry, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{
		Metric:     entry.Metric,
		Expression: entry.Expression,
	}

	t, err := config.ParseThreshold(entry.Expression)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	switch entry.Metric {
	case config.MetricHTTPReqDuration:
		evaluateDuration(&result, t, snapshot)
	case config.MetricHTTPReqFailed:
		evaluateRate(&result, t, snapshot.ErrorRate, "error rate")
	case config.MetricChecks:
		evaluateRate(&result, t, snapshot.CheckRate, "check pass rate")
	case config.MetricHTTPReqs:
		evaluateRequests(&result, t, snapshot)
	default:
		result.Message = fmt.Sprintf("unknown metric: %s", entry.Metric)
	}

	return result
}

func evaluateDuration(result *ThresholdResult, t config.Threshold, snapshot *metrics.Snapshot) {
	var actual time.Duration
	switch t.Stat {
	case "min":
		actual = snapshot.Latency.Min
	case "max":
		actual = snapshot.Latency.Max
	case "avg":
		actual = snapshot.Latency.Mean
	case "med", "p50":
		actual = snapshot.Latency.P50
	case "p90":
		actual = snapshot.Latency.P90
	case "p95":
		actual = snapshot.Latency.P95
	case "p99":
		actual = snapshot.Latency.P99
	default:
		result.Message = fmt.Sprintf("unknown stat: %s", t.Stat)
		return
	}

	threshold, err := config.ThresholdDuration(t.Value)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return
	}

	result.Value = actual.String()
	result.Passed = compareValues(float64(actual), t.Op, float64(threshold))
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", t.Stat, actual, t.Op, threshold)
	}
}

func evaluateRate(result *ThresholdResult, t config.Threshold, actual float64, label string) {
	if t.Stat != "rate" {
		result.Message = fmt.Sprintf("%s only supports 'rate' metric, got: %s", result.Metric, t.Stat)
		return
	}

	threshold, err := strconv.ParseFloat(t.Value, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return
	}

	result.Value = fmt.Sprintf("%.4f", actual)
	result.Passed = compareValues(actual, t.Op, threshold)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.4f, threshold: %s %.4f", label, actual, t.Op, threshold)
	}
}

func evaluateRequests(result *ThresholdResult, t config.Threshold, snapshot *metrics.Snapshot) {
	threshold, err := strconv.ParseFloat(t.Value, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return
	}

	var actual float64
	switch t.Stat {
	case "count":
		actual = float64(snapshot.TotalRequests)
	case "rate":
		actual = snapshot.RPS
	default:
		result.Message = fmt.Sprintf("http_reqs only supports 'count' or 'rate' metrics, got: %s", t.Stat)
		return
	}

	result.Value = fmt.Sprintf("%.2f", actual)
	result.Passed = compareValues(actual, t.Op, threshold)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.2f, threshold: %s %.2f", t.Stat, actual, t.Op, threshold)
	}
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==", "=":
		return actual == threshold
	case "!=":
		return actual != threshold
	default:
		return false
	}
}
