package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Threshold is a parsed expression such as "p(95)<25" or "rate < 0.01".
type Threshold struct {
	// Stat is normalized: "p(95)" becomes "p95".
	Stat  string
	Op    string
	Value string
}

var thresholdPattern = regexp.MustCompile(`^(\w+(?:\(\s*\d+\s*\))?)\s*(<=|>=|==|!=|<|>|=)\s*(.+)$`)

var durationStats = map[string]bool{
	"min": true, "max": true, "avg": true, "med": true,
	"p50": true, "p90": true, "p95": true, "p99": true,
}

// ParseThreshold splits an expression into stat, operator and value.
func ParseThreshold(expr string) (Threshold, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Threshold{}, fmt.Errorf("threshold expression cannot be empty")
	}

	m := thresholdPattern.FindStringSubmatch(expr)
	if len(m) != 4 {
		return Threshold{}, fmt.Errorf("invalid expression format: %s", expr)
	}

	stat := strings.NewReplacer("(", "", ")", "", " ", "").Replace(m[1])
	return Threshold{Stat: stat, Op: m[2], Value: strings.TrimSpace(m[3])}, nil
}

// ThresholdDuration parses a duration threshold value. Bare numbers are
// milliseconds.
func ThresholdDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(f * float64(time.Millisecond)), nil
	}
	return time.ParseDuration(value)
}

// ValidateThreshold checks that expr parses and names a stat supported by
// metric.
func ValidateThreshold(metric, expr string) error {
	t, err := ParseThreshold(expr)
	if err != nil {
		return err
	}

	switch metric {
	case MetricHTTPReqDuration:
		if !durationStats[t.Stat] {
			return fmt.Errorf("unsupported stat %q for %s (p50, p90, p95, p99, min, max, avg, med)", t.Stat, metric)
		}
		if _, err := ThresholdDuration(t.Value); err != nil {
			return fmt.Errorf("invalid duration %q: %w", t.Value, err)
		}

	case MetricHTTPReqFailed, MetricChecks:
		if t.Stat != "rate" {
			return fmt.Errorf("%s only supports 'rate', got %q", metric, t.Stat)
		}
		if _, err := strconv.ParseFloat(t.Value, 64); err != nil {
			return fmt.Errorf("invalid rate %q", t.Value)
		}

	case MetricHTTPReqs:
		if t.Stat != "count" && t.Stat != "rate" {
			return fmt.Errorf("%s only supports 'count' or 'rate', got %q", metric, t.Stat)
		}
		if _, err := strconv.ParseFloat(t.Value, 64); err != nil {
			return fmt.Errorf("invalid number %q", t.Value)
		}

	default:
		return fmt.Errorf("unknown metric %q", metric)
	}

	return nil
}
