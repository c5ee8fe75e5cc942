// Package config holds the run configuration: defaults, file loading,
// environment overrides and validation.
//
// Example YAML:
//
//	baseUrl: "http://localhost:8089"
//	keys: 5000
//	vus: 200
//	duration: 30s
//	warmup: true
//	thresholds:
//	  http_req_failed:
//	    - "rate<0.01"
//	  http_req_duration:
//	    - "p(95)<25"
//	  checks:
//	    - "rate>0.99"
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL      = "http://localhost:8089"
	DefaultKeys         = 5000
	DefaultVUs          = 200
	DefaultDuration     = 30 * time.Second
	DefaultTTL          = 50
	DefaultTimeout      = 30 * time.Second
	DefaultGracefulStop = 5 * time.Second

	// MaxWarmupConcurrency caps the default warmup pool.
	MaxWarmupConcurrency = 64
)

// Metric names accepted in the thresholds block.
const (
	MetricHTTPReqDuration = "http_req_duration"
	MetricHTTPReqFailed   = "http_req_failed"
	MetricHTTPReqs        = "http_reqs"
	MetricChecks          = "checks"
)

// Config is the complete configuration of one run.
type Config struct {
	// BaseURL of the key-value service.
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// Keys is the size of the key namespace.
	Keys int `json:"keys,omitempty" yaml:"keys,omitempty"`

	// VUs is the number of concurrent virtual users.
	VUs int `json:"vus,omitempty" yaml:"vus,omitempty"`

	// Duration of a constant-vus run.
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Iterations per VU. Non-zero switches to a per-vu-iterations run and
	// Duration is ignored.
	Iterations int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// TTL in seconds sent on every other write.
	TTL int `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	// Rate caps iterations per second across all VUs. Zero is unlimited.
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// Timeout of a single HTTP request.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// GracefulStop is how long in-flight iterations get after the run ends.
	GracefulStop Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Warmup pre-fills every key before the measured run.
	Warmup            bool `json:"warmup,omitempty" yaml:"warmup,omitempty"`
	WarmupConcurrency int  `json:"warmupConcurrency,omitempty" yaml:"warmupConcurrency,omitempty"`

	// Reset wipes the store with POST /reset before the run.
	Reset bool `json:"reset,omitempty" yaml:"reset,omitempty"`

	// SkipHealth disables the GET /health preflight.
	SkipHealth bool `json:"skipHealth,omitempty" yaml:"skipHealth,omitempty"`

	// Headers are added to every request.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// MetricsAddr serves Prometheus metrics during the run when set.
	MetricsAddr string `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty"`

	// Thresholds define pass/fail criteria.
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for the run.
type ThresholdsConfig struct {
	// e.g. ["p(95)<25", "avg < 10ms"]; bare numbers are milliseconds
	HTTPReqDuration []string `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`

	// e.g. ["rate<0.01"]
	HTTPReqFailed []string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	// e.g. ["count > 1000", "rate > 100"]
	HTTPReqs []string `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`

	// e.g. ["rate>0.99"]
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// Entries returns the thresholds keyed by metric name in a fixed order.
func (t *ThresholdsConfig) Entries() []ThresholdEntry {
	if t == nil {
		return nil
	}

	var out []ThresholdEntry
	add := func(metric string, exprs []string) {
		for _, e := range exprs {
			out = append(out, ThresholdEntry{Metric: metric, Expression: e})
		}
	}
	add(MetricHTTPReqFailed, t.HTTPReqFailed)
	add(MetricHTTPReqDuration, t.HTTPReqDuration)
	add(MetricHTTPReqs, t.HTTPReqs)
	add(MetricChecks, t.Checks)
	return out
}

// ThresholdEntry is one expression bound to a metric.
type ThresholdEntry struct {
	Metric     string
	Expression string
}

// DefaultThresholds returns the thresholds applied when none are configured.
func DefaultThresholds() *ThresholdsConfig {
	return &ThresholdsConfig{
		HTTPReqFailed:   []string{"rate<0.01"},
		HTTPReqDuration: []string{"p(95)<25"},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Base returns the defaults that a file, the environment and flags are
// layered over. Fields derived from other settings stay unset until Finalize,
// and a layer that writes zero keeps it, so Validate sees the zero.
func Base() *Config {
	cfg := Default()
	cfg.WarmupConcurrency = 0
	cfg.Thresholds = nil
	return cfg
}

// Finalize fills the derived fields of a layered configuration and
// validates it.
func Finalize(c *Config) error {
	if c.WarmupConcurrency == 0 {
		c.WarmupConcurrency = WarmupConcurrencyFor(c.VUs)
	}
	if c.Thresholds == nil {
		c.Thresholds = DefaultThresholds()
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(c *Config) {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Keys == 0 {
		c.Keys = DefaultKeys
	}
	if c.VUs == 0 {
		c.VUs = DefaultVUs
	}
	if c.Duration == 0 {
		c.Duration = Duration(DefaultDuration)
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
	if c.GracefulStop == 0 {
		c.GracefulStop = Duration(DefaultGracefulStop)
	}
	if c.WarmupConcurrency == 0 {
		c.WarmupConcurrency = WarmupConcurrencyFor(c.VUs)
	}
	if c.Thresholds == nil {
		c.Thresholds = DefaultThresholds()
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// WarmupConcurrencyFor returns min(2*vus, MaxWarmupConcurrency), at least 1.
func WarmupConcurrencyFor(vus int) int {
	n := 2 * vus
	if n > MaxWarmupConcurrency {
		n = MaxWarmupConcurrency
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Duration is a time.Duration that unmarshals from Go duration strings or
// bare integer seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	if s == "null" {
		s = ""
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return &yaml.TypeError{Errors: []string{"duration must be a scalar"}}
	}

	dur, err := ParseDurationString(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
