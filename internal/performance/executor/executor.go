// Package executor provides the load generation strategies that drive the
// VU pool.
package executor

import (
	"context"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeConstantVUs runs a fixed number of VUs for a duration.
	TypeConstantVUs Type = "constant-vus"

	// TypePerVUIterations runs a fixed number of iterations per VU.
	TypePerVUIterations Type = "per-vu-iterations"
)

// DefaultMaxDuration bounds a per-vu-iterations run.
const DefaultMaxDuration = 10 * time.Minute

// DefaultGracefulStop is how long Stop waits for in-flight iterations.
const DefaultGracefulStop = 30 * time.Second

// Executor controls how many VUs run and for how long.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init validates and stores the configuration. Called once before Run.
	Init(ctx context.Context, config *Config) error

	// Run spawns the VUs and blocks until they are done or ctx is
	// cancelled.
	Run(ctx context.Context, scheduler *performance.VUScheduler, metrics *metrics.Engine) error

	// GetProgress returns current progress (0.0 to 1.0).
	GetProgress() float64

	// GetActiveVUs returns current active VU count.
	GetActiveVUs() int

	// GetStats returns executor statistics.
	GetStats() *Stats

	// Stop ends the run early and waits for VUs to finish.
	Stop(ctx context.Context) error
}

// Config contains configuration for an executor.
type Config struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`

	VUs        int           `json:"vus" yaml:"vus"`
	Duration   time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Iterations int64         `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// MaxDuration caps a per-vu-iterations run. Zero means DefaultMaxDuration.
	MaxDuration time.Duration `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`

	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`
}

// Stats contains real-time executor statistics.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	ActiveVUs int `json:"activeVUs"`
	TargetVUs int `json:"targetVUs"`

	Iterations int64 `json:"iterations"`
	// TotalIterations is the planned iteration count, zero when the run is
	// bounded by time.
	TotalIterations int64 `json:"totalIterations"`
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if c.Type == "" {
		return &ValidationError{Field: "type", Message: "executor type is required"}
	}
	if c.VUs <= 0 {
		return &ValidationError{Field: "vus", Message: "vus must be > 0"}
	}

	switch c.Type {
	case TypeConstantVUs:
		if c.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}

	case TypePerVUIterations:
		if c.Iterations <= 0 {
			return &ValidationError{Field: "iterations", Message: "iterations must be > 0"}
		}
		if c.MaxDuration < 0 {
			return &ValidationError{Field: "maxDuration", Message: "maxDuration must be >= 0"}
		}

	default:
		return &ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}

	return nil
}

// TotalDuration returns the planned run time, or the upper bound for
// iteration-count runs.
func (c *Config) TotalDuration() time.Duration {
	switch c.Type {
	case TypeConstantVUs:
		return c.Duration
	case TypePerVUIterations:
		if c.MaxDuration > 0 {
			return c.MaxDuration
		}
		return DefaultMaxDuration
	default:
		return 0
	}
}

func (c *Config) gracefulStop() time.Duration {
	if c.GracefulStop > 0 {
		return c.GracefulStop
	}
	return DefaultGracefulStop
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}
