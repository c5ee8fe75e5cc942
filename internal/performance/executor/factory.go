package executor

import (
	"context"
	"fmt"
)

// NewExecutor creates a new executor of the specified type.
//
// Returns an uninitialized executor. Call Init() before Run().
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case TypeConstantVUs:
		return NewConstantVUs(), nil
	case TypePerVUIterations:
		return NewPerVUIterations(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", executorType)
	}
}

// CreateAndInitExecutor creates and initializes an executor with the given config.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	return exec, nil
}

// TypeFor picks the executor for a run: a positive per-VU iteration count
// selects per-vu-iterations, anything else runs for a duration.
func TypeFor(iterations int64) Type {
	if iterations > 0 {
		return TypePerVUIterations
	}
	return TypeConstantVUs
}

// IsValidExecutorType returns true if the type is a valid executor type.
func IsValidExecutorType(executorType string) bool {
	switch Type(executorType) {
	case TypeConstantVUs, TypePerVUIterations:
		return true
	default:
		return false
	}
}
