package executor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    executor.Config
		wantField string
	}{
		{"constant vus ok", executor.Config{Type: executor.TypeConstantVUs, VUs: 2, Duration: time.Second}, ""},
		{"iterations ok", executor.Config{Type: executor.TypePerVUIterations, VUs: 2, Iterations: 5}, ""},
		{"missing type", executor.Config{VUs: 1, Duration: time.Second}, "type"},
		{"unknown type", executor.Config{Type: "ramping-vus", VUs: 1, Duration: time.Second}, "type"},
		{"zero vus", executor.Config{Type: executor.TypeConstantVUs, Duration: time.Second}, "vus"},
		{"zero duration", executor.Config{Type: executor.TypeConstantVUs, VUs: 1}, "duration"},
		{"zero iterations", executor.Config{Type: executor.TypePerVUIterations, VUs: 1}, "iterations"},
		{"negative max duration", executor.Config{Type: executor.TypePerVUIterations, VUs: 1, Iterations: 1, MaxDuration: -time.Second}, "maxDuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}

			var verr *executor.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestConfig_TotalDuration(t *testing.T) {
	c := executor.Config{Type: executor.TypeConstantVUs, Duration: 30 * time.Second}
	if got := c.TotalDuration(); got != 30*time.Second {
		t.Errorf("TotalDuration() = %v, want 30s", got)
	}

	c = executor.Config{Type: executor.TypePerVUIterations, Iterations: 3}
	if got := c.TotalDuration(); got != executor.DefaultMaxDuration {
		t.Errorf("TotalDuration() = %v, want %v", got, executor.DefaultMaxDuration)
	}

	c.MaxDuration = time.Minute
	if got := c.TotalDuration(); got != time.Minute {
		t.Errorf("TotalDuration() = %v, want 1m", got)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &executor.ValidationError{Field: "vus", Message: "vus must be > 0"}
	want := "validation error on field 'vus': vus must be > 0"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewExecutor(t *testing.T) {
	tests := []struct {
		typ     executor.Type
		wantErr bool
	}{
		{executor.TypeConstantVUs, false},
		{executor.TypePerVUIterations, false},
		{"constant-arrival-rate", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			exec, err := executor.NewExecutor(tt.typ)
			if tt.wantErr {
				if err == nil {
					t.Error("NewExecutor() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewExecutor() error = %v", err)
			}
			if exec.Type() != tt.typ {
				t.Errorf("Type() = %v, want %v", exec.Type(), tt.typ)
			}
		})
	}
}

func TestCreateAndInitExecutor_InvalidConfig(t *testing.T) {
	_, err := executor.CreateAndInitExecutor(context.Background(), &executor.Config{
		Type: executor.TypeConstantVUs,
		VUs:  0,
	})
	if err == nil {
		t.Error("CreateAndInitExecutor() expected error for zero VUs")
	}
}

func TestTypeFor(t *testing.T) {
	if got := executor.TypeFor(0); got != executor.TypeConstantVUs {
		t.Errorf("TypeFor(0) = %v", got)
	}
	if got := executor.TypeFor(10); got != executor.TypePerVUIterations {
		t.Errorf("TypeFor(10) = %v", got)
	}
}

func TestIsValidExecutorType(t *testing.T) {
	if !executor.IsValidExecutorType("constant-vus") || !executor.IsValidExecutorType("per-vu-iterations") {
		t.Error("supported types reported invalid")
	}
	if executor.IsValidExecutorType("shared-iterations") {
		t.Error("shared-iterations should be invalid")
	}
}
