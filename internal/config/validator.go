package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the whole configuration.
//
// Returns nil if valid, or a *ValidationErrors containing every problem.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	validateBaseURL(c.BaseURL, errs)

	if c.Keys <= 0 {
		errs.Add("keys", "keys must be greater than 0")
	}
	if c.VUs <= 0 {
		errs.Add("vus", "vus must be greater than 0")
	}
	if c.Iterations < 0 {
		errs.Add("iterations", "iterations cannot be negative")
	}
	if c.Iterations == 0 && c.Duration <= 0 {
		errs.Add("duration", "duration must be greater than 0")
	}
	if c.TTL <= 0 {
		errs.Add("ttl", "ttl must be greater than 0")
	}
	if c.Rate < 0 {
		errs.Add("rate", "rate cannot be negative")
	}
	if c.Timeout < 0 {
		errs.Add("timeout", "timeout cannot be negative")
	}
	if c.GracefulStop < 0 {
		errs.Add("gracefulStop", "gracefulStop cannot be negative")
	}
	if c.WarmupConcurrency < 0 {
		errs.Add("warmupConcurrency", "warmupConcurrency cannot be negative")
	}

	seen := make(map[string]int)
	for _, entry := range c.Thresholds.Entries() {
		i := seen[entry.Metric]
		seen[entry.Metric]++
		if err := ValidateThreshold(entry.Metric, entry.Expression); err != nil {
			errs.Add(fmt.Sprintf("thresholds.%s[%d]", entry.Metric, i), err.Error())
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateBaseURL(raw string, errs *ValidationErrors) {
	if raw == "" {
		errs.Add("baseUrl", "baseUrl is required")
		return
	}

	u, err := url.Parse(raw)
	if err != nil {
		errs.Add("baseUrl", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("baseUrl", fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		errs.Add("baseUrl", "host is required")
	}
}
