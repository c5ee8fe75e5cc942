package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL    = "BASE_URL"
	EnvKeys       = "KEYS"
	EnvVUs        = "VUS"
	EnvDuration   = "DURATION"
	EnvTTL        = "TTL"
	EnvIterations = "ITERATIONS"
	EnvRate       = "RATE"
)

// LoadFile reads and parses a configuration file. Defaults are not applied.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadFileInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFileInto decodes a configuration file over cfg. Fields the file does
// not mention keep their current value.
func LoadFileInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := DecodeInto(data, path, cfg); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

// ParseConfig decodes data as JSON when filename ends in .json and as YAML
// otherwise. Unknown fields are rejected.
func ParseConfig(data []byte, filename string) (*Config, error) {
	cfg := &Config{}
	if err := DecodeInto(data, filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DecodeInto is ParseConfig over an existing configuration.
func DecodeInto(data []byte, filename string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(cfg)
	}
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv; empty values are ignored.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvBaseURL); ok {
		c.BaseURL = v
	}
	if v, ok := get(EnvKeys); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvKeys, err)
		}
		c.Keys = n
	}
	if v, ok := get(EnvVUs); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVUs, err)
		}
		c.VUs = n
	}
	if v, ok := get(EnvDuration); ok {
		d, err := ParseDurationString(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDuration, err)
		}
		c.Duration = Duration(d)
	}
	if v, ok := get(EnvTTL); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTTL, err)
		}
		c.TTL = n
	}
	if v, ok := get(EnvIterations); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvIterations, err)
		}
		c.Iterations = n
	}
	if v, ok := get(EnvRate); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRate, err)
		}
		c.Rate = f
	}

	return nil
}

// Load layers an optional file and the process environment over the
// defaults, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Base()
	if path != "" {
		if err := LoadFileInto(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseDurationString parses "30s", "2m", "1h30m" or bare integer seconds
// ("30"). An empty string is zero.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
