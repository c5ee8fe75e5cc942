package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:8089", cfg.BaseURL)
	assert.Equal(t, 5000, cfg.Keys)
	assert.Equal(t, 200, cfg.VUs)
	assert.Equal(t, 30*time.Second, cfg.Duration.Std())
	assert.Equal(t, 50, cfg.TTL)
	assert.Equal(t, 64, cfg.WarmupConcurrency)
	require.NotNil(t, cfg.Thresholds)
	assert.Equal(t, []string{"rate<0.01"}, cfg.Thresholds.HTTPReqFailed)
	assert.Equal(t, []string{"p(95)<25"}, cfg.Thresholds.HTTPReqDuration)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		BaseURL:    "http://kv:9000/",
		VUs:        3,
		Thresholds: &ThresholdsConfig{Checks: []string{"rate>0.9"}},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "http://kv:9000", cfg.BaseURL)
	assert.Equal(t, 3, cfg.VUs)
	assert.Equal(t, 6, cfg.WarmupConcurrency)
	assert.Empty(t, cfg.Thresholds.HTTPReqFailed)
	assert.Equal(t, []string{"rate>0.9"}, cfg.Thresholds.Checks)
}

func TestWarmupConcurrencyFor(t *testing.T) {
	assert.Equal(t, 1, WarmupConcurrencyFor(0))
	assert.Equal(t, 10, WarmupConcurrencyFor(5))
	assert.Equal(t, 64, WarmupConcurrencyFor(32))
	assert.Equal(t, 64, WarmupConcurrencyFor(200))
}

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"500ms", 500 * time.Millisecond, false},
		{"30", 30 * time.Second, false},
		{" 45 ", 45 * time.Second, false},
		{"", 0, false},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseConfig_YAML(t *testing.T) {
	data := `
baseUrl: "http://kv.internal:8089"
keys: 100
vus: 4
duration: 10
ttl: 20
warmup: true
headers:
  X-Bench: "1"
thresholds:
  http_req_duration:
    - "p(99)<50"
  checks:
    - "rate>0.99"
`
	cfg, err := ParseConfig([]byte(data), "run.yaml")
	require.NoError(t, err)

	assert.Equal(t, "http://kv.internal:8089", cfg.BaseURL)
	assert.Equal(t, 100, cfg.Keys)
	assert.Equal(t, 4, cfg.VUs)
	assert.Equal(t, 10*time.Second, cfg.Duration.Std())
	assert.Equal(t, 20, cfg.TTL)
	assert.True(t, cfg.Warmup)
	assert.Equal(t, "1", cfg.Headers["X-Bench"])
	assert.Equal(t, []string{"p(99)<50"}, cfg.Thresholds.HTTPReqDuration)
	assert.Equal(t, []string{"rate>0.99"}, cfg.Thresholds.Checks)
}

func TestParseConfig_JSON(t *testing.T) {
	data := `{"baseUrl": "http://localhost:1234", "vus": 2, "duration": "1m", "iterations": 50, "rate": 12.5}`

	cfg, err := ParseConfig([]byte(data), "run.JSON")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.VUs)
	assert.Equal(t, time.Minute, cfg.Duration.Std())
	assert.Equal(t, int64(50), cfg.Iterations)
	assert.Equal(t, 12.5, cfg.Rate)
}

func TestParseConfig_UnknownField(t *testing.T) {
	_, err := ParseConfig([]byte("vus: 2\nscenarios: {}\n"), "run.yml")
	assert.Error(t, err)

	_, err = ParseConfig([]byte(`{"concurrency": 3}`), "run.json")
	assert.Error(t, err)
}

func TestParseConfig_InvalidDuration(t *testing.T) {
	_, err := ParseConfig([]byte("duration: soon\n"), "run.yaml")
	assert.Error(t, err)
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil, "run.yaml")
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(b))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`90`), &d))
	assert.Equal(t, 90*time.Second, d.Std())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvlunge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vus: 7\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.VUs)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{VUs: 10, Keys: 100}
	err := ApplyEnv(cfg, envMap(map[string]string{
		"BASE_URL":   "http://env:8089",
		"VUS":        "20",
		"KEYS":       "",
		"DURATION":   "5s",
		"TTL":        "7",
		"ITERATIONS": "3",
		"RATE":       "100",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://env:8089", cfg.BaseURL)
	assert.Equal(t, 20, cfg.VUs)
	assert.Equal(t, 100, cfg.Keys, "empty env values are ignored")
	assert.Equal(t, 5*time.Second, cfg.Duration.Std())
	assert.Equal(t, 7, cfg.TTL)
	assert.Equal(t, int64(3), cfg.Iterations)
	assert.Equal(t, 100.0, cfg.Rate)
}

func TestApplyEnv_Invalid(t *testing.T) {
	for _, name := range []string{"KEYS", "VUS", "DURATION", "TTL", "ITERATIONS", "RATE"} {
		t.Run(name, func(t *testing.T) {
			err := ApplyEnv(&Config{}, envMap(map[string]string{name: "many"}))
			assert.ErrorContains(t, err, name)
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvlunge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vus: 7\nkeys: 70\n"), 0o644))

	t.Setenv("VUS", "9")
	t.Setenv("KEYS", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.VUs)
	assert.Equal(t, 70, cfg.Keys)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestLoad_ExplicitZeroReachesValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvlunge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keys: 0\nttl: 0\n"), 0o644))
	t.Setenv("VUS", "0")

	_, err := Load(path)
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"keys", "vus", "ttl"}, fields(t, err))
}

func TestBase_FinalizeMatchesDefault(t *testing.T) {
	cfg := Base()
	assert.Nil(t, cfg.Thresholds)
	assert.Zero(t, cfg.WarmupConcurrency)

	cfg.VUs = 3
	require.NoError(t, Finalize(cfg))
	assert.Equal(t, 6, cfg.WarmupConcurrency)
	assert.Equal(t, DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, DefaultKeys, cfg.Keys)
}

func TestLoadFileInto_KeepsUnmentionedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvlunge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vus: 4\n"), 0o644))

	cfg := Base()
	require.NoError(t, LoadFileInto(path, cfg))
	assert.Equal(t, 4, cfg.VUs)
	assert.Equal(t, DefaultKeys, cfg.Keys)
	assert.Equal(t, DefaultTTL, cfg.TTL)
}
