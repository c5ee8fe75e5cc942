package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/kvlunge/internal/config"
	"github.com/wesleyorama2/kvlunge/internal/kv/kvtest"
)

func parseRunFlags(t *testing.T, args ...string) (*runOptions, *pflag.FlagSet) {
	t.Helper()
	opts := &runOptions{}
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	bindRunFlags(fs, opts)
	require.NoError(t, fs.Parse(args))
	return opts, fs
}

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestBuildConfig_NoLayersGivesDefaults(t *testing.T) {
	opts, fs := parseRunFlags(t)

	cfg, err := buildConfig(opts, fs, envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestBuildConfig_ExplicitZeroIsRejected(t *testing.T) {
	zeroFile := filepath.Join(t.TempDir(), "zero.yaml")
	require.NoError(t, os.WriteFile(zeroFile, []byte("keys: 0\n"), 0o644))

	tests := []struct {
		name  string
		args  []string
		env   map[string]string
		field string
	}{
		{"keys flag", []string{"--keys", "0"}, nil, "keys"},
		{"vus flag", []string{"--vus", "0"}, nil, "vus"},
		{"ttl flag", []string{"--ttl", "0"}, nil, "ttl"},
		{"keys env", nil, map[string]string{config.EnvKeys: "0"}, "keys"},
		{"vus env", nil, map[string]string{config.EnvVUs: "0"}, "vus"},
		{"keys file", []string{"--config", zeroFile}, nil, "keys"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, fs := parseRunFlags(t, tt.args...)
			_, err := buildConfig(opts, fs, envFrom(tt.env))
			require.Error(t, err)
			assert.ErrorContains(t, err, "invalid configuration")
			assert.ErrorContains(t, err, "'"+tt.field+"'")
		})
	}
}

func TestBuildConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
baseUrl: http://file:8089
keys: 100
vus: 10
duration: 1m
ttl: 20
`), 0o644))

	env := envFrom(map[string]string{
		config.EnvVUs: "20",
		config.EnvTTL: "30",
	})
	opts, fs := parseRunFlags(t, "--config", path, "--ttl", "40", "--iterations", "5", "-H", "X-Bench: yes")

	cfg, err := buildConfig(opts, fs, env)
	require.NoError(t, err)

	assert.Equal(t, "http://file:8089", cfg.BaseURL, "file")
	assert.Equal(t, 100, cfg.Keys, "file")
	assert.Equal(t, 20, cfg.VUs, "env over file")
	assert.Equal(t, 40, cfg.TTL, "flag over env")
	assert.Equal(t, time.Minute, cfg.Duration.Std())
	assert.Equal(t, int64(5), cfg.Iterations)
	assert.Equal(t, map[string]string{"X-Bench": "yes"}, cfg.Headers)
}

func TestBuildConfig_Durations(t *testing.T) {
	opts, fs := parseRunFlags(t, "--duration", "45", "--timeout", "2s", "--graceful-stop", "1s")
	cfg, err := buildConfig(opts, fs, envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Duration.Std())
	assert.Equal(t, 2*time.Second, cfg.Timeout.Std())
	assert.Equal(t, time.Second, cfg.GracefulStop.Std())

	opts, fs = parseRunFlags(t, "--duration", "soon")
	_, err = buildConfig(opts, fs, envFrom(nil))
	assert.ErrorContains(t, err, "--duration")

	opts, fs = parseRunFlags(t, "--graceful-stop", "later")
	_, err = buildConfig(opts, fs, envFrom(nil))
	assert.ErrorContains(t, err, "--graceful-stop")
}

func TestBuildConfig_Errors(t *testing.T) {
	opts, fs := parseRunFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := buildConfig(opts, fs, envFrom(nil))
	assert.ErrorContains(t, err, "config file not found")

	opts, fs = parseRunFlags(t)
	_, err = buildConfig(opts, fs, envFrom(map[string]string{config.EnvKeys: "many"}))
	assert.ErrorContains(t, err, config.EnvKeys)

	opts, fs = parseRunFlags(t, "-H", "nocolon")
	_, err = buildConfig(opts, fs, envFrom(nil))
	assert.ErrorContains(t, err, "invalid header")
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"Authorization: Bearer x:y", " X-A :b"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer x:y", h["Authorization"])
	assert.Equal(t, "b", h["X-A"])

	_, err = parseHeaders([]string{": empty"})
	assert.Error(t, err)
}

// relaxedConfig writes a config whose latency budget tolerates slow CI hosts.
func relaxedConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thresholds:
  http_req_failed: ["rate<0.01"]
  http_req_duration: ["p(95)<5s"]
`), 0o644))
	return path
}

func TestRunCommand_Passes(t *testing.T) {
	srv := kvtest.NewServer()
	defer srv.Close()

	out, _, err := executeArgs(t, "run",
		"--config", relaxedConfig(t),
		"--base-url", srv.URL,
		"--keys", "20", "--vus", "2", "--iterations", "10",
		"--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "kv-scenario - Running [per-vu-iterations]")
	assert.Contains(t, out, "kv-scenario - Completed ✓")
	assert.Contains(t, out, "GET body matches PUT")
	assert.Contains(t, out, "✓ http_req_failed rate<0.01")

	puts, _, _, deletes := srv.Counts()
	assert.Equal(t, int64(20), puts)
	assert.Equal(t, int64(20), deletes)
}

func TestRunCommand_Quiet(t *testing.T) {
	srv := kvtest.NewServer()
	defer srv.Close()

	out, _, err := executeArgs(t, "run", "--config", relaxedConfig(t), "--base-url", srv.URL,
		"--keys", "4", "--vus", "1", "--iterations", "2", "--quiet")
	require.NoError(t, err)
	assert.Equal(t, "PASSED", strings.TrimSpace(out))
}

func TestRunCommand_FailedChecksExitNonZero(t *testing.T) {
	srv := kvtest.NewServer()
	defer srv.Close()
	srv.SetFaults(kvtest.Faults{IgnoreDeletes: true})

	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("thresholds:\n  checks: [\"rate>0.99\"]\n"), 0o644))

	out, stderr, err := executeArgs(t, "run", "--config", path, "--base-url", srv.URL,
		"--keys", "10", "--vus", "1", "--iterations", "10", "--quiet")
	require.ErrorIs(t, err, errThresholdsFailed)
	assert.Equal(t, "FAILED", strings.TrimSpace(out))
	assert.NotContains(t, stderr, "Error:", "threshold failures are reported by the summary")
}

func TestRunCommand_JSONFile(t *testing.T) {
	srv := kvtest.NewServer()
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "result.json")
	out, _, err := executeArgs(t, "run", "--config", relaxedConfig(t), "--base-url", srv.URL,
		"--keys", "4", "--vus", "2", "--iterations", "3", "--output", path, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Result: "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var result struct {
		RunID    string `json:"runId"`
		Passed   bool   `json:"passed"`
		Executor string `json:"executor"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.Passed)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "per-vu-iterations", result.Executor)
}

func TestRunCommand_JSONStdout(t *testing.T) {
	srv := kvtest.NewServer()
	defer srv.Close()

	out, stderr, err := executeArgs(t, "run", "--config", relaxedConfig(t), "--base-url", srv.URL,
		"--keys", "4", "--vus", "2", "--iterations", "3", "--json", "--no-color")
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result), "stdout must be pure JSON")
	assert.Equal(t, true, result["passed"])
	assert.Contains(t, stderr, "Completed")
}

func TestRunCommand_PreflightFailure(t *testing.T) {
	srv := kvtest.NewServer()
	defer srv.Close()
	srv.SetFaults(kvtest.Faults{Unhealthy: true})

	_, stderr, err := executeArgs(t, "run", "--base-url", srv.URL,
		"--keys", "4", "--vus", "1", "--iterations", "1", "--quiet")
	require.Error(t, err)
	assert.Contains(t, stderr, "preflight health check failed")
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	_, stderr, err := executeArgs(t, "run", "--keys=0", "--quiet")
	require.Error(t, err)
	assert.Contains(t, stderr, "invalid configuration")
}
