package perf_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/kvlunge/internal/kv/kvtest"
	"github.com/wesleyorama2/kvlunge/perf"
)

func TestRunTest(t *testing.T) {
	srv := kvtest.NewServer()
	defer srv.Close()

	result, err := perf.RunTest(context.Background(), &perf.Config{
		BaseURL:    srv.URL,
		Keys:       10,
		VUs:        2,
		Iterations: 5,
		Thresholds: &perf.ThresholdsConfig{Checks: []string{"rate==1"}},
	})
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Equal(t, int64(10), result.Iterations)
	assert.Equal(t, result.Metrics.TotalChecks, result.Metrics.PassedChecks)
}

func TestRunTest_InvalidConfig(t *testing.T) {
	_, err := perf.RunTest(context.Background(), &perf.Config{Keys: -1})
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRunner_StateBeforeRun(t *testing.T) {
	runner, err := perf.NewRunner(&perf.Config{BaseURL: "http://localhost:8089"})
	require.NoError(t, err)

	assert.False(t, runner.IsRunning())
	assert.Nil(t, runner.Metrics())
	assert.Nil(t, runner.Checks())
	assert.Zero(t, runner.Progress())
	assert.NoError(t, runner.Stop(context.Background()))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keys: 100\nvus: 4\n"), 0o644))

	cfg, err := perf.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Keys)
	assert.Equal(t, 4, cfg.VUs)
	assert.NotNil(t, cfg.Thresholds)
}

func TestDefaultThresholds(t *testing.T) {
	th := perf.DefaultThresholds()
	assert.Equal(t, []string{"rate<0.01"}, th.HTTPReqFailed)
	assert.Equal(t, []string{"p(95)<25"}, th.HTTPReqDuration)
}
