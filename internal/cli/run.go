package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wesleyorama2/kvlunge/internal/config"
	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/executor"
	"github.com/wesleyorama2/kvlunge/internal/performance/output"
)

// runOptions holds the flags of the run command. Only flags the user set
// override the file and environment.
type runOptions struct {
	configFile string

	baseURL           string
	keys              int
	vus               int
	duration          string
	iterations        int64
	ttl               int
	rate              float64
	timeout           string
	gracefulStop      string
	warmup            bool
	warmupConcurrency int
	reset             bool
	skipHealth        bool
	metricsAddr       string
	headers           []string

	jsonOutput bool
	outputPath string
	quiet      bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the kv scenario against a service",
		Long: `Run the built-in kv scenario with a fixed pool of virtual users.

Every iteration writes a key (every other write with a TTL), reads it back,
batch-reads it together with a missing key every 10th iteration, deletes it,
and re-reads it every 5th iteration to verify the delete.

Settings are resolved from defaults, then the config file, then the
environment (BASE_URL, KEYS, VUS, DURATION, TTL, ITERATIONS, RATE), then
flags.

Examples:
  kvlunge run --base-url http://localhost:8089 --vus 200 --duration 30s
  kvlunge run --iterations 100 --warmup
  kvlunge run --config bench.yaml --json --output result.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, global, opts)
		},
	}

	bindRunFlags(cmd.Flags(), opts)

	return cmd
}

func bindRunFlags(f *pflag.FlagSet, opts *runOptions) {
	f.StringVarP(&opts.configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	f.StringVar(&opts.baseURL, "base-url", config.DefaultBaseURL, "Base URL of the service")
	f.IntVar(&opts.keys, "keys", config.DefaultKeys, "Size of the key namespace")
	f.IntVar(&opts.vus, "vus", config.DefaultVUs, "Number of virtual users")
	f.StringVarP(&opts.duration, "duration", "d", config.DefaultDuration.String(), "Run duration (e.g. 30s, 5m, or seconds)")
	f.Int64VarP(&opts.iterations, "iterations", "i", 0, "Iterations per VU; overrides --duration")
	f.IntVar(&opts.ttl, "ttl", config.DefaultTTL, "TTL in seconds sent on even iterations")
	f.Float64Var(&opts.rate, "rate", 0, "Global iteration rate limit per second (0 = unlimited)")
	f.StringVar(&opts.timeout, "timeout", config.DefaultTimeout.String(), "Per-request timeout")
	f.StringVar(&opts.gracefulStop, "graceful-stop", config.DefaultGracefulStop.String(), "Time in-flight iterations get to finish when the run ends")
	f.BoolVar(&opts.warmup, "warmup", false, "Pre-fill every key before the run")
	f.IntVar(&opts.warmupConcurrency, "warmup-concurrency", 0, "Concurrent warmup writes (default min(2*vus, 64))")
	f.BoolVar(&opts.reset, "reset", false, "Wipe the store with POST /reset before the run")
	f.BoolVar(&opts.skipHealth, "skip-health", false, "Skip the GET /health preflight")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "Extra request header (key:value), repeatable")
	f.BoolVar(&opts.jsonOutput, "json", false, "Write the result as JSON")
	f.StringVarP(&opts.outputPath, "output", "o", "", "Write the JSON result to this file")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print PASSED or FAILED")
}

func runScenario(cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	cfg, err := buildConfig(opts, cmd.Flags(), os.LookupEnv)
	if err != nil {
		return err
	}

	eng, err := engine.NewEngine(cfg, engine.WithLogger(global.logger))
	if err != nil {
		return err
	}

	// With JSON on stdout the console output moves to stderr.
	console := cmd.OutOrStdout()
	if opts.jsonOutput && opts.outputPath == "" {
		console = cmd.ErrOrStderr()
	}

	planned := eng.PlannedDuration()
	executorType := executor.TypeFor(cfg.Iterations)
	if executorType == executor.TypePerVUIterations {
		planned = executor.DefaultMaxDuration
	}

	out := output.NewConsoleOutput(output.ConsoleOutputConfig{
		TestName:      engine.Name,
		ExecutorType:  string(executorType),
		BaseURL:       cfg.BaseURL,
		Keys:          cfg.Keys,
		VUs:           cfg.VUs,
		Iterations:    cfg.Iterations,
		Rate:          cfg.Rate,
		TotalDuration: planned,
		Writer:        console,
		Quiet:         opts.quiet,
		NoColor:       global.noColor,
	})

	out.PrintHeader()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runWithProgress(ctx, eng, out, cfg.VUs, planned)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	out.PrintSummary(result)

	if opts.jsonOutput || opts.outputPath != "" {
		if err := writeResult(cmd.OutOrStdout(), opts.outputPath, result); err != nil {
			return err
		}
		if opts.outputPath != "" && !opts.quiet {
			fmt.Fprintf(console, "Result: %s\n", opts.outputPath)
		}
	}

	if !result.Passed {
		return errThresholdsFailed
	}
	return nil
}

// runWithProgress runs the engine and refreshes the console until it ends.
func runWithProgress(ctx context.Context, eng *engine.Engine, out *output.ConsoleOutput, targetVUs int, planned time.Duration) (*engine.TestResult, error) {
	type outcome struct {
		result *engine.TestResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := eng.Run(ctx)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(out.UpdateInterval())
	defer ticker.Stop()

	for {
		select {
		case o := <-done:
			return o.result, o.err
		case <-ticker.C:
			if !eng.IsRunning() {
				continue
			}
			stats := output.StatsFromMetrics(eng.GetMetrics(), eng.GetProgress(), planned, targetVUs)
			if out.IsTTY() {
				out.Update(stats)
			} else {
				out.PrintNonInteractiveUpdate(stats)
			}
		}
	}
}

func writeResult(stdout io.Writer, path string, result *engine.TestResult) error {
	if path == "" {
		return output.WriteJSON(stdout, result)
	}
	return output.WriteJSONFile(path, result)
}

// buildConfig resolves the run configuration: defaults, then the file, then
// environment, then the flags that were explicitly set.
func buildConfig(opts *runOptions, flags *pflag.FlagSet, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.Base()
	if opts.configFile != "" {
		if err := config.LoadFileInto(opts.configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	changed := flags.Changed
	if changed("base-url") {
		cfg.BaseURL = opts.baseURL
	}
	if changed("keys") {
		cfg.Keys = opts.keys
	}
	if changed("vus") {
		cfg.VUs = opts.vus
	}
	if changed("duration") {
		d, err := config.ParseDurationString(opts.duration)
		if err != nil {
			return nil, fmt.Errorf("invalid --duration: %w", err)
		}
		cfg.Duration = config.Duration(d)
	}
	if changed("iterations") {
		cfg.Iterations = opts.iterations
	}
	if changed("ttl") {
		cfg.TTL = opts.ttl
	}
	if changed("rate") {
		cfg.Rate = opts.rate
	}
	if changed("timeout") {
		d, err := config.ParseDurationString(opts.timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.Timeout = config.Duration(d)
	}
	if changed("graceful-stop") {
		d, err := config.ParseDurationString(opts.gracefulStop)
		if err != nil {
			return nil, fmt.Errorf("invalid --graceful-stop: %w", err)
		}
		cfg.GracefulStop = config.Duration(d)
	}
	if changed("warmup") {
		cfg.Warmup = opts.warmup
	}
	if changed("warmup-concurrency") {
		cfg.WarmupConcurrency = opts.warmupConcurrency
	}
	if changed("reset") {
		cfg.Reset = opts.reset
	}
	if changed("skip-health") {
		cfg.SkipHealth = opts.skipHealth
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if len(opts.headers) > 0 {
		headers, err := parseHeaders(opts.headers)
		if err != nil {
			return nil, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}

	if err := config.Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseHeaders parses "Key: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid header %q (expected key:value)", h)
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}
