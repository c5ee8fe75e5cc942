// Package perf runs the kv scenario from Go code.
//
// It is a thin public layer over the engine the kvlunge command uses: the
// same configuration, the same checks and thresholds, the same result
// document.
//
// # Quick Start
//
//	cfg := &perf.Config{
//	    BaseURL:    "http://localhost:8089",
//	    Keys:       5000,
//	    VUs:        50,
//	    Iterations: 100,
//	}
//	result, err := perf.RunTest(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err) // preflight, reset or warmup failed
//	}
//	fmt.Printf("P95: %v passed: %v\n", result.Metrics.Latency.P95, result.Passed)
//
// # Configuration Files
//
// LoadConfig reads the same YAML or JSON files as kvlunge run --config,
// then applies the environment (BASE_URL, KEYS, VUS, DURATION, TTL,
// ITERATIONS, RATE) and defaults:
//
//	cfg, err := perf.LoadConfig("bench.yaml")
//
// # Watching a Run
//
// A Runner exposes live metrics while Run is in progress:
//
//	runner, _ := perf.NewRunner(cfg)
//	go func() {
//	    for runner.IsRunning() {
//	        snap := runner.Metrics()
//	        ...
//	    }
//	}()
//	result, _ := runner.Run(ctx)
package perf
