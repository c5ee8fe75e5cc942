// Package output renders live progress and the end-of-run summary of a
// kv scenario run.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
	"github.com/wesleyorama2/kvlunge/internal/performance/metrics"
)

// Cursor control. Colors go through fatih/color.
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"

	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"

	headerWidth = 56
	boxWidth    = 61
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveVUs int
	TargetVUs int

	CurrentRPS    float64
	TotalRequests int64
	Errors        int64
	ErrorRate     float64

	TotalChecks  int64
	FailedChecks int64
	CheckRate    float64

	LatencyP95 time.Duration
	LatencyAvg time.Duration

	CurrentPhase string
}

// ConsoleOutput manages console output during a run.
type ConsoleOutput struct {
	cfg    ConsoleOutputConfig
	writer io.Writer
	isTTY  bool
	colors *palette

	mu          sync.Mutex
	lastStats   *LiveStats
	linesOutput int
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	TestName     string
	ExecutorType string
	BaseURL      string
	Keys         int
	VUs          int
	Iterations   int64
	Rate         float64

	// TotalDuration is the planned length of the run, or its upper bound
	// when the run is iteration based.
	TotalDuration  time.Duration
	UpdateInterval time.Duration

	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
	ForceTTY    bool
}

// NewConsoleOutput creates a new console output handler.
func NewConsoleOutput(cfg ConsoleOutputConfig) *ConsoleOutput {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = time.Second
	}

	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)
	useColors := !cfg.NoColor && (cfg.ForceColors || (isTTY && supportsColors()))

	return &ConsoleOutput{
		cfg:    cfg,
		writer: cfg.Writer,
		isTTY:  isTTY,
		colors: newPalette(useColors),
	}
}

// UpdateInterval returns how often the live display should refresh.
func (c *ConsoleOutput) UpdateInterval() time.Duration {
	return c.cfg.UpdateInterval
}

// IsTTY returns whether the output is a terminal.
func (c *ConsoleOutput) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run header.
func (c *ConsoleOutput) PrintHeader() {
	if c.cfg.Quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.colors.Border.Sprint(strings.Repeat(boxHorizontal, headerWidth))
	title := c.cfg.TestName + " - Running"
	if c.cfg.ExecutorType != "" {
		title += fmt.Sprintf(" [%s]", c.cfg.ExecutorType)
	}

	c.writeln(line)
	c.writeln(c.colors.Title.Sprint(title))
	c.writeln(line)

	if c.cfg.BaseURL != "" {
		c.writeln(fmt.Sprintf("Target:   %s", c.colors.Value.Sprint(c.cfg.BaseURL)))
	}
	if c.cfg.Keys > 0 || c.cfg.VUs > 0 {
		c.writeln(fmt.Sprintf("Keyspace: %s keys over %s VUs",
			c.colors.Value.Sprint(formatNumber(int64(c.cfg.Keys))),
			c.colors.Value.Sprint(formatNumber(int64(c.cfg.VUs)))))
	}
	switch {
	case c.cfg.Iterations > 0:
		c.writeln(fmt.Sprintf("Plan:     %s iterations per VU (max %s)",
			c.colors.Value.Sprint(formatNumber(c.cfg.Iterations)), formatDuration(c.cfg.TotalDuration)))
	case c.cfg.TotalDuration > 0:
		c.writeln(fmt.Sprintf("Plan:     %s", c.colors.Value.Sprint(formatDuration(c.cfg.TotalDuration))))
	}
	if c.cfg.Rate > 0 {
		c.writeln(fmt.Sprintf("Rate:     %s iterations/s", c.colors.Value.Sprintf("%.1f", c.cfg.Rate)))
	}
	c.writeln("")
}

// Update redraws the live display in place. It does nothing when the
// output is not a terminal.
func (c *ConsoleOutput) Update(stats *LiveStats) {
	if c.cfg.Quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastStats = stats
	c.clearLive()

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// PrintNonInteractiveUpdate prints a one-line status update, for CI logs
// and piped output.
func (c *ConsoleOutput) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.cfg.Quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] %s %.0f%% | VUs: %d | Reqs: %d | RPS: %.1f | Errors: %d (%.1f%%) | Checks: %.2f%% | P95: %s",
		formatDuration(stats.Elapsed),
		stats.CurrentPhase,
		stats.Progress*100,
		stats.ActiveVUs,
		stats.TotalRequests,
		stats.CurrentRPS,
		stats.Errors,
		stats.ErrorRate*100,
		stats.CheckRate*100,
		formatLatency(stats.LatencyP95)))
}

func (c *ConsoleOutput) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *ConsoleOutput) renderLiveStats(stats *LiveStats) []string {
	p := c.colors
	var lines []string

	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))
	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		p.Good.Sprint(renderProgressBar(stats.Progress, 40)),
		p.Title.Sprintf("%.0f%%", stats.Progress*100),
		p.Dim.Sprint(timeInfo)))
	lines = append(lines, fmt.Sprintf("Phase:    %s", p.Phase.Sprint(stats.CurrentPhase)))
	lines = append(lines, "")

	lines = append(lines, p.Dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("VUs:     %s / %d", p.Value.Sprint(stats.ActiveVUs), stats.TargetVUs),
		fmt.Sprintf("Requests:  %s", p.Value.Sprint(formatNumber(stats.TotalRequests)))))

	errColor := p.rate(stats.ErrorRate)
	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("RPS:     %s", p.Good.Sprintf("%.1f", stats.CurrentRPS)),
		fmt.Sprintf("Errors:    %s (%s)",
			errColor.Sprint(stats.Errors),
			errColor.Sprintf("%.1f%%", stats.ErrorRate*100))))

	checkColor := p.rate(1 - stats.CheckRate)
	if stats.TotalChecks == 0 {
		checkColor = p.Dim
	}
	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("Checks:  %s", p.Value.Sprint(formatNumber(stats.TotalChecks))),
		fmt.Sprintf("Failed:    %s (%s)",
			checkColor.Sprint(stats.FailedChecks),
			checkColor.Sprint(formatPercent(stats.CheckRate)))))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("P95:     %s", p.Latency.Sprint(formatLatency(stats.LatencyP95))),
		fmt.Sprintf("Avg:       %s", p.Latency.Sprint(formatLatency(stats.LatencyAvg)))))

	lines = append(lines, p.Dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))

	return lines
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *ConsoleOutput) formatBoxRow(left, right string) string {
	colWidth := (boxWidth - 4) / 2

	leftPadding := colWidth - visibleLen(left)
	if leftPadding < 0 {
		leftPadding = 0
	}
	rightPadding := colWidth - visibleLen(right)
	if rightPadding < 0 {
		rightPadding = 0
	}

	bar := c.colors.Dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s%s %s%s %s",
		bar, left, strings.Repeat(" ", leftPadding),
		bar, right, strings.Repeat(" ", rightPadding),
		bar)
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// PrintSummary prints the end-of-run summary.
func (c *ConsoleOutput) PrintSummary(result *engine.TestResult) {
	p := c.colors

	if c.cfg.Quiet {
		if result.Passed {
			c.writeln(p.Good.Sprint("PASSED"))
		} else {
			c.writeln(p.Bad.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	line := p.Border.Sprint(strings.Repeat(boxHorizontal, headerWidth))
	status := p.Good.Sprint("Completed ✓")
	switch {
	case !result.Passed:
		status = p.Bad.Sprint("Failed ✗")
	case result.Interrupted:
		status = p.Warn.Sprint("Interrupted")
	}
	if !result.Passed && result.Interrupted {
		status += p.Warn.Sprint(" (interrupted)")
	}

	c.writeln("")
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s - %s", p.Title.Sprint(result.Name), status))
	c.writeln(line)
	c.writeln("")

	c.writeln(fmt.Sprintf("Run ID:        %s", p.Dim.Sprint(result.RunID)))
	c.writeln(fmt.Sprintf("Target:        %s", p.Value.Sprint(result.BaseURL)))
	c.writeln(fmt.Sprintf("Executor:      %s", result.Executor))
	c.writeln(fmt.Sprintf("Duration:      %s", p.Value.Sprint(formatDuration(result.Duration))))
	if result.Iterations > 0 {
		c.writeln(fmt.Sprintf("Iterations:    %s", p.Value.Sprint(formatNumber(result.Iterations))))
	}
	if w := result.Warmup; w != nil {
		warm := fmt.Sprintf("%s keys in %s", formatNumber(int64(w.Keys)), formatDuration(w.Duration))
		if w.Failed > 0 {
			warm += p.Warn.Sprintf(" (%d failed)", w.Failed)
		}
		c.writeln(fmt.Sprintf("Warmup:        %s", warm))
	}

	if m := result.Metrics; m != nil {
		c.writeln(fmt.Sprintf("Total Reqs:    %s (%s)",
			p.Value.Sprint(formatNumber(m.TotalRequests)), formatBytes(m.TotalBytes)))
		c.writeln(fmt.Sprintf("Throughput:    %s req/s", p.Value.Sprintf("%.1f", m.SteadyStateRPS)))
		c.writeln(fmt.Sprintf("Failed Reqs:   %s",
			p.rate(m.ErrorRate).Sprintf("%s (%s)", formatNumber(m.FailedRequests), formatPercent(m.ErrorRate))))
	}
	c.writeln("")

	if len(result.Checks) > 0 {
		c.writeln(p.Title.Sprint("Checks:"))
		width := 0
		for _, chk := range result.Checks {
			if len(chk.Name) > width {
				width = len(chk.Name)
			}
		}
		for _, chk := range result.Checks {
			c.writeln(fmt.Sprintf("  %s %-*s %7s  %s %s",
				p.mark(chk.Fails == 0),
				width, chk.Name,
				formatPercent(chk.Rate),
				p.Good.Sprintf("✓ %d", chk.Passes),
				p.rate(1-chk.Rate).Sprintf("✗ %d", chk.Fails)))
		}
		if m := result.Metrics; m != nil {
			c.writeln(fmt.Sprintf("  %s of %s checks passed",
				p.rate(1-m.CheckRate).Sprint(formatPercent(m.CheckRate)),
				formatNumber(m.TotalChecks)))
		}
		c.writeln("")
	}

	if m := result.Metrics; m != nil {
		c.writeln(p.Title.Sprint("Latency Distribution:"))
		c.writeln(fmt.Sprintf("  Min: %-9s P50: %-9s P90: %-9s",
			formatLatency(m.Latency.Min), formatLatency(m.Latency.P50), formatLatency(m.Latency.P90)))
		c.writeln(fmt.Sprintf("  P95: %-9s P99: %-9s Max: %-9s",
			formatLatency(m.Latency.P95), formatLatency(m.Latency.P99), formatLatency(m.Latency.Max)))
		c.writeln("")
	}

	if len(result.RequestStats) > 0 {
		c.writeln(p.Title.Sprint("Operations:"))
		c.writeln(p.Dim.Sprintf("  %-10s %10s %10s %10s %10s", "name", "count", "avg", "p95", "max"))
		for _, name := range sortedOps(result.RequestStats) {
			rs := result.RequestStats[name]
			c.writeln(fmt.Sprintf("  %-10s %10s %10s %10s %10s",
				name,
				formatNumber(rs.Count),
				formatLatency(rs.Latency.Mean),
				formatLatency(rs.Latency.P95),
				formatLatency(rs.Latency.Max)))
		}
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(p.Title.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			entry := fmt.Sprintf("  %s %s %s (actual: %s)", p.mark(t.Passed), t.Metric, t.Expression, t.Value)
			if !t.Passed && t.Message != "" {
				entry += p.Dim.Sprintf(" %s", t.Message)
			}
			c.writeln(entry)
		}
		c.writeln("")
	}
}

// opOrder follows the order operations run within an iteration.
var opOrder = map[string]int{"kv_put": 0, "kv_get": 1, "kv_mget": 2, "kv_delete": 3}

func sortedOps(stats map[string]engine.RequestStats) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := opOrder[names[i]]
		oj, jok := opOrder[names[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
	return names
}

func (c *ConsoleOutput) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// StatsFromMetrics creates LiveStats from an engine snapshot.
func StatsFromMetrics(snapshot *metrics.Snapshot, progress float64, totalDuration time.Duration, targetVUs int) *LiveStats {
	if snapshot == nil {
		return &LiveStats{
			Progress:     progress,
			TargetVUs:    targetVUs,
			CurrentPhase: string(metrics.PhaseInit),
		}
	}

	elapsed := snapshot.Elapsed
	remaining := time.Duration(0)
	if progress > 0 && progress < 1 {
		remaining = time.Duration(float64(elapsed) * (1 - progress) / progress)
	} else if progress == 0 && totalDuration > elapsed {
		remaining = totalDuration - elapsed
	}

	return &LiveStats{
		Progress:      progress,
		Elapsed:       elapsed,
		Remaining:     remaining,
		ActiveVUs:     snapshot.ActiveVUs,
		TargetVUs:     targetVUs,
		CurrentRPS:    snapshot.RPS,
		TotalRequests: snapshot.TotalRequests,
		Errors:        snapshot.FailedRequests,
		ErrorRate:     snapshot.ErrorRate,
		TotalChecks:   snapshot.TotalChecks,
		FailedChecks:  snapshot.FailedChecks,
		CheckRate:     snapshot.CheckRate,
		LatencyP95:    snapshot.Latency.P95,
		LatencyAvg:    snapshot.Latency.Mean,
		CurrentPhase:  string(snapshot.CurrentPhase),
	}
}
