// Package seeder pumps synthetic lab-activity statements through the
// delivery pipeline against a real or stub collector. It is the load and
// soak tool for the tracker: generation, tracking, batch delivery, retry
// and final-drain behavior all run exactly as they do in the client.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

const directoryPermission = 0750

// Run executes one complete seeding run.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting hulab statement seeder",
		logger.String("collectorURL", config.CollectorURL),
		logger.Int("statements", config.NumStatements),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("batchSize", config.BatchSize),
		logger.Float64("duplicateRatio", config.DuplicateRatio),
		logger.String("logFile", config.LogFile),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check the collector is reachable
	if err := checkCollector(ctx, config); err != nil {
		logger.Get().Warn(ctx, "collector probe failed, sending anyway", logger.Error(err))
	}

	// Step 2: Generate statements
	statements, err := generateStatements(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("statement generation failed: %w", err)
	}

	// Step 3: Assemble the delivery pipeline
	stateDir, err := os.MkdirTemp("", "hulab-seed-*")
	if err != nil {
		return fmt.Errorf("create seed state dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(stateDir) }()

	pipe, err := newPipeline(config, stateDir)
	if err != nil {
		return fmt.Errorf("pipeline setup failed: %w", err)
	}
	defer pipe.close()

	flushCtx, cancelFlush := context.WithCancel(ctx)
	defer cancelFlush()
	go pipe.flusher.Run(flushCtx)

	// Step 4: Track statements concurrently
	if err := submitStatements(ctx, config, statements, pipe, stats); err != nil {
		return fmt.Errorf("statement tracking failed: %w", err)
	}

	// Step 5: Drain the pipeline
	logger.Get().Info(ctx, "draining the delivery pipeline")
	drainCtx, cancelDrain := context.WithTimeout(ctx, DrainTimeout)
	defer cancelDrain()
	if err := pipe.flusher.Shutdown(drainCtx); err != nil {
		logger.Get().Warn(ctx, "drain did not finish cleanly", logger.Error(err))
	}

	// Step 6: Collect delivery numbers
	delivered, batches, failures, latencies := pipe.sender.snapshot()
	stats.StatementsDelivered = delivered
	stats.BatchesSent = batches
	stats.BatchesFailed = failures
	stats.Latencies = latencies
	if left, err := pipe.journal.Len(ctx); err == nil {
		stats.StatementsLeft = left
	}

	// Step 7: Save statements to file
	if err := saveStatementsToFile(ctx, config, statements); err != nil {
		logger.Get().Warn(ctx, "failed to save statements to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	if stats.StatementsLeft > 0 {
		return fmt.Errorf("%d statements were never confirmed by the collector", stats.StatementsLeft)
	}

	logger.Get().Info(ctx, "seeding run completed successfully")
	return nil
}

// checkCollector verifies the collector answers its health endpoint.
// Stub collectors without one only cost a warning.
func checkCollector(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking collector health")

	client := &http.Client{Timeout: config.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.CollectorURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to collector: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "collector is healthy")
	return nil
}

// saveStatementsToFile saves the generated statements to a JSON file.
func saveStatementsToFile(ctx context.Context, config *Config, statements []statement.Statement) error {
	if len(statements) == 0 {
		return fmt.Errorf("no statements to save")
	}

	filename := config.OutputFile
	if filename == "" {
		filename = fmt.Sprintf("seeded_statements_%s.json", time.Now().Format("20060102_150405"))
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	raw, err := json.MarshalIndent(statements, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal statements: %w", err)
	}
	if err := os.WriteFile(filename, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write statements file: %w", err)
	}

	logger.Get().Info(ctx, "statements saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats renders the run summary to the report writer and
// emits the same numbers as one structured log line.
func displayFinalStats(stats *Stats) {
	var deliveryRate, statementsPerSecond float64

	if stats.StatementsTracked > 0 {
		deliveryRate = float64(stats.StatementsDelivered) / float64(stats.StatementsTracked) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		statementsPerSecond = float64(stats.StatementsDelivered) / stats.Duration.Seconds()
	}

	minLat, maxLat, avgLat, p95Lat := latencySummary(stats.Latencies)

	tw := tabwriter.NewWriter(runReport, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSeeding run summary")
	fmt.Fprintf(tw, "  generated\t%s\n", humanize.Comma(int64(stats.StatementsGenerated)))
	fmt.Fprintf(tw, "  tracked\t%s\n", humanize.Comma(int64(stats.StatementsTracked)))
	fmt.Fprintf(tw, "  duplicates\t%s\n", humanize.Comma(int64(stats.StatementsDuplicate)))
	fmt.Fprintf(tw, "  rejected\t%s\n", humanize.Comma(int64(stats.StatementsRejected)))
	fmt.Fprintf(tw, "  delivered\t%s\n", humanize.Comma(int64(stats.StatementsDelivered)))
	fmt.Fprintf(tw, "  unconfirmed\t%s\n", humanize.Comma(int64(stats.StatementsLeft)))
	fmt.Fprintf(tw, "  batches\t%s sent, %s failed\n",
		humanize.Comma(int64(stats.BatchesSent)), humanize.Comma(int64(stats.BatchesFailed)))
	fmt.Fprintf(tw, "  duration\t%s (%.1f stmt/s, %.1f%% delivered)\n",
		stats.Duration.Round(time.Millisecond), statementsPerSecond, deliveryRate)
	fmt.Fprintf(tw, "  send latency\tmin %s / avg %s / p95 %s / max %s\n",
		minLat.Round(time.Millisecond), avgLat.Round(time.Millisecond),
		p95Lat.Round(time.Millisecond), maxLat.Round(time.Millisecond))
	if err := tw.Flush(); err != nil {
		logger.Get().Warn(context.Background(), "failed to render run summary", logger.Error(err))
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("statementsGenerated", stats.StatementsGenerated),
		logger.Int("statementsTracked", stats.StatementsTracked),
		logger.Int("statementsDuplicate", stats.StatementsDuplicate),
		logger.Int("statementsRejected", stats.StatementsRejected),
		logger.Int("statementsDelivered", stats.StatementsDelivered),
		logger.Int("statementsLeft", stats.StatementsLeft),
		logger.Int("batchesSent", stats.BatchesSent),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("deliveryRate", deliveryRate),
		logger.Float64("statementsPerSecond", statementsPerSecond),
		logger.Duration("sendLatencyMin", minLat),
		logger.Duration("sendLatencyAvg", avgLat),
		logger.Duration("sendLatencyP95", p95Lat),
		logger.Duration("sendLatencyMax", maxLat))
}

// latencySummary reduces the recorded batch latencies to min/max/avg/p95.
func latencySummary(latencies []time.Duration) (min, max, avg, p95 time.Duration) {
	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}

	idx := (len(sorted) * 95) / PercentageMultiplier
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[0], sorted[len(sorted)-1], sum / time.Duration(len(sorted)), sorted[idx]
}
