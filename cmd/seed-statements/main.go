package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/internal/seeder"
)

// Default configuration constants.
const (
	defaultNumStatements  = 5000
	defaultDuplicateRatio = 0.05
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultBatchSize      = 25
	defaultFlushInterval  = 2 * time.Second
	defaultRetryDelay     = time.Second
	defaultTimeout        = 30 * time.Second
	defaultRunTimeout     = 10 * time.Minute
)

func main() {
	var (
		collectorURL   = flag.String("url", "http://localhost:8080", "Base URL of the statement collector")
		numStatements  = flag.Int("statements", defaultNumStatements, "Number of statements to generate and track")
		duplicateRatio = flag.Float64("duplicates", defaultDuplicateRatio, "Fraction of statements re-tracked with a reused ID")
		workers        = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent tracking workers")
		batchSize      = flag.Int("batch", defaultBatchSize, "Statements per delivery batch")
		flushInterval  = flag.Duration("flush", defaultFlushInterval, "Timer flush for partial batches")
		retryDelay     = flag.Duration("retry", defaultRetryDelay, "Fixed delay before retrying a failed batch")
		timeout        = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile     = flag.String("output", "", "Output file for generated statements (default: seeded_statements_TIMESTAMP.json)")
		logFile        = flag.String("log", "", "Log file for seeder output (default: seed_log_TIMESTAMP.log)")
		verbose        = flag.Bool("verbose", false, "Enable verbose logging")
		help           = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seeder.ShowHelp()
		return
	}

	// Setup logging
	if err := seeder.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	// Create seeder configuration
	config := &seeder.Config{
		CollectorURL:   *collectorURL,
		NumStatements:  *numStatements,
		DuplicateRatio: *duplicateRatio,
		Workers:        *workers,
		BatchSize:      *batchSize,
		FlushInterval:  *flushInterval,
		RetryDelay:     *retryDelay,
		Timeout:        *timeout,
		OutputFile:     *outputFile,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	// Run the seeder
	if err := seeder.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Seeding failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
