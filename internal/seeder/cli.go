package seeder

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

const logFilePermission = 0600

// runReport receives the end-of-run summary. SetupLogging tees it into
// the run log so every seeding run leaves a record on disk.
var runReport io.Writer = os.Stdout

// SetupLogging starts structured logging and opens the run log. An empty
// name picks seed_log_<timestamp>.log in the working directory.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}

	if logFile == "" {
		logFile = fmt.Sprintf("seed_log_%s.log", time.Now().Format("20060102_150405"))
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("open run log %s: %w", logFile, err)
	}

	runReport = io.MultiWriter(os.Stdout, f)
	logger.Get().Info(context.Background(), "run log opened", logger.String("path", logFile))
	return nil
}

// ShowHelp prints usage information for the statement seeder.
func ShowHelp() {
	os.Stdout.WriteString(`HU Lab Statement Seeder
=======================

A concurrent tool for seeding the HU Lab statement collector with synthetic
lab activity. Statements travel through the real delivery pipeline: dedupe,
journal, batching and retry all behave exactly as they do in the client.

Usage:
  go run cmd/seed-statements/main.go [options]

Options:
  -url string
        Base URL of the statement collector (default "http://localhost:8080")
  -statements int
        Number of statements to generate and track (default 5000)
  -duplicates float
        Fraction of statements re-tracked with a reused ID (default 0.05)
  -workers int
        Number of concurrent tracking workers (default CPU cores * 2)
  -batch int
        Statements per delivery batch (default 25)
  -flush duration
        Timer flush for partial batches (default 2s)
  -retry duration
        Fixed delay before retrying a failed batch (default 1s)
  -timeout duration
        Collector request timeout (default 30s)
  -output string
        Output file for generated statements (default: seeded_statements_TIMESTAMP.json)
  -log string
        Run log file (default: seed_log_TIMESTAMP.log)
  -verbose
        Log every tracked statement
  -help
        Print this usage text

Examples:
  # Seed with default settings
  go run cmd/seed-statements/main.go

  # Seed with custom parameters
  go run cmd/seed-statements/main.go -statements 20000 -workers 16 -url http://lab.example.edu

  # Exercise the deduper harder
  go run cmd/seed-statements/main.go -statements 10000 -duplicates 0.25

  # Seed with custom log file
  go run cmd/seed-statements/main.go -statements 20000 -log my_seed.log
`)
}
