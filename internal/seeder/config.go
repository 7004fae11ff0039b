package seeder

import "time"

// Config holds configuration for a seeding run
type Config struct {
	CollectorURL   string        // Base URL of the statement collector
	NumStatements  int           // Number of statements to generate
	DuplicateRatio float64       // Fraction of statements re-tracked with a reused ID
	Workers        int           // Number of concurrent tracking workers
	BatchSize      int           // Statements per delivery batch
	FlushInterval  time.Duration // Timer flush for partial batches
	RetryDelay     time.Duration // Fixed delay before retrying a failed batch
	Timeout        time.Duration // HTTP request timeout
	OutputFile     string        // Output file for generated statements
	LogFile        string        // Log file for seeder output
	Verbose        bool          // Enable verbose logging
}

// Stats holds seeding run statistics
type Stats struct {
	StatementsGenerated int
	StatementsTracked   int
	StatementsDuplicate int
	StatementsRejected  int
	StatementsDelivered int
	StatementsLeft      int // journaled but undelivered after the final drain
	BatchesSent         int
	BatchesFailed       int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration

	// Batch send latencies, successful and failed alike.
	Latencies []time.Duration
}
