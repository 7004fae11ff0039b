package seeder

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/journal"
	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/mq/flusher"
	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/mq/queue"
	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/rest"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/dedupe"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
)

// journalName is the throwaway journal backing one seeding run.
const journalName = "seed-journal.db"

// measuringSender wraps the REST sender and keeps per-batch delivery
// numbers the final report is built from.
type measuringSender struct {
	portal *rest.Client

	mu        sync.Mutex
	latencies []time.Duration
	delivered int64
	batches   int64
	failures  int64
}

// SendBatch delivers one batch and records its latency and outcome.
func (s *measuringSender) SendBatch(ctx context.Context, batch []statement.Statement) error {
	start := time.Now()
	err := s.portal.SendBatch(ctx, batch)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latencies = append(s.latencies, elapsed)
	s.batches++
	if err != nil {
		s.failures++
		return err
	}
	s.delivered += int64(len(batch))
	return nil
}

func (s *measuringSender) snapshot() (delivered, batches, failures int, latencies []time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.latencies))
	copy(out, s.latencies)
	return int(s.delivered), int(s.batches), int(s.failures), out
}

// pipeline is a standalone statement delivery pipeline: the same queue,
// deduper, journal and flusher the client runs, minus session handling.
type pipeline struct {
	queue   *queue.InMemoryQueue
	deduper dedupe.Deduper
	journal journal.Journal
	flusher *flusher.BatchFlusher
	sender  *measuringSender
}

// newPipeline assembles a pipeline delivering to the configured collector.
// The journal lives under stateDir and only matters for the duration of
// the run.
func newPipeline(config *Config, stateDir string) (*pipeline, error) {
	store, err := journal.Open(filepath.Join(stateDir, journalName))
	if err != nil {
		return nil, fmt.Errorf("open seed journal: %w", err)
	}

	sender := &measuringSender{
		portal: rest.NewClient(config.CollectorURL,
			rest.WithTimeout(config.Timeout),
			rest.WithUserAgent("hulab-seeder/1.0"),
		),
	}

	// Queue with headroom so a stalled collector does not reject tracks.
	q := queue.NewInMemoryQueue(queue.WithCapacity(config.NumStatements * WorkerChannelMultiplier))

	p := &pipeline{
		queue:   q,
		deduper: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(config.NumStatements * WorkerChannelMultiplier)),
		journal: store,
		sender:  sender,
	}
	p.flusher = flusher.NewBatchFlusher(q, sender, store,
		flusher.WithName("seed-flusher"),
		flusher.WithBatchSize(config.BatchSize),
		flusher.WithFlushInterval(config.FlushInterval),
		flusher.WithRetryDelay(config.RetryDelay),
	)
	return p, nil
}

// track pushes one statement into the pipeline the way the client does:
// dedupe, journal, then queue.
func (p *pipeline) track(ctx context.Context, st statement.Statement) string {
	if err := st.Validate(); err != nil {
		return "rejected"
	}
	if p.deduper.SeenAndRecord(ctx, st.ID) {
		return "duplicate"
	}
	if err := p.journal.Append(ctx, st); err != nil {
		return "rejected"
	}
	if !p.queue.Enqueue(ctx, st) {
		p.deduper.Unrecord(ctx, st.ID)
		_ = p.journal.Remove(ctx, st.ID)
		return "rejected"
	}
	return "tracked"
}

// close releases the pipeline's resources after the drain.
func (p *pipeline) close() {
	_ = p.queue.Close()
	_ = p.journal.Close()
}

// submitStatements pushes statements through the pipeline concurrently
// using worker pools. A slice of the run is re-tracked with the same IDs
// to exercise the duplicate drop.
func submitStatements(ctx context.Context, config *Config, statements []statement.Statement, p *pipeline, stats *Stats) error {
	submission := withDuplicates(statements, config.DuplicateRatio)
	log.Printf("📤 Tracking %d statements (%d duplicates) with %d workers...",
		len(submission), len(submission)-len(statements), config.Workers)

	// Counters for statistics
	var (
		tracked   int64
		duplicate int64
		rejected  int64
		submitted int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	// Create worker pool
	statementChan := make(chan statement.Statement, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for st := range statementChan {
				select {
				case <-ctx.Done():
					return
				default:
					outcome := p.track(ctx, st)

					// Update counters
					atomic.AddInt64(&submitted, 1)
					switch outcome {
					case "tracked":
						atomic.AddInt64(&tracked, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "rejected":
						atomic.AddInt64(&rejected, 1)
					}

					// Progress reporting
					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&submitted)
						tr := atomic.LoadInt64(&tracked)
						dup := atomic.LoadInt64(&duplicate)
						rej := atomic.LoadInt64(&rejected)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d tracked (new: %d, duplicate: %d, rejected: %d)",
								total, len(submission), tr, dup, rej)
						} else {
							fmt.Printf("\r📤 Tracked: %d/%d (new: %d, duplicate: %d, rejected: %d)",
								total, len(submission), tr, dup, rej)
						}
					}
				}
			}
		}()
	}

	// Send statements to workers
	go func() {
		defer close(statementChan)
		for _, st := range submission {
			select {
			case <-ctx.Done():
				return
			case statementChan <- st:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.StatementsTracked = int(atomic.LoadInt64(&tracked))
	stats.StatementsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.StatementsRejected = int(atomic.LoadInt64(&rejected))

	log.Printf(`✅ Statement tracking completed:
   Tracked: %d
   Duplicate: %d
   Rejected: %d
`, stats.StatementsTracked, stats.StatementsDuplicate, stats.StatementsRejected)

	return nil
}

// withDuplicates appends a re-tracked slice of the run so the deduper has
// something to drop. The duplicated statements keep their original IDs.
func withDuplicates(statements []statement.Statement, ratio float64) []statement.Statement {
	if ratio <= 0 || len(statements) == 0 {
		return statements
	}
	n := int(float64(len(statements)) * ratio)
	if n > len(statements) {
		n = len(statements)
	}
	out := make([]statement.Statement, 0, len(statements)+n)
	out = append(out, statements...)
	out = append(out, statements[:n]...)
	return out
}
