// Package journal mirrors queued statements on disk until delivery is confirmed.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// Journal provides durable storage for statements awaiting delivery.
// Entries leave the journal only after the portal confirmed the send, so
// a crash between enqueue and delivery never loses a statement.
type Journal interface {
	// Append stores a statement before it enters the in-memory queue.
	Append(ctx context.Context, st statement.Statement) error

	// Remove prunes statements whose delivery was confirmed.
	Remove(ctx context.Context, ids ...string) error

	// Pending returns all journaled statements in the order they were queued.
	Pending(ctx context.Context) ([]statement.Statement, error)

	// Len returns the number of journaled statements.
	Len(ctx context.Context) (int, error)

	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS statements (
	id        TEXT PRIMARY KEY,
	payload   TEXT NOT NULL,
	queued_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_statements_queued_at ON statements(queued_at);
`

// SQLiteJournal implements Journal on a local SQLite database.
type SQLiteJournal struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	closed bool

	// Logging
	logger logger.Logger
}

// Open initializes the journal database at the given path.
func Open(path string, opts ...Option) (*SQLiteJournal, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	j := &SQLiteJournal{
		db:     db,
		path:   path,
		logger: logger.Get().Named("journal"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(j)
	}

	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}

	j.updateGauge(context.Background())
	return j, nil
}

// initialize sets pragmas and creates the statements table.
func (j *SQLiteJournal) initialize() error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := j.db.Exec(pragma); err != nil {
			return fmt.Errorf("apply pragma: %w", err)
		}
	}

	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("create statements table: %w", err)
	}
	return nil
}

// Append stores a statement before it enters the in-memory queue.
func (j *SQLiteJournal) Append(ctx context.Context, st statement.Statement) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal statement %s: %w", st.ID, err)
	}

	_, err = j.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO statements (id, payload, queued_at) VALUES (?, ?, ?)",
		st.ID, string(payload), time.Now().UnixNano(),
	)
	if err != nil {
		metrics.RecordErrorByComponent("journal", "append_error")
		return fmt.Errorf("journal statement %s: %w", st.ID, err)
	}

	j.updateGauge(ctx)
	return nil
}

// Remove prunes statements whose delivery was confirmed.
func (j *SQLiteJournal) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := j.db.ExecContext(ctx,
		"DELETE FROM statements WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		metrics.RecordErrorByComponent("journal", "remove_error")
		return fmt.Errorf("prune %d statements: %w", len(ids), err)
	}

	j.updateGauge(ctx)
	return nil
}

// Pending returns all journaled statements in the order they were queued.
// Rows that no longer unmarshal are skipped so one bad entry cannot block
// the rest of the backlog.
func (j *SQLiteJournal) Pending(ctx context.Context) ([]statement.Statement, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil, ErrClosed
	}

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, payload FROM statements ORDER BY queued_at ASC, rowid ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	var pending []statement.Statement
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}

		var st statement.Statement
		if err := json.Unmarshal([]byte(payload), &st); err != nil {
			metrics.RecordErrorByComponent("journal", "corrupt_entry")
			j.logger.Warn(ctx, "skipping corrupt journal entry",
				logger.String("statement_id", id),
				logger.Error(err),
			)
			continue
		}
		pending = append(pending, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	return pending, nil
}

// Len returns the number of journaled statements.
func (j *SQLiteJournal) Len(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, ErrClosed
	}
	return j.count(ctx)
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil // already closed
	}
	j.closed = true
	return j.db.Close()
}

// count reads the row count. Callers must hold j.mu.
func (j *SQLiteJournal) count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM statements").Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

// updateGauge refreshes the journal size metric. Callers must hold j.mu.
func (j *SQLiteJournal) updateGauge(ctx context.Context) {
	if n, err := j.count(ctx); err == nil {
		metrics.UpdateJournalSize(n)
	}
}
