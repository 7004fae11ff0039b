package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

func testStatement(id string) statement.Statement {
	return statement.New(
		statement.AgentMbox("Test User", "test@hulab.polyu.edu.hk"),
		statement.Interacted,
		statement.Activity(statement.ActivityIRI("project", "p1"), "Project One", "project"),
		statement.WithID(id),
	)
}

func openTestJournal(t *testing.T, path string) *SQLiteJournal {
	t.Helper()
	_ = logger.Init()

	j, err := Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	return j
}

func TestSQLiteJournal_BasicOperations(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.db"))
	defer j.Close()

	// Test empty journal
	n, err := j.Len(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 entries, got %d", n)
	}

	// Test append
	if err := j.Append(ctx, testStatement("s1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	n, _ = j.Len(ctx)
	if n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}

	// Test pending
	pending, err := j.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "s1" {
		t.Errorf("expected pending [s1], got %v", pending)
	}

	// Test remove
	if err := j.Remove(ctx, "s1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	n, _ = j.Len(ctx)
	if n != 0 {
		t.Errorf("expected 0 entries after remove, got %d", n)
	}
}

func TestSQLiteJournal_PendingOrder(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.db"))
	defer j.Close()

	ids := []string{"s1", "s2", "s3", "s4", "s5"}
	for _, id := range ids {
		if err := j.Append(ctx, testStatement(id)); err != nil {
			t.Fatalf("append %s failed: %v", id, err)
		}
	}

	pending, err := j.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != len(ids) {
		t.Fatalf("expected %d entries, got %d", len(ids), len(pending))
	}
	for i, st := range pending {
		if st.ID != ids[i] {
			t.Errorf("position %d: expected %s, got %s", i, ids[i], st.ID)
		}
	}
}

func TestSQLiteJournal_AppendReplacesDuplicate(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.db"))
	defer j.Close()

	if err := j.Append(ctx, testStatement("s1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := j.Append(ctx, testStatement("s1")); err != nil {
		t.Fatalf("duplicate append failed: %v", err)
	}

	n, _ := j.Len(ctx)
	if n != 1 {
		t.Errorf("expected duplicate append to replace, got %d entries", n)
	}
}

func TestSQLiteJournal_RemoveSubset(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.db"))
	defer j.Close()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := j.Append(ctx, testStatement(id)); err != nil {
			t.Fatalf("append %s failed: %v", id, err)
		}
	}

	// Remove a confirmed batch, including an ID the journal never saw.
	if err := j.Remove(ctx, "s1", "s3", "unknown"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	pending, err := j.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "s2" {
		t.Errorf("expected only s2 to remain, got %v", pending)
	}

	// Remove with no IDs is a no-op.
	if err := j.Remove(ctx); err != nil {
		t.Errorf("empty remove should succeed, got %v", err)
	}
}

func TestSQLiteJournal_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j := openTestJournal(t, path)
	for _, id := range []string{"s1", "s2"} {
		if err := j.Append(ctx, testStatement(id)); err != nil {
			t.Fatalf("append %s failed: %v", id, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// A new process would reopen the same file and restore the backlog.
	j2 := openTestJournal(t, path)
	defer j2.Close()

	pending, err := j2.Pending(ctx)
	if err != nil {
		t.Fatalf("pending after reopen failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "s1" || pending[1].ID != "s2" {
		t.Errorf("expected [s1 s2] after reopen, got %v", pending)
	}
}

func TestSQLiteJournal_RoundTripFidelity(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.db"))
	defer j.Close()

	st := testStatement("s1")
	if err := j.Append(ctx, st); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	pending, err := j.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(pending))
	}

	got := pending[0]
	if got.ID != st.ID {
		t.Errorf("expected ID %s, got %s", st.ID, got.ID)
	}
	if got.Actor.Mbox != st.Actor.Mbox {
		t.Errorf("expected actor %s, got %s", st.Actor.Mbox, got.Actor.Mbox)
	}
	if got.Verb.ID != st.Verb.ID {
		t.Errorf("expected verb %s, got %s", st.Verb.ID, got.Verb.ID)
	}
	if got.Object.ID != st.Object.ID {
		t.Errorf("expected object %s, got %s", st.Object.ID, got.Object.ID)
	}
	if !got.Timestamp.Equal(st.Timestamp) {
		t.Errorf("expected timestamp %v, got %v", st.Timestamp, got.Timestamp)
	}
}

func TestSQLiteJournal_SkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.db"))
	defer j.Close()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := j.Append(ctx, testStatement(id)); err != nil {
			t.Fatalf("append %s failed: %v", id, err)
		}
	}

	// Corrupt the middle entry behind the journal's back.
	if _, err := j.db.ExecContext(ctx,
		"UPDATE statements SET payload = '{broken' WHERE id = ?", "s2",
	); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	pending, err := j.Pending(ctx)
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "s1" || pending[1].ID != "s3" {
		t.Errorf("expected corrupt entry to be skipped, got %v", pending)
	}
}

func TestSQLiteJournal_Closed(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.db"))

	if err := j.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}

	if err := j.Append(ctx, testStatement("s1")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from append, got %v", err)
	}
	if err := j.Remove(ctx, "s1"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from remove, got %v", err)
	}
	if _, err := j.Pending(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from pending, got %v", err)
	}
	if _, err := j.Len(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from len, got %v", err)
	}
}
