package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Test empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if batch := q.DequeueBatch(ctx, 10); batch != nil {
		t.Errorf("expected nil batch from empty queue, got %v", batch)
	}

	// Test enqueue
	if !q.Enqueue(ctx, Statement{ID: "s1"}) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Test batch dequeue
	batch := q.DequeueBatch(ctx, 10)
	if len(batch) != 1 || batch[0].ID != "s1" {
		t.Errorf("expected batch [s1], got %v", batch)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, Statement{ID: "s1"}) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, Statement{ID: "s2"}) {
		t.Error("expected enqueue to succeed")
	}

	// Try to enqueue when full
	if q.Enqueue(ctx, Statement{ID: "s3"}) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_BatchOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if !q.Enqueue(ctx, Statement{ID: fmt.Sprintf("s%d", i)}) {
			t.Fatalf("enqueue s%d failed", i)
		}
	}

	batch := q.DequeueBatch(ctx, 3)
	if len(batch) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(batch))
	}
	for i, st := range batch {
		if want := fmt.Sprintf("s%d", i+1); st.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, st.ID)
		}
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected 2 remaining, got %d", l)
	}
}

func TestInMemoryQueue_Requeue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		q.Enqueue(ctx, Statement{ID: fmt.Sprintf("s%d", i)})
	}

	// Take a batch, then put it back as a failed send would.
	batch := q.DequeueBatch(ctx, 2)
	if n := q.Requeue(ctx, batch); n != 2 {
		t.Fatalf("expected 2 requeued, got %d", n)
	}

	// The requeued batch must come out first, in its original order.
	all := q.DequeueBatch(ctx, 10)
	want := []string{"s1", "s2", "s3", "s4"}
	if len(all) != len(want) {
		t.Fatalf("expected %d statements, got %d", len(want), len(all))
	}
	for i, st := range all {
		if st.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], st.ID)
		}
	}
}

func TestInMemoryQueue_RequeueBeyondCapacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	q.Enqueue(ctx, Statement{ID: "s1"})
	q.Enqueue(ctx, Statement{ID: "s2"})

	batch := q.DequeueBatch(ctx, 2)
	q.Enqueue(ctx, Statement{ID: "s3"})
	q.Enqueue(ctx, Statement{ID: "s4"})

	// Requeue is exempt from the capacity check: the batch was admitted once.
	if n := q.Requeue(ctx, batch); n != 2 {
		t.Fatalf("expected 2 requeued, got %d", n)
	}
	if l := q.Len(ctx); l != 4 {
		t.Errorf("expected length 4, got %d", l)
	}

	all := q.DequeueBatch(ctx, 10)
	if all[0].ID != "s1" || all[1].ID != "s2" {
		t.Errorf("requeued batch should lead the queue, got %v then %v", all[0].ID, all[1].ID)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	q.Enqueue(ctx, Statement{ID: "s1"})
	q.Enqueue(ctx, Statement{ID: "s2"})

	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}

	// No new statements after close.
	if q.Enqueue(ctx, Statement{ID: "s3"}) {
		t.Error("expected enqueue to fail after close")
	}
	if n := q.Requeue(ctx, []Statement{{ID: "s4"}}); n != 0 {
		t.Errorf("expected requeue to be rejected after close, got %d", n)
	}

	// Draining the remainder must still work so a final flush can run.
	batch := q.DequeueBatch(ctx, 10)
	if len(batch) != 2 {
		t.Errorf("expected to drain 2 statements after close, got %d", len(batch))
	}
}

func TestInMemoryQueue_Notify(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	q.Enqueue(ctx, Statement{ID: "s1"})

	select {
	case <-q.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a wake signal after enqueue")
	}

	// The signal is coalesced: many enqueues, at most one pending signal.
	q.Enqueue(ctx, Statement{ID: "s2"})
	q.Enqueue(ctx, Statement{ID: "s3"})
	select {
	case <-q.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a coalesced wake signal")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10_000))
	ctx := context.Background()
	numGoroutines := 10
	numStatements := 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numStatements; j++ {
				st := Statement{ID: fmt.Sprintf("g%d-s%d", id, j)}
				if !q.Enqueue(ctx, st) {
					t.Errorf("enqueue failed for %s", st.ID)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for {
		batch := q.DequeueBatch(ctx, 64)
		if len(batch) == 0 {
			break
		}
		total += len(batch)
	}
	if want := numGoroutines * numStatements; total != want {
		t.Errorf("expected %d statements drained, got %d", want, total)
	}
}
