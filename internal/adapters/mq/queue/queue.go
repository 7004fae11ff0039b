// Package queue defines the contract for buffering statements before flush.
//
// Implementations may use channels or more advanced structures. The client
// uses an in-memory bounded deque: failed batches must be put back at the
// front so delivery stays FIFO-ish across retries.
package queue

import (
	"context"
	"sync"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1000
)

// Statement is the payload type flowing through the queue.
// Using the statement.Statement type for type safety.
type Statement = statement.Statement

// Queue provides non-blocking enqueue and batch dequeue semantics.
type Queue interface {
	// Enqueue adds a statement to the back of the queue.
	// Returns false if the queue is full or closed and the statement was not enqueued.
	Enqueue(ctx context.Context, st Statement) bool

	// DequeueBatch removes and returns up to max statements from the front.
	// Draining is still permitted after Close so a final flush can run.
	DequeueBatch(ctx context.Context, max int) []Statement

	// Requeue puts a failed batch back at the front, ahead of newer
	// statements, preserving its internal order. Returns the number of
	// statements put back.
	Requeue(ctx context.Context, batch []Statement) int

	// Len returns the current number of buffered statements.
	Len(ctx context.Context) int

	// Notify returns a channel that receives a signal after enqueues.
	// Consumers use it to wake up without polling.
	Notify() <-chan struct{}

	// Close stops the queue. After closing, no new statements can be
	// enqueued; buffered statements remain drainable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a mutex-guarded slice deque.
type InMemoryQueue struct {
	mu       sync.Mutex
	items    []Statement
	capacity int
	notify   chan struct{}
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity, // default capacity
		notify:   make(chan struct{}, 1),
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	// Initialize metrics
	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a statement to the back of the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, st Statement) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	if len(q.items) >= q.capacity {
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}

	q.items = append(q.items, st)
	metrics.UpdateQueueSize(len(q.items))

	// Wake a waiting consumer without blocking.
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// DequeueBatch removes and returns up to max statements from the front.
func (q *InMemoryQueue) DequeueBatch(ctx context.Context, max int) []Statement {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return nil
	}
	if n > max {
		n = max
	}

	batch := make([]Statement, n)
	copy(batch, q.items[:n])
	q.items = append(q.items[:0:0], q.items[n:]...)
	metrics.UpdateQueueSize(len(q.items))
	return batch
}

// Requeue puts a failed batch back at the front of the queue.
// Requeued statements were already admitted once, so capacity is not
// enforced here. No wake signal is sent: the consumer putting a batch
// back is the one pacing retries.
func (q *InMemoryQueue) Requeue(ctx context.Context, batch []Statement) int {
	if len(batch) == 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}

	q.items = append(append(make([]Statement, 0, len(batch)+len(q.items)), batch...), q.items...)
	metrics.UpdateQueueSize(len(q.items))
	return len(batch)
}

// Len returns the current number of buffered statements.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify returns the wake channel.
func (q *InMemoryQueue) Notify() <-chan struct{} {
	return q.notify
}

// Close stops the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
