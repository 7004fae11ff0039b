// Package queue defines the contract for buffering statements before flush.
package queue

// Option configures the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the queue. Zero or negative values keep the
// default.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}
