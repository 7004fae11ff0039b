// Package dedupe defines the interface for statement ID tracking.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen statement IDs so each statement enters the
// delivery pipeline at most once.
type Deduper interface {
	// SeenAndRecord reports whether id was seen before, recording it in
	// the same step when it was not. Check and record happen under one
	// lock so two concurrent callers can never both get false.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an ID again. Callers use it to roll back
	// SeenAndRecord when the statement never made it into the pipeline,
	// such as on queue backpressure.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps IDs in a fixed-size ring. Once the ring is
// full, each newly recorded ID overwrites the oldest slot and evicts
// whatever ID occupied it. With maxSize <= 0 the ring is skipped and
// IDs accumulate in the map without limit.
type inMemoryDeduper struct {
	mu      sync.Mutex
	slots   map[string]int // id -> ring slot, -1 when unbounded
	ring    []string       // IDs in insertion order, nil when unbounded
	next    int            // slot the next recorded ID will occupy
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper builds a Deduper holding at most 10k IDs unless
// WithMaxSize says otherwise.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10_000,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.slots = make(map[string]int)
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}

	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.slots[id]; exists {
		return true
	}

	if d.maxSize > 0 {
		// A slot only evicts the ID that still maps to it. Unrecorded or
		// re-recorded IDs leave stale ring entries behind, which the map
		// check skips over.
		old := d.ring[d.next]
		if slot, ok := d.slots[old]; ok && slot == d.next {
			delete(d.slots, old)
			d.size.Add(-1)
		}
		d.ring[d.next] = id
		d.slots[id] = d.next
		d.next = (d.next + 1) % d.maxSize
	} else {
		d.slots[id] = -1
	}
	d.size.Add(1)
	return false
}

// Unrecord leaves the ring slot as-is; eviction checks the map before
// trusting it.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.slots[id]; exists {
		delete(d.slots, id)
		d.size.Add(-1)
	}
}

// Size reports how many IDs are currently recorded.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
