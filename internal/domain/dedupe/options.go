// Package dedupe defines the interface for statement ID tracking.
package dedupe

// Option configures the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps how many IDs stay in memory. Above the cap the
// oldest ID is evicted first; zero or negative disables eviction
// entirely.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
