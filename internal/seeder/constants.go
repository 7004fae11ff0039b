package seeder

import "time"

const (
	// WorkerChannelMultiplier oversizes the work channel, queue and
	// deduper relative to their nominal load so the run itself never
	// trips backpressure.
	WorkerChannelMultiplier = 2

	// DrainTimeout bounds the final pipeline drain.
	DrainTimeout = 2 * time.Minute

	// PercentageMultiplier converts ratios for display.
	PercentageMultiplier = 100
)
