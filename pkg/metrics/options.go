// Package metrics provides Prometheus metrics for the HU Lab portal client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace (default "hulab").
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem overrides the metric subsystem (default "client").
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets replaces the latency histogram buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithPrometheusRegistry registers the metrics somewhere other than the
// package registry. Tests use this to get a clean collector set.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
