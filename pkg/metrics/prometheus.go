// Package metrics provides Prometheus metrics for the HU Lab portal client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the portal client.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Tracker Metrics - The statement pipeline is the core of the client
	statementsTracked   prometheus.Counter
	statementsDuplicate prometheus.Counter
	statementsRejected  *prometheus.CounterVec
	statementsDelivered prometheus.Counter
	statementsRequeued  prometheus.Counter

	// Queue Metrics - Buffer health
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge

	// Flush Metrics - Batch delivery performance
	flushSuccess   prometheus.Counter
	flushFailure   prometheus.Counter
	flushBatchSize prometheus.Histogram
	sendLatency    prometheus.Histogram

	// Journal Metrics - Durable mirror state
	journalSize prometheus.Gauge

	// WebSocket Metrics - Live update stream health
	wsConnected  prometheus.Gauge
	wsConnects   prometheus.Counter
	wsReconnects prometheus.Counter
	wsGiveUps    prometheus.Counter
	wsMessages   *prometheus.CounterVec
	wsDropped    prometheus.Counter

	// HTTP Performance Metrics - Portal API round trips
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Notification Metrics
	notifications *prometheus.CounterVec

	// Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hulab",
		subsystem:        "client",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Tracker Metrics - Statement pipeline throughput and quality
	m.statementsTracked = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "statements_tracked_total",
		Help:      "Total number of statements accepted into the tracker",
	})

	m.statementsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "statements_duplicate_total",
		Help:      "Total number of statements dropped as duplicate IDs",
	})

	m.statementsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "statements_rejected_total",
			Help:      "Total number of statements rejected before queueing",
		},
		[]string{"reason"},
	)

	m.statementsDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "statements_delivered_total",
		Help:      "Total number of statements confirmed delivered to the collector",
	})

	m.statementsRequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "statements_requeued_total",
		Help:      "Total number of statements put back in the queue after a failed send",
	})

	// Queue Metrics - Buffer health indicators
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of statements waiting in the buffer",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum statement buffer capacity",
	})

	// Flush Metrics - Batch delivery performance
	m.flushSuccess = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_success_total",
		Help:      "Total number of successful batch flushes",
	})

	m.flushFailure = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_failure_total",
		Help:      "Total number of failed batch flushes",
	})

	m.flushBatchSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "flush_batch_size",
		Help:      "Histogram of statements per flushed batch",
		Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})

	m.sendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "send_latency_milliseconds",
		Help:      "Histogram of statement batch send latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Journal Metrics - Durable mirror state
	m.journalSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "journal_size",
		Help:      "Current number of unacknowledged statements in the journal",
	})

	// WebSocket Metrics - Live update stream health
	m.wsConnected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_connected",
		Help:      "Whether the live update stream is connected (1) or not (0)",
	})

	m.wsConnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_connects_total",
		Help:      "Total number of successful WebSocket connections",
	})

	m.wsReconnects = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_reconnects_total",
		Help:      "Total number of WebSocket reconnection attempts",
	})

	m.wsGiveUps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_giveups_total",
		Help:      "Total number of times reconnection stopped after exhausting attempts",
	})

	m.wsMessages = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "ws_messages_total",
			Help:      "Total number of WebSocket messages received by type",
		},
		[]string{"type"},
	)

	m.wsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ws_dropped_total",
		Help:      "Total number of messages dropped because a subscriber was slow",
	})

	// HTTP Performance Metrics - Portal API round trips
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Notification Metrics
	m.notifications = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "notifications_total",
			Help:      "Total number of notifications published by level",
		},
		[]string{"level"},
	)

	// Error Metrics - Detailed error tracking
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)
}

// Tracker Metrics Functions.

// RecordStatementTracked increments the tracked statements counter.
func RecordStatementTracked() {
	globalManager.statementsTracked.Inc()
}

// RecordStatementDuplicate increments the duplicate statements counter.
func RecordStatementDuplicate() {
	globalManager.statementsDuplicate.Inc()
}

// RecordStatementRejected increments the rejected statements counter for a reason.
func RecordStatementRejected(reason string) {
	globalManager.statementsRejected.WithLabelValues(reason).Inc()
}

// RecordStatementsDelivered adds to the delivered statements counter.
func RecordStatementsDelivered(count int) {
	globalManager.statementsDelivered.Add(float64(count))
}

// RecordStatementsRequeued adds to the requeued statements counter.
func RecordStatementsRequeued(count int) {
	globalManager.statementsRequeued.Add(float64(count))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordFlushSuccess increments the flush success counter and records the batch size.
func RecordFlushSuccess(batchSize int) {
	globalManager.flushSuccess.Inc()
	globalManager.flushBatchSize.Observe(float64(batchSize))
}

// RecordFlushFailure increments the flush failure counter.
func RecordFlushFailure() {
	globalManager.flushFailure.Inc()
}

// RecordSendLatency records batch send latency in milliseconds.
func RecordSendLatency(latencyMs float64) {
	globalManager.sendLatency.Observe(latencyMs)
}

// UpdateJournalSize sets the current journal size.
func UpdateJournalSize(size int) {
	globalManager.journalSize.Set(float64(size))
}

// WebSocket Metrics Functions.

// UpdateWSConnected sets the live stream connection gauge.
func UpdateWSConnected(connected bool) {
	if connected {
		globalManager.wsConnected.Set(1)
		return
	}
	globalManager.wsConnected.Set(0)
}

// RecordWSConnect increments the successful connection counter.
func RecordWSConnect() {
	globalManager.wsConnects.Inc()
}

// RecordWSReconnect increments the reconnection attempt counter.
func RecordWSReconnect() {
	globalManager.wsReconnects.Inc()
}

// RecordWSGiveUp increments the counter for exhausted reconnection attempts.
func RecordWSGiveUp() {
	globalManager.wsGiveUps.Inc()
}

// RecordWSMessage increments the received message counter for a message type.
func RecordWSMessage(messageType string) {
	globalManager.wsMessages.WithLabelValues(messageType).Inc()
}

// RecordWSDropped increments the dropped message counter.
func RecordWSDropped() {
	globalManager.wsDropped.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Notification Metrics Functions.

// RecordNotification increments the notification counter for a level.
func RecordNotification(level string) {
	globalManager.notifications.WithLabelValues(level).Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
