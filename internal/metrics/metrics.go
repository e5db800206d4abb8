package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for bouncewatch
type Metrics struct {
	// Notification counters
	NotificationsReceivedTotal *prometheus.CounterVec
	NotificationsRejectedTotal prometheus.Counter
	BouncesProcessedTotal      *prometheus.CounterVec

	// Policy outcomes
	ThresholdCrossedTotal prometheus.Counter
	CountResetsTotal      *prometheus.CounterVec
	EventsEmittedTotal    *prometheus.CounterVec

	// Recipient gauges
	RecipientsTracked       prometheus.Gauge
	RecipientsWithBounces   prometheus.Gauge
	RecipientsOverThreshold prometheus.Gauge

	// Suppression list mirror
	SuppressionListSize  prometheus.Gauge
	SuppressionSyncTotal *prometheus.CounterVec

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds    prometheus.Gauge
	Goroutines       prometheus.Gauge
	StorageUsedBytes prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		NotificationsReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncewatch_notifications_received_total",
				Help: "Total number of notifications accepted by the webhook",
			},
			[]string{"type"},
		),
		NotificationsRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bouncewatch_notifications_rejected_total",
				Help: "Total number of notifications rejected at the boundary",
			},
		),
		BouncesProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncewatch_bounces_processed_total",
				Help: "Total number of bounce notifications by classification",
			},
			[]string{"classification", "domain"},
		),

		ThresholdCrossedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bouncewatch_threshold_crossed_total",
				Help: "Total number of recipients moved over the bounce threshold",
			},
		),
		CountResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncewatch_count_resets_total",
				Help: "Total number of bounce counter resets",
			},
			[]string{"reason"},
		),
		EventsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncewatch_events_emitted_total",
				Help: "Total number of domain events emitted",
			},
			[]string{"kind"},
		),

		RecipientsTracked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bouncewatch_recipients_tracked",
				Help: "Number of registered recipients",
			},
		),
		RecipientsWithBounces: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bouncewatch_recipients_with_bounces",
				Help: "Number of recipients with a non-zero bounce count",
			},
		),
		RecipientsOverThreshold: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bouncewatch_recipients_over_threshold",
				Help: "Number of recipients currently over the bounce threshold",
			},
		),

		SuppressionListSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bouncewatch_suppression_list_size",
				Help: "Number of addresses in the local suppression list mirror",
			},
		),
		SuppressionSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncewatch_suppression_sync_total",
				Help: "Total number of suppression list sync runs",
			},
			[]string{"status"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncewatch_api_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bouncewatch_api_request_duration_seconds",
				Help:    "HTTP API request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bouncewatch_api_errors_total",
				Help: "Total number of HTTP API errors",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bouncewatch_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bouncewatch_goroutines",
				Help: "Number of goroutines",
			},
		),
		StorageUsedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bouncewatch_storage_used_bytes",
				Help: "Size of the BoltDB database file",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.NotificationsReceivedTotal,
		m.NotificationsRejectedTotal,
		m.BouncesProcessedTotal,
		m.ThresholdCrossedTotal,
		m.CountResetsTotal,
		m.EventsEmittedTotal,
		m.RecipientsTracked,
		m.RecipientsWithBounces,
		m.RecipientsOverThreshold,
		m.SuppressionListSize,
		m.SuppressionSyncTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
		m.StorageUsedBytes,
	)

	return m
}

// Handler returns an HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetGlobal installs the process-wide metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the process-wide metrics instance, nil when metrics
// are disabled
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}
