// Package metrics provides Prometheus metrics for the churn inference service.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Manager manages all Prometheus metrics for the churn service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Inference
	predictions        *prometheus.CounterVec
	predictionLatency  prometheus.Histogram
	validationFailures prometheus.Counter
	processingFailures prometheus.Counter
	cacheLookups       *prometheus.CounterVec
	artifactLoaded     *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager from opts on a fresh registry.
// Call it once during startup, before Handler and CollectSystemMetrics.
func Configure(opts ...Option) *Manager {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
	return globalManager
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "churn",
		subsystem:        "inference",
		histogramBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:     buckets,
	}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Total number of successful predictions by label"),
		[]string{"label"},
	)
	m.predictionLatency = auto.NewHistogram(
		m.histogramOpts("prediction_latency_milliseconds", "Transform plus classify latency in milliseconds", m.histogramBuckets),
	)
	m.validationFailures = auto.NewCounter(
		m.counterOpts("validation_failures_total", "Requests rejected by schema validation"),
	)
	m.processingFailures = auto.NewCounter(
		m.counterOpts("processing_failures_total", "Predictions that failed after validation"),
	)
	m.cacheLookups = auto.NewCounterVec(
		m.counterOpts("cache_lookups_total", "Prediction cache lookups by result"),
		[]string{"result"},
	)
	m.artifactLoaded = auto.NewGaugeVec(
		m.gaugeOpts("artifact_loaded", "1 when the artifact of this kind is loaded"),
		[]string{"kind"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_milliseconds", "Garbage collection pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

// RecordPrediction counts a successful prediction with its label.
func RecordPrediction(label string) {
	if globalManager.enabled {
		globalManager.predictions.WithLabelValues(label).Inc()
	}
}

// RecordPredictionLatency records transform plus classify time in milliseconds.
func RecordPredictionLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.predictionLatency.Observe(latencyMs)
	}
}

// RecordValidationFailure counts a request rejected by the schema.
func RecordValidationFailure() {
	if globalManager.enabled {
		globalManager.validationFailures.Inc()
	}
}

// RecordProcessingFailure counts a prediction that failed after validation.
func RecordProcessingFailure() {
	if globalManager.enabled {
		globalManager.processingFailures.Inc()
	}
}

// RecordCacheLookup counts a cache lookup; result is CacheHit, CacheMiss or CacheError.
func RecordCacheLookup(result string) {
	if globalManager.enabled {
		globalManager.cacheLookups.WithLabelValues(result).Inc()
	}
}

// SetArtifactLoaded flags whether the artifact of kind is loaded.
func SetArtifactLoaded(kind string, loaded bool) {
	if !globalManager.enabled {
		return
	}
	v := 0.0
	if loaded {
		v = 1
	}
	globalManager.artifactLoaded.WithLabelValues(kind).Set(v)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// CollectSystemMetrics samples runtime statistics every refresh interval
// until ctx is done.
func CollectSystemMetrics(ctx context.Context) {
	if !globalManager.enabled {
		return
	}
	ticker := time.NewTicker(globalManager.refreshInterval)
	defer ticker.Stop()

	var lastNumGC uint32
	for {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		UpdateSystemMemoryUsage(ms.HeapAlloc)
		UpdateSystemGoroutineCount(runtime.NumGoroutine())
		// PauseNs is a ring holding the most recent pauses.
		ring := uint32(len(ms.PauseNs))
		from := lastNumGC
		if ms.NumGC-from > ring {
			from = ms.NumGC - ring
		}
		for i := from; i < ms.NumGC; i++ {
			RecordSystemGCPauseTime(float64(ms.PauseNs[i%ring]) / float64(time.Millisecond))
		}
		lastNumGC = ms.NumGC

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
