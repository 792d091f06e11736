// Package metrics provides Prometheus metrics for the blackjack advisor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for detections removed by the deduplicator.
const (
	ReasonLabel     = "label"
	ReasonOverlap   = "overlap"
	ReasonProximity = "proximity"
)

// Manager owns every Prometheus collector of the advisor.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Frame pipeline
	framesProcessed      prometheus.Counter
	framesDuplicate      prometheus.Counter
	frameLatency         prometheus.Histogram
	detectionsRaw        prometheus.Counter
	detectionsLowConf    prometheus.Counter
	detectionsKept       *prometheus.CounterVec
	detectionsSuppressed *prometheus.CounterVec
	ranksUnparseable     prometheus.Counter
	advice               *prometheus.CounterVec
	adviceSkipped        *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount   prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// Results repository
	repositoryResults    prometheus.Gauge
	repositoryPutLatency prometheus.Histogram
	repositoryErrors     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record* helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "blackjack",
		subsystem:        "advisor",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		enabled:          true,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.framesProcessed = m.counter("frames_processed_total", "Frames run through the pipeline")
	m.framesDuplicate = m.counter("frames_duplicate_total", "Frames rejected because their frame_id was already submitted")
	m.frameLatency = m.histogram("frame_processing_latency_milliseconds", "Time to classify, deduplicate and advise one frame", m.histogramBuckets)
	m.detectionsRaw = m.counter("detections_raw_total", "Raw detections received from the detector")
	m.detectionsLowConf = m.counter("detections_low_confidence_total", "Detections dropped below the confidence floor")
	m.detectionsKept = m.counterVec("detections_kept_total", "Detections surviving deduplication by zone", "zone")
	m.detectionsSuppressed = m.counterVec("detections_suppressed_total", "Detections removed by the deduplicator by reason", "reason")
	m.ranksUnparseable = m.counter("ranks_unparseable_total", "Card labels whose rank could not be parsed")
	m.advice = m.counterVec("advice_total", "Recommendations produced by action", "action")
	m.adviceSkipped = m.counterVec("advice_skipped_total", "Frames for which no recommendation was produced by reason", "reason")

	m.queueSize = m.gauge("queue_size", "Frames waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum frames the queue accepts")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Frames accepted by the queue")
	m.queueDequeue = m.counter("queue_dequeue_total", "Frames handed to workers")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Frames refused by the queue")

	m.workerCount = m.gauge("worker_count", "Frame workers running")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends on one frame including storage", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Frames a worker failed to process or store")

	m.repositoryResults = m.gauge("repository_results", "Frame results currently held by the results store")
	m.repositoryPutLatency = m.histogram("repository_put_latency_milliseconds", "Results store write latency", m.histogramBuckets)
	m.repositoryErrors = m.counter("repository_errors_total", "Results store failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Enabled reports whether the manager records anything.
func (m *Manager) Enabled() bool { return m.enabled }

// RecordFrameProcessed counts one frame and observes its latency.
func (m *Manager) RecordFrameProcessed(latencyMs float64) {
	if !m.enabled {
		return
	}
	m.framesProcessed.Inc()
	m.frameLatency.Observe(latencyMs)
}

// RecordDetections records what happened to one frame's detections.
func (m *Manager) RecordDetections(raw, lowConfidence, dealerKept, playerKept int) {
	if !m.enabled {
		return
	}
	m.detectionsRaw.Add(float64(raw))
	m.detectionsLowConf.Add(float64(lowConfidence))
	m.detectionsKept.WithLabelValues("dealer").Add(float64(dealerKept))
	m.detectionsKept.WithLabelValues("player").Add(float64(playerKept))
}

// RecordSuppressed adds n suppressed detections under reason.
func (m *Manager) RecordSuppressed(reason string, n int) {
	if !m.enabled || n <= 0 {
		return
	}
	m.detectionsSuppressed.WithLabelValues(reason).Add(float64(n))
}

// RecordAdvice counts a recommendation.
func (m *Manager) RecordAdvice(action string) {
	if !m.enabled {
		return
	}
	m.advice.WithLabelValues(action).Inc()
}

// RecordAdviceSkipped counts a frame without recommendation.
func (m *Manager) RecordAdviceSkipped(reason string) {
	if !m.enabled {
		return
	}
	m.adviceSkipped.WithLabelValues(reason).Inc()
}

// Global helpers operate on the process-wide manager.

func RecordFrameProcessed(latencyMs float64) { globalManager.RecordFrameProcessed(latencyMs) }

func RecordDetections(raw, lowConfidence, dealerKept, playerKept int) {
	globalManager.RecordDetections(raw, lowConfidence, dealerKept, playerKept)
}

func RecordSuppressed(reason string, n int) { globalManager.RecordSuppressed(reason, n) }

func RecordAdvice(action string) { globalManager.RecordAdvice(action) }

func RecordAdviceSkipped(reason string) { globalManager.RecordAdviceSkipped(reason) }

// RecordFrameDuplicate counts a frame whose id was already seen.
func RecordFrameDuplicate() { globalManager.framesDuplicate.Inc() }

// RecordUnparseableRank counts a label the rank parser rejected.
func RecordUnparseableRank() { globalManager.ranksUnparseable.Inc() }

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted frame.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue counts a frame handed to a worker.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError counts a refused frame.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency observes one worker iteration.
func RecordWorkerProcessingLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError counts a failed worker iteration.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// UpdateRepositoryResults sets the number of stored results.
func UpdateRepositoryResults(count int) { globalManager.repositoryResults.Set(float64(count)) }

// RecordRepositoryPutLatency observes one store write.
func RecordRepositoryPutLatency(latencyMs float64) {
	globalManager.repositoryPutLatency.Observe(latencyMs)
}

// RecordRepositoryError counts a store failure.
func RecordRepositoryError() { globalManager.repositoryErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error raised inside a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
