// Package metrics provides Prometheus metrics for the curvewatch pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace = "curvewatch"
	defaultSubsystem = "pipeline"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Input volume
	factsRead     prometheus.Counter
	factsIncluded prometheus.Counter
	factsExcluded prometheus.Counter
	factsInvalid  prometheus.Counter
	duplicates    prometheus.Counter

	// Transformation
	groups             prometheus.Gauge
	carriedFills       prometheus.Counter
	forecastFills      prometheus.Counter
	assumptionsMatched prometheus.Counter
	assumptionsMissing prometheus.Counter
	outputRows         prometheus.Gauge

	// Run health
	stageLatency    *prometheus.HistogramVec
	runDuration     prometheus.Histogram
	runErrors       *prometheus.CounterVec
	runsTotal       prometheus.Counter
	lastSuccessUnix prometheus.Gauge

	// Worker pool
	queueSize         prometheus.Gauge
	workerActive      prometheus.Gauge
	partitionsFilled  prometheus.Counter
	partitionLatency  prometheus.Histogram

	// Store
	storePublishLatency prometheus.Histogram
	storeErrors         prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.factsRead = m.counter("facts_read_total", "Statement facts read from the source")
	m.factsIncluded = m.counter("facts_included_total", "Statement facts flagged as included in performance metrics")
	m.factsExcluded = m.counter("facts_excluded_total", "Statement facts excluded by the inclusion flag")
	m.factsInvalid = m.counter("facts_invalid_total", "Source rows skipped because a value could not be parsed")
	m.duplicates = m.counter("duplicate_statements_total", "Account-statement pairs seen more than once")

	m.groups = m.gauge("aggregate_groups", "Aggregate rows produced by the last run")
	m.carriedFills = m.counter("carried_fills_total", "Measures filled by carrying the last observation forward")
	m.forecastFills = m.counter("forecast_fills_total", "Charge-off numerators substituted by the delinquency forecast")
	m.assumptionsMatched = m.counter("assumptions_matched_total", "Rows joined to an assumption curve")
	m.assumptionsMissing = m.counter("assumptions_unmatched_total", "Rows with no matching assumption curve")
	m.outputRows = m.gauge("output_rows", "Metric rows produced by the last run")

	m.stageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_latency_milliseconds",
		Help:        "Latency of each pipeline stage in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"stage"})
	m.runDuration = m.histogram("run_duration_milliseconds", "End-to-end run duration in milliseconds", m.histogramBuckets)
	m.runErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_errors_total",
		Help:        "Runs aborted, by stage",
		ConstLabels: m.constLabels,
	}, []string{"stage"})
	m.runsTotal = m.counter("runs_total", "Completed pipeline runs")
	m.lastSuccessUnix = m.gauge("last_success_unix", "Unix timestamp of the last successful run")

	m.queueSize = m.gauge("partition_queue_size", "Partitions waiting to be filled")
	m.workerActive = m.gauge("worker_active_count", "Fill workers currently running")
	m.partitionsFilled = m.counter("partitions_filled_total", "Partitions processed by the fill workers")
	m.partitionLatency = m.histogram("partition_fill_latency_milliseconds", "Fill latency per partition in milliseconds", m.histogramBuckets)

	m.storePublishLatency = m.histogram("store_publish_latency_milliseconds", "Latency of publishing a run to the store", m.histogramBuckets)
	m.storeErrors = m.counter("store_errors_total", "Store publish or read failures")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordFactsRead adds to the facts read counter.
func RecordFactsRead(n int) { globalManager.factsRead.Add(float64(n)) }

// RecordFactsIncluded adds to the included facts counter.
func RecordFactsIncluded(n int) { globalManager.factsIncluded.Add(float64(n)) }

// RecordFactsExcluded adds to the excluded facts counter.
func RecordFactsExcluded(n int) { globalManager.factsExcluded.Add(float64(n)) }

// RecordFactsInvalid adds to the invalid source rows counter.
func RecordFactsInvalid(n int) { globalManager.factsInvalid.Add(float64(n)) }

// RecordDuplicates adds to the duplicate account-statement counter.
func RecordDuplicates(n int) { globalManager.duplicates.Add(float64(n)) }

// UpdateGroups sets the aggregate group gauge.
func UpdateGroups(n int) { globalManager.groups.Set(float64(n)) }

// RecordCarriedFills adds to the carry-forward counter.
func RecordCarriedFills(n int) { globalManager.carriedFills.Add(float64(n)) }

// RecordForecastFills adds to the forecast substitution counter.
func RecordForecastFills(n int) { globalManager.forecastFills.Add(float64(n)) }

// RecordAssumptionJoin records matched and unmatched join counts.
func RecordAssumptionJoin(matched, unmatched int) {
	globalManager.assumptionsMatched.Add(float64(matched))
	globalManager.assumptionsMissing.Add(float64(unmatched))
}

// UpdateOutputRows sets the output rows gauge.
func UpdateOutputRows(n int) { globalManager.outputRows.Set(float64(n)) }

// RecordStageLatency records how long a stage took.
func RecordStageLatency(stage string, d time.Duration) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(float64(d.Milliseconds()))
}

// RecordRunSuccess records a completed run.
func RecordRunSuccess(d time.Duration, at time.Time) {
	globalManager.runDuration.Observe(float64(d.Milliseconds()))
	globalManager.runsTotal.Inc()
	globalManager.lastSuccessUnix.Set(float64(at.Unix()))
}

// RecordRunError records an aborted run.
func RecordRunError(stage string) { globalManager.runErrors.WithLabelValues(stage).Inc() }

// UpdateQueueSize sets the partition queue gauge.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }

// UpdateWorkerActiveCount sets the active worker gauge.
func UpdateWorkerActiveCount(n int) { globalManager.workerActive.Set(float64(n)) }

// RecordPartitionFilled records one filled partition and its latency.
func RecordPartitionFilled(d time.Duration) {
	globalManager.partitionsFilled.Inc()
	globalManager.partitionLatency.Observe(float64(d.Milliseconds()))
}

// RecordStorePublish records store publish latency.
func RecordStorePublish(d time.Duration) {
	globalManager.storePublishLatency.Observe(float64(d.Milliseconds()))
}

// RecordStoreError increments the store error counter.
func RecordStoreError() { globalManager.storeErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
