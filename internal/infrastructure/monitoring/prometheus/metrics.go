package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPRequestSize     HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// Annotation Pipeline
	DocumentsAnnotatedTotal CounterVec
	PipelineStageDuration   HistogramVec
	PipelineDuration        HistogramVec
	TokensPerDocument       HistogramVec
	MatchesTotal            CounterVec
	AnnotationsPerDocument  HistogramVec
	UnresolvedOrganismTotal CounterVec

	// Dictionary Layer
	DictionaryLookupsTotal   CounterVec
	DictionaryLookupDuration HistogramVec

	// Knowledge Graph Layer
	GraphQueryDuration HistogramVec
	GraphQueriesTotal  CounterVec

	// Batch / Worker Layer
	BatchFilesTotal      CounterVec
	BatchDuration        HistogramVec
	WorkerQueueDepth     GaugeVec
	MessageProcessDuration HistogramVec

	// Infrastructure Layer
	DBConnectionPoolSize   GaugeVec
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec

	// System Health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultPipelineDurationBuckets = []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	DefaultSizeBuckets             = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
	DefaultDBDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultCountBuckets            = []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPRequestSize = collector.RegisterHistogram("http_request_size_bytes", "HTTP request size", DefaultSizeBuckets, "method", "path")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response size", DefaultSizeBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Annotation pipeline
	m.DocumentsAnnotatedTotal = collector.RegisterCounter("annotation_documents_total", "Documents run through the annotation pipeline", "outcome")
	m.PipelineStageDuration = collector.RegisterHistogram("annotation_stage_duration_seconds", "Annotation pipeline stage duration", DefaultPipelineDurationBuckets, "stage")
	m.PipelineDuration = collector.RegisterHistogram("annotation_pipeline_duration_seconds", "End-to-end annotation pipeline duration", DefaultPipelineDurationBuckets)
	m.TokensPerDocument = collector.RegisterHistogram("annotation_tokens_per_document", "Keyword tokens produced per document", DefaultCountBuckets)
	m.MatchesTotal = collector.RegisterCounter("annotation_matches_total", "Dictionary matches by entity type", "entity_type")
	m.AnnotationsPerDocument = collector.RegisterHistogram("annotation_annotations_per_document", "Resolved annotations per document", DefaultCountBuckets)
	m.UnresolvedOrganismTotal = collector.RegisterCounter("annotation_unresolved_organism_total", "Gene annotations emitted without organism evidence")

	// Dictionary
	m.DictionaryLookupsTotal = collector.RegisterCounter("dictionary_lookups_total", "Dictionary lookups", "entity_type", "result")
	m.DictionaryLookupDuration = collector.RegisterHistogram("dictionary_lookup_duration_seconds", "Dictionary lookup duration", DefaultDBDurationBuckets, "entity_type")

	// Knowledge graph
	m.GraphQueryDuration = collector.RegisterHistogram("graph_query_duration_seconds", "Knowledge graph query duration", DefaultDBDurationBuckets, "query_type")
	m.GraphQueriesTotal = collector.RegisterCounter("graph_queries_total", "Knowledge graph queries", "query_type", "status")

	// Batch / worker
	m.BatchFilesTotal = collector.RegisterCounter("batch_files_total", "Files processed by batch annotation", "outcome")
	m.BatchDuration = collector.RegisterHistogram("batch_duration_seconds", "Batch annotation duration", DefaultPipelineDurationBuckets)
	m.WorkerQueueDepth = collector.RegisterGauge("worker_queue_depth", "Pending annotation jobs", "topic")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	// Infrastructure
	m.DBConnectionPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	// System Health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

func RecordPipelineRun(metrics *AppMetrics, outcome string, duration time.Duration, annotations int) {
	metrics.DocumentsAnnotatedTotal.WithLabelValues(outcome).Inc()
	metrics.PipelineDuration.WithLabelValues().Observe(duration.Seconds())
	metrics.AnnotationsPerDocument.WithLabelValues().Observe(float64(annotations))
}

func RecordPipelineStage(metrics *AppMetrics, stage string, duration time.Duration) {
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordDictionaryLookup(metrics *AppMetrics, entityType string, hit bool, duration time.Duration) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.DictionaryLookupsTotal.WithLabelValues(entityType, result).Inc()
	metrics.DictionaryLookupDuration.WithLabelValues(entityType).Observe(duration.Seconds())
}

func RecordGraphQuery(metrics *AppMetrics, queryType string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.GraphQueriesTotal.WithLabelValues(queryType, status).Inc()
	metrics.GraphQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("database", "query_error", "error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}
