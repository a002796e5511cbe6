package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	return m, c
}

func getMetricOutput(t *testing.T, collector MetricsCollector) string {
	return scrapeMetrics(t, collector)
}

func TestNewAppMetrics_AllMetricsRegistered(t *testing.T) {
	m, _ := newTestAppMetrics(t)
	require.NotNil(t, m)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.DocumentsAnnotatedTotal)
	assert.NotNil(t, m.PipelineStageDuration)
	assert.NotNil(t, m.MatchesTotal)
	assert.NotNil(t, m.DictionaryLookupsTotal)
	assert.NotNil(t, m.GraphQueryDuration)
	assert.NotNil(t, m.BatchFilesTotal)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestRecordHTTPRequest_AllMetricsUpdated(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "GET", "/api/v1/files", 200, 100*time.Millisecond, 1024, 2048)

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_http_requests_total{method="GET",path="/api/v1/files",status_code="200"} 1`)
	assert.Contains(t, output, `test_unit_http_request_size_bytes_sum{method="GET",path="/api/v1/files"} 1024`)
	assert.Contains(t, output, `test_unit_http_response_size_bytes_sum{method="GET",path="/api/v1/files"} 2048`)
	assert.Contains(t, output, `test_unit_http_request_duration_seconds_count{method="GET",path="/api/v1/files"} 1`)
}

func TestRecordPipelineRun(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordPipelineRun(m, "Annotated", 2*time.Second, 37)

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_annotation_documents_total{outcome="Annotated"} 1`)
	assert.Contains(t, output, `test_unit_annotation_pipeline_duration_seconds_count 1`)
	assert.Contains(t, output, `test_unit_annotation_annotations_per_document_sum 37`)
}

func TestRecordPipelineStage(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordPipelineStage(m, "tokenize", 50*time.Millisecond)
	RecordPipelineStage(m, "resolve", 150*time.Millisecond)

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_annotation_stage_duration_seconds_count{stage="tokenize"} 1`)
	assert.Contains(t, output, `test_unit_annotation_stage_duration_seconds_count{stage="resolve"} 1`)
}

func TestRecordDictionaryLookup(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDictionaryLookup(m, "Chemical", true, time.Millisecond)
	RecordDictionaryLookup(m, "Chemical", false, time.Millisecond)

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_dictionary_lookups_total{entity_type="Chemical",result="hit"} 1`)
	assert.Contains(t, output, `test_unit_dictionary_lookups_total{entity_type="Chemical",result="miss"} 1`)
}

func TestRecordGraphQuery(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordGraphQuery(m, "genes_to_organisms", 20*time.Millisecond, nil)
	RecordGraphQuery(m, "genes_to_organisms", 20*time.Millisecond, errors.New("boom"))

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_graph_queries_total{query_type="genes_to_organisms",status="ok"} 1`)
	assert.Contains(t, output, `test_unit_graph_queries_total{query_type="genes_to_organisms",status="error"} 1`)
}

func TestRecordDBQuery_Success(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "postgres", "select", 10*time.Millisecond, nil)

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_db_query_duration_seconds_count{db="postgres",operation="select"} 1`)
}

func TestRecordDBQuery_Error(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "postgres", "insert", 5*time.Millisecond, errors.New("db error"))

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_db_query_duration_seconds_count{db="postgres",operation="insert"} 1`)
	assert.Contains(t, output, `test_unit_errors_total{component="database",error_type="query_error",severity="error"} 1`)
}

func TestRecordCacheAccess_Hit(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "redis", true)

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_cache_hits_total{cache="redis"} 1`)
}

func TestRecordCacheAccess_Miss(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "local", false)

	output := getMetricOutput(t, c)
	assert.Contains(t, output, `test_unit_cache_misses_total{cache="local"} 1`)
}

func TestDefaultBuckets(t *testing.T) {
	assert.NotNil(t, DefaultHTTPDurationBuckets)
	assert.NotNil(t, DefaultPipelineDurationBuckets)
	assert.NotNil(t, DefaultCountBuckets)
}

func TestConcurrentMetricRecording(t *testing.T) {
	m, _ := newTestAppMetrics(t)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				RecordHTTPRequest(m, "GET", "/path", 200, time.Millisecond, 10, 10)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
