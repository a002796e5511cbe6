package opensearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/common"
)

// fakeCluster wires an Indexer to an httptest server.  The client is built by
// hand so setup does not ping the fake server.
func fakeCluster(t *testing.T, handler http.HandlerFunc) *Indexer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	osClient, err := opensearchgo.NewClient(opensearchgo.Config{
		Addresses: []string{server.URL},
	})
	require.NoError(t, err)

	c := &Client{
		client: osClient,
		config: ClientConfig{Addresses: []string{server.URL}},
		logger: logging.NewNopLogger(),
	}
	c.healthy.Store(true)

	return NewIndexer(c, IndexerConfig{
		BulkBatchSize:     500,
		BulkFlushInterval: 1 * time.Second,
		BulkFlushBytes:    1024,
		BulkWorkers:       1,
	}, logging.NewNopLogger())
}

func annotationDoc(hashID, keyword, entityType string) map[string]interface{} {
	return map[string]interface{}{
		"file_hash_id": hashID,
		"keyword":      keyword,
		"entity_type":  entityType,
	}
}

func TestCreateIndex(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "lifelike-annotations"):
			w.Write([]byte(`{"acknowledged": true}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	err := idx.CreateIndex(context.Background(), "lifelike-annotations", AnnotationIndexMapping())
	assert.NoError(t, err)
}

func TestCreateIndexAlreadyExists(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	})

	err := idx.CreateIndex(context.Background(), "lifelike-annotations", common.IndexMapping{})
	assert.ErrorIs(t, err, ErrIndexAlreadyExists)
}

func TestBulkIndexAllSucceed(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "_bulk") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{
			"took": 12,
			"errors": false,
			"items": [
				{"index": {"_index": "lifelike-annotations", "_id": "abc123:u-1", "status": 201}},
				{"index": {"_index": "lifelike-annotations", "_id": "abc123:u-2", "status": 201}}
			]
		}`))
	})

	docs := map[string]interface{}{
		"abc123:u-1": annotationDoc("abc123", "gyrA", "Gene"),
		"abc123:u-2": annotationDoc("abc123", "Escherichia coli", "Species"),
	}
	result, err := idx.BulkIndex(context.Background(), "lifelike-annotations", docs)
	assert.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
}

func TestBulkIndexPartialFailure(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.Contains(r.URL.Path, "_bulk") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{
			"took": 12,
			"errors": true,
			"items": [
				{"index": {"_index": "lifelike-annotations", "_id": "abc123:u-1", "status": 201}},
				{"index": {"_index": "lifelike-annotations", "_id": "abc123:u-2", "status": 400, "error": {"type": "mapper_parsing_exception", "reason": "failed to parse field [lo_location_offset]"}}}
			]
		}`))
	})

	docs := map[string]interface{}{
		"abc123:u-1": annotationDoc("abc123", "gyrA", "Gene"),
		"abc123:u-2": annotationDoc("abc123", "recA", "Gene"),
	}
	result, err := idx.BulkIndex(context.Background(), "lifelike-annotations", docs)
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, "abc123:u-2", result.Errors[0].DocID)
}

func TestDeleteByQuery(t *testing.T) {
	var gotPath string
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"deleted": 7}`))
	})

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"file_hash_id": "abc123"},
		},
	}
	err := idx.DeleteByQuery(context.Background(), "lifelike-annotations", query)
	assert.NoError(t, err)
	assert.Contains(t, gotPath, "_delete_by_query")
}

func TestAnnotationIndexMapping(t *testing.T) {
	m := AnnotationIndexMapping()
	assert.NotNil(t, m.Mappings)
	assert.NotNil(t, m.Settings)

	props := m.Mappings["properties"].(map[string]interface{})
	assert.Contains(t, props, "file_hash_id")
	assert.Contains(t, props, "keyword")
	assert.Contains(t, props, "entity_type")
}
