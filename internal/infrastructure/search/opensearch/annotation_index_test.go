package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

func TestIndexFileAnnotations(t *testing.T) {
	var bulkBody string
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "_delete_by_query"):
			w.Write([]byte(`{"deleted": 0}`))
		case strings.Contains(r.URL.Path, "_bulk"):
			raw, _ := io.ReadAll(r.Body)
			bulkBody = string(raw)
			w.Write([]byte(`{"errors": false, "items": [{"index": {"_id": "f1:u1", "status": 201}}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	ai := NewAnnotationIndexer(idx, "test-annotations", logging.NewNopLogger())

	annos := []*annotation.Annotation{
		{
			UUID:             "u1",
			PageNumber:       2,
			Keyword:          "gyrA",
			PrimaryName:      "gyrA",
			LoLocationOffset: 10,
			HiLocationOffset: 13,
			Meta: annotation.Meta{
				Type:   annotation.TypeGene,
				ID:     "945776",
				IDType: annotation.DatabaseNCBIGene,
			},
		},
	}

	result, err := ai.IndexFileAnnotations(context.Background(), "f1", annos)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Zero(t, result.Failed)

	// Second line of the bulk body is the document source.
	lines := strings.Split(strings.TrimSpace(bulkBody), "\n")
	require.Len(t, lines, 2)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "f1", doc["file_hash_id"])
	assert.Equal(t, "gyrA", doc["keyword"])
	assert.Equal(t, "Gene", doc["entity_type"])
	assert.Equal(t, float64(2), doc["page"])
}

func TestIndexFileAnnotationsEmpty(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "_delete_by_query") {
			w.Write([]byte(`{"deleted": 3}`))
			return
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})

	ai := NewAnnotationIndexer(idx, "test-annotations", logging.NewNopLogger())

	result, err := ai.IndexFileAnnotations(context.Background(), "f1", nil)
	require.NoError(t, err)
	assert.Zero(t, result.Succeeded)
}
