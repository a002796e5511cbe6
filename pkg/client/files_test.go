package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

func TestFilesAnnotate(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/files/annotate", r.URL.Path)

		var req AnnotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"abc123", "def456"}, req.FileHashIDs)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []AnnotateResult{
				{FileHashID: "abc123", Outcome: "Annotated", Annotations: 12},
				{FileHashID: "def456", Outcome: "Not found"},
			},
		})
	}
	c := newTestClient(t, handler)

	results, err := c.Files().Annotate(context.Background(), &AnnotateRequest{
		FileHashIDs: []string{"abc123", "def456"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Annotated", results[0].Outcome)
	assert.Equal(t, 12, results[0].Annotations)
}

func TestFilesAnnotations(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/files/abc123/annotations", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"annotations": []*annotation.Annotation{{UUID: "u-1", Keyword: "gyrA"}},
		})
	}
	c := newTestClient(t, handler)

	annos, err := c.Files().Annotations(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, annos, 1)
	assert.Equal(t, "gyrA", annos[0].Keyword)
}

func TestFilesRemoveInclusion(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/files/abc123/annotations/custom/u-1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("remove_all"))
		json.NewEncoder(w).Encode(map[string]interface{}{"removed": []string{"u-1", "u-2"}})
	}
	c := newTestClient(t, handler)

	removed, err := c.Files().RemoveInclusion(context.Background(), "abc123", "u-1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1", "u-2"}, removed)
}

func TestGlobalListList(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/global-list", r.URL.Path)
		assert.Equal(t, "exclusion", r.URL.Query().Get("kind"))
		json.NewEncoder(w).Encode(GlobalListPage{
			Entries: []*annotation.GlobalListEntry{{ID: 9, Kind: annotation.ManualExclusion}},
			Total:   1,
		})
	}
	c := newTestClient(t, handler)

	page, err := c.GlobalList().List(context.Background(), "exclusion", 1, 25)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, int64(9), page.Entries[0].ID)
}

func TestEnrichmentAnnotate(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/enrichment/annotate", r.URL.Path)

		var req AnnotateTableRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "enr1", req.FileHashID)

		json.NewEncoder(w).Encode(AnnotateTableResult{Text: "gyrA recA"})
	}
	c := newTestClient(t, handler)

	result, err := c.Enrichment().Annotate(context.Background(), &AnnotateTableRequest{
		FileHashID: "enr1",
		Table:      &EnrichmentTable{Genes: []GeneRow{{Imported: "gyrA"}}},
		Organism:   annotation.SpecifiedOrganism{Synonym: "Escherichia coli", OrganismID: "562"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gyrA recA", result.Text)
}
