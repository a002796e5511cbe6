package opensearch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSL_MatchAllWhenEmpty(t *testing.T) {
	s := &AnnotationSearcher{}
	dsl := s.buildDSL(AnnotationQuery{Page: 1, PageSize: 10})

	query := dsl["query"].(map[string]interface{})
	assert.Contains(t, query, "match_all")
	assert.Equal(t, 0, dsl["from"])
	assert.Equal(t, 10, dsl["size"])
}

func TestBuildDSL_TextAndFilters(t *testing.T) {
	s := &AnnotationSearcher{}
	dsl := s.buildDSL(AnnotationQuery{
		Text:        "glucose",
		EntityTypes: []string{"Chemical", "Gene"},
		FileHashID:  "abc123",
		Page:        3,
		PageSize:    20,
	})

	boolQuery := dsl["query"].(map[string]interface{})["bool"].(map[string]interface{})
	require.Len(t, boolQuery["must"], 1)
	require.Len(t, boolQuery["filter"], 2)
	assert.Equal(t, 40, dsl["from"])
}

func TestBuildDSL_CustomOnlyFilter(t *testing.T) {
	s := &AnnotationSearcher{}
	dsl := s.buildDSL(AnnotationQuery{CustomOnly: true, Page: 1, PageSize: 10})

	boolQuery := dsl["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filters := boolQuery["filter"].([]interface{})
	require.Len(t, filters, 1)
	term := filters[0].(map[string]interface{})["term"].(map[string]interface{})
	assert.Equal(t, true, term["is_custom"])
}

func TestParseAnnotationSearchResponse(t *testing.T) {
	body := `{
		"hits": {
			"total": {"value": 2},
			"hits": [
				{"_score": 3.1, "_source": {"file_hash_id": "abc", "keyword": "glucose", "entity_type": "Chemical", "entity_id": "CHEBI:17234"}},
				{"_score": 1.2, "_source": {"file_hash_id": "def", "keyword": "gyrA", "entity_type": "Gene", "entity_id": "947"}}
			]
		},
		"aggregations": {
			"entity_types": {
				"buckets": [
					{"key": "Chemical", "doc_count": 1},
					{"key": "Gene", "doc_count": 1}
				]
			}
		}
	}`

	result, err := parseAnnotationSearchResponse(strings.NewReader(body))
	require.NoError(t, err)

	assert.EqualValues(t, 2, result.Total)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "glucose", result.Hits[0].Keyword)
	assert.Equal(t, 3.1, result.Hits[0].Score)
	assert.Equal(t, "def", result.Hits[1].FileHashID)
	assert.EqualValues(t, 1, result.TypeCounts["Chemical"])
	assert.EqualValues(t, 1, result.TypeCounts["Gene"])
}

func TestParseAnnotationSearchResponse_Malformed(t *testing.T) {
	_, err := parseAnnotationSearchResponse(strings.NewReader("{not json"))
	require.Error(t, err)
}
