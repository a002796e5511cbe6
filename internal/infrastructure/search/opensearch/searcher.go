package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

const (
	defaultSearchPageSize = 20
	maxSearchPageSize     = 100
)

// AnnotationQuery filters the annotation index. Text matches keyword and
// primary name; the remaining fields are exact filters. Zero values are
// ignored.
type AnnotationQuery struct {
	Text        string
	EntityTypes []string
	FileHashID  string
	EntityID    string
	CustomOnly  bool
	Page        int
	PageSize    int
}

// AnnotationHit is one indexed annotation matched by a query.
type AnnotationHit struct {
	FileHashID  string  `json:"file_hash_id"`
	Keyword     string  `json:"keyword"`
	PrimaryName string  `json:"primary_name"`
	EntityType  string  `json:"entity_type"`
	EntityID    string  `json:"entity_id"`
	IDType      string  `json:"id_type"`
	Page        int     `json:"page"`
	IsCustom    bool    `json:"is_custom"`
	Score       float64 `json:"-"`
}

// AnnotationSearchResult is one page of hits plus the per-type counts over
// the whole match set.
type AnnotationSearchResult struct {
	Total      int64
	Took       time.Duration
	Hits       []AnnotationHit
	TypeCounts map[string]int64
}

// AnnotationSearcher answers entity queries against the annotation index the
// worker maintains: which documents mention this entity, and which entities
// match this term.
type AnnotationSearcher struct {
	client *Client
	index  string
	logger logging.Logger
}

func NewAnnotationSearcher(client *Client, index string, log logging.Logger) *AnnotationSearcher {
	if index == "" {
		index = DefaultAnnotationIndex
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AnnotationSearcher{client: client, index: index, logger: log.Named("annotation_search")}
}

// Search runs one query and returns the requested page of hits.
func (s *AnnotationSearcher) Search(ctx context.Context, q AnnotationQuery) (*AnnotationSearchResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultSearchPageSize
	}
	if q.PageSize > maxSearchPageSize {
		q.PageSize = maxSearchPageSize
	}

	body, err := json.Marshal(s.buildDSL(q))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal search query")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}

	start := time.Now()
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrCodeTimeout, "annotation search timed out")
		}
		return nil, errors.Wrap(err, errors.CodeSearchError, "annotation search failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, errors.Newf(errors.CodeSearchError, "annotation search returned %s", resp.Status())
	}

	result, err := parseAnnotationSearchResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	result.Took = time.Since(start)

	s.logger.Debug("annotation search executed",
		logging.String("text", q.Text),
		logging.Int64("total", result.Total),
		logging.Duration("took", result.Took))
	return result, nil
}

// FileCount returns how many distinct files carry an annotation for the
// given entity id.
func (s *AnnotationSearcher) FileCount(ctx context.Context, entityID string) (int64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"entity_id": entityID},
		},
		"size": 0,
		"aggs": map[string]interface{}{
			"files": map[string]interface{}{
				"cardinality": map[string]interface{}{"field": "file_hash_id"},
			},
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal file count query")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeSearchError, "file count query failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return 0, errors.Newf(errors.CodeSearchError, "file count query returned %s", resp.Status())
	}

	var parsed struct {
		Aggregations struct {
			Files struct {
				Value int64 `json:"value"`
			} `json:"files"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode file count response")
	}
	return parsed.Aggregations.Files.Value, nil
}

func (s *AnnotationSearcher) buildDSL(q AnnotationQuery) map[string]interface{} {
	var must []interface{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"keyword^2", "primary_name"},
			},
		})
	}

	var filter []interface{}
	if len(q.EntityTypes) > 0 {
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"entity_type": q.EntityTypes},
		})
	}
	if q.FileHashID != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"file_hash_id": q.FileHashID},
		})
	}
	if q.EntityID != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"entity_id": q.EntityID},
		})
	}
	if q.CustomOnly {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"is_custom": true},
		})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	var query map[string]interface{}
	if len(boolQuery) == 0 {
		query = map[string]interface{}{"match_all": map[string]interface{}{}}
	} else {
		query = map[string]interface{}{"bool": boolQuery}
	}

	return map[string]interface{}{
		"query": query,
		"from":  (q.Page - 1) * q.PageSize,
		"size":  q.PageSize,
		"aggs": map[string]interface{}{
			"entity_types": map[string]interface{}{
				"terms": map[string]interface{}{"field": "entity_type", "size": 20},
			},
		},
	}
}

func parseAnnotationSearchResponse(body io.Reader) (*AnnotationSearchResult, error) {
	var raw struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations struct {
			EntityTypes struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"entity_types"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}

	result := &AnnotationSearchResult{
		Total:      raw.Hits.Total.Value,
		Hits:       make([]AnnotationHit, 0, len(raw.Hits.Hits)),
		TypeCounts: make(map[string]int64, len(raw.Aggregations.EntityTypes.Buckets)),
	}
	for _, h := range raw.Hits.Hits {
		var hit AnnotationHit
		if err := json.Unmarshal(h.Source, &hit); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search hit")
		}
		hit.Score = h.Score
		result.Hits = append(result.Hits, hit)
	}
	for _, b := range raw.Aggregations.EntityTypes.Buckets {
		result.TypeCounts[b.Key] = b.DocCount
	}
	return result, nil
}
