package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/annotator/bioc"
	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/domain/document"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// stubPipeline returns one canned batch result per requested file.
type stubPipeline struct {
	lastBatch *pipeline.BatchInput
	results   []pipeline.BatchResult
}

func (s *stubPipeline) Annotate(ctx context.Context, input *pipeline.AnnotateInput) (*pipeline.AnnotateResult, error) {
	return &pipeline.AnnotateResult{}, nil
}

func (s *stubPipeline) AnnotateBatch(ctx context.Context, input *pipeline.BatchInput) []pipeline.BatchResult {
	s.lastBatch = input
	return s.results
}

// stubFileRepo serves files from a map keyed by hash id.
type stubFileRepo struct {
	files    map[string]*document.File
	versions []*document.AnnotationsVersion
}

func (s *stubFileRepo) ByHashID(ctx context.Context, hashID string) (*document.File, error) {
	f, ok := s.files[hashID]
	if !ok {
		return nil, errors.NotFound("file " + hashID + " not found")
	}
	return f, nil
}

func (s *stubFileRepo) ByHashIDs(ctx context.Context, hashIDs []string) (map[string]*document.File, error) {
	return s.files, nil
}

func (s *stubFileRepo) SaveAnnotations(ctx context.Context, f *document.File) error { return nil }
func (s *stubFileRepo) SaveManualLists(ctx context.Context, f *document.File) error { return nil }
func (s *stubFileRepo) SaveVersion(ctx context.Context, v *document.AnnotationsVersion) error {
	return nil
}

func (s *stubFileRepo) Versions(ctx context.Context, fileID int64, limit int) ([]*document.AnnotationsVersion, error) {
	return s.versions, nil
}

func TestAnnotateOneNotFound(t *testing.T) {
	p := &stubPipeline{results: []pipeline.BatchResult{
		{FileHashID: "missing", Outcome: pipeline.OutcomeNotFound},
	}}
	h := NewAnnotationHandler(p, nil, nil, logging.NewNopLogger())

	w := routeRequest(http.MethodPost, "/files/{hashID}/annotate", "/files/missing/annotate",
		h.AnnotateOne, `{}`, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnnotateOneSucceeds(t *testing.T) {
	p := &stubPipeline{results: []pipeline.BatchResult{
		{FileHashID: "abc123", Outcome: pipeline.OutcomeAnnotated, Annotations: 3},
	}}
	h := NewAnnotationHandler(p, nil, nil, logging.NewNopLogger())

	body := `{"organism":{"synonym":"Escherichia coli","organism_id":"562","category":"BACTERIA"}}`
	w := routeRequest(http.MethodPost, "/files/{hashID}/annotate", "/files/abc123/annotate",
		h.AnnotateOne, body, map[string]string{"X-User-Id": "user-3"})

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, p.lastBatch)
	assert.Equal(t, []string{"abc123"}, p.lastBatch.FileHashIDs)
	assert.Equal(t, document.CauseUserReannotation, p.lastBatch.Cause)
	assert.Equal(t, "562", p.lastBatch.Organism.OrganismID)

	var result pipeline.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Annotations)
}

func TestGetMergedAnnotations(t *testing.T) {
	svc := &fakeManualService{created: []*annotation.Annotation{{UUID: "u-1", Keyword: "gyrA"}}}
	h := NewAnnotationHandler(&stubPipeline{}, svc, nil, logging.NewNopLogger())

	w := routeRequest(http.MethodGet, "/files/{hashID}/annotations", "/files/abc123/annotations",
		h.Get, "", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Annotations []*annotation.Annotation `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Annotations, 1)
	assert.Equal(t, "gyrA", resp.Annotations[0].Keyword)
}

func TestGetCollectionNeverAnnotated(t *testing.T) {
	repo := &stubFileRepo{files: map[string]*document.File{
		"abc123": {ID: 1, HashID: "abc123"},
	}}
	h := NewAnnotationHandler(&stubPipeline{}, nil, repo, logging.NewNopLogger())

	w := routeRequest(http.MethodGet, "/files/{hashID}/annotations/collection",
		"/files/abc123/annotations/collection", h.GetCollection, "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCollection(t *testing.T) {
	repo := &stubFileRepo{files: map[string]*document.File{
		"abc123": {ID: 1, HashID: "abc123", Annotations: &bioc.Collection{Source: "lifelike"}},
	}}
	h := NewAnnotationHandler(&stubPipeline{}, nil, repo, logging.NewNopLogger())

	w := routeRequest(http.MethodGet, "/files/{hashID}/annotations/collection",
		"/files/abc123/annotations/collection", h.GetCollection, "", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var coll bioc.Collection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &coll))
	assert.Equal(t, "lifelike", coll.Source)
}

func TestVersions(t *testing.T) {
	repo := &stubFileRepo{
		files: map[string]*document.File{"abc123": {ID: 7, HashID: "abc123"}},
		versions: []*document.AnnotationsVersion{
			{ID: "v-2", FileID: 7, Cause: document.CauseUser},
			{ID: "v-1", FileID: 7, Cause: document.CauseSystemReannotation},
		},
	}
	h := NewAnnotationHandler(&stubPipeline{}, nil, repo, logging.NewNopLogger())

	w := routeRequest(http.MethodGet, "/files/{hashID}/versions", "/files/abc123/versions",
		h.Versions, "", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Versions []*document.AnnotationsVersion `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Versions, 2)
	assert.Equal(t, "v-2", resp.Versions[0].ID)
}

func TestVersionsUnknownFile(t *testing.T) {
	repo := &stubFileRepo{files: map[string]*document.File{}}
	h := NewAnnotationHandler(&stubPipeline{}, nil, repo, logging.NewNopLogger())

	w := routeRequest(http.MethodGet, "/files/{hashID}/versions", "/files/nope/versions",
		h.Versions, "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
