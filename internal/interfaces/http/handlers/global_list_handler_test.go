package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// fakeGlobalListRepo records calls and returns canned values.
type fakeGlobalListRepo struct {
	entries    []*annotation.GlobalListEntry
	total      int64
	lastKind   annotation.ManualKind
	lastOffset int
	lastLimit  int
	saved      *annotation.GlobalListEntry
	deletedIDs []int64
	err        error
}

func (f *fakeGlobalListRepo) Save(ctx context.Context, entry *annotation.GlobalListEntry) error {
	entry.ID = 42
	f.saved = entry
	return f.err
}

func (f *fakeGlobalListRepo) Inclusions(ctx context.Context) ([]*annotation.Annotation, error) {
	return nil, f.err
}

func (f *fakeGlobalListRepo) Exclusions(ctx context.Context) ([]*annotation.ExclusionRule, error) {
	return nil, f.err
}

func (f *fakeGlobalListRepo) List(ctx context.Context, kind annotation.ManualKind, offset, limit int) ([]*annotation.GlobalListEntry, int64, error) {
	f.lastKind, f.lastOffset, f.lastLimit = kind, offset, limit
	return f.entries, f.total, f.err
}

func (f *fakeGlobalListRepo) Delete(ctx context.Context, ids []int64) error {
	f.deletedIDs = ids
	return f.err
}

func TestGlobalListList(t *testing.T) {
	repo := &fakeGlobalListRepo{
		entries: []*annotation.GlobalListEntry{{ID: 1, Kind: annotation.ManualInclusion}},
		total:   11,
	}
	h := NewGlobalListHandler(repo, logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/global-list?kind=inclusion&page=2&page_size=5", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, annotation.ManualInclusion, repo.lastKind)
	assert.Equal(t, 5, repo.lastOffset)
	assert.Equal(t, 5, repo.lastLimit)

	var resp struct {
		Entries []*annotation.GlobalListEntry `json:"entries"`
		Total   int64                         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 1)
	assert.Equal(t, int64(11), resp.Total)
}

func TestGlobalListListDefaultsToInclusion(t *testing.T) {
	repo := &fakeGlobalListRepo{}
	h := NewGlobalListHandler(repo, logging.NewNopLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/global-list", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, annotation.ManualInclusion, repo.lastKind)
}

func TestGlobalListListRejectsUnknownKind(t *testing.T) {
	repo := &fakeGlobalListRepo{}
	h := NewGlobalListHandler(repo, logging.NewNopLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/global-list?kind=bogus", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGlobalListCreate(t *testing.T) {
	repo := &fakeGlobalListRepo{}
	h := NewGlobalListHandler(repo, logging.NewNopLogger())

	body := `{"kind":"exclusion","file_id":"abc123","exclusion":{"type":"Gene","text":"gyrA"}}`
	req := httptest.NewRequest(http.MethodPost, "/global-list", strings.NewReader(body))
	req.Header.Set("X-User-Id", "curator-1")
	w := httptest.NewRecorder()
	h.Create(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, repo.saved)
	assert.Equal(t, annotation.ManualExclusion, repo.saved.Kind)
	assert.Equal(t, "abc123", repo.saved.FileID)
	assert.Equal(t, "curator-1", repo.saved.UserID)
	require.NotNil(t, repo.saved.Exclusion)
	assert.Equal(t, "gyrA", repo.saved.Exclusion.Text)

	var resp annotation.GlobalListEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.ID)
}

func TestGlobalListDelete(t *testing.T) {
	repo := &fakeGlobalListRepo{}
	h := NewGlobalListHandler(repo, logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodDelete, "/global-list", strings.NewReader(`{"ids":[3,5]}`))
	w := httptest.NewRecorder()
	h.Delete(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{3, 5}, repo.deletedIDs)
}

func TestGlobalListDeleteRequiresIDs(t *testing.T) {
	repo := &fakeGlobalListRepo{}
	h := NewGlobalListHandler(repo, logging.NewNopLogger())

	req := httptest.NewRequest(http.MethodDelete, "/global-list", strings.NewReader(`{"ids":[]}`))
	w := httptest.NewRecorder()
	h.Delete(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Nil(t, repo.deletedIDs)
}
