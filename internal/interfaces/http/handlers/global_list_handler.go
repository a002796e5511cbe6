package handlers

import (
	"net/http"

	"github.com/biosustain/lifelike-annotator/internal/domain/globallist"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// GlobalListHandler serves the instance-wide inclusion and exclusion lists.
type GlobalListHandler struct {
	repo   globallist.Repository
	logger logging.Logger
}

func NewGlobalListHandler(repo globallist.Repository, log logging.Logger) *GlobalListHandler {
	return &GlobalListHandler{repo: repo, logger: log.Named("global_list_handler")}
}

// List pages through global entries of one kind, newest first.
// GET /annotations/global-list?kind=inclusion&page=1&page_size=50
func (h *GlobalListHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := annotation.ManualKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = annotation.ManualInclusion
	}
	if kind != annotation.ManualInclusion && kind != annotation.ManualExclusion {
		writeAppError(w, errors.Validation("kind must be inclusion or exclusion"))
		return
	}

	page, pageSize := parsePagination(r)
	entries, total, err := h.repo.List(r.Context(), kind, (page-1)*pageSize, pageSize)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
	})
}

// CreateGlobalEntryRequest is the body for POST /annotations/global-list.
type CreateGlobalEntryRequest struct {
	Kind      annotation.ManualKind     `json:"kind"`
	FileID    string                    `json:"file_id,omitempty"`
	Inclusion *annotation.Annotation    `json:"inclusion,omitempty"`
	Exclusion *annotation.ExclusionRule `json:"exclusion,omitempty"`
}

func (h *GlobalListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateGlobalEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	entry := &annotation.GlobalListEntry{
		Kind:      req.Kind,
		FileID:    req.FileID,
		UserID:    userID(r),
		Inclusion: req.Inclusion,
		Exclusion: req.Exclusion,
	}
	if err := h.repo.Save(r.Context(), entry); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// DeleteGlobalEntriesRequest names the entries to remove.
type DeleteGlobalEntriesRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *GlobalListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteGlobalEntriesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if len(req.IDs) == 0 {
		writeAppError(w, errors.Validation("ids is required"))
		return
	}

	if err := h.repo.Delete(r.Context(), req.IDs); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": len(req.IDs)})
}
