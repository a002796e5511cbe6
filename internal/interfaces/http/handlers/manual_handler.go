package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/biosustain/lifelike-annotator/internal/application/manual"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// ManualHandler serves a file's manual annotation lists: custom inclusions
// and exclusion rules.
type ManualHandler struct {
	manual manual.Service
	logger logging.Logger
}

func NewManualHandler(m manual.Service, log logging.Logger) *ManualHandler {
	return &ManualHandler{manual: m, logger: log.Named("manual_handler")}
}

// AddInclusionRequest is the body for POST /files/{hashID}/annotations/custom.
type AddInclusionRequest struct {
	Annotation  *annotation.Annotation `json:"annotation"`
	AnnotateAll bool                   `json:"annotate_all,omitempty"`
}

func (h *ManualHandler) AddInclusion(w http.ResponseWriter, r *http.Request) {
	hashID := chi.URLParam(r, "hashID")

	var req AddInclusionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Annotation == nil {
		writeAppError(w, errors.New(errors.ErrCodeAnnotationPayloadInvalid, "annotation is required"))
		return
	}

	created, err := h.manual.AddInclusion(r.Context(), &manual.AddInclusionInput{
		FileHashID:  hashID,
		Annotation:  req.Annotation,
		AnnotateAll: req.AnnotateAll,
		UserID:      userID(r),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"annotations": created})
}

func (h *ManualHandler) RemoveInclusion(w http.ResponseWriter, r *http.Request) {
	hashID := chi.URLParam(r, "hashID")
	uuid := chi.URLParam(r, "uuid")
	removeAll := r.URL.Query().Get("remove_all") == "true"

	removed, err := h.manual.RemoveInclusion(r.Context(), hashID, uuid, removeAll, userID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// AddExclusionRequest is the body for POST /files/{hashID}/annotations/exclusions.
type AddExclusionRequest struct {
	Rule *annotation.ExclusionRule `json:"rule"`
}

func (h *ManualHandler) AddExclusion(w http.ResponseWriter, r *http.Request) {
	hashID := chi.URLParam(r, "hashID")

	var req AddExclusionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Rule == nil {
		writeAppError(w, errors.New(errors.ErrCodeAnnotationPayloadInvalid, "rule is required"))
		return
	}

	if err := h.manual.AddExclusion(r.Context(), hashID, req.Rule, userID(r)); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

// RemoveExclusionRequest identifies the rule to drop by type and term.
type RemoveExclusionRequest struct {
	EntityType annotation.EntityType `json:"entity_type"`
	Term       string                `json:"term"`
}

func (h *ManualHandler) RemoveExclusion(w http.ResponseWriter, r *http.Request) {
	hashID := chi.URLParam(r, "hashID")

	var req RemoveExclusionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.manual.RemoveExclusion(r.Context(), hashID, req.EntityType, req.Term, userID(r)); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
