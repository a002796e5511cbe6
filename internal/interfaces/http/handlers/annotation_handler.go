package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/biosustain/lifelike-annotator/internal/application/manual"
	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/domain/document"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// AnnotationHandler serves annotation runs and stored annotation reads for
// individual files.
type AnnotationHandler struct {
	pipeline pipeline.Service
	manual   manual.Service
	files    document.Repository
	logger   logging.Logger
}

func NewAnnotationHandler(p pipeline.Service, m manual.Service, files document.Repository, log logging.Logger) *AnnotationHandler {
	return &AnnotationHandler{pipeline: p, manual: m, files: files, logger: log.Named("annotation_handler")}
}

// AnnotateRequest is the body for POST /files/annotate.
type AnnotateRequest struct {
	FileHashIDs []string                                 `json:"file_hash_ids"`
	Organism    annotation.SpecifiedOrganism             `json:"organism,omitempty"`
	Methods     map[annotation.EntityType]pipeline.Method `json:"annotation_methods,omitempty"`
}

// Annotate runs the pipeline over the named files and persists each new
// collection. Partial failure is reported per file, not as a request error.
func (h *AnnotationHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req AnnotateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if len(req.FileHashIDs) == 0 {
		writeAppError(w, errors.New(errors.ErrCodeAnnotationPayloadInvalid, "file_hash_ids is required"))
		return
	}

	results := h.pipeline.AnnotateBatch(r.Context(), &pipeline.BatchInput{
		FileHashIDs: req.FileHashIDs,
		Cause:       document.CauseUserReannotation,
		UserID:      userID(r),
		Organism:    req.Organism,
		Configs:     pipeline.Configs{AnnotationMethods: req.Methods},
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// AnnotateOne runs the pipeline over a single file addressed by path.
func (h *AnnotationHandler) AnnotateOne(w http.ResponseWriter, r *http.Request) {
	hashID := chi.URLParam(r, "hashID")

	var req AnnotateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	results := h.pipeline.AnnotateBatch(r.Context(), &pipeline.BatchInput{
		FileHashIDs: []string{hashID},
		Cause:       document.CauseUserReannotation,
		UserID:      userID(r),
		Organism:    req.Organism,
		Configs:     pipeline.Configs{AnnotationMethods: req.Methods},
	})

	result := results[0]
	if result.Outcome == pipeline.OutcomeNotFound {
		writeAppError(w, errors.NotFound("file "+hashID+" not found"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Get returns the merged annotation list of one file: automatic minus
// excluded plus custom.
func (h *AnnotationHandler) Get(w http.ResponseWriter, r *http.Request) {
	hashID := chi.URLParam(r, "hashID")

	annotations, err := h.manual.FileAnnotations(r.Context(), hashID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"annotations": annotations})
}

// GetCollection returns the stored BioC collection of one file.
func (h *AnnotationHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	hashID := chi.URLParam(r, "hashID")

	file, err := h.files.ByHashID(r.Context(), hashID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if file.Annotations == nil {
		writeAppError(w, errors.NotFound("file "+hashID+" was never annotated"))
		return
	}
	writeJSON(w, http.StatusOK, file.Annotations)
}

// Versions lists a file's annotation version history, newest first.
func (h *AnnotationHandler) Versions(w http.ResponseWriter, r *http.Request) {
	hashID := chi.URLParam(r, "hashID")
	_, pageSize := parsePagination(r)

	file, err := h.files.ByHashID(r.Context(), hashID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	versions, err := h.files.Versions(r.Context(), file.ID, pageSize)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}
