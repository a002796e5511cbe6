package handlers

import (
	"net/http"

	"github.com/biosustain/lifelike-annotator/internal/application/enrichment"
	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// EnrichmentHandler annotates gene enrichment tables.
type EnrichmentHandler struct {
	enrichment enrichment.Service
	logger     logging.Logger
}

func NewEnrichmentHandler(svc enrichment.Service, log logging.Logger) *EnrichmentHandler {
	return &EnrichmentHandler{enrichment: svc, logger: log.Named("enrichment_handler")}
}

// AnnotateEnrichmentRequest is the body for POST /enrichment/annotate.
type AnnotateEnrichmentRequest struct {
	FileHashID string                                    `json:"file_hash_id"`
	Table      *enrichment.Table                         `json:"table"`
	Organism   annotation.SpecifiedOrganism              `json:"organism"`
	Methods    map[annotation.EntityType]pipeline.Method `json:"annotation_methods,omitempty"`
}

// Annotate runs the pipeline over the combined cell text of an enrichment
// table and returns per-cell annotations with cell-local offsets.
func (h *EnrichmentHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req AnnotateEnrichmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}

	result, err := h.enrichment.Annotate(r.Context(), &enrichment.AnnotateInput{
		FileHashID: req.FileHashID,
		Table:      req.Table,
		Organism:   req.Organism,
		Configs:    pipeline.Configs{AnnotationMethods: req.Methods},
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
