package handlers

import (
	"net/http"
	"strings"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/search/opensearch"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// SearchHandler serves entity queries against the annotation index.
type SearchHandler struct {
	searcher *opensearch.AnnotationSearcher
	logger   logging.Logger
}

func NewSearchHandler(searcher *opensearch.AnnotationSearcher, log logging.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: log.Named("search_handler")}
}

// Search finds annotations across all indexed files.
// GET /annotations/search?q=glucose&types=Chemical,Gene&file=abc&entity_id=CHEBI:17234
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	query := opensearch.AnnotationQuery{
		Text:       params.Get("q"),
		FileHashID: params.Get("file"),
		EntityID:   params.Get("entity_id"),
		CustomOnly: params.Get("custom_only") == "true",
	}
	query.Page, query.PageSize = parsePagination(r)

	if raw := params.Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			entityType := annotation.EntityType(strings.TrimSpace(t))
			if !entityType.IsValid() {
				writeAppError(w, errors.Validation("unknown entity type "+string(entityType)))
				return
			}
			query.EntityTypes = append(query.EntityTypes, string(entityType))
		}
	}
	if query.Text == "" && query.FileHashID == "" && query.EntityID == "" {
		writeAppError(w, errors.Validation("one of q, file, or entity_id is required"))
		return
	}

	result, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":       result.Total,
		"hits":        result.Hits,
		"type_counts": result.TypeCounts,
	})
}
