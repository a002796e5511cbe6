package opensearch

import (
	"context"
	"time"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
	"github.com/biosustain/lifelike-annotator/pkg/types/common"
)

// DefaultAnnotationIndex is the index annotation documents go to unless
// configured otherwise.
const DefaultAnnotationIndex = "lifelike-annotations"

// annotationDoc is the indexed form of one annotation, flattened for search.
type annotationDoc struct {
	FileHashID  string `json:"file_hash_id"`
	Keyword     string `json:"keyword"`
	PrimaryName string `json:"primary_name"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	IDType      string `json:"id_type"`
	Page        int    `json:"page"`
	LoOffset    int    `json:"lo_offset"`
	HiOffset    int    `json:"hi_offset"`
	IsCustom    bool   `json:"is_custom"`
	OrganismID  string `json:"organism_id,omitempty"`
	AnnotatedAt string `json:"annotated_at"`
}

// AnnotationIndexer publishes a file's annotations to the search index so
// users can find documents by the entities recognized in them.
type AnnotationIndexer struct {
	indexer *Indexer
	index   string
	logger  logging.Logger
}

func NewAnnotationIndexer(indexer *Indexer, index string, log logging.Logger) *AnnotationIndexer {
	if index == "" {
		index = DefaultAnnotationIndex
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AnnotationIndexer{indexer: indexer, index: index, logger: log.Named("annotation_index")}
}

// EnsureIndex creates the annotation index if it does not exist yet.
func (a *AnnotationIndexer) EnsureIndex(ctx context.Context) error {
	exists, err := a.indexer.IndexExists(ctx, a.index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return a.indexer.CreateIndex(ctx, a.index, AnnotationIndexMapping())
}

// IndexFileAnnotations replaces the indexed annotations of one file. Stale
// entries from a previous annotation run are deleted first so re-annotation
// does not leave orphans behind.
func (a *AnnotationIndexer) IndexFileAnnotations(ctx context.Context, fileHashID string, annotations []*annotation.Annotation) (*common.BulkResult, error) {
	if err := a.indexer.DeleteByQuery(ctx, a.index, map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"file_hash_id": fileHashID},
		},
	}); err != nil {
		a.logger.Warn("failed to purge stale annotation docs",
			logging.String("file", fileHashID), logging.Err(err))
	}

	if len(annotations) == 0 {
		return &common.BulkResult{}, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	docs := make(map[string]interface{}, len(annotations))
	for _, anno := range annotations {
		docs[fileHashID+":"+anno.UUID] = annotationDoc{
			FileHashID:  fileHashID,
			Keyword:     anno.Keyword,
			PrimaryName: anno.PrimaryName,
			EntityType:  string(anno.Meta.Type),
			EntityID:    anno.Meta.ID,
			IDType:      string(anno.Meta.IDType),
			Page:        anno.PageNumber,
			LoOffset:    anno.LoLocationOffset,
			HiOffset:    anno.HiLocationOffset,
			IsCustom:    anno.Meta.IsCustom,
			AnnotatedAt: now,
		}
	}

	result, err := a.indexer.BulkIndex(ctx, a.index, docs)
	if err != nil {
		return result, err
	}

	a.logger.Info("indexed file annotations",
		logging.String("file", fileHashID),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed))
	return result, nil
}
