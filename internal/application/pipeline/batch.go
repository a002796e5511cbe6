package pipeline

import (
	"context"
	"time"

	"github.com/biosustain/lifelike-annotator/internal/domain/document"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/prometheus"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// Outcome is the per-file result of a batch run.
type Outcome string

const (
	// OutcomeAnnotated means the pipeline produced a fresh collection.
	OutcomeAnnotated Outcome = "Annotated"
	// OutcomeNotAnnotated means the pipeline failed for this file.
	OutcomeNotAnnotated Outcome = "Not annotated"
	// OutcomeNotFound means the hash id matched no stored file.
	OutcomeNotFound Outcome = "Not found"
)

// BatchInput names the files to (re)annotate and who asked for it.
type BatchInput struct {
	FileHashIDs []string
	Cause       document.ChangeCause
	UserID      string

	// Organism overrides each file's stored fallback organism when set.
	Organism annotation.SpecifiedOrganism

	Configs Configs
}

// BatchResult is one file's outcome.
type BatchResult struct {
	FileHashID  string  `json:"file_hash_id"`
	Outcome     Outcome `json:"outcome"`
	Error       string  `json:"error,omitempty"`
	Annotations int     `json:"annotations,omitempty"`
}

// AnnotateBatch re-annotates each named file, archiving the previous manual
// lists first and persisting the new collection.  One file's failure never
// aborts the rest; the caller gets one result per requested hash id, in
// request order.
func (s *serviceImpl) AnnotateBatch(ctx context.Context, input *BatchInput) []BatchResult {
	start := time.Now()
	results := make([]BatchResult, 0, len(input.FileHashIDs))

	byHash := map[string]*document.File{}
	if s.files != nil {
		loaded, err := s.files.ByHashIDs(ctx, input.FileHashIDs)
		if err != nil {
			s.logger.Error("batch file load failed", logging.Err(err))
		} else {
			byHash = loaded
		}
	}

	for _, hashID := range input.FileHashIDs {
		file, ok := byHash[hashID]
		if !ok {
			results = append(results, BatchResult{FileHashID: hashID, Outcome: OutcomeNotFound})
			s.countBatchFile(OutcomeNotFound)
			continue
		}
		result := s.annotateOne(ctx, file, input)
		results = append(results, result)
		s.countBatchFile(result.Outcome)
	}

	if s.metrics != nil {
		s.metrics.BatchDuration.WithLabelValues().Observe(time.Since(start).Seconds())
	}
	return results
}

func (s *serviceImpl) annotateOne(ctx context.Context, file *document.File, input *BatchInput) BatchResult {
	result := BatchResult{FileHashID: file.HashID}

	chars, cropBoxes, err := s.source.DocumentChars(ctx, file.HashID)
	if err != nil {
		s.logger.Error("loading document chars failed",
			logging.String("file", file.HashID), logging.Err(err))
		result.Outcome = OutcomeNotAnnotated
		result.Error = err.Error()
		return result
	}

	organism := file.Organism
	if input.Organism.IsSet() {
		organism = input.Organism
	}

	annotated, err := s.Annotate(ctx, &AnnotateInput{
		FileHashID:          file.HashID,
		Filename:            file.Filename,
		Chars:               chars,
		CropBoxes:           cropBoxes,
		CustomAnnotations:   file.CustomAnnotations,
		ExcludedAnnotations: file.ExcludedAnnotations,
		Organism:            organism,
		Configs:             input.Configs,
	})
	if err != nil {
		s.logger.Error("annotation failed",
			logging.String("file", file.HashID), logging.Err(err))
		result.Outcome = OutcomeNotAnnotated
		result.Error = err.Error()
		return result
	}

	cause := input.Cause
	if cause == "" {
		cause = document.CauseSystemReannotation
	}
	version := document.NewVersion(file, cause, input.UserID)
	if err := s.files.SaveVersion(ctx, version); err != nil {
		result.Outcome = OutcomeNotAnnotated
		result.Error = err.Error()
		return result
	}

	file.Annotations = annotated.Collection
	file.AnnotationsDate = time.Now().UTC()
	if err := s.files.SaveAnnotations(ctx, file); err != nil {
		result.Outcome = OutcomeNotAnnotated
		result.Error = err.Error()
		return result
	}

	result.Outcome = OutcomeAnnotated
	result.Annotations = len(annotated.Annotations)
	return result
}

func (s *serviceImpl) countBatchFile(outcome Outcome) {
	if s.metrics != nil {
		s.metrics.BatchFilesTotal.WithLabelValues(string(outcome)).Inc()
	}
}
