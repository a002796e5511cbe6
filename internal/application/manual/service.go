// Package manual is the application-level service for user-managed
// annotations: adding and removing custom inclusions and exclusion rules on a
// file, promoting them to the global lists, and producing the merged
// annotation view the viewer renders.  List semantics live in
// internal/annotator/merge; this package adds persistence, versioning, and
// the annotate-all-occurrences re-scan.
package manual

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/biosustain/lifelike-annotator/internal/annotator/merge"
	"github.com/biosustain/lifelike-annotator/internal/annotator/recognition"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/domain/document"
	"github.com/biosustain/lifelike-annotator/internal/domain/globallist"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// AddInclusionInput is one custom annotation to add.
type AddInclusionInput struct {
	FileHashID string
	Annotation *annotation.Annotation

	// AnnotateAll re-scans the document and creates one inclusion per
	// occurrence of the term instead of only the selected one.
	AnnotateAll bool

	UserID string
}

// Service manages a file's manual annotation lists.
type Service interface {
	// AddInclusion stores one or, with AnnotateAll, many custom
	// annotations and returns the created ones.
	AddInclusion(ctx context.Context, input *AddInclusionInput) ([]*annotation.Annotation, error)

	// RemoveInclusion deletes a custom annotation by uuid, optionally with
	// every other inclusion of the same term and type.  The removed uuids
	// come back; an unknown uuid removes nothing and is not an error.
	RemoveInclusion(ctx context.Context, fileHashID, annotationUUID string, removeAll bool, userID string) ([]string, error)

	// AddExclusion stores one exclusion rule.
	AddExclusion(ctx context.Context, fileHashID string, rule *annotation.ExclusionRule, userID string) error

	// RemoveExclusion deletes the rule matching the type and term.  A rule
	// that matches nothing is an error; the caller's view is stale.
	RemoveExclusion(ctx context.Context, fileHashID string, entityType annotation.EntityType, term, userID string) error

	// FileAnnotations returns the merged annotation list: automatic minus
	// excluded plus custom.
	FileAnnotations(ctx context.Context, fileHashID string) ([]*annotation.Annotation, error)
}

type serviceImpl struct {
	files     document.Repository
	global    globallist.Repository
	source    pipeline.DocumentSource
	geneNames recognition.GeneNameResolver
	tokenizer *tokenizer.Tokenizer
	logger    logging.Logger
}

// NewService creates the manual annotation service.  The global repository,
// document source, and gene-name resolver may be nil; promotion, annotate-all,
// and gene verification then degrade gracefully.
func NewService(
	files document.Repository,
	global globallist.Repository,
	source pipeline.DocumentSource,
	geneNames recognition.GeneNameResolver,
	logger logging.Logger,
) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		files:     files,
		global:    global,
		source:    source,
		geneNames: geneNames,
		tokenizer: tokenizer.New(logger),
		logger:    logger.Named("manual"),
	}
}

func (s *serviceImpl) AddInclusion(ctx context.Context, input *AddInclusionInput) ([]*annotation.Annotation, error) {
	anno := input.Annotation
	if anno == nil {
		return nil, errors.New(errors.ErrCodeAnnotationPayloadInvalid, "inclusion has no annotation")
	}
	if err := anno.Validate(); err != nil {
		return nil, err
	}

	file, err := s.files.ByHashID(ctx, input.FileHashID)
	if err != nil {
		return nil, err
	}

	term := anno.Meta.AllText
	if merge.AnnotationExists(term, anno.Meta.IsCaseInsensitive, anno.Rects, file.CustomAnnotations) {
		return nil, errors.Newf(errors.ErrCodeAnnotationDuplicate,
			"%q is already annotated at this position", term)
	}

	if anno.UUID == "" {
		anno.UUID = uuid.NewString()
	}
	anno.Meta.IsCustom = true
	anno.InclusionDate = time.Now().UTC()
	anno.UserID = input.UserID

	created := []*annotation.Annotation{anno}
	if input.AnnotateAll {
		created, err = s.annotateAll(ctx, file, anno)
		if err != nil {
			return nil, err
		}
	}

	version := document.NewVersion(file, document.CauseUser, input.UserID)
	if err := s.files.SaveVersion(ctx, version); err != nil {
		return nil, err
	}
	file.CustomAnnotations = append(file.CustomAnnotations, created...)
	if err := s.files.SaveManualLists(ctx, file); err != nil {
		return nil, err
	}

	if anno.Meta.IncludeGlobally {
		if err := s.promoteInclusion(ctx, file, anno, input.UserID); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// annotateAll validates the term against the manual-annotation rules, then
// re-scans the tokenized document for every occurrence.
func (s *serviceImpl) annotateAll(ctx context.Context, file *document.File, base *annotation.Annotation) ([]*annotation.Annotation, error) {
	if s.source == nil {
		return nil, errors.New(errors.ErrCodeTokenSourceFailed, "no document source configured")
	}
	term := base.Meta.AllText
	if err := merge.ValidateTerm(term, base.Meta.Type); err != nil {
		return nil, err
	}

	chars, cropBoxes, err := s.source.DocumentChars(ctx, file.HashID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTokenSourceFailed, "loading document chars")
	}
	tok := s.tokenizer.Tokenize(chars)

	if err := merge.CheckAbbreviation(term, tok.Abbreviations); err != nil {
		return nil, err
	}

	occurrences := merge.FindOccurrences(term, base.Meta.IsCaseInsensitive, tok, cropBoxes)
	if len(occurrences) == 0 {
		return nil, errors.Newf(errors.ErrCodeAnnotationFailed,
			"%q occurs nowhere in the document text", term)
	}
	created := merge.BuildInclusions(*base, occurrences, file.CustomAnnotations)
	if len(created) == 0 {
		return nil, errors.Newf(errors.ErrCodeAnnotationDuplicate,
			"every occurrence of %q is already annotated", term)
	}
	s.logger.Info("annotate-all expanded inclusion",
		logging.String("file", file.HashID),
		logging.String("term", term),
		logging.Int("occurrences", len(created)),
	)
	return created, nil
}

// promoteInclusion appends the inclusion to the global list.  Gene inclusions
// are checked against the knowledge graph first; a gene the graph does not
// know still saves, so a curator can fix the id later, but the mismatch is
// logged.
func (s *serviceImpl) promoteInclusion(ctx context.Context, file *document.File, anno *annotation.Annotation, userID string) error {
	if s.global == nil {
		return nil
	}
	if anno.Meta.Type == annotation.TypeGene && s.geneNames != nil {
		names, err := s.geneNames.GeneNames(ctx, []string{anno.Meta.ID})
		if err != nil {
			return err
		}
		if names[anno.Meta.ID] == "" {
			s.logger.Warn("global gene inclusion has no knowledge graph match",
				logging.String("gene_id", anno.Meta.ID),
				logging.String("term", anno.Meta.AllText),
			)
		}
	}
	return s.global.Save(ctx, &annotation.GlobalListEntry{
		Kind:      annotation.ManualInclusion,
		FileID:    file.HashID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Inclusion: anno,
	})
}

func (s *serviceImpl) RemoveInclusion(ctx context.Context, fileHashID, annotationUUID string, removeAll bool, userID string) ([]string, error) {
	file, err := s.files.ByHashID(ctx, fileHashID)
	if err != nil {
		return nil, err
	}

	remaining, removed := merge.RemoveInclusions(file.CustomAnnotations, annotationUUID, removeAll)
	if len(removed) == 0 {
		// Nothing matched; the annotation was already gone.
		return removed, nil
	}

	version := document.NewVersion(file, document.CauseUser, userID)
	if err := s.files.SaveVersion(ctx, version); err != nil {
		return nil, err
	}
	file.CustomAnnotations = remaining
	if err := s.files.SaveManualLists(ctx, file); err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *serviceImpl) AddExclusion(ctx context.Context, fileHashID string, rule *annotation.ExclusionRule, userID string) error {
	if rule == nil {
		return errors.New(errors.ErrCodeAnnotationPayloadInvalid, "exclusion has no rule")
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	file, err := s.files.ByHashID(ctx, fileHashID)
	if err != nil {
		return err
	}
	for _, existing := range file.ExcludedAnnotations {
		if existing.Type == rule.Type && merge.TermsMatch(existing.Text, rule.Text, existing.IsCaseInsensitive) {
			return errors.Newf(errors.ErrCodeAnnotationDuplicate,
				"%q is already excluded as %s", rule.Text, rule.Type)
		}
	}

	rule.ExclusionDate = time.Now().UTC()
	rule.UserID = userID

	version := document.NewVersion(file, document.CauseUser, userID)
	if err := s.files.SaveVersion(ctx, version); err != nil {
		return err
	}
	file.ExcludedAnnotations = append(file.ExcludedAnnotations, rule)
	if err := s.files.SaveManualLists(ctx, file); err != nil {
		return err
	}

	if rule.ExcludeGlobally && s.global != nil {
		return s.global.Save(ctx, &annotation.GlobalListEntry{
			Kind:      annotation.ManualExclusion,
			FileID:    file.HashID,
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
			Exclusion: rule,
		})
	}
	return nil
}

func (s *serviceImpl) RemoveExclusion(ctx context.Context, fileHashID string, entityType annotation.EntityType, term, userID string) error {
	file, err := s.files.ByHashID(ctx, fileHashID)
	if err != nil {
		return err
	}

	remaining, found := merge.RemoveExclusions(file.ExcludedAnnotations, entityType, term)
	if !found {
		return errors.Newf(errors.ErrCodeNotFound, "no %s exclusion for %q", entityType, term)
	}

	version := document.NewVersion(file, document.CauseUser, userID)
	if err := s.files.SaveVersion(ctx, version); err != nil {
		return err
	}
	file.ExcludedAnnotations = remaining
	return s.files.SaveManualLists(ctx, file)
}

func (s *serviceImpl) FileAnnotations(ctx context.Context, fileHashID string) ([]*annotation.Annotation, error) {
	file, err := s.files.ByHashID(ctx, fileHashID)
	if err != nil {
		return nil, err
	}
	automatic := file.Annotations.Annotations()
	return merge.Merged(automatic, file.CustomAnnotations, file.ExcludedAnnotations), nil
}
