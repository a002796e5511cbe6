// Package pipeline is the application-level annotation service: it drives the
// tokenizer, the entity matcher, and the resolver over one document and
// assembles the result into a BioC collection.  Handlers and the worker talk
// to this package, never to the annotator internals directly.
package pipeline

import (
	"context"
	"time"

	"github.com/biosustain/lifelike-annotator/internal/annotator/bioc"
	"github.com/biosustain/lifelike-annotator/internal/annotator/merge"
	"github.com/biosustain/lifelike-annotator/internal/annotator/recognition"
	"github.com/biosustain/lifelike-annotator/internal/annotator/resolver"
	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/domain/document"
	"github.com/biosustain/lifelike-annotator/internal/domain/globallist"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/dictionary"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/prometheus"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// Method selects how one entity type is recognized.
type Method string

const (
	// MethodRules matches tokens against the dictionary store.
	MethodRules Method = "Rules Based"
	// MethodNLP additionally tags tokens with an external model's
	// predictions; the dictionary still confirms every hit.
	MethodNLP Method = "NLP"
)

// Configs carries the per-type annotation method choices for one run.  Types
// without an entry use MethodRules.  Species is always rules-based; the model
// does not cover it.
type Configs struct {
	AnnotationMethods map[annotation.EntityType]Method
}

// Method returns the configured method for a type.
func (c Configs) Method(t annotation.EntityType) Method {
	if m, ok := c.AnnotationMethods[t]; ok && t != annotation.TypeSpecies {
		return m
	}
	return MethodRules
}

// AnnotateInput is one document to annotate.
type AnnotateInput struct {
	FileHashID string
	Filename   string

	Chars     []tokenizer.Char
	CropBoxes map[int]resolver.CropBox

	// CustomAnnotations and ExcludedAnnotations are the document-local
	// manual lists; global lists are fetched and layered beneath them.
	CustomAnnotations   []*annotation.Annotation
	ExcludedAnnotations []*annotation.ExclusionRule

	// Organism is the fallback organism for gene and protein pairing.  Its
	// Category may be left blank; it is then filled from the species
	// dictionary.
	Organism annotation.SpecifiedOrganism

	Configs Configs

	// CellEnds marks the chars as combined enrichment-table text; see
	// resolver.Request.
	CellEnds []int
}

// AnnotateResult is the assembled output of one run together with the raw
// annotation list, which the enrichment service re-bases per cell.
type AnnotateResult struct {
	Collection  *bioc.Collection
	Annotations []*annotation.Annotation
	Tokens      *tokenizer.Result
}

// Service runs the annotation pipeline.
type Service interface {
	Annotate(ctx context.Context, input *AnnotateInput) (*AnnotateResult, error)
	AnnotateBatch(ctx context.Context, input *BatchInput) []BatchResult
}

type serviceImpl struct {
	store     dictionary.Store
	kg        resolver.KnowledgeGraph
	geneNames recognition.GeneNameResolver
	global    globallist.Repository
	files     document.Repository
	source    DocumentSource
	nlp       NLPClient
	tokenizer *tokenizer.Tokenizer
	assembler *bioc.Assembler
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// Option configures the service.
type Option func(*serviceImpl)

// WithNLPClient enables the NLP overlay.
func WithNLPClient(c NLPClient) Option {
	return func(s *serviceImpl) { s.nlp = c }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *serviceImpl) { s.metrics = m }
}

// WithBatchDependencies wires the file repository and document source the
// batch operations need.  One-shot annotation works without them.
func WithBatchDependencies(files document.Repository, source DocumentSource) Option {
	return func(s *serviceImpl) {
		s.files = files
		s.source = source
	}
}

// NewService creates the annotation pipeline service.  The knowledge graph,
// gene-name resolver, and global list repository may be nil; the pipeline then
// degrades the way the resolver documents (unresolved organisms, no gene
// inclusions, local lists only).
func NewService(
	store dictionary.Store,
	kg resolver.KnowledgeGraph,
	geneNames recognition.GeneNameResolver,
	global globallist.Repository,
	logger logging.Logger,
	opts ...Option,
) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		store:     store,
		kg:        kg,
		geneNames: geneNames,
		global:    global,
		tokenizer: tokenizer.New(logger),
		assembler: bioc.NewAssembler(),
		logger:    logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) Annotate(ctx context.Context, input *AnnotateInput) (*AnnotateResult, error) {
	start := time.Now()

	inclusions, exclusions, err := s.layeredLists(ctx, input)
	if err != nil {
		return nil, err
	}

	matcherInclusions, err := recognition.BuildInclusions(ctx, inclusions, s.geneNames, s.logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnnotationFailed, "building manual inclusions")
	}
	localSpecies := localSpeciesInclusions(input.CustomAnnotations)
	matcherExclusions := recognition.BuildExclusions(exclusions)

	stage := time.Now()
	tok := s.tokenizer.Tokenize(input.Chars)
	s.observeStage("tokenize", stage)
	if s.metrics != nil {
		s.metrics.TokensPerDocument.WithLabelValues().Observe(float64(len(tok.Tokens)))
	}

	text := tok.Text()

	if err := s.applyNLPOverlay(ctx, input.Configs, text, tok); err != nil {
		return nil, err
	}

	matcher := recognition.NewMatcher(s.store, s.logger,
		recognition.WithInclusions(matcherInclusions),
		recognition.WithLocalSpeciesInclusions(localSpecies),
		recognition.WithExclusions(matcherExclusions),
	)

	stage = time.Now()
	results, err := matcher.Identify(tok.Tokens)
	if err != nil {
		return nil, err
	}
	s.observeStage("identify", stage)
	s.countMatches(results)

	organism, err := s.fallbackOrganism(input.Organism)
	if err != nil {
		return nil, err
	}

	stage = time.Now()
	res := resolver.New(s.kg, s.logger)
	annotations, err := res.Resolve(ctx, resolver.Request{
		Document: resolver.Document{
			Chars:     tok.Chars,
			CropBoxes: input.CropBoxes,
		},
		Results:             results,
		CustomAnnotations:   input.CustomAnnotations,
		ExcludedAnnotations: input.ExcludedAnnotations,
		SpecifiedOrganism:   organism,
		CellEnds:            input.CellEnds,
	})
	if err != nil {
		return nil, err
	}
	s.observeStage("resolve", stage)

	collection := s.assembler.Assemble(input.FileHashID, text, annotations)

	if s.metrics != nil {
		prometheus.RecordPipelineRun(s.metrics, "Annotated", time.Since(start), len(annotations))
	}
	s.logger.Info("document annotated",
		logging.String("file", input.FileHashID),
		logging.Int("annotations", len(annotations)),
		logging.Any("duration", time.Since(start).String()),
	)

	return &AnnotateResult{
		Collection:  collection,
		Annotations: annotations,
		Tokens:      tok,
	}, nil
}

// layeredLists fetches the global inclusion and exclusion lists and layers
// the document-local ones on top of them.
func (s *serviceImpl) layeredLists(ctx context.Context, input *AnnotateInput) (
	[]*annotation.Annotation, []*annotation.ExclusionRule, error,
) {
	if s.global == nil {
		return input.CustomAnnotations, input.ExcludedAnnotations, nil
	}
	globalInclusions, err := s.global.Inclusions(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeAnnotationFailed, "loading global inclusions")
	}
	globalExclusions, err := s.global.Exclusions(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeAnnotationFailed, "loading global exclusions")
	}
	inclusions := merge.LayerInclusions(input.CustomAnnotations, globalInclusions)
	exclusions := merge.LayerExclusions(input.ExcludedAnnotations, globalExclusions)
	return inclusions, exclusions, nil
}

// localSpeciesInclusions extracts the document-local species inclusions.
// They feed the matcher's species-local bucket so organism frequency counts
// the occurrences even though the term is not in the dictionary.
func localSpeciesInclusions(custom []*annotation.Annotation) *recognition.Inclusions {
	in := recognition.NewInclusions()
	for _, anno := range custom {
		if anno == nil || anno.Meta.Type != annotation.TypeSpecies || anno.Meta.IncludeGlobally {
			continue
		}
		if anno.Meta.ID == "" || anno.Meta.AllText == "" {
			continue
		}
		in.Add(annotation.TypeSpecies, textutil.Normalize(anno.Meta.AllText), annotation.EntityRecord{
			EntityID:  anno.Meta.ID,
			IDType:    anno.Meta.IDType,
			Name:      anno.Meta.AllText,
			Synonym:   anno.Meta.AllText,
			Category:  anno.Meta.Category,
			Inclusion: true,
		})
	}
	return in
}

// fallbackOrganism completes the caller-specified organism with its taxonomic
// category from the species dictionary.  An organism the dictionary does not
// know is an error; silently dropping the fallback would change gene pairing.
func (s *serviceImpl) fallbackOrganism(org annotation.SpecifiedOrganism) (annotation.SpecifiedOrganism, error) {
	if !org.IsSet() || org.Category != "" {
		return org, nil
	}
	records, err := s.store.Lookup(annotation.TypeSpecies, textutil.Normalize(org.Synonym))
	if err != nil {
		return org, err
	}
	for _, rec := range records {
		if rec.EntityID == org.OrganismID || rec.TaxID == org.OrganismID {
			org.Category = rec.Category
			return org, nil
		}
	}
	return org, errors.Newf(errors.ErrCodeAnnotationFailed,
		"specified organism %s (%s) is not in the species dictionary", org.Synonym, org.OrganismID)
}

func (s *serviceImpl) observeStage(stage string, since time.Time) {
	if s.metrics != nil {
		prometheus.RecordPipelineStage(s.metrics, stage, time.Since(since))
	}
}

func (s *serviceImpl) countMatches(results *recognition.Results) {
	if s.metrics == nil {
		return
	}
	for _, category := range annotation.DictionaryTypes {
		for _, match := range results.Matched(category) {
			s.metrics.MatchesTotal.WithLabelValues(string(category)).Add(float64(len(match.Tokens)))
		}
	}
}
