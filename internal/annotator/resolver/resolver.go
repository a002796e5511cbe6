// Package resolver turns recognition matches into concrete annotations.  It
// applies the synonym/common-name disambiguation heuristic, pairs genes and
// proteins with the organisms mentioned nearest to them in the document, and
// reduces overlapping candidates to one winner per span by entity precedence.
package resolver

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/biosustain/lifelike-annotator/internal/annotator/recognition"
	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

const (
	homoSapiensTaxID          = annotation.HomoSapiensTaxID
	organismDistanceThreshold = annotation.OrganismDistanceThreshold
)

// annotationOrder fixes the category fan-out.  Species come before proteins
// and genes because organism mentions drive their disambiguation.
var annotationOrder = []annotation.EntityType{
	annotation.TypeAnatomy,
	annotation.TypeChemical,
	annotation.TypeCompound,
	annotation.TypeDisease,
	annotation.TypeFood,
	annotation.TypePhenomena,
	annotation.TypePhenotype,
	annotation.TypeSpecies,
	annotation.TypeProtein,
	annotation.TypeGene,
}

// Document is the positioned text the annotations refer back to.
type Document struct {
	Chars     []tokenizer.Char
	CropBoxes map[int]CropBox
}

// Request carries everything one resolution run needs.
type Request struct {
	Document Document
	Results  *recognition.Results

	// CustomAnnotations and ExcludedAnnotations are the document-local manual
	// lists; only their species entries matter here, for scoping
	// organism-frequency computation to the occurrences the user kept.
	CustomAnnotations   []*annotation.Annotation
	ExcludedAnnotations []*annotation.ExclusionRule

	// SpecifiedOrganism is the caller-chosen fallback strain for gene and
	// protein pairing when no organism mention is close enough.
	SpecifiedOrganism annotation.SpecifiedOrganism

	// CellEnds, when set, marks the document as combined enrichment-table
	// text: each value is the inclusive offset of a cell's last character.
	// Conflict resolution then runs per cell instead of across the document.
	CellEnds []int
}

// Resolver resolves one document.  Construct a new one per document; organism
// frequency and location state accumulate across the species pass and feed
// the gene and protein passes.
type Resolver struct {
	log logging.Logger
	kg  KnowledgeGraph

	specified          annotation.SpecifiedOrganism
	organismFrequency  map[string]int
	organismLocations  map[string][][2]int
	organismCategories map[string]annotation.OrganismCategory
}

// New builds a resolver.  The knowledge graph may be nil, in which case gene
// and protein mentions resolve as unresolved-organism annotations.
func New(kg KnowledgeGraph, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Resolver{
		log:                log.Named("resolver"),
		kg:                 kg,
		organismFrequency:  make(map[string]int),
		organismLocations:  make(map[string][][2]int),
		organismCategories: make(map[string]annotation.OrganismCategory),
	}
}

// Resolve produces the resolved annotation list for one document.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]*annotation.Annotation, error) {
	if req.Results == nil {
		return nil, nil
	}
	r.specified = req.SpecifiedOrganism

	var unified []*annotation.Annotation
	for _, category := range annotationOrder {
		var (
			annos []*annotation.Annotation
			err   error
		)
		switch category {
		case annotation.TypeSpecies:
			annos = r.annotateSpecies(req)
		case annotation.TypeProtein:
			annos, err = r.annotateProteins(ctx, req)
		case annotation.TypeGene:
			annos, err = r.annotateGenes(ctx, req)
		default:
			annos = r.annotateGeneric(req, category)
		}
		if err != nil {
			return nil, err
		}
		unified = append(unified, annos...)
	}

	fixed := fixFalsePositives(unified)
	var cleaned []*annotation.Annotation
	if len(req.CellEnds) > 0 {
		cleaned = resolveConflictsPerCell(fixed, req.CellEnds)
	} else {
		cleaned = resolveConflicts(fixed)
	}
	r.log.Debug("resolution complete",
		logging.Int("candidates", len(unified)),
		logging.Int("resolved", len(cleaned)),
	)
	return cleaned, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Generic categories
// ─────────────────────────────────────────────────────────────────────────────

// annotateGeneric creates annotations for one category, applying the shared
// synonym heuristic: when a synonym belongs to several distinct common names,
// only annotate if exactly one of those common names appears in the document;
// otherwise the entity cannot be inferred.
func (r *Resolver) annotateGeneric(req Request, category annotation.EntityType) []*annotation.Annotation {
	matched := req.Results.Matched(category)
	if len(matched) == 0 {
		return nil
	}

	keywordsNormalized := make(map[string]struct{}, len(matched))
	for keyword := range matched {
		keywordsNormalized[textutil.Normalize(keyword)] = struct{}{}
	}

	var out []*annotation.Annotation
	for _, keyword := range req.Results.Keywords(category) {
		match := matched[keyword]

		// synonym -> set of normalized common names using it
		commonNames := make(map[string]map[string]struct{})
		for _, rec := range match.Records {
			set, ok := commonNames[rec.Synonym]
			if !ok {
				set = make(map[string]struct{})
				commonNames[rec.Synonym] = set
			}
			set[textutil.Normalize(rec.Name)] = struct{}{}
		}

		for _, token := range match.Tokens {
			for _, rec := range match.Records {
				if referenced := commonNames[rec.Synonym]; len(referenced) > 1 {
					inDocument := 0
					for name := range referenced {
						if _, ok := keywordsNormalized[name]; ok {
							inDocument++
						}
					}
					if inDocument != 1 {
						continue
					}
				}
				if rec.EntityID == "" {
					continue
				}
				out = append(out, r.newAnnotation(req.Document, token, category, rec, rec.EntityID, rec.Category))
			}
		}
	}
	return out
}

// newAnnotation builds one annotation from a token and a dictionary record.
func (r *Resolver) newAnnotation(
	doc Document,
	token tokenizer.Token,
	category annotation.EntityType,
	rec annotation.EntityRecord,
	entityID string,
	organismCategory annotation.OrganismCategory,
) *annotation.Annotation {
	positions := BuildKeywordPositions(token, doc.Chars, doc.CropBoxes[token.Page])

	rects := make([]annotation.Rect, len(positions))
	keywords := make([]string, len(positions))
	for i, pos := range positions {
		rects[i] = pos.Rect
		keywords[i] = pos.Value
	}

	hyperlinks := rec.Hyperlinks
	if len(hyperlinks) == 0 {
		hyperlinks = []string{rec.IDType.Hyperlink(entityID)}
	}

	return &annotation.Annotation{
		UUID:             uuid.NewString(),
		PageNumber:       token.Page,
		Keyword:          rec.Synonym,
		Keywords:         keywords,
		PrimaryName:      rec.Name,
		TextInDocument:   token.Keyword,
		KeywordLength:    len(token.Keyword),
		LoLocationOffset: token.Lo(),
		HiLocationOffset: token.Hi(),
		Rects:            rects,
		Meta: annotation.Meta{
			Type:         category,
			ID:           entityID,
			IDType:       rec.IDType,
			IDHyperlinks: hyperlinks,
			Links:        annotation.BuildSearchLinks(token.Keyword),
			AllText:      rec.Synonym,
			Category:     organismCategory,
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Species
// ─────────────────────────────────────────────────────────────────────────────

// annotateSpecies creates species annotations and derives the organism
// frequency, location, and category maps the gene/protein passes pair
// against.  Document-local manual inclusions and exclusions scope that
// derivation to the occurrences the user actually kept: an inclusion only
// counts at its exact rectangles, an excluded occurrence does not count at
// all.  The returned annotations are the automatic ones; exclusion filtering
// for output happens later in the merge stage.
func (r *Resolver) annotateSpecies(req Request) []*annotation.Annotation {
	species := r.annotateGeneric(req, annotation.TypeSpecies)

	// Local inclusion matches skip the common-name heuristic: the user asked
	// for these terms explicitly.
	var speciesLocal []*annotation.Annotation
	localMatched := req.Results.MatchedSpeciesLocal()
	for _, keyword := range req.Results.SpeciesLocalKeywords() {
		match := localMatched[keyword]
		for _, token := range match.Tokens {
			for _, rec := range match.Records {
				if rec.EntityID == "" {
					continue
				}
				speciesLocal = append(speciesLocal,
					r.newAnnotation(req.Document, token, annotation.TypeSpecies, rec, rec.EntityID, rec.Category))
			}
		}
	}

	var localInclusions []*annotation.Annotation
	for _, custom := range req.CustomAnnotations {
		if custom != nil && custom.Meta.Type == annotation.TypeSpecies && !custom.Meta.IncludeGlobally {
			localInclusions = append(localInclusions, custom)
		}
	}
	var localExclusions []*annotation.ExclusionRule
	for _, excluded := range req.ExcludedAnnotations {
		if excluded != nil && excluded.Type == annotation.TypeSpecies && !excluded.ExcludeGlobally {
			localExclusions = append(localExclusions, excluded)
		}
	}

	// A term may have only some of its occurrences manually annotated, so
	// keep only the local matches whose rectangles line up with an inclusion.
	var filteredLocal []*annotation.Annotation
	for _, custom := range localInclusions {
		for _, anno := range speciesLocal {
			if rectsContainCenters(custom.Rects, anno.Rects) {
				filteredLocal = append(filteredLocal, anno)
			}
		}
	}

	species = fixFalsePositives(species)

	excludedUUIDs := make(map[string]struct{})
	for _, excluded := range localExclusions {
		for _, anno := range species {
			if rectsContainCenters(excluded.Rects, anno.Rects) {
				excludedUUIDs[anno.UUID] = struct{}{}
			}
		}
	}

	var forOrganismMaps []*annotation.Annotation
	if len(localInclusions) > 0 {
		forOrganismMaps = append(forOrganismMaps, filteredLocal...)
	}
	if len(localExclusions) > 0 {
		for _, anno := range species {
			if _, ok := excludedUUIDs[anno.UUID]; !ok {
				forOrganismMaps = append(forOrganismMaps, anno)
			}
		}
	} else {
		forOrganismMaps = append(forOrganismMaps, species...)
	}

	r.organismFrequency, r.organismLocations, r.organismCategories =
		organismFrequencyLocationCategory(forOrganismMaps)

	return species
}

// rectsContainCenters reports whether every annotation rect's center lies in
// the corresponding manual rect.  Counts must agree.
func rectsContainCenters(manual, rects []annotation.Rect) bool {
	if len(manual) == 0 || len(manual) != len(rects) {
		return false
	}
	for i, rect := range rects {
		cx, cy := rect.CenterX(), rect.CenterY()
		m := manual[i]
		if !(m[0] <= cx && cx <= m[2] && m[1] <= cy && cy <= m[3]) {
			return false
		}
	}
	return true
}

// organismFrequencyLocationCategory computes per-organism mention statistics.
// A virus mention also counts as a homo sapiens mention, since viral genes in
// the literature are usually discussed against their human host.
func organismFrequencyLocationCategory(annotations []*annotation.Annotation) (
	map[string]int,
	map[string][][2]int,
	map[string]annotation.OrganismCategory,
) {
	frequency := make(map[string]int)
	locations := make(map[string][][2]int)
	categories := make(map[string]annotation.OrganismCategory)

	for _, anno := range annotations {
		id := anno.Meta.ID
		loc := [2]int{anno.LoLocationOffset, anno.HiLocationOffset}

		frequency[id]++
		locations[id] = append(locations[id], loc)
		categories[id] = anno.Meta.Category

		if anno.Meta.Type == annotation.TypeSpecies && anno.Meta.Category == annotation.OrganismViruses {
			frequency[homoSapiensTaxID]++
			locations[homoSapiensTaxID] = append(locations[homoSapiensTaxID], loc)
			categories[homoSapiensTaxID] = annotation.OrganismEukaryota
		}
	}
	return frequency, locations, categories
}

// ─────────────────────────────────────────────────────────────────────────────
// Genes and proteins
// ─────────────────────────────────────────────────────────────────────────────

type entityTokenPair struct {
	record  annotation.EntityRecord
	synonym string
	token   tokenizer.Token
}

// collectEntityTokenPairs flattens a category's matches into record/token
// pairs with the lookup synonym, in deterministic keyword order.
func collectEntityTokenPairs(req Request, category annotation.EntityType, synonymOf func(annotation.EntityRecord) string) ([]entityTokenPair, []string) {
	matched := req.Results.Matched(category)
	var pairs []entityTokenPair
	nameSet := make(map[string]struct{})

	for _, keyword := range req.Results.Keywords(category) {
		match := matched[keyword]
		for _, token := range match.Tokens {
			for _, rec := range match.Records {
				synonym := synonymOf(rec)
				nameSet[synonym] = struct{}{}
				pairs = append(pairs, entityTokenPair{record: rec, synonym: synonym, token: token})
			}
		}
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)
	return pairs, names
}

func (r *Resolver) matchedOrganismIDs() []string {
	ids := make([]string, 0, len(r.organismFrequency))
	for id := range r.organismFrequency {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// annotateGenes pairs every gene mention with an organism.  The closest
// organism mention wins; if it is farther than the distance threshold and a
// fallback organism was specified, the fallback is used instead.  A gene the
// knowledge graph cannot place in any matched organism keeps its dictionary
// identity and is flagged unresolved rather than dropped.
func (r *Resolver) annotateGenes(ctx context.Context, req Request) ([]*annotation.Annotation, error) {
	pairs, names := collectEntityTokenPairs(req, annotation.TypeGene, func(rec annotation.EntityRecord) string {
		// Inclusion records carry the knowledge-graph primary name in Name.
		if rec.Inclusion {
			return rec.Name
		}
		return rec.Synonym
	})
	if len(pairs) == 0 {
		return nil, nil
	}

	var (
		matches  map[string]map[string]map[string]string
		fallback map[string]map[string]map[string]string
		err      error
	)
	if r.kg != nil {
		matches, err = r.kg.GenesToOrganisms(ctx, names, r.matchedOrganismIDs())
		if err != nil {
			return nil, err
		}
		if r.specified.IsSet() {
			fallback, err = r.kg.GenesToOrganisms(ctx, names, []string{r.specified.OrganismID})
			if err != nil {
				return nil, err
			}
		}
	}

	var out []*annotation.Annotation
	for _, pair := range pairs {
		geneID := ""
		category := annotation.OrganismCategory("")
		unresolved := false

		if byName, ok := matches[pair.synonym]; ok {
			organisms := flattenGeneMatches(byName, pair.synonym)

			id, organismID, distance, cerr := r.closestOrganism(pair.token.Lo(), pair.token.Hi(), organisms)
			if cerr != nil {
				return nil, cerr
			}
			geneID = id
			category = r.organismCategories[organismID]

			if r.specified.IsSet() && distance > organismDistanceThreshold {
				if fbByName, ok := fallback[pair.synonym]; ok {
					if fbID, ok := flattenGeneMatches(fbByName, pair.synonym)[r.specified.OrganismID]; ok {
						geneID = fbID
						category = r.specified.Category
					}
				}
			}
		} else if fbByName, ok := fallback[pair.synonym]; ok {
			if fbID, ok := flattenGeneMatches(fbByName, pair.synonym)[r.specified.OrganismID]; ok {
				geneID = fbID
				category = r.specified.Category
			}
		}

		if geneID == "" {
			// No organism evidence at all; keep the dictionary identity
			// flagged rather than silently dropping the mention.
			if pair.record.EntityID == "" {
				continue
			}
			geneID = pair.record.EntityID
			category = annotation.OrganismUncategorized
			unresolved = true
		}
		if category == "" {
			continue
		}

		anno := r.newAnnotation(req.Document, pair.token, annotation.TypeGene, pair.record, geneID, category)
		anno.Meta.UnresolvedOrganism = unresolved
		out = append(out, anno)
	}
	return out, nil
}

// annotateProteins mirrors annotateGenes, except a protein the knowledge
// graph cannot place keeps its dictionary id and category without being
// flagged: protein records are organism-agnostic to begin with.
func (r *Resolver) annotateProteins(ctx context.Context, req Request) ([]*annotation.Annotation, error) {
	pairs, names := collectEntityTokenPairs(req, annotation.TypeProtein, func(rec annotation.EntityRecord) string {
		return rec.Synonym
	})
	if len(pairs) == 0 {
		return nil, nil
	}

	var (
		matches  map[string]map[string]string
		fallback map[string]map[string]string
		err      error
	)
	if r.kg != nil {
		matches, err = r.kg.ProteinsToOrganisms(ctx, names, r.matchedOrganismIDs())
		if err != nil {
			return nil, err
		}
		if r.specified.IsSet() {
			fallback, err = r.kg.ProteinsToOrganisms(ctx, names, []string{r.specified.OrganismID})
			if err != nil {
				return nil, err
			}
		}
	}

	var out []*annotation.Annotation
	for _, pair := range pairs {
		if pair.record.EntityID == "" {
			continue
		}
		proteinID := pair.record.EntityID
		category := pair.record.Category

		if organisms, ok := matches[pair.synonym]; ok {
			id, organismID, distance, cerr := r.closestOrganism(pair.token.Lo(), pair.token.Hi(), organisms)
			if cerr != nil {
				return nil, cerr
			}
			proteinID = id
			category = r.organismCategories[organismID]

			if r.specified.IsSet() && distance > organismDistanceThreshold {
				if fbOrganisms, ok := fallback[pair.synonym]; ok {
					if fbID, ok := fbOrganisms[r.specified.OrganismID]; ok {
						proteinID = fbID
						category = r.specified.Category
					}
				}
			}
		} else if fbOrganisms, ok := fallback[pair.synonym]; ok {
			fbID, ok := fbOrganisms[r.specified.OrganismID]
			if !ok {
				continue
			}
			proteinID = fbID
			category = r.specified.Category
		}

		out = append(out, r.newAnnotation(req.Document, pair.token, annotation.TypeProtein, pair.record, proteinID, category))
	}
	return out, nil
}
