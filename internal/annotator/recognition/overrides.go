package recognition

import (
	"context"

	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// GeneNameResolver maps gene identifiers to their primary names.  Gene
// inclusions only become matchable once the knowledge graph confirms the
// identifier; unresolved ids are dropped.
type GeneNameResolver interface {
	GeneNames(ctx context.Context, geneIDs []string) (map[string]string, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Inclusions
// ─────────────────────────────────────────────────────────────────────────────

// Inclusions holds manual inclusion terms structured the same way the
// dictionary store is: normalized term to entity records.  Used as the
// fallback when a dictionary lookup misses.
type Inclusions struct {
	byCategory map[annotation.EntityType]map[string][]annotation.EntityRecord
}

// NewInclusions returns an empty inclusion set.
func NewInclusions() *Inclusions {
	return &Inclusions{
		byCategory: make(map[annotation.EntityType]map[string][]annotation.EntityRecord),
	}
}

// Add registers a record under the normalized key for a category.
func (in *Inclusions) Add(category annotation.EntityType, normalizedKey string, rec annotation.EntityRecord) {
	byKey, ok := in.byCategory[category]
	if !ok {
		byKey = make(map[string][]annotation.EntityRecord)
		in.byCategory[category] = byKey
	}
	byKey[normalizedKey] = append(byKey[normalizedKey], rec)
}

// Get returns the records registered under the normalized key, or nil.
func (in *Inclusions) Get(category annotation.EntityType, normalizedKey string) []annotation.EntityRecord {
	return in.byCategory[category][normalizedKey]
}

// BuildInclusions converts manual inclusion annotations (document-local plus
// global) into a lookup structure.  Gene inclusions are verified against the
// knowledge graph first; a gene id the graph does not know is dropped.
// Malformed entries are logged and skipped, never fatal.
func BuildInclusions(
	ctx context.Context,
	annotations []*annotation.Annotation,
	genes GeneNameResolver,
	log logging.Logger,
) (*Inclusions, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	in := NewInclusions()

	type pendingGene struct {
		id, name, normalized string
	}
	var pendingGenes []pendingGene

	for _, anno := range annotations {
		if anno == nil {
			continue
		}
		entityID := anno.Meta.ID
		entityName := anno.Meta.AllText
		entityType := anno.Meta.Type

		if entityID == "" || entityName == "" || !entityType.IsValid() {
			log.Info("skipping malformed annotation inclusion",
				logging.String("entity_id", entityID),
				logging.String("entity_name", entityName),
				logging.String("entity_type", string(anno.Meta.Type)),
			)
			continue
		}

		normalized := textutil.Normalize(entityName)

		switch entityType {
		case annotation.TypeGene:
			pendingGenes = append(pendingGenes, pendingGene{
				id: entityID, name: entityName, normalized: normalized,
			})
		case annotation.TypeProtein:
			in.Add(entityType, normalized, annotation.EntityRecord{
				EntityID:  entityID,
				IDType:    anno.Meta.IDType,
				Name:      entityName,
				Synonym:   entityName,
				Inclusion: true,
			})
		default:
			rec := annotation.EntityRecord{
				EntityID:  entityID,
				IDType:    anno.Meta.IDType,
				Name:      entityName,
				Synonym:   entityName,
				Inclusion: true,
			}
			if entityType == annotation.TypeSpecies {
				rec.Category = anno.Meta.Category
			}
			in.Add(entityType, normalized, rec)
		}
	}

	if len(pendingGenes) > 0 && genes != nil {
		ids := make([]string, 0, len(pendingGenes))
		for _, g := range pendingGenes {
			ids = append(ids, g.id)
		}
		names, err := genes.GeneNames(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, g := range pendingGenes {
			primary, ok := names[g.id]
			if !ok || primary == "" {
				log.Info("gene inclusion has no knowledge graph match",
					logging.String("gene_id", g.id),
					logging.String("synonym", g.name),
				)
				continue
			}
			in.Add(annotation.TypeGene, g.normalized, annotation.EntityRecord{
				EntityID:  g.id,
				Name:      primary,
				Synonym:   g.name,
				Inclusion: true,
			})
		}
	}

	return in, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Exclusions
// ─────────────────────────────────────────────────────────────────────────────

// Exclusions holds manual exclusion terms per category.  Gene and protein
// exclusions are case-sensitive and stored verbatim; every other category is
// case-insensitive and stored normalized.
type Exclusions struct {
	byCategory map[annotation.EntityType]map[string]struct{}
}

// NewExclusions returns an empty exclusion set.
func NewExclusions() *Exclusions {
	return &Exclusions{
		byCategory: make(map[annotation.EntityType]map[string]struct{}),
	}
}

// Add registers an exclusion term for a category.
func (ex *Exclusions) Add(category annotation.EntityType, text string) {
	if text == "" {
		return
	}
	set, ok := ex.byCategory[category]
	if !ok {
		set = make(map[string]struct{})
		ex.byCategory[category] = set
	}
	switch category {
	case annotation.TypeGene, annotation.TypeProtein:
		set[text] = struct{}{}
	default:
		set[textutil.Normalize(text)] = struct{}{}
	}
}

// Excluded reports whether the token keyword is suppressed for the category.
func (ex *Exclusions) Excluded(category annotation.EntityType, keyword string) bool {
	set, ok := ex.byCategory[category]
	if !ok {
		return false
	}
	switch category {
	case annotation.TypeGene, annotation.TypeProtein:
		_, hit := set[keyword]
		return hit
	default:
		_, hit := set[textutil.Normalize(keyword)]
		return hit
	}
}

// BuildExclusions converts manual exclusion rules (document-local plus
// global) into per-category suppression sets.
func BuildExclusions(rules []*annotation.ExclusionRule) *Exclusions {
	ex := NewExclusions()
	for _, rule := range rules {
		if rule == nil || rule.Text == "" {
			continue
		}
		if !rule.Type.IsValid() {
			continue
		}
		ex.Add(rule.Type, rule.Text)
	}
	return ex
}
