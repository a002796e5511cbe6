package resolver

import (
	"context"
	"math"
	"sort"

	apperrors "github.com/biosustain/lifelike-annotator/pkg/errors"
)

// KnowledgeGraph answers gene/protein to organism relationship queries.  The
// neo4j adapter implements it; resolution consults it once per document with
// all names batched.
type KnowledgeGraph interface {
	// GenesToOrganisms returns, for each gene synonym, the organisms it is
	// known in: synonym -> matched name -> organism tax id -> gene id.  The
	// middle key distinguishes a match on the gene's primary name from a
	// match on a synonym; primary-name matches are preferred.
	GenesToOrganisms(ctx context.Context, genes, organismIDs []string) (map[string]map[string]map[string]string, error)

	// ProteinsToOrganisms returns protein name -> organism tax id -> protein id.
	ProteinsToOrganisms(ctx context.Context, proteins, organismIDs []string) (map[string]map[string]string, error)
}

// flattenGeneMatches reduces one synonym's match structure (matched name ->
// organism tax id -> gene id) to organism tax id -> gene id.  A primary-name
// match is taken whole; otherwise one gene per organism is kept, first found
// in sorted name order, since nothing else can disambiguate.
func flattenGeneMatches(byName map[string]map[string]string, synonym string) map[string]string {
	if byOrganism, ok := byName[synonym]; ok && len(byOrganism) > 0 {
		return byOrganism
	}
	out := make(map[string]string)
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for organismID, geneID := range byName[name] {
			if _, ok := out[organismID]; !ok {
				out[organismID] = geneID
			}
		}
	}
	return out
}

// closestOrganism picks the organism whose nearest mention is closest to the
// entity span.  Equidistant organisms are broken by document frequency, then
// by preferring homo sapiens, then by sorted tax id for determinism.
func (r *Resolver) closestOrganism(entityLo, entityHi int, organismMatches map[string]string) (entityID, organismID string, distance float64, err error) {
	if len(organismMatches) == 0 {
		return "", "", 0, apperrors.Annotation("cannot pair entity with empty organism match set")
	}

	organisms := make([]string, 0, len(organismMatches))
	for id := range organismMatches {
		organisms = append(organisms, id)
	}
	sort.Strings(organisms)

	closest := ""
	closestDist := math.Inf(1)

	for _, organism := range organisms {
		locations, ok := r.organismLocations[organism]
		if !ok {
			return "", "", 0, apperrors.Newf(apperrors.ErrCodeAnnotationFailed,
				"organism %s has no recorded document locations", organism)
		}
		if closest == "" {
			closest = organism
		}

		minDist := math.Inf(1)
		for _, loc := range locations {
			var d float64
			if entityLo > loc[1] {
				d = float64(entityLo - loc[1])
			} else {
				d = float64(loc[0] - entityHi)
			}
			if d < minDist {
				minDist = d
			}
		}

		switch {
		case minDist < closestDist:
			closest = organism
			closestDist = minDist
		case minDist == closestDist:
			if r.organismFrequency[organism] > r.organismFrequency[closest] {
				closest = organism
			} else if r.organismFrequency[organism] == r.organismFrequency[closest] &&
				organism == homoSapiensTaxID {
				closest = organism
			}
		}
	}

	return organismMatches[closest], closest, closestDist, nil
}
