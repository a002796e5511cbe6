// Package repositories provides Neo4j-backed adapters over the biomedical
// knowledge graph: gene/protein to organism relationships for annotation
// disambiguation, and gene primary-name verification for manual inclusions.
package repositories

import (
	"context"

	driver "github.com/biosustain/lifelike-annotator/internal/infrastructure/database/neo4j"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

// graphReader is the slice of the neo4j driver the repository needs; tests
// substitute a fake.
type graphReader interface {
	ExecuteRead(ctx context.Context, work func(driver.Transaction) (interface{}, error)) (interface{}, error)
}

// AnnotationGraphRepository answers the queries the annotation pipeline puts
// to the knowledge graph.  It implements resolver.KnowledgeGraph and
// recognition.GeneNameResolver.
type AnnotationGraphRepository struct {
	driver graphReader
	log    logging.Logger
}

// NewAnnotationGraphRepository constructs a ready-to-use repository.
func NewAnnotationGraphRepository(d graphReader, log logging.Logger) *AnnotationGraphRepository {
	return &AnnotationGraphRepository{driver: d, log: log}
}

// geneToOrganismQuery walks gene synonyms to the organisms the caller cares
// about.  A gene counts as belonging to an organism when its taxonomy node,
// that node's parent, or its grandparent is one of the requested tax ids;
// strain-level genes thus match a species-level organism mention.
const geneToOrganismQuery = `
	MATCH (s:Synonym)<-[:HAS_SYNONYM]-(g:Gene)
	WHERE s.name IN $genes
	MATCH (g)-[:HAS_TAXONOMY]->(t:Taxonomy)
	OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Taxonomy)
	OPTIONAL MATCH (p)-[:HAS_PARENT]->(gp:Taxonomy)
	WITH s, g, [x IN [t.eid, p.eid, gp.eid] WHERE x IN $organisms][0] AS organism
	WHERE organism IS NOT NULL
	RETURN DISTINCT s.name AS synonym, g.name AS gene_name, g.eid AS gene_id, organism AS organism_id`

const proteinToOrganismQuery = `
	MATCH (s:Synonym)<-[:HAS_SYNONYM]-(pr:Protein)
	WHERE s.name IN $proteins
	MATCH (pr)-[:HAS_TAXONOMY]->(t:Taxonomy)
	OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Taxonomy)
	OPTIONAL MATCH (p)-[:HAS_PARENT]->(gp:Taxonomy)
	WITH s, pr, [x IN [t.eid, p.eid, gp.eid] WHERE x IN $organisms][0] AS organism
	WHERE organism IS NOT NULL
	RETURN DISTINCT s.name AS protein, pr.eid AS protein_id, organism AS organism_id`

const geneNamesQuery = `
	MATCH (g:Gene)
	WHERE g.eid IN $ids
	RETURN g.eid AS id, g.name AS name`

// GenesToOrganisms returns synonym -> matched gene name -> organism tax id ->
// gene id for every requested synonym found in the graph.
func (r *AnnotationGraphRepository) GenesToOrganisms(ctx context.Context, genes, organismIDs []string) (map[string]map[string]map[string]string, error) {
	out := map[string]map[string]map[string]string{}
	if len(genes) == 0 || len(organismIDs) == 0 {
		return out, nil
	}
	r.log.Debug("querying gene to organism matches",
		logging.Int("genes", len(genes)),
		logging.Int("organisms", len(organismIDs)))

	params := map[string]interface{}{"genes": genes, "organisms": organismIDs}
	_, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, geneToOrganismQuery, params)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			rec := result.Record()
			synonym := stringValue(rec.Get("synonym"))
			geneName := stringValue(rec.Get("gene_name"))
			geneID := stringValue(rec.Get("gene_id"))
			organismID := stringValue(rec.Get("organism_id"))
			if synonym == "" || organismID == "" {
				continue
			}
			if out[synonym] == nil {
				out[synonym] = map[string]map[string]string{}
			}
			if out[synonym][geneName] == nil {
				out[synonym][geneName] = map[string]string{}
			}
			out[synonym][geneName][organismID] = geneID
		}
		return nil, result.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGraphQueryFailed, "gene to organism query failed")
	}
	return out, nil
}

// ProteinsToOrganisms returns protein name -> organism tax id -> protein id.
func (r *AnnotationGraphRepository) ProteinsToOrganisms(ctx context.Context, proteins, organismIDs []string) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	if len(proteins) == 0 || len(organismIDs) == 0 {
		return out, nil
	}
	r.log.Debug("querying protein to organism matches",
		logging.Int("proteins", len(proteins)),
		logging.Int("organisms", len(organismIDs)))

	params := map[string]interface{}{"proteins": proteins, "organisms": organismIDs}
	_, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, proteinToOrganismQuery, params)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			rec := result.Record()
			protein := stringValue(rec.Get("protein"))
			proteinID := stringValue(rec.Get("protein_id"))
			organismID := stringValue(rec.Get("organism_id"))
			if protein == "" || organismID == "" {
				continue
			}
			if out[protein] == nil {
				out[protein] = map[string]string{}
			}
			out[protein][organismID] = proteinID
		}
		return nil, result.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGraphQueryFailed, "protein to organism query failed")
	}
	return out, nil
}

// GeneNames returns the primary name for each known gene id.  Unknown ids are
// absent from the result; callers treat absence as "not a real gene".
func (r *AnnotationGraphRepository) GeneNames(ctx context.Context, geneIDs []string) (map[string]string, error) {
	out := map[string]string{}
	if len(geneIDs) == 0 {
		return out, nil
	}

	params := map[string]interface{}{"ids": geneIDs}
	_, err := r.driver.ExecuteRead(ctx, func(tx driver.Transaction) (interface{}, error) {
		result, err := tx.Run(ctx, geneNamesQuery, params)
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			rec := result.Record()
			id := stringValue(rec.Get("id"))
			name := stringValue(rec.Get("name"))
			if id != "" {
				out[id] = name
			}
		}
		return nil, result.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGraphQueryFailed, "gene name query failed")
	}
	return out, nil
}

func stringValue(v interface{}, ok bool) string {
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
