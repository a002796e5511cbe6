package client

import (
	"context"
	"encoding/json"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// EnrichmentClient accesses enrichment table annotation endpoints.
type EnrichmentClient struct {
	client *Client
}

// DomainValue is one domain cell's text.
type DomainValue struct {
	Text string `json:"text"`
}

// GeneRow is one gene's row of an enrichment table.
type GeneRow struct {
	Imported string                            `json:"imported"`
	Matched  string                            `json:"matched"`
	FullName string                            `json:"fullName"`
	Domains  map[string]map[string]DomainValue `json:"domains"`
}

// EnrichmentTable is the table to annotate.
type EnrichmentTable struct {
	Genes []GeneRow `json:"genes"`
}

// AnnotateTableRequest is the body for POST /enrichment/annotate.
type AnnotateTableRequest struct {
	FileHashID string                       `json:"file_hash_id"`
	Table      *EnrichmentTable             `json:"table"`
	Organism   annotation.SpecifiedOrganism `json:"organism"`
	Methods    map[string]string            `json:"annotation_methods,omitempty"`
}

// Cell locates one annotated cell in the source table.
type Cell struct {
	Text   string `json:"Text"`
	Row    int    `json:"Row"`
	Domain string `json:"Domain"`
	Label  string `json:"Label"`
}

// CellAnnotations carries one cell's annotations with cell-local offsets.
type CellAnnotations struct {
	Cell        Cell                     `json:"Cell"`
	Annotations []*annotation.Annotation `json:"Annotations"`
}

// AnnotateTableResult is the enrichment annotation response.
type AnnotateTableResult struct {
	Collection json.RawMessage   `json:"Collection"`
	Cells      []CellAnnotations `json:"Cells"`
	Text       string            `json:"Text"`
}

// Annotate runs the pipeline over the combined cell text of an enrichment
// table and returns per-cell annotations.
func (ec *EnrichmentClient) Annotate(ctx context.Context, req *AnnotateTableRequest) (*AnnotateTableResult, error) {
	var result AnnotateTableResult
	if err := ec.client.post(ctx, "/api/v1/enrichment/annotate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
