// Package enrichment annotates enrichment tables.  A table's cells are
// combined into one text, run through the regular pipeline with cell
// boundaries attached, and the resulting annotations are re-based onto the
// cells they came from.
package enrichment

import (
	"context"
	"sort"

	"github.com/biosustain/lifelike-annotator/internal/annotator/bioc"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// DomainValue is one annotatable value inside a gene row's domain column.
type DomainValue struct {
	Text string `json:"text"`
}

// GeneRow is one row of an enrichment table: the gene as imported, the name
// it matched in the knowledge graph, its full name, and the per-domain
// enrichment text.
type GeneRow struct {
	Imported string `json:"imported"`
	Matched  string `json:"matched"`
	FullName string `json:"fullName"`
	// Domains maps domain name to sub-label to value.  Domains without
	// sub-columns use the empty label.
	Domains map[string]map[string]DomainValue `json:"domains"`
}

// Table is the enrichment table scheduled for annotation.
type Table struct {
	Genes []GeneRow `json:"genes"`
}

// AnnotateInput is one enrichment table to annotate.  Organism is required:
// enrichment tables are always built against one taxonomy node.
type AnnotateInput struct {
	FileHashID string
	Table      *Table
	Organism   annotation.SpecifiedOrganism
	Configs    pipeline.Configs
}

// AnnotateResult carries the combined-text collection plus the per-cell view.
type AnnotateResult struct {
	Collection *bioc.Collection
	Cells      []bioc.CellAnnotations
	Text       string
}

// Service annotates enrichment tables.
type Service interface {
	Annotate(ctx context.Context, input *AnnotateInput) (*AnnotateResult, error)
}

type serviceImpl struct {
	pipeline pipeline.Service
	logger   logging.Logger
}

// NewService builds the enrichment service on top of the annotation pipeline.
func NewService(p pipeline.Service, logger logging.Logger) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{pipeline: p, logger: logger.Named("enrichment")}
}

func (s *serviceImpl) Annotate(ctx context.Context, input *AnnotateInput) (*AnnotateResult, error) {
	if input == nil || input.Table == nil {
		return nil, errors.New(errors.ErrCodeAnnotationPayloadInvalid, "enrichment table is required")
	}
	if !input.Organism.IsSet() {
		return nil, errors.New(errors.ErrCodeAnnotationPayloadInvalid, "enrichment annotation requires an organism")
	}

	cells := CellsFromTable(input.Table)
	mapping := bioc.BuildCellMapping(cells)
	if mapping.Text == "" {
		return &AnnotateResult{Collection: bioc.NewAssembler().Assemble(input.FileHashID, "", nil)}, nil
	}

	result, err := s.pipeline.Annotate(ctx, &pipeline.AnnotateInput{
		FileHashID: input.FileHashID,
		Chars:      tokenizer.FromText(mapping.Text),
		Organism:   input.Organism,
		Configs:    input.Configs,
		CellEnds:   mapping.CellEnds(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("annotated enrichment table",
		logging.String("file", input.FileHashID),
		logging.Int("rows", len(input.Table.Genes)),
		logging.Int("annotations", len(result.Annotations)))

	return &AnnotateResult{
		Collection: result.Collection,
		Cells:      mapping.Rebase(result.Annotations),
		Text:       mapping.Text,
	}, nil
}

// annotatedDomains lists the domain columns whose values are prose and worth
// annotating, in table order.  GO and BioCyc hold curated identifiers; their
// cells are still emitted so re-based output covers the whole row, and the
// mapping skips them.
var annotatedDomains = []string{
	bioc.DomainUniProt,
	bioc.DomainRegulon,
	bioc.DomainString,
	bioc.DomainGO,
	bioc.DomainBioCyc,
}

// CellsFromTable flattens a table into cells in reading order: imported name,
// matched name, full name, then the domain columns.  Sub-labels within a
// domain come out sorted so the combined text is stable across runs.
func CellsFromTable(table *Table) []bioc.Cell {
	var cells []bioc.Cell
	for row, gene := range table.Genes {
		cells = append(cells,
			bioc.Cell{Text: gene.Imported, Row: row, Domain: bioc.DomainImported},
			bioc.Cell{Text: gene.Matched, Row: row, Domain: bioc.DomainMatched},
			bioc.Cell{Text: gene.FullName, Row: row, Domain: bioc.DomainFullName},
		)
		for _, domain := range annotatedDomains {
			labels := gene.Domains[domain]
			if len(labels) == 0 {
				continue
			}
			names := make([]string, 0, len(labels))
			for label := range labels {
				names = append(names, label)
			}
			sort.Strings(names)
			for _, label := range names {
				cells = append(cells, bioc.Cell{
					Text:   labels[label].Text,
					Row:    row,
					Domain: domain,
					Label:  label,
				})
			}
		}
	}
	return cells
}
