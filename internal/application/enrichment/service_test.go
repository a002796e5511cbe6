package enrichment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/annotator/bioc"
	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/testutil"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

type fakePipeline struct {
	lastInput   *pipeline.AnnotateInput
	annotations []*annotation.Annotation
	err         error
}

func (f *fakePipeline) Annotate(_ context.Context, input *pipeline.AnnotateInput) (*pipeline.AnnotateResult, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.AnnotateResult{
		Collection:  bioc.NewAssembler().Assemble(input.FileHashID, textOf(input), f.annotations),
		Annotations: f.annotations,
	}, nil
}

func (f *fakePipeline) AnnotateBatch(context.Context, *pipeline.BatchInput) []pipeline.BatchResult {
	return nil
}

func textOf(input *pipeline.AnnotateInput) string {
	text := ""
	for _, c := range input.Chars {
		text += c.Text
	}
	return text
}

func gyraTable() *Table {
	return &Table{Genes: []GeneRow{{
		Imported: "gyrA",
		Matched:  "gyrA",
		FullName: "DNA gyrase subunit A",
		Domains: map[string]map[string]DomainValue{
			bioc.DomainRegulon: {
				"Regulated By": {Text: "lexA"},
				"Activated By": {Text: "soxS"},
			},
			bioc.DomainGO: {"": {Text: "GO:0003918"}},
		},
	}}}
}

func ecoli() annotation.SpecifiedOrganism {
	return annotation.SpecifiedOrganism{Synonym: "Escherichia coli", OrganismID: "562", Category: annotation.OrganismBacteria}
}

func TestCellsFromTableOrdersColumns(t *testing.T) {
	cells := CellsFromTable(gyraTable())

	domains := make([]string, 0, len(cells))
	for _, cell := range cells {
		domains = append(domains, cell.Domain)
	}
	assert.Equal(t, []string{
		bioc.DomainImported, bioc.DomainMatched, bioc.DomainFullName,
		bioc.DomainRegulon, bioc.DomainRegulon, bioc.DomainGO,
	}, domains)

	// Regulon sub-labels come out sorted.
	assert.Equal(t, "Activated By", cells[3].Label)
	assert.Equal(t, "soxS", cells[3].Text)
	assert.Equal(t, "Regulated By", cells[4].Label)
}

func TestAnnotateRebasesPerCell(t *testing.T) {
	// Combined text: "gyrA gyrA DNA gyrase subunit A soxS lexA " with the
	// GO cell left out of the mapping.
	p := &fakePipeline{annotations: []*annotation.Annotation{
		{
			Keyword: "gyrA", KeywordLength: 4,
			LoLocationOffset: 5, HiLocationOffset: 8,
			Meta: annotation.Meta{Type: annotation.TypeGene},
		},
		{
			Keyword: "soxS", KeywordLength: 4,
			LoLocationOffset: 31, HiLocationOffset: 34,
			Meta: annotation.Meta{Type: annotation.TypeGene},
		},
	}}
	svc := NewService(p, testutil.NewMockLogger())

	result, err := svc.Annotate(context.Background(), &AnnotateInput{
		FileHashID: "table-1",
		Table:      gyraTable(),
		Organism:   ecoli(),
	})
	require.NoError(t, err)

	require.NotNil(t, p.lastInput)
	assert.Equal(t, "gyrA gyrA DNA gyrase subunit A soxS lexA ", result.Text)
	assert.Equal(t, []int{3, 8, 29, 34, 39}, p.lastInput.CellEnds)
	assert.Len(t, p.lastInput.Chars, len(result.Text))

	require.Len(t, result.Cells, 5)

	matched := result.Cells[1]
	assert.Equal(t, bioc.DomainMatched, matched.Cell.Domain)
	require.Len(t, matched.Annotations, 1)
	assert.Equal(t, 0, matched.Annotations[0].LoLocationOffset)
	assert.Equal(t, 3, matched.Annotations[0].HiLocationOffset)
	assert.Equal(t, "gyrA", matched.Annotations[0].EnrichmentGene)

	regulon := result.Cells[3]
	assert.Equal(t, bioc.DomainRegulon, regulon.Cell.Domain)
	require.Len(t, regulon.Annotations, 1)
	assert.Equal(t, 0, regulon.Annotations[0].LoLocationOffset)
	require.NotNil(t, regulon.Annotations[0].EnrichmentDomain)
	assert.Equal(t, "Activated By", regulon.Annotations[0].EnrichmentDomain.SubDomain)

	// The input annotations keep their combined-text offsets.
	assert.Equal(t, 5, p.annotations[0].LoLocationOffset)
}

func TestAnnotateRequiresOrganism(t *testing.T) {
	svc := NewService(&fakePipeline{}, testutil.NewMockLogger())

	_, err := svc.Annotate(context.Background(), &AnnotateInput{FileHashID: "t", Table: gyraTable()})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnnotationPayloadInvalid))
}

func TestAnnotateEmptyTable(t *testing.T) {
	p := &fakePipeline{}
	svc := NewService(p, testutil.NewMockLogger())

	result, err := svc.Annotate(context.Background(), &AnnotateInput{
		FileHashID: "t",
		Table:      &Table{},
		Organism:   ecoli(),
	})
	require.NoError(t, err)
	assert.Nil(t, p.lastInput)
	assert.Empty(t, result.Cells)
	assert.Empty(t, result.Collection.Annotations())
}
