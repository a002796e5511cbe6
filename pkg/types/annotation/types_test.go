package annotation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

func TestEntityTypePrecedence(t *testing.T) {
	t.Parallel()

	// Species outranks everything; the generic Entity type ranks last.
	ordered := []annotation.EntityType{
		annotation.TypeSpecies,
		annotation.TypeGene,
		annotation.TypeProtein,
		annotation.TypePhenotype,
		annotation.TypePhenomena,
		annotation.TypeChemical,
		annotation.TypeCompound,
		annotation.TypeDisease,
		annotation.TypeAnatomy,
		annotation.TypeFood,
		annotation.TypeCompany,
		annotation.TypeEntity,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i-1].Precedence(), ordered[i].Precedence(),
			"%s should outrank %s", ordered[i-1], ordered[i])
	}
}

func TestEntityTypeIsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, annotation.TypeGene.IsValid())
	assert.True(t, annotation.TypeCompany.IsValid())
	assert.False(t, annotation.EntityType("Planet").IsValid())
	assert.False(t, annotation.EntityType("").IsValid())
}

func TestEntityTypeMaxWordLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		entityType annotation.EntityType
		want       int
	}{
		{annotation.TypeGene, annotation.MaxGeneWordLength},
		{annotation.TypeFood, annotation.MaxFoodWordLength},
		{annotation.TypeChemical, annotation.MaxEntityWordLength},
		{annotation.TypeSpecies, annotation.MaxEntityWordLength},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.entityType), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.entityType.MaxWordLength())
		})
	}
}

func TestDatabaseHyperlink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		source   annotation.DatabaseType
		entityID string
		want     string
	}{
		{
			name:     "ncbi gene",
			source:   annotation.DatabaseNCBIGene,
			entityID: "945771",
			want:     "https://www.ncbi.nlm.nih.gov/gene/945771",
		},
		{
			name:     "mesh prefix stripped",
			source:   annotation.DatabaseMesh,
			entityID: "MESH:D014867",
			want:     "https://www.ncbi.nlm.nih.gov/mesh/D014867",
		},
		{
			name:     "chebi",
			source:   annotation.DatabaseChebi,
			entityID: "CHEBI:15377",
			want:     "https://www.ebi.ac.uk/chebi/searchId.do?chebiId=CHEBI:15377",
		},
		{
			name:     "unknown authority falls back to web search",
			source:   annotation.DatabaseType("OBSCURE"),
			entityID: "x1",
			want:     "https://www.google.com/search?q=x1",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.source.Hyperlink(tt.entityID))
		})
	}
}

func TestBuildSearchLinks(t *testing.T) {
	t.Parallel()

	links := annotation.BuildSearchLinks("heat shock")
	assert.Contains(t, links.NCBI, "heat+shock")
	assert.Contains(t, links.Uniprot, "heat+shock")
	assert.Contains(t, links.Wikipedia, "heat+shock")
	assert.Contains(t, links.Google, "heat+shock")
}

func TestRectCenterWithin(t *testing.T) {
	t.Parallel()

	a := annotation.Rect{10, 20, 30, 40}
	assert.InDelta(t, 20, a.CenterX(), 1e-9)
	assert.InDelta(t, 30, a.CenterY(), 1e-9)

	// Slightly shifted corners with the same center still match.
	b := annotation.Rect{10.3, 19.7, 29.7, 40.3}
	assert.True(t, a.CenterWithin(b, 0.5))

	far := annotation.Rect{50, 20, 70, 40}
	assert.False(t, a.CenterWithin(far, 0.5))
}

func TestAnnotationValidate(t *testing.T) {
	t.Parallel()

	valid := annotation.Annotation{
		UUID:             "7b6a5e1c",
		PageNumber:       1,
		Keyword:          "glucose",
		TextInDocument:   "glucose",
		KeywordLength:    7,
		LoLocationOffset: 10,
		HiLocationOffset: 16,
		Meta: annotation.Meta{
			Type:    annotation.TypeChemical,
			ID:      "CHEBI:17234",
			IDType:  annotation.DatabaseChebi,
			AllText: "glucose",
		},
	}
	require.NoError(t, valid.Validate())

	inverted := valid
	inverted.LoLocationOffset, inverted.HiLocationOffset = 16, 10
	assert.Error(t, inverted.Validate())

	badType := valid
	badType.Meta.Type = "Nonsense"
	assert.Error(t, badType.Validate())

	emptyText := valid
	emptyText.Meta.AllText = "   "
	assert.Error(t, emptyText.Validate())
}

func TestGlobalListEntryValidate(t *testing.T) {
	t.Parallel()

	inclusion := annotation.GlobalListEntry{
		Kind: annotation.ManualInclusion,
		Inclusion: &annotation.Annotation{
			Meta: annotation.Meta{
				Type:    annotation.TypeGene,
				AllText: "argA",
			},
		},
	}
	require.NoError(t, inclusion.Validate())

	// Kind and payload must agree.
	mismatched := inclusion
	mismatched.Kind = annotation.ManualExclusion
	assert.Error(t, mismatched.Validate())

	exclusion := annotation.GlobalListEntry{
		Kind: annotation.ManualExclusion,
		Exclusion: &annotation.ExclusionRule{
			Type: annotation.TypeChemical,
			Text: "lead",
		},
	}
	require.NoError(t, exclusion.Validate())
}

func TestSpecifiedOrganismIsSet(t *testing.T) {
	t.Parallel()

	assert.False(t, annotation.SpecifiedOrganism{}.IsSet())
	assert.True(t, annotation.SpecifiedOrganism{
		Synonym:    "Escherichia coli",
		OrganismID: "562",
		Category:   annotation.OrganismBacteria,
	}.IsSet())
}
