package bioc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

func anno(text string, lo, hi int) *annotation.Annotation {
	return &annotation.Annotation{
		Keyword:          text,
		TextInDocument:   text,
		KeywordLength:    len(text),
		LoLocationOffset: lo,
		HiLocationOffset: hi,
		Meta:             annotation.Meta{Type: annotation.TypeChemical, AllText: text},
	}
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	clock := func() time.Time {
		return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	}
	a := NewAssembler(WithClock(clock))

	annotations := []*annotation.Annotation{
		anno("sulfide", 9, 15),
		anno("hydrogen", 0, 7),
	}
	collection := a.Assemble("uploads/paper.pdf", "hydrogen sulfide", annotations)

	assert.Equal(t, "lifelike", collection.Source)
	assert.Equal(t, "2024-03-05", collection.Date)
	assert.Equal(t, "uploads/paper.pdf", collection.Key)

	require.Len(t, collection.Documents, 1)
	require.Len(t, collection.Documents[0].Passages, 1)

	passage := collection.Documents[0].Passages[0]
	assert.Equal(t, 0, passage.Offset)
	assert.Equal(t, "hydrogen sulfide", passage.Text)

	require.Len(t, passage.Annotations, 2)
	assert.Equal(t, "hydrogen", passage.Annotations[0].Keyword)
	assert.Equal(t, "sulfide", passage.Annotations[1].Keyword)

	// Input order untouched.
	assert.Equal(t, "sulfide", annotations[0].Keyword)
}

func TestCollectionAnnotations(t *testing.T) {
	t.Parallel()

	a := NewAssembler()
	collection := a.Assemble("f", "text", []*annotation.Annotation{anno("text", 0, 3)})
	assert.Len(t, collection.Annotations(), 1)

	var empty *Collection
	assert.Nil(t, empty.Annotations())
}

func TestBuildCellMapping(t *testing.T) {
	t.Parallel()

	cells := []Cell{
		{Text: "gyrA", Row: 0, Domain: DomainImported},
		{Text: "DNA gyrase subunit A", Row: 0, Domain: DomainFullName},
		{Text: "GO:0003916", Row: 0, Domain: DomainGO},
		{Text: "PWY-6545", Row: 0, Domain: DomainBioCyc},
		{Text: "regulated", Row: 0, Domain: DomainRegulon, Label: "Activated By"},
	}

	m := BuildCellMapping(cells)
	assert.Equal(t, "gyrA DNA gyrase subunit A regulated ", m.Text)
	assert.Equal(t, []int{3, 24, 34}, m.CellEnds())
}

func TestRebase(t *testing.T) {
	t.Parallel()

	m := BuildCellMapping([]Cell{
		{Text: "gyrA", Row: 0, Domain: DomainImported},
		{Text: "DNA gyrase subunit A", Row: 0, Domain: DomainFullName},
		{Text: "regulated", Row: 0, Domain: DomainRegulon, Label: "Activated By"},
	})

	annotations := []*annotation.Annotation{
		anno("gyrase", 9, 14),
		anno("gyrA", 0, 3),
		anno("regulated", 26, 34),
	}

	cells := m.Rebase(annotations)
	require.Len(t, cells, 3)

	first := cells[0]
	require.Len(t, first.Annotations, 1)
	assert.Equal(t, 0, first.Annotations[0].LoLocationOffset)
	assert.Equal(t, 3, first.Annotations[0].HiLocationOffset)
	assert.Equal(t, "gyrA", first.Annotations[0].EnrichmentGene)
	assert.Equal(t, DomainImported, first.Annotations[0].EnrichmentDomain.Domain)

	second := cells[1]
	require.Len(t, second.Annotations, 1)
	assert.Equal(t, 4, second.Annotations[0].LoLocationOffset)
	assert.Equal(t, 9, second.Annotations[0].HiLocationOffset)
	assert.Equal(t, "gyrA", second.Annotations[0].EnrichmentGene)
	assert.Equal(t, DomainFullName, second.Annotations[0].EnrichmentDomain.Domain)

	third := cells[2]
	require.Len(t, third.Annotations, 1)
	assert.Equal(t, 0, third.Annotations[0].LoLocationOffset)
	assert.Equal(t, 8, third.Annotations[0].HiLocationOffset)
	assert.Equal(t, DomainRegulon, third.Annotations[0].EnrichmentDomain.Domain)
	assert.Equal(t, "Activated By", third.Annotations[0].EnrichmentDomain.SubDomain)

	// Originals keep their combined-text offsets.
	assert.Equal(t, 26, annotations[2].LoLocationOffset)
}
