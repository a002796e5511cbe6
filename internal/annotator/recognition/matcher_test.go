package recognition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/testutil"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

func tokenFor(keyword string) tokenizer.Token {
	return tokenizer.Token{
		Keyword:    keyword,
		Normalized: textutil.Normalize(keyword),
		Words:      []tokenizer.Word{{Keyword: keyword, Offsets: []int{0}}},
	}
}

func TestIdentifyDictionaryHit(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeChemical, "hydrogen", annotation.EntityRecord{
			EntityID: "CHEBI:18276", IDType: annotation.DatabaseChebi, Name: "hydrogen", Synonym: "hydrogen",
		})
	m := NewMatcher(store, nil)

	res, err := m.Identify([]tokenizer.Token{
		tokenFor("hydrogen"),
		tokenFor("hydrogen"),
		tokenFor("unrelated"),
	})
	require.NoError(t, err)

	matched := res.Matched(annotation.TypeChemical)
	require.Len(t, matched, 1)
	require.Contains(t, matched, "hydrogen")
	assert.Len(t, matched["hydrogen"].Tokens, 2)
	assert.Len(t, matched["hydrogen"].Records, 1)
	assert.Equal(t, "CHEBI:18276", matched["hydrogen"].Records[0].EntityID)
}

func TestIdentifyShortKeySkipped(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeGene, "yl", annotation.EntityRecord{EntityID: "1", Name: "yl", Synonym: "yl"})
	m := NewMatcher(store, nil)

	res, err := m.Identify([]tokenizer.Token{tokenFor("yl")})
	require.NoError(t, err)
	assert.Zero(t, res.Total())
}

func TestIdentifyMissIsNotAnError(t *testing.T) {
	t.Parallel()

	m := NewMatcher(testutil.NewMemoryDictionary(), nil)
	res, err := m.Identify([]tokenizer.Token{tokenFor("nonexistent")})
	require.NoError(t, err)
	assert.Zero(t, res.Total())
}

func TestIdentifyExclusions(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeGene, "gyra", annotation.EntityRecord{EntityID: "g1", Name: "gyrA", Synonym: "gyrA"}).
		Add(annotation.TypeDisease, "cold", annotation.EntityRecord{EntityID: "d1", Name: "cold", Synonym: "cold"})

	ex := NewExclusions()
	ex.Add(annotation.TypeGene, "gyrA")
	ex.Add(annotation.TypeDisease, "Cold")

	m := NewMatcher(store, nil, WithExclusions(ex))

	res, err := m.Identify([]tokenizer.Token{
		tokenFor("gyrA"), // excluded, exact case
		tokenFor("GYRA"), // gene exclusions are case-sensitive
		tokenFor("cold"), // disease exclusions are not
	})
	require.NoError(t, err)

	genes := res.Matched(annotation.TypeGene)
	require.Len(t, genes, 1)
	assert.Contains(t, genes, "GYRA")
	assert.Empty(t, res.Matched(annotation.TypeDisease))
}

func TestIdentifyStopwords(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeChemical, "water", annotation.EntityRecord{EntityID: "c1", Name: "water", Synonym: "water"}).
		Add(annotation.TypeSpecies, "water", annotation.EntityRecord{EntityID: "s1", Name: "water", Synonym: "water"})

	m := NewMatcher(store, nil, WithStopwords([]string{"Water"}))

	res, err := m.Identify([]tokenizer.Token{tokenFor("water")})
	require.NoError(t, err)

	// Species matching ignores the general stopword list.
	assert.Empty(t, res.Matched(annotation.TypeChemical))
	assert.Contains(t, res.Matched(annotation.TypeSpecies), "water")
}

func TestIdentifyInclusionFallback(t *testing.T) {
	t.Parallel()

	in := NewInclusions()
	in.Add(annotation.TypeCompound, textutil.Normalize("custom-compound"), annotation.EntityRecord{
		EntityID: "MY:1", Name: "custom-compound", Synonym: "custom-compound", Inclusion: true,
	})
	m := NewMatcher(testutil.NewMemoryDictionary(), nil, WithInclusions(in))

	res, err := m.Identify([]tokenizer.Token{tokenFor("custom-compound")})
	require.NoError(t, err)

	matched := res.Matched(annotation.TypeCompound)
	require.Contains(t, matched, "custom-compound")
	assert.True(t, matched["custom-compound"].Records[0].Inclusion)
}

func TestIdentifyTypoCorrection(t *testing.T) {
	t.Parallel()

	correct := "S-Phase kinase-associated protein 2"
	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeProtein, textutil.Normalize(correct), annotation.EntityRecord{
			EntityID: "p1", Name: correct, Synonym: correct,
		})
	m := NewMatcher(store, nil, WithCategories(annotation.TypeProtein))

	res, err := m.Identify([]tokenizer.Token{tokenFor("S-Phase kinase associated protein 2")})
	require.NoError(t, err)

	matched := res.Matched(annotation.TypeProtein)
	require.Len(t, matched, 1)
	// Matched under the document keyword, not the corrected spelling.
	assert.Contains(t, matched, "S-Phase kinase associated protein 2")
}

func TestIdentifyProteinExactSynonymPreferred(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeProtein, "hyu",
			annotation.EntityRecord{EntityID: "p1", Name: "HYU", Synonym: "HYU"},
			annotation.EntityRecord{EntityID: "p2", Name: "Hyu", Synonym: "Hyu"},
		)
	m := NewMatcher(store, nil, WithCategories(annotation.TypeProtein))

	res, err := m.Identify([]tokenizer.Token{tokenFor("Hyu")})
	require.NoError(t, err)

	matched := res.Matched(annotation.TypeProtein)
	require.Contains(t, matched, "Hyu")
	require.Len(t, matched["Hyu"].Records, 1)
	assert.Equal(t, "p2", matched["Hyu"].Records[0].EntityID)
}

func TestIdentifyPredictedTypeGatesDictionary(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeGene, "gyra", annotation.EntityRecord{EntityID: "g1", Name: "gyrA", Synonym: "gyrA"}).
		Add(annotation.TypeSpecies, "coli", annotation.EntityRecord{EntityID: "562", Name: "coli", Synonym: "coli"})
	m := NewMatcher(store, nil)

	gene := tokenFor("gyrA")
	gene.PredictedType = string(annotation.TypeChemical)

	species := tokenFor("coli")
	species.PredictedType = "Bacteria"

	res, err := m.Identify([]tokenizer.Token{gene, species})
	require.NoError(t, err)

	assert.Empty(t, res.Matched(annotation.TypeGene))
	assert.Contains(t, res.Matched(annotation.TypeSpecies), "coli")
}

func TestResultsKeywordsSorted(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeChemical, "zinc", annotation.EntityRecord{EntityID: "c1", Name: "zinc", Synonym: "zinc"}).
		Add(annotation.TypeChemical, "iron", annotation.EntityRecord{EntityID: "c2", Name: "iron", Synonym: "iron"}).
		Add(annotation.TypeChemical, "gold", annotation.EntityRecord{EntityID: "c3", Name: "gold", Synonym: "gold"})
	m := NewMatcher(store, nil)

	res, err := m.Identify([]tokenizer.Token{tokenFor("zinc"), tokenFor("iron"), tokenFor("gold")})
	require.NoError(t, err)
	assert.Equal(t, []string{"gold", "iron", "zinc"}, res.Keywords(annotation.TypeChemical))
}

type staticGeneNames map[string]string

func (s staticGeneNames) GeneNames(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := s[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func TestBuildInclusions(t *testing.T) {
	t.Parallel()

	annos := []*annotation.Annotation{
		{Meta: annotation.Meta{Type: annotation.TypeChemical, ID: "CHEBI:1", AllText: "my-chem", IDType: annotation.DatabaseChebi}},
		{Meta: annotation.Meta{Type: annotation.TypeGene, ID: "101", AllText: "xylB"}},
		{Meta: annotation.Meta{Type: annotation.TypeGene, ID: "404", AllText: "ghost"}},
		{Meta: annotation.Meta{Type: annotation.TypeProtein, ID: "P1", AllText: "MyProt"}},
		{Meta: annotation.Meta{Type: annotation.TypeSpecies, ID: "562", AllText: "E. coli", Category: annotation.OrganismBacteria}},
		{Meta: annotation.Meta{Type: annotation.EntityType("Bogus"), ID: "x", AllText: "x"}},
		{Meta: annotation.Meta{Type: annotation.TypeChemical, ID: "", AllText: "missing id"}},
	}

	in, err := BuildInclusions(context.Background(), annos, staticGeneNames{"101": "xylB"}, nil)
	require.NoError(t, err)

	chems := in.Get(annotation.TypeChemical, textutil.Normalize("my-chem"))
	require.Len(t, chems, 1)
	assert.True(t, chems[0].Inclusion)
	assert.Equal(t, annotation.DatabaseChebi, chems[0].IDType)

	genes := in.Get(annotation.TypeGene, textutil.Normalize("xylB"))
	require.Len(t, genes, 1)
	assert.Equal(t, "xylB", genes[0].Name)

	// Gene ids unknown to the knowledge graph are dropped.
	assert.Empty(t, in.Get(annotation.TypeGene, textutil.Normalize("ghost")))

	species := in.Get(annotation.TypeSpecies, textutil.Normalize("E. coli"))
	require.Len(t, species, 1)
	assert.Equal(t, annotation.OrganismBacteria, species[0].Category)

	assert.Empty(t, in.Get(annotation.TypeChemical, textutil.Normalize("missing id")))
}

func TestBuildExclusions(t *testing.T) {
	t.Parallel()

	ex := BuildExclusions([]*annotation.ExclusionRule{
		{Type: annotation.TypeGene, Text: "gyrA"},
		{Type: annotation.TypeDisease, Text: "Heat-Shock"},
		{Type: annotation.TypeDisease, Text: ""},
		nil,
	})

	assert.True(t, ex.Excluded(annotation.TypeGene, "gyrA"))
	assert.False(t, ex.Excluded(annotation.TypeGene, "GyrA"))
	assert.True(t, ex.Excluded(annotation.TypeDisease, "heat shock"))
	assert.True(t, ex.Excluded(annotation.TypeDisease, "HEAT-SHOCK"))
	assert.False(t, ex.Excluded(annotation.TypeDisease, "heat"))
}
