package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/annotator/resolver"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/domain/document"
	"github.com/biosustain/lifelike-annotator/internal/testutil"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

func charsFromText(text string) []tokenizer.Char {
	runes := []rune(text)
	chars := make([]tokenizer.Char, 0, len(runes))
	for i, r := range runes {
		chars = append(chars, tokenizer.Char{
			Text:   string(r),
			X0:     float64(i) * 10,
			Y0:     100,
			X1:     float64(i)*10 + 8,
			Y1:     110,
			Height: 10,
			Width:  8,
			Page:   1,
		})
	}
	return chars
}

// fakeGlobal serves fixed global lists.
type fakeGlobal struct {
	inclusions []*annotation.Annotation
	exclusions []*annotation.ExclusionRule
}

func (f *fakeGlobal) Save(context.Context, *annotation.GlobalListEntry) error { return nil }

func (f *fakeGlobal) Inclusions(context.Context) ([]*annotation.Annotation, error) {
	return f.inclusions, nil
}

func (f *fakeGlobal) Exclusions(context.Context) ([]*annotation.ExclusionRule, error) {
	return f.exclusions, nil
}

func (f *fakeGlobal) List(context.Context, annotation.ManualKind, int, int) ([]*annotation.GlobalListEntry, int64, error) {
	return nil, 0, nil
}

func (f *fakeGlobal) Delete(context.Context, []int64) error { return nil }

// fakeKG restricts canned gene matches to the requested organism ids.
type fakeKG struct {
	genes map[string]map[string]map[string]string
}

func (f *fakeKG) GenesToOrganisms(_ context.Context, _, organismIDs []string) (map[string]map[string]map[string]string, error) {
	allowed := make(map[string]struct{}, len(organismIDs))
	for _, id := range organismIDs {
		allowed[id] = struct{}{}
	}
	out := make(map[string]map[string]map[string]string)
	for synonym, byName := range f.genes {
		for name, byOrganism := range byName {
			for organismID, geneID := range byOrganism {
				if _, ok := allowed[organismID]; !ok {
					continue
				}
				if out[synonym] == nil {
					out[synonym] = make(map[string]map[string]string)
				}
				if out[synonym][name] == nil {
					out[synonym][name] = make(map[string]string)
				}
				out[synonym][name][organismID] = geneID
			}
		}
	}
	return out, nil
}

func (f *fakeKG) ProteinsToOrganisms(_ context.Context, _, organismIDs []string) (map[string]map[string]string, error) {
	return map[string]map[string]string{}, nil
}

func chemicalDictionary() *testutil.MemoryDictionary {
	return testutil.NewMemoryDictionary().Add(annotation.TypeChemical, "glucose",
		annotation.EntityRecord{
			EntityID: "CHEBI:17234",
			IDType:   annotation.DatabaseChebi,
			Name:     "glucose",
			Synonym:  "glucose",
		})
}

func TestAnnotateAssemblesCollection(t *testing.T) {
	t.Parallel()

	svc := NewService(chemicalDictionary(), nil, nil, nil, nil)

	result, err := svc.Annotate(context.Background(), &AnnotateInput{
		FileHashID: "file-1",
		Chars:      charsFromText("glucose drives respiration"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Collection)
	require.Len(t, result.Collection.Documents, 1)
	assert.Equal(t, "file-1", result.Collection.Documents[0].ID)

	annos := result.Collection.Annotations()
	require.Len(t, annos, 1)
	assert.Equal(t, "glucose", annos[0].TextInDocument)
	assert.Equal(t, annotation.TypeChemical, annos[0].Meta.Type)
	assert.Equal(t, "CHEBI:17234", annos[0].Meta.ID)
	assert.Equal(t, 0, annos[0].LoLocationOffset)
	assert.Equal(t, 6, annos[0].HiLocationOffset)
}

func TestAnnotateGlobalExclusionSuppressesMatch(t *testing.T) {
	t.Parallel()

	global := &fakeGlobal{exclusions: []*annotation.ExclusionRule{{
		Type:              annotation.TypeChemical,
		Text:              "Glucose",
		IsCaseInsensitive: true,
	}}}
	svc := NewService(chemicalDictionary(), nil, nil, global, nil)

	result, err := svc.Annotate(context.Background(), &AnnotateInput{
		FileHashID: "file-1",
		Chars:      charsFromText("glucose drives respiration"),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Annotations)
}

func TestAnnotateFallbackOrganismFromDictionary(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryDictionary().
		Add(annotation.TypeGene, "gyra", annotation.EntityRecord{
			EntityID: "947",
			IDType:   annotation.DatabaseNCBIGene,
			Name:     "gyrA",
			Synonym:  "gyrA",
		}).
		Add(annotation.TypeSpecies, "escherichia coli", annotation.EntityRecord{
			EntityID: "562",
			IDType:   annotation.DatabaseNCBITaxonomy,
			Name:     "Escherichia coli",
			Synonym:  "Escherichia coli",
			Category: annotation.OrganismBacteria,
		})
	kg := &fakeKG{genes: map[string]map[string]map[string]string{
		"gyrA": {"gyrA": {"562": "947"}},
	}}
	svc := NewService(store, kg, nil, nil, nil)

	result, err := svc.Annotate(context.Background(), &AnnotateInput{
		FileHashID: "file-1",
		Chars:      charsFromText("gyrA binds supercoiled DNA"),
		Organism: annotation.SpecifiedOrganism{
			Synonym:    "Escherichia coli",
			OrganismID: "562",
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Annotations, 1)
	gene := result.Annotations[0]
	assert.Equal(t, annotation.TypeGene, gene.Meta.Type)
	assert.Equal(t, "947", gene.Meta.ID)
	// The category comes from the species dictionary via the fallback lookup.
	assert.Equal(t, annotation.OrganismBacteria, gene.Meta.Category)
}

func TestAnnotateFallbackOrganismUnknown(t *testing.T) {
	t.Parallel()

	svc := NewService(chemicalDictionary(), nil, nil, nil, nil)

	_, err := svc.Annotate(context.Background(), &AnnotateInput{
		FileHashID: "file-1",
		Chars:      charsFromText("glucose drives respiration"),
		Organism: annotation.SpecifiedOrganism{
			Synonym:    "Martian microbe",
			OrganismID: "99999",
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnnotationFailed))
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch
// ─────────────────────────────────────────────────────────────────────────────

type fakeFiles struct {
	files    map[string]*document.File
	versions []*document.AnnotationsVersion
	saved    []*document.File
}

func (f *fakeFiles) ByHashID(_ context.Context, hashID string) (*document.File, error) {
	file, ok := f.files[hashID]
	if !ok {
		return nil, errors.NotFound("file not found")
	}
	return file, nil
}

func (f *fakeFiles) ByHashIDs(_ context.Context, hashIDs []string) (map[string]*document.File, error) {
	out := make(map[string]*document.File)
	for _, id := range hashIDs {
		if file, ok := f.files[id]; ok {
			out[id] = file
		}
	}
	return out, nil
}

func (f *fakeFiles) SaveAnnotations(_ context.Context, file *document.File) error {
	f.saved = append(f.saved, file)
	return nil
}

func (f *fakeFiles) SaveManualLists(context.Context, *document.File) error { return nil }

func (f *fakeFiles) SaveVersion(_ context.Context, v *document.AnnotationsVersion) error {
	f.versions = append(f.versions, v)
	return nil
}

func (f *fakeFiles) Versions(context.Context, int64, int) ([]*document.AnnotationsVersion, error) {
	return nil, nil
}

type fakeSource struct {
	chars map[string][]tokenizer.Char
}

func (f *fakeSource) DocumentChars(_ context.Context, hashID string) ([]tokenizer.Char, map[int]resolver.CropBox, error) {
	chars, ok := f.chars[hashID]
	if !ok {
		return nil, nil, errors.NotFound("no parse output")
	}
	return chars, nil, nil
}

func TestAnnotateBatchOutcomes(t *testing.T) {
	t.Parallel()

	files := &fakeFiles{files: map[string]*document.File{
		"known": {ID: 7, HashID: "known", Filename: "doc.pdf"},
		"torn":  {ID: 8, HashID: "torn", Filename: "broken.pdf"},
	}}
	source := &fakeSource{chars: map[string][]tokenizer.Char{
		"known": charsFromText("glucose drives respiration"),
	}}
	svc := NewService(chemicalDictionary(), nil, nil, nil, nil,
		WithBatchDependencies(files, source))

	results := svc.AnnotateBatch(context.Background(), &BatchInput{
		FileHashIDs: []string{"known", "missing", "torn"},
		Cause:       document.CauseUserReannotation,
		UserID:      "user-1",
	})
	require.Len(t, results, 3)

	assert.Equal(t, OutcomeAnnotated, results[0].Outcome)
	assert.Equal(t, "known", results[0].FileHashID)
	assert.Equal(t, 1, results[0].Annotations)

	assert.Equal(t, OutcomeNotFound, results[1].Outcome)
	assert.Equal(t, "missing", results[1].FileHashID)

	assert.Equal(t, OutcomeNotAnnotated, results[2].Outcome)
	assert.NotEmpty(t, results[2].Error)

	// The successful file got a version snapshot and a persisted collection.
	require.Len(t, files.versions, 1)
	assert.Equal(t, int64(7), files.versions[0].FileID)
	assert.Equal(t, document.CauseUserReannotation, files.versions[0].Cause)
	require.Len(t, files.saved, 1)
	assert.NotNil(t, files.saved[0].Annotations)
	assert.False(t, files.saved[0].AnnotationsDate.IsZero())
}

// ─────────────────────────────────────────────────────────────────────────────
// NLP overlay
// ─────────────────────────────────────────────────────────────────────────────

type fakeNLP struct {
	predictions []Prediction
	calls       int
}

func (f *fakeNLP) Predict(context.Context, string) ([]Prediction, error) {
	f.calls++
	return f.predictions, nil
}

func TestNLPOverlayTagsMatchingTokens(t *testing.T) {
	t.Parallel()

	nlp := &fakeNLP{predictions: []Prediction{
		{Type: string(annotation.TypeChemical), Lo: 0, Hi: 6},
	}}
	svc := NewService(chemicalDictionary(), nil, nil, nil, nil,
		WithNLPClient(nlp)).(*serviceImpl)

	tok := svc.tokenizer.Tokenize(charsFromText("glucose drives respiration"))
	configs := Configs{AnnotationMethods: map[annotation.EntityType]Method{
		annotation.TypeChemical: MethodNLP,
	}}
	require.NoError(t, svc.applyNLPOverlay(context.Background(), configs, tok.Text(), tok))
	assert.Equal(t, 1, nlp.calls)

	var tagged int
	for _, token := range tok.Tokens {
		if token.PredictedType == string(annotation.TypeChemical) {
			tagged++
			assert.Equal(t, "glucose", token.Keyword)
		}
	}
	assert.Equal(t, 1, tagged)
}

func TestNLPOverlaySkippedWithoutNLPTypes(t *testing.T) {
	t.Parallel()

	nlp := &fakeNLP{}
	svc := NewService(chemicalDictionary(), nil, nil, nil, nil,
		WithNLPClient(nlp)).(*serviceImpl)

	tok := svc.tokenizer.Tokenize(charsFromText("glucose drives respiration"))
	configs := Configs{AnnotationMethods: map[annotation.EntityType]Method{
		annotation.TypeChemical: MethodRules,
	}}
	require.NoError(t, svc.applyNLPOverlay(context.Background(), configs, tok.Text(), tok))
	assert.Equal(t, 0, nlp.calls)
}

func TestConfigsSpeciesStaysRulesBased(t *testing.T) {
	t.Parallel()

	configs := Configs{AnnotationMethods: map[annotation.EntityType]Method{
		annotation.TypeSpecies:  MethodNLP,
		annotation.TypeChemical: MethodNLP,
	}}
	assert.Equal(t, MethodRules, configs.Method(annotation.TypeSpecies))
	assert.Equal(t, MethodNLP, configs.Method(annotation.TypeChemical))
	assert.Equal(t, MethodRules, configs.Method(annotation.TypeDisease))
}
