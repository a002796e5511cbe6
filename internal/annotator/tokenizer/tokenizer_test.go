package tokenizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

func charsFromString(s string) []tokenizer.Char {
	chars := make([]tokenizer.Char, 0, len(s))
	for _, r := range s {
		chars = append(chars, tokenizer.Char{Text: string(r), Page: 1})
	}
	return chars
}

func keywordSet(tokens []tokenizer.Token) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok.Keyword] = struct{}{}
	}
	return set
}

func TestTokenizeSentence(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	res := tok.Tokenize(charsFromString("I am a sentence\n"))

	require.Len(t, res.Words, 4)
	assert.Equal(t, "I", res.Words[0].Keyword)
	assert.Equal(t, "am", res.Words[1].Keyword)
	assert.Equal(t, "a", res.Words[2].Keyword)
	assert.Equal(t, "sentence", res.Words[3].Keyword)

	// Single letters and common words are filtered from the emitted
	// keywords; multi-word runs containing them survive.
	want := map[string]struct{}{
		"I am":            {},
		"I am a":          {},
		"I am a sentence": {},
		"am a":            {},
		"am a sentence":   {},
		"a sentence":      {},
		"sentence":        {},
	}
	assert.Equal(t, want, keywordSet(res.Tokens))
}

func TestCombineWordsHyphenInsideWord(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	res := tok.Tokenize(charsFromString("Typh-imurium"))

	require.Len(t, res.Words, 1)
	word := res.Words[0]
	assert.Equal(t, "Typh-imurium", word.Keyword)
	assert.Equal(t, 0, word.Lo())
	assert.Equal(t, 11, word.Hi())
	require.Len(t, word.Offsets, 12)
}

func TestCombineWordsLineBreakHyphenJoins(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	res := tok.Tokenize(charsFromString("Typh-\nimurium"))

	require.Len(t, res.Words, 1)
	// The end-of-line hyphen and the break are dropped, re-joining the word.
	assert.Equal(t, "Typhimurium", res.Words[0].Keyword)
}

func TestCombineWordsKeepsInitials(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	res := tok.Tokenize(charsFromString("E. \n Coli"))

	require.Len(t, res.Words, 2)
	assert.Equal(t, "E.", res.Words[0].Keyword)
	assert.Equal(t, "Coli", res.Words[1].Keyword)

	set := keywordSet(res.Tokens)
	assert.Contains(t, set, "E. Coli")
	assert.Contains(t, set, "Coli")
}

func TestCombineWordsStripsSurroundingPunctuation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"trailing comma", "I Havecomma,", []string{"I", "Havecomma"}},
		{"trailing paren", "I Have)", []string{"I", "Have"}},
		{"trailing period", "I Have.", []string{"I", "Have"}},
		{"stacked trailing", "I Have.),", []string{"I", "Have"}},
		{"leading and trailing", "(,I Have.),", []string{"I", "Have"}},
		{"balanced parens stripped", "(circle)", []string{"circle"}},
		{"matched pair inside word kept", "Ca(2+)", []string{"Ca(2+)"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tok := tokenizer.New(logging.NewNopLogger())
			res := tok.Tokenize(charsFromString(tt.input))
			got := make([]string, 0, len(res.Words))
			for _, w := range res.Words {
				got = append(got, w.Keyword)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrepareExpandsLigatures(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	chars := []tokenizer.Char{
		{Text: "e", X0: 0, X1: 1, Width: 1, Page: 1},
		{Text: "ﬃ", X0: 1, X1: 4, Width: 3, Page: 1}, // ffi
		{Text: "c", X0: 4, X1: 5, Width: 1, Page: 1},
	}
	res := tok.Tokenize(chars)

	require.Len(t, res.Words, 1)
	assert.Equal(t, "effic", res.Words[0].Keyword)
	require.Len(t, res.Chars, 5)
	assert.Equal(t, "f", res.Chars[1].Text)
	assert.Equal(t, "f", res.Chars[2].Text)
	assert.Equal(t, "i", res.Chars[3].Text)
}

func TestPrepareInsertsVirtualSpace(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	// Two glyph runs with a horizontal gap wider than the spacing threshold.
	chars := []tokenizer.Char{
		{Text: "a", X0: 0, X1: 1, Width: 1, Height: 2, Page: 1},
		{Text: "b", X0: 1, X1: 2, Width: 1, Height: 2, Page: 1},
		{Text: "c", X0: 5, X1: 6, Width: 1, Height: 2, Page: 1},
		{Text: "d", X0: 6, X1: 7, Width: 1, Height: 2, Page: 1},
	}
	res := tok.Tokenize(chars)

	require.Len(t, res.Words, 2)
	assert.Equal(t, "ab", res.Words[0].Keyword)
	assert.Equal(t, "cd", res.Words[1].Keyword)
}

func TestPrepareCollapsesWhitespaceRuns(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	res := tok.Tokenize(charsFromString("a  \t b"))

	// One whitespace char survives between the words.
	require.Len(t, res.Chars, 3)
	assert.Equal(t, "a b", res.Text())
}

func TestAbbreviationDetection(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	res := tok.Tokenize(charsFromString("heat shock response (HSR) pathway"))

	require.Contains(t, res.Abbreviations, "HSR")
	assert.Equal(t, []string{"heat", "shock", "response"}, res.Abbreviations["HSR"])
}

func TestTokenizeMaxWords(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger(), tokenizer.WithMaxWords(2))
	res := tok.Tokenize(charsFromString("alpha beta gamma"))

	set := keywordSet(res.Tokens)
	assert.Contains(t, set, "alpha beta")
	assert.Contains(t, set, "beta gamma")
	assert.NotContains(t, set, "alpha beta gamma")
}

func TestTokenOffsetsRoundTrip(t *testing.T) {
	t.Parallel()

	tok := tokenizer.New(logging.NewNopLogger())
	res := tok.Tokenize(charsFromString("the glucose level"))

	text := res.Text()
	for _, token := range res.Tokens {
		if token.WordCount() != 1 {
			continue
		}
		lo, hi := token.Lo(), token.Hi()
		assert.Equal(t, token.Keyword, text[lo:hi+1],
			"single-word token must slice back out of the document text")
	}
}
