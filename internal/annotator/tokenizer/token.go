package tokenizer

import (
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// Char is one positioned glyph extracted from a document page.  Coordinates
// are PDF user space; a virtual space inserted from a coordinate gap carries
// zero coordinates and Space set.
type Char struct {
	Text           string
	X0, Y0, X1, Y1 float64
	Height, Width  float64
	Page           int
	Space          bool
}

// IsWhitespace reports whether the glyph is a space-class character,
// including the non-breaking space PDF extraction produces.
func (c Char) IsWhitespace() bool {
	switch c.Text {
	case " ", "\t", "\n", "\r", "\v", "\f", " ":
		return true
	}
	return c.Space
}

// Word is a contiguous run of glyphs combined into one document word.
// Offsets index into the prepared char stream, one entry per kept glyph, so
// rects and document text can be recovered exactly.
type Word struct {
	Keyword string
	Page    int
	Offsets []int
	// PreviousWords holds the words (at most four) preceding a parenthesized
	// word, used to detect abbreviation definitions like "heat shock (HS)".
	PreviousWords string
}

// Lo returns the inclusive start offset of the word.
func (w Word) Lo() int { return w.Offsets[0] }

// Hi returns the inclusive end offset of the word.
func (w Word) Hi() int { return w.Offsets[len(w.Offsets)-1] }

// Token is a keyword candidate: a run of 1..MaxWords consecutive words joined
// by single spaces, with the normalized form used as the dictionary key.
type Token struct {
	Keyword    string
	Normalized string
	Page       int
	Words      []Word

	// PredictedType is set by an NLP pre-pass when one runs; the dictionary
	// matcher then only consults the predicted category for this token.
	// Empty means no prediction and every category is consulted.
	PredictedType string
}

// Lo returns the inclusive start offset of the token in the char stream.
func (t Token) Lo() int { return t.Words[0].Lo() }

// Hi returns the inclusive end offset of the token in the char stream.
func (t Token) Hi() int { return t.Words[len(t.Words)-1].Hi() }

// WordCount returns how many document words the token spans.
func (t Token) WordCount() int { return len(t.Words) }

// Result is the complete tokenization of one document.
type Result struct {
	// Chars is the prepared char stream all offsets refer to; joining the
	// Text of every char yields the canonical document text.
	Chars  []Char
	Words  []Word
	Tokens []Token
	// Abbreviations maps a parenthesized short word to the words preceding
	// it, e.g. "HS" -> ["heat", "shock"].
	Abbreviations map[string][]string
}

// Text returns the canonical document text the offsets index into.
func (r *Result) Text() string {
	n := 0
	for _, c := range r.Chars {
		n += len(c.Text)
	}
	b := make([]byte, 0, n)
	for _, c := range r.Chars {
		b = append(b, c.Text...)
	}
	return string(b)
}

// abbreviationLengths are the word lengths treated as acronym candidates.
// FromText builds a positionless char stream for text that never came from a
// PDF, such as combined enrichment-table text.  Every char sits on page 1
// with zeroed coordinates; offsets still index the rune stream.
func FromText(text string) []Char {
	runes := []rune(text)
	chars := make([]Char, 0, len(runes))
	for _, r := range runes {
		chars = append(chars, Char{Text: string(r), Page: 1})
	}
	return chars
}

var abbreviationLengths = map[int]struct{}{3: {}, 4: {}}

const maxPreviousWords = annotation.MaxAbbreviationWordLength
