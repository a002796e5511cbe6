// Package tokenizer turns positioned document glyphs into positioned words
// and keyword candidates.  It expands typographic ligatures, inserts virtual
// spaces where glyph coordinates show a gap the extractor missed, joins words
// hyphenated across line breaks, strips unbalanced surrounding punctuation,
// and emits word n-grams up to a configurable length with stopword filtering.
package tokenizer

import (
	"regexp"
	"strings"

	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

// Coordinate-gap thresholds, as fractions of the previous glyph's width and
// height respectively.
const (
	charSpacingThreshold = 0.325
	newLineThreshold     = 0.30
)

// cidPattern matches glyphs the PDF extractor could not decode.
var cidPattern = regexp.MustCompile(`cid:\d+`)

// Tokenizer combines chars into words and keyword candidates.  Safe for
// concurrent use; all state lives in the per-call Result.
type Tokenizer struct {
	log logging.Logger
	// maxWords caps the n-gram length of emitted tokens.
	maxWords int
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithMaxWords overrides the default n-gram cap.
func WithMaxWords(n int) Option {
	return func(t *Tokenizer) {
		if n > 0 {
			t.maxWords = n
		}
	}
}

// New constructs a Tokenizer.  The default n-gram cap matches the longest
// multi-word entity name the dictionaries carry.
func New(log logging.Logger, opts ...Option) *Tokenizer {
	t := &Tokenizer{
		log:      log.Named("tokenizer"),
		maxWords: 6,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize runs the full pipeline: prepare the char stream, combine chars
// into words, and emit keyword candidates.
func (t *Tokenizer) Tokenize(chars []Char) *Result {
	prepared := t.Prepare(chars)
	words := t.CombineWords(prepared)
	res := &Result{
		Chars:         prepared,
		Words:         words,
		Tokens:        t.sequentialTokens(words),
		Abbreviations: collectAbbreviations(words),
	}
	t.log.Debug("tokenized document",
		logging.Int("chars", len(prepared)),
		logging.Int("words", len(words)),
		logging.Int("tokens", len(res.Tokens)))
	return res
}

// Prepare canonicalizes the raw glyph stream: undecodable CID glyphs are
// dropped, ligatures are expanded into per-letter chars with subdivided
// coordinates, virtual spaces are inserted where glyph coordinates show a gap,
// and whitespace runs are collapsed to a single char.
func (t *Tokenizer) Prepare(raw []Char) []Char {
	out := make([]Char, 0, len(raw))

	for _, c := range raw {
		if c.Text == "" || cidPattern.MatchString(c.Text) {
			continue
		}

		expanded := expandChar(c)

		for _, ec := range expanded {
			if len(out) > 0 {
				prev := out[len(out)-1]
				if spaceBetween(prev, ec) {
					out = append(out, Char{Text: " ", Page: prev.Page, Space: true})
					prev = out[len(out)-1]
				}
				if ec.IsWhitespace() && prev.IsWhitespace() {
					continue
				}
			}
			out = append(out, ec)
		}
	}
	return out
}

// expandChar splits a ligature glyph into one char per letter, dividing the
// glyph's horizontal extent evenly.  Non-ligature glyphs pass through.
func expandChar(c Char) []Char {
	text := c.Text
	runes := []rune(text)
	if len(runes) == 1 {
		if exp, ok := textutil.ExpandLigature(runes[0]); ok {
			text = exp
			runes = []rune(exp)
		}
	}
	if len(runes) <= 1 {
		c.Text = text
		return []Char{c}
	}

	parts := make([]Char, 0, len(runes))
	step := c.Width / float64(len(runes))
	for i, r := range runes {
		part := c
		part.Text = string(r)
		part.X0 = c.X0 + float64(i)*step
		part.X1 = c.X0 + float64(i+1)*step
		part.Width = step
		parts = append(parts, part)
	}
	return parts
}

// spaceBetween reports whether a virtual space belongs between two glyphs:
// both are printable and the horizontal or vertical gap exceeds the spacing
// thresholds.  Rotated text shares X1 and never gets a space.
func spaceBetween(prev, curr Char) bool {
	if prev.IsWhitespace() || curr.IsWhitespace() {
		return false
	}
	if curr.X1 == prev.X1 {
		return false
	}
	return curr.X0-prev.X1 > prev.Width*charSpacingThreshold ||
		abs(curr.Y0-prev.Y0) > prev.Height*newLineThreshold
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// CombineWords joins the prepared char stream into document words.  A hyphen
// at a line break is dropped together with the break, re-joining the split
// word.  Words whose edges are not letters get unbalanced surrounding
// punctuation stripped; two-char words starting with a letter (initials like
// "E.") are kept intact.
func (t *Tokenizer) CombineWords(chars []Char) []Word {
	words := make([]Word, 0, len(chars)/5)
	var (
		keyword []rune
		offsets []int
		// rawParen notes whether the word looked parenthesized before any
		// punctuation stripping, for abbreviation detection.
		firstRaw, lastRaw rune
		recent            []string
	)

	flush := func() {
		if len(offsets) == 0 {
			return
		}
		word, kept := stripSurroundingPunctuation(keyword, offsets)
		if len(word) > 0 {
			w := Word{
				Keyword: string(word),
				Page:    chars[kept[0]].Page,
				Offsets: kept,
			}
			if firstRaw == '(' && lastRaw == ')' {
				w.PreviousWords = strings.Join(recent, " ")
			}
			words = append(words, w)
			recent = append(recent, w.Keyword)
			if len(recent) > maxPreviousWords {
				recent = recent[1:]
			}
		}
		keyword = keyword[:0]
		offsets = nil
		firstRaw, lastRaw = 0, 0
	}

	cleaned := func(i int) rune {
		r := []rune(chars[i].Text)[0]
		return textutil.CleanChar(r)
	}

	for i := range chars {
		curr := cleaned(i)
		var prev rune
		if i > 0 {
			prev = cleaned(i - 1)
		}

		currIsWS := chars[i].IsWhitespace() || curr == ' '

		if currIsWS && prev != '-' {
			flush()
			continue
		}

		if i+1 == len(chars) {
			if !currIsWS {
				keyword = append(keyword, curr)
				offsets = append(offsets, i)
				if firstRaw == 0 {
					firstRaw = curr
				}
				lastRaw = curr
			}
			flush()
			continue
		}

		next := cleaned(i + 1)
		nextIsWS := chars[i+1].IsWhitespace() || next == ' '

		// A hyphen at the end of a line and the break after it vanish,
		// joining the hyphenated halves into one word.
		if (curr == '-' && nextIsWS) || (currIsWS && prev == '-') {
			continue
		}

		keyword = append(keyword, curr)
		offsets = append(offsets, i)
		if firstRaw == 0 {
			firstRaw = curr
		}
		lastRaw = curr
	}
	return words
}

// sequentialTokens emits keyword candidates: runs of 1..maxWords consecutive
// words joined by single spaces.  Common words, digit/punctuation-only runs,
// and single letters or digits never become keywords.
func (t *Tokenizer) sequentialTokens(words []Word) []Token {
	tokens := make([]Token, 0, len(words)*2)

	for i := range words {
		for n := 1; n <= t.maxWords && i+n <= len(words); n++ {
			span := words[i : i+n]
			parts := make([]string, n)
			for j, w := range span {
				parts[j] = w.Keyword
			}
			keyword := strings.Join(parts, " ")

			if textutil.IsCommonWord(keyword) ||
				textutil.IsDigitsOrPunctuation(keyword) ||
				textutil.IsSingleASCIIAlphanumeric(keyword) {
				continue
			}

			tokens = append(tokens, Token{
				Keyword:    keyword,
				Normalized: textutil.Normalize(keyword),
				Page:       span[0].Page,
				Words:      append([]Word(nil), span...),
			})
		}
	}
	return tokens
}

// collectAbbreviations maps short parenthesized words to the words that
// preceded them in the text.
func collectAbbreviations(words []Word) map[string][]string {
	abbrevs := make(map[string][]string)
	for _, w := range words {
		if w.PreviousWords == "" {
			continue
		}
		if _, ok := abbreviationLengths[len([]rune(w.Keyword))]; !ok {
			continue
		}
		if _, seen := abbrevs[w.Keyword]; !seen {
			abbrevs[w.Keyword] = strings.Fields(w.PreviousWords)
		}
	}
	return abbrevs
}

// Punctuation classes for edge stripping.  A '+' or '-' at the end of a word
// is kept: it is usually a charge or stereo marker, not punctuation.
var (
	openingPunc = map[rune]rune{'(': ')', '[': ']', '{': '}'}
	closingPunc = map[rune]rune{')': '(', ']': '[', '}': '{'}
	endingPunc  = map[rune]struct{}{'.': {}, ',': {}, '?': {}, '!': {}}
)

func isLeadingPunc(r rune) bool {
	if _, ok := openingPunc[r]; ok {
		return false
	}
	return strings.ContainsRune(textutil.Punctuation, r)
}

func isTrailingPunc(r rune) bool {
	if _, ok := closingPunc[r]; ok {
		return false
	}
	if r == '+' || r == '-' {
		return false
	}
	return strings.ContainsRune(textutil.Punctuation, r)
}

func isASCIILetter(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

// stripSurroundingPunctuation removes sentence punctuation and unbalanced
// brackets from the edges of a word, keeping the char offsets aligned with
// the surviving runes.  Matched bracket pairs wrapping the whole word are
// removed; a bracket with its partner inside the word stays.
func stripSurroundingPunctuation(word []rune, offsets []int) ([]rune, []int) {
	w := append([]rune(nil), word...)
	off := append([]int(nil), offsets...)

	// Initials like "E." stay intact so species abbreviations survive.
	if len(w) == 2 && isASCIILetter(w[0]) {
		return w, off
	}
	if len(w) > 0 && isASCIILetter(w[0]) && isASCIILetter(w[len(w)-1]) {
		return w, off
	}

	dropFirst := func() { w, off = w[1:], off[1:] }
	dropLast := func() { w, off = w[:len(w)-1], off[:len(off)-1] }

	for len(w) > 0 {
		if _, ok := endingPunc[w[len(w)-1]]; !ok {
			break
		}
		dropLast()
	}

	for len(w) > 1 {
		open, ok := openingPunc[w[0]]
		if !ok || w[len(w)-1] != open {
			break
		}
		dropFirst()
		dropLast()
	}

	if len(w) > 0 {
		if closer, ok := openingPunc[w[0]]; ok {
			matched := false
			for _, r := range w[1:] {
				if r == closer {
					matched = true
					break
				}
			}
			if !matched {
				dropFirst()
			}
		}
	}

	if len(w) > 0 {
		if opener, ok := closingPunc[w[len(w)-1]]; ok {
			matched := false
			for i := len(w) - 2; i >= 0; i-- {
				if w[i] == opener {
					matched = true
					break
				}
			}
			if !matched {
				dropLast()
			}
		}
	}

	if len(w) > 0 && isTrailingPunc(w[len(w)-1]) {
		dropLast()
	}
	if len(w) > 0 && isLeadingPunc(w[0]) {
		dropFirst()
	}
	return w, off
}
