// Package textutil holds the string-level primitives shared across the
// annotation pipeline: dictionary-key normalization, display standardization,
// the manual-annotation term matcher, and the character tables used while
// combining PDF glyphs into words.
package textutil

import (
	"strings"
	"unicode"
)

// Punctuation is the ASCII punctuation set stripped during normalization.
const Punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Whitespace is the ASCII whitespace set stripped during normalization.
const Whitespace = " \t\n\r\v\f"

// Normalize produces the canonical dictionary key for a term: lowercase with
// all ASCII punctuation and whitespace removed.  Idempotent, so a stored key
// and a re-normalized key always agree.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if strings.ContainsRune(Punctuation, r) || strings.ContainsRune(Whitespace, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Standardize strips punctuation and collapses runs of whitespace into single
// spaces while preserving case.  Used for display names, not lookup keys.
func Standardize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(Punctuation, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TermsMatch decides whether a document term matches a rule term.  Both
// sides are trimmed of surrounding whitespace; in case-insensitive mode they
// are also lowercased before comparison.
func TermsMatch(termA, termB string, caseInsensitive bool) bool {
	a := strings.Trim(termA, Whitespace)
	b := strings.Trim(termB, Whitespace)
	if caseInsensitive {
		return strings.ToLower(a) == strings.ToLower(b)
	}
	return a == b
}

// EqualWordCount reports whether two terms have the same number of
// space-separated words.
func EqualWordCount(termA, termB string) bool {
	return len(strings.Split(termA, " ")) == len(strings.Split(termB, " "))
}

// IsCommonWord reports whether the term (compared lowercase) is in the
// common-word lists and must never become a keyword on its own.
func IsCommonWord(s string) bool {
	_, ok := commonWords[strings.ToLower(s)]
	return ok
}

// IsDigitsOrPunctuation reports whether the string consists solely of ASCII
// digits and punctuation.  Such keywords are never looked up.
func IsDigitsOrPunctuation(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && !strings.ContainsRune(Punctuation, r) {
			return false
		}
	}
	return true
}

// IsSingleASCIIAlphanumeric reports whether the keyword is one ASCII letter
// or digit, which carries no annotation signal.
func IsSingleASCIIAlphanumeric(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// ExpandLigature returns the ASCII expansion of a typographic ligature rune
// and whether the rune was a ligature.
func ExpandLigature(r rune) (string, bool) {
	s, ok := ligatures[r]
	return s, ok
}

// CleanChar maps typographic punctuation that PDF extraction produces in
// place of ASCII (en dashes, smart quotes, bullets, non-breaking spaces) to
// its ASCII equivalent.  Other runes pass through unchanged.
func CleanChar(r rune) rune {
	if mapped, ok := miscSymbolReplacements[r]; ok {
		return mapped
	}
	return r
}

// IsMiscSymbol reports whether the rune is one of the typographic symbols
// CleanChar rewrites.
func IsMiscSymbol(r rune) bool {
	_, ok := miscSymbolReplacements[r]
	return ok
}

// ligatures maps single-rune typographic ligatures to their letter sequences.
var ligatures = map[rune]string{
	'ﬀ': "ff",
	'ﬁ': "fi",
	'ﬂ': "fl",
	'ﬃ': "ffi",
	'ﬄ': "ffl",
}

// miscSymbolReplacements covers the unicode variants PDF text extraction
// substitutes for plain ASCII punctuation.
var miscSymbolReplacements = map[rune]rune{
	'–': '-',  // en dash used as hyphen
	' ': ' ',  // non-breaking space
	'“': '"',  // left double quote
	'”': '"',  // right double quote
	'‘': '\'', // left single quote
	'’': '\'', // right single quote
	'·': '-',  // middle dot used as hyphen
	'': '-',  // private-use bullet
}

// commonWords are English words that appear too often in prose to ever be a
// useful standalone keyword.  Membership is checked lowercase.
var commonWords = func() map[string]struct{} {
	groups := [][]string{
		{
			"of", "to", "in", "it", "is", "be", "as", "at",
			"so", "we", "he", "by", "or", "on", "do", "if",
			"me", "my", "up", "an", "go", "no", "us", "am",
			"et", "vs",
		},
		{
			"the", "and", "for", "are", "but", "not", "you", "all",
			"any", "can", "had", "her", "was", "one", "our", "out",
			"day", "get", "has", "him", "his", "how", "man", "new",
			"now", "old", "see", "two", "way", "who", "boy", "did",
			"its", "let", "put", "say", "she", "too", "use", "end",
			"min", "far", "set", "key", "tag", "pdf", "raw", "low",
			"med", "men", "led", "add",
		},
		{
			"that", "with", "have", "this", "will", "your", "from",
			"name", "they", "know", "want", "been", "good", "much",
			"some", "time", "none", "link", "bond", "acid", "role",
			"them", "even", "same",
		},
		{
			"patch", "membrane", "walker", "group", "cluster",
			"protein", "transporter", "toxin", "molecule", "vitamin",
			"light", "mixture", "solution", "other", "unknown", "damage",
		},
	}
	words := make(map[string]struct{}, 128)
	for _, g := range groups {
		for _, w := range g {
			words[w] = struct{}{}
		}
	}
	return words
}()
