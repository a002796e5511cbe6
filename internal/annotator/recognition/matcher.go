// Package recognition matches tokenized document text against the entity
// dictionaries.  For every n-gram token it consults each enabled category's
// dictionary, applying per-category exclusion and stopword suppression first
// and falling back to manual inclusion terms when the dictionary misses.
// Homonym resolution is not done here; every record sharing the normalized
// key is carried forward for the resolver to disambiguate.
package recognition

import (
	"sort"
	"strings"

	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/dictionary"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// minLookupKeyLength guards against short normalized keys flooding the match
// set; two characters or fewer never reach the dictionary.
const minLookupKeyLength = 3

// Match accumulates every token occurrence of one matched keyword together
// with the entity records its normalized form resolved to.
type Match struct {
	Records []annotation.EntityRecord
	Tokens  []tokenizer.Token
}

// Results holds matches per category, keyed by the token keyword exactly as
// it appears in the document.  Species matched through document-local manual
// inclusions are tracked separately so the resolver can restrict them to the
// exact occurrences the user annotated.
type Results struct {
	byCategory   map[annotation.EntityType]map[string]*Match
	speciesLocal map[string]*Match
}

// NewResults returns an empty result set.  Callers that inject matches from
// outside the dictionary path (NLP predictions, tests) build on this.
func NewResults() *Results {
	return &Results{
		byCategory:   make(map[annotation.EntityType]map[string]*Match),
		speciesLocal: make(map[string]*Match),
	}
}

// Add records token occurrences of a keyword with its entity records.
func (r *Results) Add(category annotation.EntityType, keyword string, records []annotation.EntityRecord, tokens ...tokenizer.Token) {
	byKeyword, ok := r.byCategory[category]
	if !ok {
		byKeyword = make(map[string]*Match)
		r.byCategory[category] = byKeyword
	}
	if match, ok := byKeyword[keyword]; ok {
		match.Tokens = append(match.Tokens, tokens...)
	} else {
		byKeyword[keyword] = &Match{Records: records, Tokens: tokens}
	}
}

// AddSpeciesLocal records document-local species inclusion matches.
func (r *Results) AddSpeciesLocal(keyword string, records []annotation.EntityRecord, tokens ...tokenizer.Token) {
	if match, ok := r.speciesLocal[keyword]; ok {
		match.Tokens = append(match.Tokens, tokens...)
	} else {
		r.speciesLocal[keyword] = &Match{Records: records, Tokens: tokens}
	}
}

// MatchedSpeciesLocal returns species matches that came from document-local
// inclusion terms.  May be nil.
func (r *Results) MatchedSpeciesLocal() map[string]*Match {
	return r.speciesLocal
}

// SpeciesLocalKeywords returns the local species keywords in sorted order.
func (r *Results) SpeciesLocalKeywords() []string {
	keys := make([]string, 0, len(r.speciesLocal))
	for k := range r.speciesLocal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matched returns the keyword-to-match map for a category.  May be nil.
func (r *Results) Matched(category annotation.EntityType) map[string]*Match {
	return r.byCategory[category]
}

// Keywords returns the matched keywords for a category in sorted order, so
// downstream resolution is deterministic regardless of map iteration.
func (r *Results) Keywords(category annotation.EntityType) []string {
	byKeyword := r.byCategory[category]
	keys := make([]string, 0, len(byKeyword))
	for k := range byKeyword {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total counts matched keywords across all categories.
func (r *Results) Total() int {
	n := 0
	for _, byKeyword := range r.byCategory {
		n += len(byKeyword)
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Matcher
// ─────────────────────────────────────────────────────────────────────────────

// Matcher performs dictionary recognition for one document.  Construct one
// per document: inclusion and exclusion overrides are document-scoped.
type Matcher struct {
	store        dictionary.Store
	log          logging.Logger
	stopwords    map[string]struct{}
	inclusions   *Inclusions
	localSpecies *Inclusions
	exclusions   *Exclusions
	categories   map[annotation.EntityType]bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithStopwords sets the general stopword list.  Terms are matched lowercase.
func WithStopwords(words []string) Option {
	return func(m *Matcher) {
		for _, w := range words {
			m.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithInclusions sets the manual inclusion fallback terms.
func WithInclusions(in *Inclusions) Option {
	return func(m *Matcher) {
		if in != nil {
			m.inclusions = in
		}
	}
}

// WithLocalSpeciesInclusions sets species inclusion terms scoped to this
// document.  Matches land in the species-local result bucket instead of the
// general species bucket.
func WithLocalSpeciesInclusions(in *Inclusions) Option {
	return func(m *Matcher) {
		if in != nil {
			m.localSpecies = in
		}
	}
}

// WithExclusions sets the per-category suppression terms.
func WithExclusions(ex *Exclusions) Option {
	return func(m *Matcher) {
		if ex != nil {
			m.exclusions = ex
		}
	}
}

// WithCategories restricts matching to the given categories.  The default is
// every dictionary-backed category.
func WithCategories(categories ...annotation.EntityType) Option {
	return func(m *Matcher) {
		m.categories = make(map[annotation.EntityType]bool, len(categories))
		for _, c := range categories {
			m.categories[c] = true
		}
	}
}

// NewMatcher builds a document matcher over the dictionary store.
func NewMatcher(store dictionary.Store, log logging.Logger, opts ...Option) *Matcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := &Matcher{
		store:        store,
		log:          log.Named("recognition"),
		stopwords:    make(map[string]struct{}),
		inclusions:   NewInclusions(),
		localSpecies: NewInclusions(),
		exclusions:   NewExclusions(),
		categories:   make(map[annotation.EntityType]bool, len(annotation.DictionaryTypes)),
	}
	for _, c := range annotation.DictionaryTypes {
		m.categories[c] = true
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Identify runs every token through every enabled category and returns the
// accumulated matches.  Dictionary misses are normal; only store failures
// surface as errors.
func (m *Matcher) Identify(tokens []tokenizer.Token) (*Results, error) {
	results := NewResults()
	for _, category := range annotation.DictionaryTypes {
		if !m.categories[category] {
			continue
		}
		for _, token := range tokens {
			if token.Keyword == "" {
				continue
			}
			if err := m.findMatch(results, category, token); err != nil {
				return nil, err
			}
			if category == annotation.TypeSpecies {
				m.lookupSpeciesLocal(results, token)
			}
		}
	}
	m.log.Debug("entity recognition complete",
		logging.Int("tokens", len(tokens)),
		logging.Int("matched_keywords", results.Total()),
	)
	return results, nil
}

// findMatch looks the token up in one category, retrying known misspellings
// with their corrected forms.
func (m *Matcher) findMatch(results *Results, category annotation.EntityType, token tokenizer.Token) error {
	corrections, isTypo := commonTypos[token.Keyword]
	if !isTypo {
		_, err := m.lookup(results, category, token, token.Normalized)
		return err
	}
	for _, correction := range corrections {
		found, err := m.lookup(results, category, token, textutil.Normalize(correction))
		if err != nil {
			return err
		}
		if found {
			break
		}
	}
	return nil
}

func (m *Matcher) lookup(results *Results, category annotation.EntityType, token tokenizer.Token, lookupKey string) (bool, error) {
	if len(lookupKey) < minLookupKeyLength {
		return false, nil
	}

	if m.exclusions.Excluded(category, token.Keyword) {
		m.log.Debug("token suppressed by exclusion",
			logging.String("category", string(category)),
			logging.String("keyword", token.Keyword),
		)
		return false, nil
	}
	if m.isStopword(category, token.Keyword) {
		return false, nil
	}

	var records []annotation.EntityRecord
	if m.categoryPredicted(category, token.PredictedType) {
		var err error
		records, err = m.store.Lookup(category, lookupKey)
		if err != nil {
			return false, err
		}
	}

	// Proteins prefer records whose synonym matches the document text
	// exactly; homonyms differing only in case are noise otherwise.
	if category == annotation.TypeProtein && len(records) > 0 {
		exact := records[:0:0]
		for _, rec := range records {
			if rec.Synonym == token.Keyword {
				exact = append(exact, rec)
			}
		}
		if len(exact) > 0 {
			records = exact
		}
	}

	if len(records) == 0 {
		records = m.inclusions.Get(category, lookupKey)
	}
	if len(records) == 0 {
		return false, nil
	}

	byKeyword, ok := results.byCategory[category]
	if !ok {
		byKeyword = make(map[string]*Match)
		results.byCategory[category] = byKeyword
	}
	if match, ok := byKeyword[token.Keyword]; ok {
		match.Tokens = append(match.Tokens, token)
	} else {
		byKeyword[token.Keyword] = &Match{Records: records, Tokens: []tokenizer.Token{token}}
	}
	return true, nil
}

// lookupSpeciesLocal records species matches against document-local
// inclusion terms in their own bucket.
func (m *Matcher) lookupSpeciesLocal(results *Results, token tokenizer.Token) {
	if len(token.Normalized) < minLookupKeyLength {
		return
	}
	if m.exclusions.Excluded(annotation.TypeSpecies, token.Keyword) {
		return
	}
	records := m.localSpecies.Get(annotation.TypeSpecies, token.Normalized)
	if len(records) == 0 {
		return
	}
	if match, ok := results.speciesLocal[token.Keyword]; ok {
		match.Tokens = append(match.Tokens, token)
	} else {
		results.speciesLocal[token.Keyword] = &Match{Records: records, Tokens: []tokenizer.Token{token}}
	}
}

func (m *Matcher) isStopword(category annotation.EntityType, keyword string) bool {
	lowered := strings.ToLower(keyword)
	if category == annotation.TypeSpecies {
		_, hit := speciesStopwords[lowered]
		return hit
	}
	_, hit := m.stopwords[lowered]
	return hit
}

// categoryPredicted reports whether the dictionary may be consulted for the
// token given an NLP prediction.  No prediction means every category may be.
func (m *Matcher) categoryPredicted(category annotation.EntityType, predicted string) bool {
	if predicted == "" {
		return true
	}
	if predicted == string(category) {
		return true
	}
	// The NLP model emits Bacteria rather than a generic species label.
	return category == annotation.TypeSpecies && predicted == "Bacteria"
}
