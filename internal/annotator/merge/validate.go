package merge

import (
	"regexp"
	"strings"

	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	apperrors "github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// nonLexical matches terms made of nothing but digits, punctuation, and
// underscores.  Such strings match far too much of a document to annotate.
var nonLexical = regexp.MustCompile(`^[\d\W_]+$`)

// ValidateTerm decides whether a manual annotation term is annotatable across
// a whole document.  Enforced: per-type word-count caps, a minimum character
// length, rejection of common English words, and rejection of terms with no
// letters in them.
func ValidateTerm(term string, entityType annotation.EntityType) error {
	wordCount := len(strings.Split(term, " "))
	if maxWords := entityType.MaxWordLength(); wordCount > maxWords {
		return apperrors.Newf(apperrors.ErrCodeAnnotationTermTooLong,
			"term %q has %d words, above the %d-word limit for %q",
			term, wordCount, maxWords, entityType)
	}

	if len(term) <= annotation.MinEntityLength {
		return apperrors.Newf(apperrors.ErrCodeAnnotationTermTooShort,
			"term %q must have more than %d characters to be annotatable",
			term, annotation.MinEntityLength)
	}

	if textutil.IsCommonWord(term) {
		return apperrors.Newf(apperrors.ErrCodeAnnotationTermCommonWord,
			"term %q is a commonly used word and cannot be annotated", term)
	}

	if nonLexical.MatchString(term) {
		return apperrors.Newf(apperrors.ErrCodeAnnotationTermNotLexical,
			"term %q contains only digits and punctuation and cannot be annotated", term)
	}

	return nil
}

// CheckAbbreviation rejects a term the tokenizer identified as an acronym
// definition, e.g. annotating "HS" in a document that defines
// "heat shock (HS)".
func CheckAbbreviation(term string, abbreviations map[string][]string) error {
	if expansion, ok := abbreviations[term]; ok {
		return apperrors.Newf(apperrors.ErrCodeAnnotationTermAbbrev,
			"term %q is an acronym of %q and cannot be annotated across the document",
			term, strings.Join(expansion, " "))
	}
	return nil
}
