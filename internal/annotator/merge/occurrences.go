package merge

import (
	"strings"

	"github.com/google/uuid"

	"github.com/biosustain/lifelike-annotator/internal/annotator/resolver"
	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// Occurrence is one place in the document where an annotate-all term occurs.
type Occurrence struct {
	PageNumber int
	Keywords   []string
	Rects      []annotation.Rect
}

// FindOccurrences scans the tokenized document for every occurrence of the
// term.  Case-sensitive mode requires the exact document text; insensitive
// mode compares standardized lowercase forms.
func FindOccurrences(
	term string,
	caseInsensitive bool,
	doc *tokenizer.Result,
	cropBoxes map[int]resolver.CropBox,
) []Occurrence {
	if doc == nil {
		return nil
	}
	want := textutil.Standardize(term)

	var occurrences []Occurrence
	for _, token := range doc.Tokens {
		if caseInsensitive {
			if !strings.EqualFold(textutil.Standardize(token.Keyword), want) {
				continue
			}
		} else if token.Keyword != term {
			continue
		}

		positions := resolver.BuildKeywordPositions(token, doc.Chars, cropBoxes[token.Page])
		occ := Occurrence{PageNumber: token.Page}
		for _, pos := range positions {
			occ.Keywords = append(occ.Keywords, pos.Value)
			occ.Rects = append(occ.Rects, pos.Rect)
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences
}

// BuildInclusions turns occurrences into custom annotations cloned from the
// base annotation, skipping occurrences an existing custom annotation already
// covers.  Every clone gets its own uuid.
func BuildInclusions(base annotation.Annotation, occurrences []Occurrence, existing []*annotation.Annotation) []*annotation.Annotation {
	var out []*annotation.Annotation
	for _, occ := range occurrences {
		if AnnotationExists(base.Meta.AllText, base.Meta.IsCaseInsensitive, occ.Rects, existing) {
			continue
		}
		clone := base
		clone.UUID = uuid.NewString()
		clone.PageNumber = occ.PageNumber
		clone.Keywords = occ.Keywords
		clone.Rects = occ.Rects
		out = append(out, &clone)
	}
	return out
}
