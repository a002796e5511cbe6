// Package merge reconciles automatic annotations with the manual inclusion
// and exclusion lists a document carries.  Exclusions dominate: an excluded
// term never reaches the output.  Inclusions are immune: a custom annotation
// survives merging untouched.  The package is pure list manipulation;
// persistence of the lists lives in the application layer.
package merge

import (
	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// TermsMatch compares two annotation terms.  Surrounding whitespace never
// counts; case only counts when the rule is case-sensitive.
func TermsMatch(a, b string, caseInsensitive bool) bool {
	return textutil.TermsMatch(a, b, caseInsensitive)
}

// CenterEpsilon is the coordinate slack allowed when comparing annotation
// rectangles.  Rectangles for the same text differ by fractions of a PDF unit
// depending on whether they came from the annotator or the viewer, so
// duplicate detection checks center points against slightly grown boxes
// instead of exact coordinates.
const CenterEpsilon = 0.5

// rectsMatch reports whether every rect's center point falls inside the
// corresponding existing rect, grown by CenterEpsilon on each side.
func rectsMatch(existing, rects []annotation.Rect) bool {
	if len(existing) != len(rects) {
		return false
	}
	for i, r := range rects {
		cx, cy := r.CenterX(), r.CenterY()
		e := existing[i]
		if cx < e[0]-CenterEpsilon || cx > e[2]+CenterEpsilon ||
			cy < e[1]-CenterEpsilon || cy > e[3]+CenterEpsilon {
			return false
		}
	}
	return true
}

// AnnotationExists reports whether a custom annotation for the term already
// covers the same rectangles.
func AnnotationExists(term string, caseInsensitive bool, rects []annotation.Rect, custom []*annotation.Annotation) bool {
	for _, existing := range custom {
		if existing == nil {
			continue
		}
		if TermsMatch(term, existing.Meta.AllText, caseInsensitive) && rectsMatch(existing.Rects, rects) {
			return true
		}
	}
	return false
}

// excluded reports whether any exclusion rule suppresses the annotation.
func excluded(rules []*annotation.ExclusionRule, anno *annotation.Annotation) bool {
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if rule.Type == anno.Meta.Type && TermsMatch(rule.Text, anno.TextInDocument, rule.IsCaseInsensitive) {
			return true
		}
	}
	return false
}

// Merged produces the final annotation list for a document: automatic
// annotations with excluded terms removed, followed by the custom
// annotations.  Custom annotations are never filtered.
func Merged(
	automatic []*annotation.Annotation,
	custom []*annotation.Annotation,
	exclusions []*annotation.ExclusionRule,
) []*annotation.Annotation {
	out := make([]*annotation.Annotation, 0, len(automatic)+len(custom))
	for _, anno := range automatic {
		if anno == nil || excluded(exclusions, anno) {
			continue
		}
		out = append(out, anno)
	}
	return append(out, custom...)
}

// RemoveInclusions deletes custom annotations.  With removeAll set, every
// annotation whose term and entity type match the named one goes; otherwise
// only the named uuid.  Returns the surviving list and the removed uuids,
// which are empty when the uuid is unknown.
func RemoveInclusions(custom []*annotation.Annotation, uuid string, removeAll bool) ([]*annotation.Annotation, []string) {
	var target *annotation.Annotation
	for _, anno := range custom {
		if anno != nil && anno.UUID == uuid {
			target = anno
			break
		}
	}
	if target == nil {
		return custom, []string{}
	}

	removed := make(map[string]struct{})
	if removeAll {
		for _, anno := range custom {
			if anno == nil {
				continue
			}
			if anno.Meta.Type == target.Meta.Type &&
				TermsMatch(target.Meta.AllText, anno.Meta.AllText, anno.Meta.IsCaseInsensitive) {
				removed[anno.UUID] = struct{}{}
			}
		}
	} else {
		removed[uuid] = struct{}{}
	}

	remaining := make([]*annotation.Annotation, 0, len(custom))
	uuids := make([]string, 0, len(removed))
	for _, anno := range custom {
		if anno == nil {
			continue
		}
		if _, ok := removed[anno.UUID]; ok {
			uuids = append(uuids, anno.UUID)
			continue
		}
		remaining = append(remaining, anno)
	}
	return remaining, uuids
}

// RemoveExclusions deletes every exclusion rule matching the entity type and
// term.  The boolean reports whether anything was removed.
func RemoveExclusions(rules []*annotation.ExclusionRule, entityType annotation.EntityType, term string) ([]*annotation.ExclusionRule, bool) {
	remaining := make([]*annotation.ExclusionRule, 0, len(rules))
	removedAny := false
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if rule.Type == entityType && TermsMatch(term, rule.Text, rule.IsCaseInsensitive) {
			removedAny = true
			continue
		}
		remaining = append(remaining, rule)
	}
	return remaining, removedAny
}

// LayerInclusions puts global custom annotations beneath the document-local
// ones.  A global entry duplicating a local term and type is dropped.
func LayerInclusions(local, global []*annotation.Annotation) []*annotation.Annotation {
	out := make([]*annotation.Annotation, 0, len(local)+len(global))
	out = append(out, local...)
	for _, g := range global {
		if g == nil {
			continue
		}
		duplicate := false
		for _, l := range local {
			if l != nil && l.Meta.Type == g.Meta.Type &&
				TermsMatch(g.Meta.AllText, l.Meta.AllText, g.Meta.IsCaseInsensitive) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, g)
		}
	}
	return out
}

// LayerExclusions puts global exclusion rules beneath the document-local
// ones, dropping global duplicates of local rules.
func LayerExclusions(local, global []*annotation.ExclusionRule) []*annotation.ExclusionRule {
	out := make([]*annotation.ExclusionRule, 0, len(local)+len(global))
	out = append(out, local...)
	for _, g := range global {
		if g == nil {
			continue
		}
		duplicate := false
		for _, l := range local {
			if l != nil && l.Type == g.Type && TermsMatch(g.Text, l.Text, g.IsCaseInsensitive) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, g)
		}
	}
	return out
}
