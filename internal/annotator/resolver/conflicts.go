package resolver

import (
	"sort"
	"strings"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// fixFalsePositives removes matches that only exist because normalization
// collapsed distinct spellings.  Gene names are case-significant, so the
// document text must equal the dictionary synonym exactly; the same holds for
// single-word proteins.  Multi-word matches must not have been matched to a
// shorter dictionary term, allowing for hyphen/space variants like
// "ferredoxin 2" against "ferredoxin-2".
func fixFalsePositives(annotations []*annotation.Annotation) []*annotation.Annotation {
	fixed := make([]*annotation.Annotation, 0, len(annotations))

	for _, anno := range annotations {
		words := strings.Split(anno.TextInDocument, " ")

		isGene := anno.Meta.Type == annotation.TypeGene
		isSingleWordProtein := anno.Meta.Type == annotation.TypeProtein && len(words) == 1

		switch {
		case isGene || isSingleWordProtein:
			if words[0] == anno.Keyword {
				fixed = append(fixed, anno)
			}
		case len(words) > 1:
			if len(strings.Split(anno.Keyword, " ")) >= len(words) {
				fixed = append(fixed, anno)
			} else if len(strings.Split(anno.Keyword, "-")) >= len(words) {
				fixed = append(fixed, anno)
			}
		default:
			fixed = append(fixed, anno)
		}
	}
	return fixed
}

// span is an inclusive character interval.
type span struct {
	lo, hi int
}

// mergeSpans sorts the intervals and coalesces every overlapping run into a
// single covering range.  Offsets are inclusive, so touching intervals merge.
func mergeSpans(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].lo != sorted[j].lo {
			return sorted[i].lo < sorted[j].lo
		}
		return sorted[i].hi < sorted[j].hi
	})

	merged := []span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.lo <= last.hi {
			if s.hi > last.hi {
				last.hi = s.hi
			}
		} else {
			merged = append(merged, s)
		}
	}
	return merged
}

// resolveConflicts reduces overlapping annotations to one winner per
// overlapping cluster.  Single-character annotations pass through untouched.
// Identical spans are reduced by precedence first, then each merged overlap
// range keeps only its highest-precedence survivor.
func resolveConflicts(annotations []*annotation.Annotation) []*annotation.Annotation {
	var resolved []*annotation.Annotation
	bySpan := make(map[span][]*annotation.Annotation)

	for _, anno := range annotations {
		if anno.LoLocationOffset == anno.HiLocationOffset {
			resolved = append(resolved, anno)
			continue
		}
		s := span{anno.LoLocationOffset, anno.HiLocationOffset}
		bySpan[s] = append(bySpan[s], anno)
	}

	spans := make([]span, 0, len(bySpan))
	for s, group := range bySpan {
		spans = append(spans, s)
		if len(group) > 1 {
			chosen := group[0]
			for _, anno := range group[1:] {
				chosen = higherPrecedence(chosen, anno)
			}
			bySpan[s] = []*annotation.Annotation{chosen}
		}
	}

	for _, rng := range mergeSpans(spans) {
		var chosen *annotation.Annotation
		// spans inside a merged range, in deterministic order
		overlapping := make([]span, 0, 2)
		for s := range bySpan {
			if s.lo <= rng.hi && s.hi >= rng.lo {
				overlapping = append(overlapping, s)
			}
		}
		sort.Slice(overlapping, func(i, j int) bool {
			if overlapping[i].lo != overlapping[j].lo {
				return overlapping[i].lo < overlapping[j].lo
			}
			return overlapping[i].hi < overlapping[j].hi
		})
		for _, s := range overlapping {
			for _, anno := range bySpan[s] {
				if chosen == nil {
					chosen = anno
				} else {
					chosen = higherPrecedence(chosen, anno)
				}
			}
		}
		if chosen != nil {
			resolved = append(resolved, chosen)
		}
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].LoLocationOffset != resolved[j].LoLocationOffset {
			return resolved[i].LoLocationOffset < resolved[j].LoLocationOffset
		}
		return resolved[i].HiLocationOffset < resolved[j].HiLocationOffset
	})
	return resolved
}

// resolveConflictsPerCell runs conflict resolution separately for each
// enrichment-table cell, so a term at the end of one cell cannot knock out a
// term at the start of the next.  cellEnds holds the inclusive offset of each
// cell's last character in the combined text, ascending.
func resolveConflictsPerCell(annotations []*annotation.Annotation, cellEnds []int) []*annotation.Annotation {
	groups := make(map[int][]*annotation.Annotation)
	for _, anno := range annotations {
		idx := sort.SearchInts(cellEnds, anno.HiLocationOffset)
		if idx >= len(cellEnds) {
			idx = len(cellEnds) - 1
		}
		groups[cellEnds[idx]] = append(groups[cellEnds[idx]], anno)
	}

	var out []*annotation.Annotation
	for _, end := range cellEnds {
		if group := groups[end]; len(group) > 0 {
			out = append(out, resolveConflicts(group)...)
		}
	}
	return out
}

// higherPrecedence picks the annotation that survives a conflict between two
// candidates for overlapping text.
func higherPrecedence(a, b *annotation.Annotation) *annotation.Annotation {
	keyA := a.Meta.Type.Precedence()
	keyB := b.Meta.Type.Precedence()

	sameSpan := a.LoLocationOffset == b.LoLocationOffset &&
		a.HiLocationOffset == b.HiLocationOffset

	// A MESH phenotype outranks a custom phenotype on the same span.
	if sameSpan && a.Meta.Type == annotation.TypePhenotype && b.Meta.Type == annotation.TypePhenotype {
		if a.Meta.IDType == annotation.DatabaseMesh {
			return a
		}
		if b.Meta.IDType == annotation.DatabaseMesh {
			return b
		}
	}

	// Gene vs protein on the same span means the same normalized text matched
	// both; letter casing usually separates them (gene cysB, protein CysB).
	isGeneOrProtein := func(t annotation.EntityType) bool {
		return t == annotation.TypeGene || t == annotation.TypeProtein
	}
	if sameSpan && isGeneOrProtein(a.Meta.Type) && isGeneOrProtein(b.Meta.Type) && a.Meta.Type != b.Meta.Type {
		first, second := a, b
		if keyB > keyA {
			first, second = b, a
		}
		if winner := checkGeneProtein(first, second); winner != nil {
			return winner
		}
	}

	if keyA > keyB {
		return a
	}
	if keyB > keyA {
		return b
	}
	if a.KeywordLength > b.KeywordLength {
		return a
	}
	return b
}

// checkGeneProtein prefers exact document-text matches, then matches whose
// word count agrees with the dictionary keyword ("SerpinA1" vs "Serpin A1").
func checkGeneProtein(first, second *annotation.Annotation) *annotation.Annotation {
	if first.TextInDocument == first.Keyword {
		return first
	}
	if second.TextInDocument == second.Keyword {
		return second
	}
	if len(strings.Split(first.TextInDocument, " ")) == len(strings.Split(first.Keyword, " ")) {
		return first
	}
	if len(strings.Split(second.TextInDocument, " ")) == len(strings.Split(second.Keyword, " ")) {
		return second
	}
	return nil
}
