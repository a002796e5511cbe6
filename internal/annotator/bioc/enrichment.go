package bioc

import (
	"sort"
	"strings"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// Enrichment-table column domains.
const (
	DomainImported = "Imported"
	DomainMatched  = "Matched"
	DomainFullName = "Full Name"
	DomainUniProt  = "UniProt"
	DomainRegulon  = "Regulon"
	DomainString   = "String"
	DomainGO       = "GO"
	DomainBioCyc   = "BioCyc"
)

// Cell is one enrichment-table cell scheduled for annotation.
type Cell struct {
	Text string
	// Row is the gene row index in the source table.
	Row    int
	Domain string
	// Label distinguishes sub-columns within a domain (Regulon).
	Label string
}

type cellBoundary struct {
	// end is the inclusive offset of the cell's last character in the
	// combined text.
	end  int
	cell Cell
}

// CellMapping is the combined text of an enrichment table plus the mapping
// back from combined-text offsets to cells.
type CellMapping struct {
	Text       string
	boundaries []cellBoundary
}

// BuildCellMapping combines cell texts into one annotatable string, cells
// separated by single spaces.  GO and BioCyc cells hold curated identifiers
// rather than prose and are left out.
func BuildCellMapping(cells []Cell) *CellMapping {
	m := &CellMapping{}
	var b strings.Builder
	for _, cell := range cells {
		if cell.Domain == DomainGO || cell.Domain == DomainBioCyc {
			continue
		}
		if cell.Text == "" {
			continue
		}
		b.WriteString(cell.Text)
		m.boundaries = append(m.boundaries, cellBoundary{end: b.Len() - 1, cell: cell})
		b.WriteString(" ")
	}
	m.Text = b.String()
	return m
}

// CellEnds returns the inclusive end offset of every combined cell, ascending.
func (m *CellMapping) CellEnds() []int {
	ends := make([]int, len(m.boundaries))
	for i, boundary := range m.boundaries {
		ends[i] = boundary.end
	}
	return ends
}

// CellAnnotations pairs a cell with its re-based annotations.
type CellAnnotations struct {
	Cell        Cell
	Annotations []*annotation.Annotation
}

// Rebase distributes combined-text annotations back onto their cells,
// shifting offsets to be cell-local and stamping each annotation with the
// row's imported gene and the cell's domain.  Annotations are copied; the
// input is untouched.
func (m *CellMapping) Rebase(annotations []*annotation.Annotation) []CellAnnotations {
	remaining := make([]*annotation.Annotation, len(annotations))
	copy(remaining, annotations)
	sortByOffsets(remaining)

	var out []CellAnnotations
	prevEnd := -1
	importedGene := ""

	for _, boundary := range m.boundaries {
		cut := 0
		for cut < len(remaining) && remaining[cut].HiLocationOffset <= boundary.end {
			cut++
		}
		chunk := remaining[:cut]
		remaining = remaining[cut:]

		if boundary.cell.Domain == DomainImported {
			importedGene = boundary.cell.Text
		}

		rebased := make([]*annotation.Annotation, 0, len(chunk))
		for _, anno := range chunk {
			local := *anno
			if prevEnd != -1 {
				// The cell starts one separator past the previous cell's
				// last character.
				local.LoLocationOffset = anno.LoLocationOffset - (prevEnd + 1) - 1
				local.HiLocationOffset = local.LoLocationOffset + anno.KeywordLength - 1
			}
			local.EnrichmentGene = importedGene
			domain := &annotation.EnrichmentDomain{Domain: boundary.cell.Domain}
			if boundary.cell.Domain == DomainRegulon {
				domain.SubDomain = boundary.cell.Label
			}
			local.EnrichmentDomain = domain
			rebased = append(rebased, &local)
		}

		out = append(out, CellAnnotations{Cell: boundary.cell, Annotations: rebased})
		prevEnd = boundary.end
	}
	return out
}

func sortByOffsets(annotations []*annotation.Annotation) {
	sort.SliceStable(annotations, func(i, j int) bool {
		return annotations[i].LoLocationOffset < annotations[j].LoLocationOffset
	})
}
