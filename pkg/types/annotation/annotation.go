package annotation

import (
	"math"
	"strings"
	"time"

	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

// Rect is an axis-aligned bounding box in PDF user-space coordinates,
// serialized as [x0, y0, x1, y1] to stay wire-compatible with the viewer.
type Rect [4]float64

// CenterX returns the x coordinate of the rect center.
func (r Rect) CenterX() float64 { return (r[0] + r[2]) / 2 }

// CenterY returns the y coordinate of the rect center.
func (r Rect) CenterY() float64 { return (r[1] + r[3]) / 2 }

// CenterWithin reports whether the centers of r and other coincide within eps.
// Coordinates for the same glyph can differ slightly depending on whether they
// came from the annotator or the viewer, so duplicate detection compares
// centers instead of corners.
func (r Rect) CenterWithin(other Rect, eps float64) bool {
	return math.Abs(r.CenterX()-other.CenterX()) <= eps &&
		math.Abs(r.CenterY()-other.CenterY()) <= eps
}

// EntityRecord is one dictionary entry: an entity identifier from a source
// authority together with the synonym that keyed it.  Multiple records may
// share a normalized key (homonyms across organisms and sources).
type EntityRecord struct {
	EntityID string       `json:"entity_id"`
	IDType   DatabaseType `json:"id_type"`
	// Name is the primary/common name of the entity; Synonym the specific
	// name string this record was keyed under.  A common name always has
	// itself as a synonym.
	Name    string `json:"name"`
	Synonym string `json:"synonym"`
	// TaxID is set for genes and species.
	TaxID    string           `json:"tax_id,omitempty"`
	Category OrganismCategory `json:"category,omitempty"`
	// CommonName maps entity ids to normalized common names for synonyms
	// shared by several entities; colliding ingest entries merge here.
	CommonName map[string]string `json:"common_name,omitempty"`
	// Inclusion marks records injected from a manual inclusion rather than
	// loaded from a dictionary store.
	Inclusion bool `json:"inclusion,omitempty"`
	// Hyperlinks overrides the authority-derived hyperlink when the record
	// came from a manual inclusion carrying explicit links.
	Hyperlinks []string `json:"hyperlinks,omitempty"`
}

// Meta carries the entity identification attached to an annotation.
type Meta struct {
	Type              EntityType       `json:"type"`
	ID                string           `json:"id"`
	IDType            DatabaseType     `json:"id_type"`
	IDHyperlinks      []string         `json:"id_hyperlinks,omitempty"`
	Links             SearchLinks      `json:"links"`
	AllText           string           `json:"all_text"`
	IsCaseInsensitive bool             `json:"is_case_insensitive"`
	IsCustom          bool             `json:"is_custom,omitempty"`
	IncludeGlobally   bool             `json:"include_globally,omitempty"`
	Category          OrganismCategory `json:"category,omitempty"`
	// UnresolvedOrganism is set when gene disambiguation retained the
	// annotation without settling on a single organism.
	UnresolvedOrganism bool `json:"unresolved_organism,omitempty"`
}

// Annotation is the final unit of the pipeline: one recognized entity mention
// with exact inclusive character offsets into the assembled document text.
//
// Invariant: LoLocationOffset <= HiLocationOffset, and
// text[lo:hi+1] == TextInDocument.
type Annotation struct {
	UUID        string `json:"uuid"`
	PageNumber  int    `json:"page_number"`
	// Keyword is the dictionary synonym that matched; TextInDocument is the
	// literal text as it appears in the source.  They differ in case or
	// spacing for fuzzy matches.
	Keyword          string   `json:"keyword"`
	Keywords         []string `json:"keywords,omitempty"`
	PrimaryName      string   `json:"primary_name"`
	TextInDocument   string   `json:"text_in_document"`
	KeywordLength    int      `json:"keyword_length"`
	LoLocationOffset int      `json:"lo_location_offset"`
	HiLocationOffset int      `json:"hi_location_offset"`
	Rects            []Rect   `json:"rects"`
	Meta             Meta     `json:"meta"`
	// InclusionDate and UserID are set for manual inclusions only.
	InclusionDate time.Time `json:"inclusion_date,omitempty"`
	UserID        string    `json:"user_id,omitempty"`

	// EnrichmentGene and EnrichmentDomain locate an annotation inside an
	// enrichment table: the row's imported gene and the cell column it was
	// found in.  Empty outside the enrichment flow.
	EnrichmentGene   string            `json:"enrichment_gene,omitempty"`
	EnrichmentDomain *EnrichmentDomain `json:"enrichment_domain,omitempty"`
}

// EnrichmentDomain names the enrichment-table column an annotation came from.
// SubDomain is only set for domains with labeled sub-columns (Regulon).
type EnrichmentDomain struct {
	Domain    string `json:"domain"`
	SubDomain string `json:"sub_domain,omitempty"`
}

// Validate enforces the structural invariants of an annotation.
func (a *Annotation) Validate() error {
	if a.LoLocationOffset > a.HiLocationOffset {
		return errors.Newf(errors.ErrCodeAnnotationOffsetCorrupted,
			"annotation offsets inverted: lo=%d hi=%d", a.LoLocationOffset, a.HiLocationOffset)
	}
	if !a.Meta.Type.IsValid() {
		return errors.Validation("annotation meta has no valid entity type")
	}
	if strings.TrimSpace(a.Meta.AllText) == "" {
		return errors.Validation("annotation meta all_text must not be empty")
	}
	return nil
}

// Span returns the inclusive offset range of the annotation.
func (a *Annotation) Span() (lo, hi int) {
	return a.LoLocationOffset, a.HiLocationOffset
}

// ExclusionRule suppresses automatic annotations of a matching term and type.
// Rules created from an existing annotation keep its page and rectangles so
// document-local exclusions can target a single occurrence.
type ExclusionRule struct {
	Type              EntityType `json:"type"`
	Text              string     `json:"text"`
	ID                string     `json:"id,omitempty"`
	PageNumber        int        `json:"page_number,omitempty"`
	Rects             []Rect     `json:"rects,omitempty"`
	IDHyperlinks      []string   `json:"id_hyperlinks,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	Comment           string     `json:"comment,omitempty"`
	IsCaseInsensitive bool       `json:"is_case_insensitive"`
	ExcludeGlobally   bool       `json:"exclude_globally,omitempty"`
	ExclusionDate     time.Time  `json:"exclusion_date,omitempty"`
	UserID            string     `json:"user_id,omitempty"`
}

// Validate enforces the structural invariants of an exclusion rule.
func (e *ExclusionRule) Validate() error {
	if !e.Type.IsValid() {
		return errors.Validation("exclusion has no valid entity type")
	}
	if strings.TrimSpace(e.Text) == "" {
		return errors.Validation("exclusion text must not be empty")
	}
	return nil
}

// GlobalListEntry is one cross-document inclusion or exclusion.  Appended when
// a user marks "include/exclude globally"; consulted for every document.
// Duplicate entries are acceptable and de-duplicated at read time.
type GlobalListEntry struct {
	ID        int64      `json:"id"`
	Kind      ManualKind `json:"kind"`
	FileID    string     `json:"file_id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	// Exactly one of the payloads is set, matching Kind.
	Inclusion *Annotation    `json:"inclusion,omitempty"`
	Exclusion *ExclusionRule `json:"exclusion,omitempty"`
}

// Validate checks that the payload agrees with the declared kind.
func (g *GlobalListEntry) Validate() error {
	switch g.Kind {
	case ManualInclusion:
		if g.Inclusion == nil {
			return errors.Validation("global inclusion entry has no inclusion payload")
		}
		return g.Inclusion.Validate()
	case ManualExclusion:
		if g.Exclusion == nil {
			return errors.Validation("global exclusion entry has no exclusion payload")
		}
		return g.Exclusion.Validate()
	default:
		return errors.Validation("global list entry kind must be inclusion or exclusion")
	}
}

// SpecifiedOrganism is the pre-resolved fallback organism supplied by the
// caller before resolution; the core never fetches it.
type SpecifiedOrganism struct {
	Synonym    string           `json:"synonym"`
	OrganismID string           `json:"organism_id"`
	Category   OrganismCategory `json:"category"`
}

// IsSet reports whether a fallback organism was supplied.
func (s SpecifiedOrganism) IsSet() bool {
	return s.Synonym != "" && s.OrganismID != ""
}
