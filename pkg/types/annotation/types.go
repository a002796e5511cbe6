// Package annotation defines the shared value types of the annotation
// platform: the closed set of entity types, identifier authorities, organism
// categories, and the hyperlink tables used when rendering annotations.
// These types cross every layer boundary, so they carry no behavior beyond
// validation and lookup helpers.
package annotation

import (
	"net/url"
	"strings"
)

// EntityType is the closed set of biological entity categories the platform
// recognizes.  The first ten are backed by dictionary stores; Company and
// Entity exist only for manual inclusions.
type EntityType string

const (
	TypeAnatomy   EntityType = "Anatomy"
	TypeChemical  EntityType = "Chemical"
	TypeCompound  EntityType = "Compound"
	TypeDisease   EntityType = "Disease"
	TypeFood      EntityType = "Food"
	TypeGene      EntityType = "Gene"
	TypePhenomena EntityType = "Phenomena"
	TypePhenotype EntityType = "Phenotype"
	TypeProtein   EntityType = "Protein"
	TypeSpecies   EntityType = "Species"

	// Manual-only entity types; no dictionary store exists for these.
	TypeCompany EntityType = "Company"
	TypeEntity  EntityType = "Entity"
)

// DictionaryTypes lists the entity types that have a backing dictionary store,
// in the order stores are opened and matched.
var DictionaryTypes = []EntityType{
	TypeAnatomy,
	TypeChemical,
	TypeCompound,
	TypeDisease,
	TypeFood,
	TypeGene,
	TypePhenomena,
	TypePhenotype,
	TypeProtein,
	TypeSpecies,
}

// IsValid checks if the EntityType is a member of the closed set.
func (t EntityType) IsValid() bool {
	switch t {
	case TypeAnatomy, TypeChemical, TypeCompound, TypeDisease, TypeFood,
		TypeGene, TypePhenomena, TypePhenotype, TypeProtein, TypeSpecies,
		TypeCompany, TypeEntity:
		return true
	default:
		return false
	}
}

// HasDictionary reports whether a dictionary store backs this entity type.
func (t EntityType) HasDictionary() bool {
	switch t {
	case TypeCompany, TypeEntity:
		return false
	default:
		return t.IsValid()
	}
}

// typePrecedence ranks entity types for conflict resolution between
// equal-length overlapping spans.  Larger value takes precedence.
var typePrecedence = map[EntityType]int{
	TypeSpecies:   12,
	TypeGene:      11,
	TypeProtein:   10,
	TypePhenotype: 9,
	TypePhenomena: 8,
	TypeChemical:  7,
	TypeCompound:  6,
	TypeDisease:   5,
	TypeAnatomy:   4,
	TypeFood:      3,
	TypeCompany:   2,
	TypeEntity:    1,
}

// Precedence returns the tie-break rank of the entity type; zero for unknown
// types so that anything valid outranks garbage.
func (t EntityType) Precedence() int {
	return typePrecedence[t]
}

// MaxWordLength returns the maximum number of words a matchable term of this
// type may span.  Gene names are single words; food names up to four; all
// other types share the global cap of six.
func (t EntityType) MaxWordLength() int {
	switch t {
	case TypeGene:
		return MaxGeneWordLength
	case TypeFood:
		return MaxFoodWordLength
	default:
		return MaxEntityWordLength
	}
}

// Term length limits, counted in whitespace-separated words.
const (
	MaxEntityWordLength = 6
	MaxGeneWordLength   = 1
	MaxFoodWordLength   = 4

	// MinEntityLength is the minimum number of characters a manually
	// annotatable term must exceed.
	MinEntityLength = 1
)

// HomoSapiensTaxID is preferred when organism candidates are otherwise tied.
const HomoSapiensTaxID = "9606"

// OrganismDistanceThreshold is the maximum character distance between a gene
// mention and an organism mention for the pair to be trusted without falling
// back to the specified organism.
const OrganismDistanceThreshold = 200

// MaxAbbreviationWordLength bounds the lookback window retained for
// parenthetical abbreviation detection.
const MaxAbbreviationWordLength = 4

// DatabaseType identifies the source authority of an entity identifier.
type DatabaseType string

const (
	DatabaseChebi        DatabaseType = "CHEBI"
	DatabaseCustom       DatabaseType = "CUSTOM"
	DatabaseMesh         DatabaseType = "MESH"
	DatabaseUniprot      DatabaseType = "UNIPROT"
	DatabaseNCBIGene     DatabaseType = "NCBI Gene"
	DatabaseNCBITaxonomy DatabaseType = "NCBI Taxonomy"
	DatabaseBioCyc       DatabaseType = "BIOCYC"
	DatabasePubChem      DatabaseType = "PUBCHEM"
)

// IsValid checks if the DatabaseType is a member of the closed set.
func (d DatabaseType) IsValid() bool {
	switch d {
	case DatabaseChebi, DatabaseCustom, DatabaseMesh, DatabaseUniprot,
		DatabaseNCBIGene, DatabaseNCBITaxonomy, DatabaseBioCyc, DatabasePubChem:
		return true
	default:
		return false
	}
}

// entityHyperlinks maps each identifier authority to the URL prefix its
// identifiers resolve against.
var entityHyperlinks = map[DatabaseType]string{
	DatabaseChebi:        "https://www.ebi.ac.uk/chebi/searchId.do?chebiId=",
	DatabaseMesh:         "https://www.ncbi.nlm.nih.gov/mesh/",
	DatabaseUniprot:      "https://www.uniprot.org/uniprot/?sort=score&query=",
	DatabaseNCBIGene:     "https://www.ncbi.nlm.nih.gov/gene/",
	DatabaseNCBITaxonomy: "https://www.ncbi.nlm.nih.gov/Taxonomy/Browser/wwwtax.cgi?id=",
	DatabaseBioCyc:       "https://biocyc.org/compound?orgid=META&id=",
	DatabaseCustom:       "https://www.google.com/search?q=",
}

// Hyperlink builds the canonical URL for an entity identifier under this
// authority.  MESH identifiers carry a "MESH:" prefix in the dictionaries that
// the MESH browser does not accept, so it is stripped.
func (d DatabaseType) Hyperlink(entityID string) string {
	base, ok := entityHyperlinks[d]
	if !ok {
		return entityHyperlinks[DatabaseCustom] + entityID
	}
	if d == DatabaseMesh && strings.HasPrefix(entityID, "MESH:") {
		return base + entityID[5:]
	}
	return base + entityID
}

// SearchLinks are per-domain text search URLs attached to every annotation so
// the UI can offer "find this term elsewhere" shortcuts.
type SearchLinks struct {
	NCBI      string `json:"ncbi"`
	Uniprot   string `json:"uniprot"`
	Mesh      string `json:"mesh"`
	Chebi     string `json:"chebi"`
	PubChem   string `json:"pubchem"`
	Wikipedia string `json:"wikipedia"`
	Google    string `json:"google"`
}

// BuildSearchLinks produces the search link set for a matched term.
func BuildSearchLinks(term string) SearchLinks {
	q := url.QueryEscape(term)
	return SearchLinks{
		NCBI:      "https://www.ncbi.nlm.nih.gov/gene/?term=" + q,
		Uniprot:   "https://www.uniprot.org/uniprot/?sort=score&query=" + q,
		Mesh:      "https://www.ncbi.nlm.nih.gov/mesh/?term=" + q,
		Chebi:     "https://www.ebi.ac.uk/chebi/advancedSearchFT.do?searchString=" + q,
		PubChem:   "https://pubchem.ncbi.nlm.nih.gov/#query=" + q,
		Wikipedia: "https://www.google.com/search?q=site:+wikipedia.org+" + q,
		Google:    "https://www.google.com/search?q=" + q,
	}
}

// OrganismCategory is the taxonomic domain of an organism.
type OrganismCategory string

const (
	OrganismArchaea   OrganismCategory = "Archaea"
	OrganismBacteria  OrganismCategory = "Bacteria"
	OrganismEukaryota OrganismCategory = "Eukaryota"
	OrganismViruses   OrganismCategory = "Viruses"

	// OrganismUncategorized is the single fallback bucket used whenever a
	// gene's organism could not be resolved.  The resolver always writes this
	// value rather than leaving the category blank.
	OrganismUncategorized OrganismCategory = "Uncategorized"
)

// IsValid checks if the OrganismCategory is a member of the closed set.
func (c OrganismCategory) IsValid() bool {
	switch c {
	case OrganismArchaea, OrganismBacteria, OrganismEukaryota, OrganismViruses, OrganismUncategorized:
		return true
	default:
		return false
	}
}

// ManualKind distinguishes user inclusions from user exclusions.
type ManualKind string

const (
	ManualInclusion ManualKind = "inclusion"
	ManualExclusion ManualKind = "exclusion"
)

// Method selects how automatic annotations are produced.
type Method string

const (
	// MethodRules is dictionary matching only.
	MethodRules Method = "rules"
	// MethodNLP overlays external NLP predictions for the types the model
	// covers; species remain rules-based.
	MethodNLP Method = "nlp"
)

// IsValid checks if the Method is supported.
func (m Method) IsValid() bool {
	return m == MethodRules || m == MethodNLP
}

// Source records where a match candidate came from.
type Source string

const (
	SourceDictionary Source = "dictionary"
	SourceCustom     Source = "custom"
	SourceNLP        Source = "nlp"
)
