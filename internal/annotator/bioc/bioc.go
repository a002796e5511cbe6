// Package bioc assembles resolved annotations into the BioC-flavored JSON
// document the rest of the platform stores and serves: one collection, one
// document, one passage at offset zero carrying the full text and the
// annotation list sorted by location.
package bioc

import (
	"sort"
	"time"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// Collection is the top-level BioC container.
type Collection struct {
	Source    string     `json:"source"`
	Date      string     `json:"date"`
	Key       string     `json:"key"`
	Documents []Document `json:"documents"`
}

// Document holds the passages of one annotated file.
type Document struct {
	ID       string    `json:"id"`
	Passages []Passage `json:"passages"`
}

// Passage is one contiguous stretch of document text with its annotations.
type Passage struct {
	Offset      int                      `json:"offset"`
	Text        string                   `json:"text"`
	Annotations []*annotation.Annotation `json:"annotations"`
}

const collectionSource = "lifelike"

// Assembler builds collections.  The clock only feeds the collection date.
type Assembler struct {
	now func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the time source, for reproducible output.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// NewAssembler constructs an Assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble produces the collection for one annotated document.  The
// annotation list is copied and sorted by inclusive offsets; the input is not
// modified.
func (a *Assembler) Assemble(fileURI, text string, annotations []*annotation.Annotation) *Collection {
	sorted := make([]*annotation.Annotation, len(annotations))
	copy(sorted, annotations)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].LoLocationOffset != sorted[j].LoLocationOffset {
			return sorted[i].LoLocationOffset < sorted[j].LoLocationOffset
		}
		return sorted[i].HiLocationOffset < sorted[j].HiLocationOffset
	})

	return &Collection{
		Source: collectionSource,
		Date:   a.now().UTC().Format("2006-01-02"),
		Key:    fileURI,
		Documents: []Document{{
			ID: fileURI,
			Passages: []Passage{{
				Offset:      0,
				Text:        text,
				Annotations: sorted,
			}},
		}},
	}
}

// Annotations returns the annotation list of the collection's single passage.
// Nil for a collection with no documents.
func (c *Collection) Annotations() []*annotation.Annotation {
	if c == nil || len(c.Documents) == 0 || len(c.Documents[0].Passages) == 0 {
		return nil
	}
	return c.Documents[0].Passages[0].Annotations
}
