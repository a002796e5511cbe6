// Package globallist persists the instance-wide manual annotation lists: the
// inclusions and exclusions a curator promoted from one document to every
// document.  Global entries layer beneath document-local ones; a local entry
// with the same term and type always wins.
package globallist

import (
	"context"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// Repository persists global list entries.
type Repository interface {
	// Save stores one entry and fills in its ID.
	Save(ctx context.Context, entry *annotation.GlobalListEntry) error

	// Inclusions returns every global inclusion annotation.
	Inclusions(ctx context.Context) ([]*annotation.Annotation, error)

	// Exclusions returns every global exclusion rule.
	Exclusions(ctx context.Context) ([]*annotation.ExclusionRule, error)

	// List pages through entries of one kind, newest first.
	List(ctx context.Context, kind annotation.ManualKind, offset, limit int) ([]*annotation.GlobalListEntry, int64, error)

	// Delete removes entries by id.  Unknown ids are ignored.
	Delete(ctx context.Context, ids []int64) error
}
