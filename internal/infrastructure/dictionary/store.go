// Package dictionary provides read access to the entity dictionaries the
// matcher looks keywords up in.  The production backend is a set of LMDB
// environments, one per entity category, prepared offline by the dictionary
// ETL; this package only ever opens them read-only.
package dictionary

import (
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// Store is the lookup contract the recognition stage depends on.
// Implementations must be safe for concurrent readers.
type Store interface {
	// Lookup returns every entity record stored under the normalized key in
	// the category's dictionary.  A missing key is a normal outcome and
	// yields an empty slice, never an error; errors are reserved for store
	// failures.
	Lookup(category annotation.EntityType, normalizedKey string) ([]annotation.EntityRecord, error)

	// Contains reports whether the normalized key exists in the category's
	// dictionary without decoding the records.
	Contains(category annotation.EntityType, normalizedKey string) (bool, error)

	// Categories lists the entity categories this store carries.
	Categories() []annotation.EntityType

	// Close releases all underlying resources.  The store is unusable
	// afterwards; Close is idempotent.
	Close() error
}
