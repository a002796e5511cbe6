package document

import "context"

// Repository persists files, their annotation output, and the append-only
// version history of their manual lists.
type Repository interface {
	// ByHashID loads one file.  Returns a not-found error when the hash id
	// is unknown.
	ByHashID(ctx context.Context, hashID string) (*File, error)

	// ByHashIDs loads many files at once for batch annotation.  Unknown
	// hash ids are simply absent from the result, never an error.
	ByHashIDs(ctx context.Context, hashIDs []string) (map[string]*File, error)

	// SaveAnnotations stores the automatic annotation collection and its
	// timestamp, leaving the manual lists untouched.
	SaveAnnotations(ctx context.Context, f *File) error

	// SaveManualLists stores the custom and excluded annotation lists.
	SaveManualLists(ctx context.Context, f *File) error

	// SaveVersion appends one snapshot to the file's version history.
	SaveVersion(ctx context.Context, v *AnnotationsVersion) error

	// Versions returns the newest snapshots for a file, newest first.
	Versions(ctx context.Context, fileID int64, limit int) ([]*AnnotationsVersion, error)
}
