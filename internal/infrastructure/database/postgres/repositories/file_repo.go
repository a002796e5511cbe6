// Package repositories provides PostgreSQL-backed implementations of the
// domain repository interfaces for the Lifelike annotation service.
package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biosustain/lifelike-annotator/internal/annotator/bioc"
	"github.com/biosustain/lifelike-annotator/internal/domain/document"
	appErrors "github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// ─────────────────────────────────────────────────────────────────────────────
// FileRepository
// ─────────────────────────────────────────────────────────────────────────────

// FileRepository is the PostgreSQL implementation of document.Repository.
// Annotation collections and manual lists are stored as JSONB; the version
// history is append-only.
type FileRepository struct {
	pool   *pgxpool.Pool
	logger Logger
}

// NewFileRepository constructs a ready-to-use FileRepository.
func NewFileRepository(pool *pgxpool.Pool, logger Logger) *FileRepository {
	return &FileRepository{pool: pool, logger: logger}
}

var _ document.Repository = (*FileRepository)(nil)

const fileColumns = `
	id, hash_id, filename, mime_type,
	annotations, annotations_date,
	custom_annotations, excluded_annotations,
	organism, created_at, updated_at`

// ByHashID loads one file by its public hash id.
func (r *FileRepository) ByHashID(ctx context.Context, hashID string) (*document.File, error) {
	r.logger.Debug("FileRepository.ByHashID", "hash_id", hashID)

	f, err := scanFile(r.pool.QueryRow(ctx, `
		SELECT `+fileColumns+`
		FROM files WHERE hash_id = $1`, hashID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.NotFound("file " + hashID)
		}
		r.logger.Error("FileRepository.ByHashID", "error", err, "hash_id", hashID)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load file")
	}
	return f, nil
}

// ByHashIDs loads many files at once.  Unknown hash ids are absent from the
// result.
func (r *FileRepository) ByHashIDs(ctx context.Context, hashIDs []string) (map[string]*document.File, error) {
	r.logger.Debug("FileRepository.ByHashIDs", "count", len(hashIDs))
	if len(hashIDs) == 0 {
		return map[string]*document.File{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+fileColumns+`
		FROM files WHERE hash_id = ANY($1)`, hashIDs)
	if err != nil {
		r.logger.Error("FileRepository.ByHashIDs", "error", err)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load files")
	}
	defer rows.Close()

	out := make(map[string]*document.File, len(hashIDs))
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan file")
		}
		out[f.HashID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to iterate files")
	}
	return out, nil
}

// SaveAnnotations stores the automatic annotation collection and its
// timestamp, leaving the manual lists untouched.
func (r *FileRepository) SaveAnnotations(ctx context.Context, f *document.File) error {
	r.logger.Debug("FileRepository.SaveAnnotations", "hash_id", f.HashID)

	annotationsJSON, err := marshalNullable(f.Annotations)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to encode annotations")
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE files
		SET annotations = $2, annotations_date = $3, updated_at = now()
		WHERE id = $1`,
		f.ID, annotationsJSON, nullableTime(f.AnnotationsDate))
	if err != nil {
		r.logger.Error("FileRepository.SaveAnnotations", "error", err, "hash_id", f.HashID)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to save annotations")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.NotFound("file " + f.HashID)
	}
	return nil
}

// SaveManualLists stores the custom and excluded annotation lists.
func (r *FileRepository) SaveManualLists(ctx context.Context, f *document.File) error {
	r.logger.Debug("FileRepository.SaveManualLists",
		"hash_id", f.HashID,
		"custom", len(f.CustomAnnotations),
		"excluded", len(f.ExcludedAnnotations))

	customJSON, err := json.Marshal(emptyIfNilAnnotations(f.CustomAnnotations))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to encode custom annotations")
	}
	excludedJSON, err := json.Marshal(emptyIfNilExclusions(f.ExcludedAnnotations))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to encode excluded annotations")
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE files
		SET custom_annotations = $2, excluded_annotations = $3, updated_at = now()
		WHERE id = $1`,
		f.ID, customJSON, excludedJSON)
	if err != nil {
		r.logger.Error("FileRepository.SaveManualLists", "error", err, "hash_id", f.HashID)
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to save manual lists")
	}
	if tag.RowsAffected() == 0 {
		return appErrors.NotFound("file " + f.HashID)
	}
	return nil
}

// SaveVersion appends one snapshot to the file's version history.
func (r *FileRepository) SaveVersion(ctx context.Context, v *document.AnnotationsVersion) error {
	r.logger.Debug("FileRepository.SaveVersion", "file_id", v.FileID, "cause", string(v.Cause))

	if err := v.Validate(); err != nil {
		return err
	}

	customJSON, err := json.Marshal(emptyIfNilAnnotations(v.CustomAnnotations))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to encode custom annotations")
	}
	excludedJSON, err := json.Marshal(emptyIfNilExclusions(v.ExcludedAnnotations))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to encode excluded annotations")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO file_annotations_versions (
			id, file_id, cause, user_id,
			custom_annotations, excluded_annotations, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.FileID, string(v.Cause), nullableString(v.UserID),
		customJSON, excludedJSON, v.CreatedAt)
	if err != nil {
		r.logger.Error("FileRepository.SaveVersion", "error", err, "file_id", v.FileID)
		return appErrors.Wrap(err, appErrors.ErrCodeAnnotationVersioning, "failed to save annotations version")
	}
	return nil
}

// Versions returns the newest snapshots for a file, newest first.
func (r *FileRepository) Versions(ctx context.Context, fileID int64, limit int) ([]*document.AnnotationsVersion, error) {
	r.logger.Debug("FileRepository.Versions", "file_id", fileID, "limit", limit)
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, file_id, cause, user_id,
		       custom_annotations, excluded_annotations, created_at
		FROM file_annotations_versions
		WHERE file_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, fileID, limit)
	if err != nil {
		r.logger.Error("FileRepository.Versions", "error", err, "file_id", fileID)
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load versions")
	}
	defer rows.Close()

	var out []*document.AnnotationsVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan version")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to iterate versions")
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row scanners
// ─────────────────────────────────────────────────────────────────────────────

func scanFile(row pgx.Row) (*document.File, error) {
	var (
		f               document.File
		annotationsJSON []byte
		annotationsDate *time.Time
		customJSON      []byte
		excludedJSON    []byte
		organismJSON    []byte
	)
	err := row.Scan(
		&f.ID, &f.HashID, &f.Filename, &f.MimeType,
		&annotationsJSON, &annotationsDate,
		&customJSON, &excludedJSON,
		&organismJSON, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(annotationsJSON) > 0 {
		var collection bioc.Collection
		if err := json.Unmarshal(annotationsJSON, &collection); err != nil {
			return nil, err
		}
		f.Annotations = &collection
	}
	if annotationsDate != nil {
		f.AnnotationsDate = *annotationsDate
	}
	if len(customJSON) > 0 {
		if err := json.Unmarshal(customJSON, &f.CustomAnnotations); err != nil {
			return nil, err
		}
	}
	if len(excludedJSON) > 0 {
		if err := json.Unmarshal(excludedJSON, &f.ExcludedAnnotations); err != nil {
			return nil, err
		}
	}
	if len(organismJSON) > 0 {
		if err := json.Unmarshal(organismJSON, &f.Organism); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func scanVersion(row pgx.Row) (*document.AnnotationsVersion, error) {
	var (
		v            document.AnnotationsVersion
		cause        string
		userID       *string
		customJSON   []byte
		excludedJSON []byte
	)
	err := row.Scan(&v.ID, &v.FileID, &cause, &userID, &customJSON, &excludedJSON, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Cause = document.ChangeCause(cause)
	if userID != nil {
		v.UserID = *userID
	}
	if len(customJSON) > 0 {
		if err := json.Unmarshal(customJSON, &v.CustomAnnotations); err != nil {
			return nil, err
		}
	}
	if len(excludedJSON) > 0 {
		if err := json.Unmarshal(excludedJSON, &v.ExcludedAnnotations); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// JSONB helpers
// ─────────────────────────────────────────────────────────────────────────────

func marshalNullable(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if c, ok := v.(*bioc.Collection); ok && c == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func emptyIfNilAnnotations(list []*annotation.Annotation) []*annotation.Annotation {
	if list == nil {
		return []*annotation.Annotation{}
	}
	return list
}

func emptyIfNilExclusions(list []*annotation.ExclusionRule) []*annotation.ExclusionRule {
	if list == nil {
		return []*annotation.ExclusionRule{}
	}
	return list
}
