package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biosustain/lifelike-annotator/internal/domain/globallist"
	appErrors "github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// ─────────────────────────────────────────────────────────────────────────────
// GlobalListRepository
// ─────────────────────────────────────────────────────────────────────────────

// GlobalListRepository is the PostgreSQL implementation of
// globallist.Repository.  The inclusion/exclusion payloads are stored as
// JSONB in one table distinguished by kind.
type GlobalListRepository struct {
	pool   *pgxpool.Pool
	logger Logger
}

// NewGlobalListRepository constructs a ready-to-use GlobalListRepository.
func NewGlobalListRepository(pool *pgxpool.Pool, logger Logger) *GlobalListRepository {
	return &GlobalListRepository{pool: pool, logger: logger}
}

var _ globallist.Repository = (*GlobalListRepository)(nil)

// Save stores one entry and fills in its ID.
func (r *GlobalListRepository) Save(ctx context.Context, entry *annotation.GlobalListEntry) error {
	r.logger.Debug("GlobalListRepository.Save", "kind", string(entry.Kind), "file_id", entry.FileID)

	if err := entry.Validate(); err != nil {
		return err
	}

	var payload interface{}
	switch entry.Kind {
	case annotation.ManualInclusion:
		payload = entry.Inclusion
	case annotation.ManualExclusion:
		payload = entry.Exclusion
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to encode global list payload")
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO global_list (kind, file_id, user_id, payload, created_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`,
		string(entry.Kind), nullableString(entry.FileID), nullableString(entry.UserID),
		payloadJSON, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("GlobalListRepository.Save", "error", err)
		return appErrors.Wrap(err, appErrors.ErrCodeGlobalListFailed, "failed to save global list entry")
	}
	return nil
}

// Inclusions returns every global inclusion annotation.
func (r *GlobalListRepository) Inclusions(ctx context.Context) ([]*annotation.Annotation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT payload FROM global_list
		WHERE kind = $1
		ORDER BY created_at`, string(annotation.ManualInclusion))
	if err != nil {
		r.logger.Error("GlobalListRepository.Inclusions", "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrCodeGlobalListFailed, "failed to load global inclusions")
	}
	defer rows.Close()

	var out []*annotation.Annotation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan global inclusion")
		}
		var anno annotation.Annotation
		if err := json.Unmarshal(payload, &anno); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "corrupt global inclusion payload")
		}
		out = append(out, &anno)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to iterate global inclusions")
	}
	return out, nil
}

// Exclusions returns every global exclusion rule.
func (r *GlobalListRepository) Exclusions(ctx context.Context) ([]*annotation.ExclusionRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT payload FROM global_list
		WHERE kind = $1
		ORDER BY created_at`, string(annotation.ManualExclusion))
	if err != nil {
		r.logger.Error("GlobalListRepository.Exclusions", "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrCodeGlobalListFailed, "failed to load global exclusions")
	}
	defer rows.Close()

	var out []*annotation.ExclusionRule
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan global exclusion")
		}
		var rule annotation.ExclusionRule
		if err := json.Unmarshal(payload, &rule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "corrupt global exclusion payload")
		}
		out = append(out, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to iterate global exclusions")
	}
	return out, nil
}

// List pages through entries of one kind, newest first.
func (r *GlobalListRepository) List(ctx context.Context, kind annotation.ManualKind, offset, limit int) ([]*annotation.GlobalListEntry, int64, error) {
	r.logger.Debug("GlobalListRepository.List", "kind", string(kind), "offset", offset, "limit", limit)
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM global_list WHERE kind = $1`, string(kind)).Scan(&total)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to count global list entries")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, file_id, user_id, payload, created_at
		FROM global_list
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, string(kind), limit, offset)
	if err != nil {
		r.logger.Error("GlobalListRepository.List", "error", err)
		return nil, 0, appErrors.Wrap(err, appErrors.ErrCodeGlobalListFailed, "failed to list global entries")
	}
	defer rows.Close()

	var out []*annotation.GlobalListEntry
	for rows.Next() {
		entry, err := scanGlobalListEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to iterate global entries")
	}
	return out, total, nil
}

// Delete removes entries by id.  Unknown ids are ignored.
func (r *GlobalListRepository) Delete(ctx context.Context, ids []int64) error {
	r.logger.Debug("GlobalListRepository.Delete", "count", len(ids))
	if len(ids) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx, `DELETE FROM global_list WHERE id = ANY($1)`, ids)
	if err != nil {
		r.logger.Error("GlobalListRepository.Delete", "error", err)
		return appErrors.Wrap(err, appErrors.ErrCodeGlobalListFailed, "failed to delete global list entries")
	}
	return nil
}

func scanGlobalListEntry(row pgx.Row) (*annotation.GlobalListEntry, error) {
	var (
		entry   annotation.GlobalListEntry
		kind    string
		fileID  *string
		userID  *string
		payload []byte
	)
	if err := row.Scan(&entry.ID, &kind, &fileID, &userID, &payload, &entry.CreatedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan global list entry")
	}
	entry.Kind = annotation.ManualKind(kind)
	if fileID != nil {
		entry.FileID = *fileID
	}
	if userID != nil {
		entry.UserID = *userID
	}

	switch entry.Kind {
	case annotation.ManualInclusion:
		var anno annotation.Annotation
		if err := json.Unmarshal(payload, &anno); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "corrupt global inclusion payload")
		}
		entry.Inclusion = &anno
	case annotation.ManualExclusion:
		var rule annotation.ExclusionRule
		if err := json.Unmarshal(payload, &rule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "corrupt global exclusion payload")
		}
		entry.Exclusion = &rule
	}
	return &entry, nil
}
