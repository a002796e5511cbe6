// Package document holds the file aggregate the annotation pipeline operates
// on: the stored parse output, the automatic annotation collection, and the
// manual inclusion/exclusion lists a user layered on top of it.
package document

import (
	"time"

	"github.com/google/uuid"

	"github.com/biosustain/lifelike-annotator/internal/annotator/bioc"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// File is one annotatable document.  HashID is the stable public identifier
// used by the HTTP surface and the object store; ID is the postgres surrogate
// key.
type File struct {
	ID       int64  `json:"id"`
	HashID   string `json:"hash_id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`

	// Annotations is the automatic annotation collection produced by the
	// last pipeline run, nil when the file was never annotated.
	Annotations     *bioc.Collection `json:"annotations,omitempty"`
	AnnotationsDate time.Time        `json:"annotations_date,omitempty"`

	// CustomAnnotations and ExcludedAnnotations are the document-local
	// manual lists.  They survive re-annotation untouched.
	CustomAnnotations   []*annotation.Annotation    `json:"custom_annotations"`
	ExcludedAnnotations []*annotation.ExclusionRule `json:"excluded_annotations"`

	// Organism is the fallback organism the uploader picked for this file,
	// zero when none was chosen.
	Organism annotation.SpecifiedOrganism `json:"organism,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields persistence relies on.
func (f *File) Validate() error {
	if f.HashID == "" {
		return errors.Validation("hash_id is required")
	}
	if f.Filename == "" {
		return errors.Validation("filename is required")
	}
	return nil
}

// ChangeCause records what triggered an annotation-list snapshot.
type ChangeCause string

const (
	// CauseUser marks a manual edit through the annotation UI or API.
	CauseUser ChangeCause = "USER"
	// CauseUserReannotation marks a re-annotation a user requested.
	CauseUserReannotation ChangeCause = "USER_REANNOTATION"
	// CauseSystemReannotation marks a batch re-annotation run by the system.
	CauseSystemReannotation ChangeCause = "SYSTEM_REANNOTATION"
)

// IsValid checks if the ChangeCause is a member of the closed set.
func (c ChangeCause) IsValid() bool {
	switch c {
	case CauseUser, CauseUserReannotation, CauseSystemReannotation:
		return true
	}
	return false
}

// AnnotationsVersion is an archived snapshot of a file's manual lists taken
// before a change.  Snapshots are append-only; re-annotation never rewrites
// history.
type AnnotationsVersion struct {
	ID     string      `json:"id"`
	FileID int64       `json:"file_id"`
	Cause  ChangeCause `json:"cause"`
	UserID string      `json:"user_id,omitempty"`

	CustomAnnotations   []*annotation.Annotation    `json:"custom_annotations"`
	ExcludedAnnotations []*annotation.ExclusionRule `json:"excluded_annotations"`

	CreatedAt time.Time `json:"created_at"`
}

// NewVersion snapshots the file's current manual lists.
func NewVersion(f *File, cause ChangeCause, userID string) *AnnotationsVersion {
	return &AnnotationsVersion{
		ID:                  uuid.NewString(),
		FileID:              f.ID,
		Cause:               cause,
		UserID:              userID,
		CustomAnnotations:   append([]*annotation.Annotation(nil), f.CustomAnnotations...),
		ExcludedAnnotations: append([]*annotation.ExclusionRule(nil), f.ExcludedAnnotations...),
		CreatedAt:           time.Now().UTC(),
	}
}

// Validate checks the fields persistence relies on.
func (v *AnnotationsVersion) Validate() error {
	if v.FileID == 0 {
		return errors.Validation("file_id is required")
	}
	if !v.Cause.IsValid() {
		return errors.Validation("unknown change cause")
	}
	return nil
}
