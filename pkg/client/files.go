package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// FilesClient accesses file annotation endpoints.
type FilesClient struct {
	client *Client
}

// AnnotateRequest names the files to annotate and the run parameters.
type AnnotateRequest struct {
	FileHashIDs []string                     `json:"file_hash_ids"`
	Organism    annotation.SpecifiedOrganism `json:"organism,omitempty"`
	Methods     map[string]string            `json:"annotation_methods,omitempty"`
}

// AnnotateResult is one file's outcome from an annotation run.
type AnnotateResult struct {
	FileHashID  string `json:"file_hash_id"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
	Annotations int    `json:"annotations,omitempty"`
}

// AnnotationsVersion is one snapshot of a file's manual lists.
type AnnotationsVersion struct {
	ID                  string                      `json:"id"`
	FileID              int64                       `json:"file_id"`
	Cause               string                      `json:"cause"`
	UserID              string                      `json:"user_id,omitempty"`
	CustomAnnotations   []*annotation.Annotation    `json:"custom_annotations"`
	ExcludedAnnotations []*annotation.ExclusionRule `json:"excluded_annotations"`
	CreatedAt           string                      `json:"created_at"`
}

// Annotate runs the pipeline over the named files.  Partial failure is
// reported per file, not as a request error.
func (fc *FilesClient) Annotate(ctx context.Context, req *AnnotateRequest) ([]AnnotateResult, error) {
	var resp struct {
		Results []AnnotateResult `json:"results"`
	}
	if err := fc.client.post(ctx, "/api/v1/files/annotate", req, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// AnnotateOne runs the pipeline over a single file.
func (fc *FilesClient) AnnotateOne(ctx context.Context, hashID string, req *AnnotateRequest) (*AnnotateResult, error) {
	var result AnnotateResult
	path := fmt.Sprintf("/api/v1/files/%s/annotate", url.PathEscape(hashID))
	if err := fc.client.post(ctx, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Annotations returns the merged annotation list of one file: automatic minus
// excluded plus custom.
func (fc *FilesClient) Annotations(ctx context.Context, hashID string) ([]*annotation.Annotation, error) {
	var resp struct {
		Annotations []*annotation.Annotation `json:"annotations"`
	}
	path := fmt.Sprintf("/api/v1/files/%s/annotations", url.PathEscape(hashID))
	if err := fc.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Annotations, nil
}

// Collection returns the stored BioC collection of one file as raw JSON.
func (fc *FilesClient) Collection(ctx context.Context, hashID string) (json.RawMessage, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/api/v1/files/%s/annotations/collection", url.PathEscape(hashID))
	if err := fc.client.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Versions lists a file's annotation version history, newest first.
func (fc *FilesClient) Versions(ctx context.Context, hashID string) ([]AnnotationsVersion, error) {
	var resp struct {
		Versions []AnnotationsVersion `json:"versions"`
	}
	path := fmt.Sprintf("/api/v1/files/%s/versions", url.PathEscape(hashID))
	if err := fc.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

// AddInclusion stores a custom annotation.  With annotateAll the service
// matches every other occurrence of the term too; the created annotations
// come back.
func (fc *FilesClient) AddInclusion(ctx context.Context, hashID string, anno *annotation.Annotation, annotateAll bool) ([]*annotation.Annotation, error) {
	body := map[string]interface{}{
		"annotation":   anno,
		"annotate_all": annotateAll,
	}
	var resp struct {
		Annotations []*annotation.Annotation `json:"annotations"`
	}
	path := fmt.Sprintf("/api/v1/files/%s/annotations/custom", url.PathEscape(hashID))
	if err := fc.client.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.Annotations, nil
}

// RemoveInclusion deletes a custom annotation by uuid, optionally with every
// other inclusion of the same term and type.  The removed uuids come back.
func (fc *FilesClient) RemoveInclusion(ctx context.Context, hashID, annotationUUID string, removeAll bool) ([]string, error) {
	path := fmt.Sprintf("/api/v1/files/%s/annotations/custom/%s", url.PathEscape(hashID), url.PathEscape(annotationUUID))
	if removeAll {
		path += "?remove_all=true"
	}
	var resp struct {
		Removed []string `json:"removed"`
	}
	if err := fc.client.delete(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Removed, nil
}

// AddExclusion stores one exclusion rule for a file.
func (fc *FilesClient) AddExclusion(ctx context.Context, hashID string, rule *annotation.ExclusionRule) error {
	body := map[string]interface{}{"rule": rule}
	path := fmt.Sprintf("/api/v1/files/%s/annotations/exclusions", url.PathEscape(hashID))
	return fc.client.post(ctx, path, body, nil)
}

// RemoveExclusion deletes the exclusion rule matching the type and term.
func (fc *FilesClient) RemoveExclusion(ctx context.Context, hashID string, entityType, term string) error {
	body := map[string]interface{}{
		"entity_type": entityType,
		"term":        term,
	}
	path := fmt.Sprintf("/api/v1/files/%s/annotations/exclusions", url.PathEscape(hashID))
	return fc.client.delete(ctx, path, body, nil)
}
