package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// SearchAnnotationsRequest filters the annotation search index.
type SearchAnnotationsRequest struct {
	Text        string
	EntityTypes []string
	FileHashID  string
	EntityID    string
	CustomOnly  bool
	Page        int
	PageSize    int
}

// AnnotationSearchHit is one matched annotation.
type AnnotationSearchHit struct {
	FileHashID  string `json:"file_hash_id"`
	Keyword     string `json:"keyword"`
	PrimaryName string `json:"primary_name"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	IDType      string `json:"id_type"`
	Page        int    `json:"page"`
	IsCustom    bool   `json:"is_custom"`
}

// AnnotationSearchPage is one page of search results with per-type counts
// over the full match set.
type AnnotationSearchPage struct {
	Total      int64                 `json:"total"`
	Hits       []AnnotationSearchHit `json:"hits"`
	TypeCounts map[string]int64      `json:"type_counts"`
}

// SearchAnnotations queries indexed annotations across all files.
func (c *Client) SearchAnnotations(ctx context.Context, req *SearchAnnotationsRequest) (*AnnotationSearchPage, error) {
	params := url.Values{}
	if req.Text != "" {
		params.Set("q", req.Text)
	}
	if len(req.EntityTypes) > 0 {
		params.Set("types", strings.Join(req.EntityTypes, ","))
	}
	if req.FileHashID != "" {
		params.Set("file", req.FileHashID)
	}
	if req.EntityID != "" {
		params.Set("entity_id", req.EntityID)
	}
	if req.CustomOnly {
		params.Set("custom_only", "true")
	}
	if req.Page > 0 {
		params.Set("page", fmt.Sprintf("%d", req.Page))
	}
	if req.PageSize > 0 {
		params.Set("page_size", fmt.Sprintf("%d", req.PageSize))
	}

	var page AnnotationSearchPage
	if err := c.get(ctx, "/api/v1/annotations/search?"+params.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}
