package client

import (
	"context"
	"fmt"

	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// GlobalListClient accesses the instance-wide inclusion and exclusion lists.
type GlobalListClient struct {
	client *Client
}

// GlobalListPage is one page of global list entries.
type GlobalListPage struct {
	Entries []*annotation.GlobalListEntry `json:"entries"`
	Total   int64                         `json:"total"`
}

// List pages through global entries of one kind ("inclusion" or "exclusion"),
// newest first.
func (gc *GlobalListClient) List(ctx context.Context, kind string, page, pageSize int) (*GlobalListPage, error) {
	path := fmt.Sprintf("/api/v1/global-list?kind=%s&page=%d&page_size=%d", kind, page, pageSize)
	var result GlobalListPage
	if err := gc.client.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateEntryRequest is the body for creating a global list entry.
type CreateEntryRequest struct {
	Kind      string                    `json:"kind"`
	FileID    string                    `json:"file_id,omitempty"`
	Inclusion *annotation.Annotation    `json:"inclusion,omitempty"`
	Exclusion *annotation.ExclusionRule `json:"exclusion,omitempty"`
}

// Create stores one global list entry and returns it with its id filled in.
func (gc *GlobalListClient) Create(ctx context.Context, req *CreateEntryRequest) (*annotation.GlobalListEntry, error) {
	var entry annotation.GlobalListEntry
	if err := gc.client.post(ctx, "/api/v1/global-list", req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes global list entries by id.  Unknown ids are ignored.
func (gc *GlobalListClient) Delete(ctx context.Context, ids []int64) error {
	body := map[string]interface{}{"ids": ids}
	return gc.client.delete(ctx, "/api/v1/global-list", body, nil)
}
