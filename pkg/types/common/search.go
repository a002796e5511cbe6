package common

// IndexMapping is the settings/mappings pair sent when creating an index.
type IndexMapping struct {
	Settings map[string]interface{} `json:"settings,omitempty"`
	Mappings map[string]interface{} `json:"mappings,omitempty"`
}

// BulkResult reports the outcome of a bulk indexing call.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

// BulkItemError describes one failed document in a bulk call.
type BulkItemError struct {
	DocID     string
	ErrorType string
	Reason    string
}
