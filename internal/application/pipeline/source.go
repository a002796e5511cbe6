package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/biosustain/lifelike-annotator/internal/annotator/resolver"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

// DocumentSource yields the parsed, positioned chars of a stored document.
// The object-store adapter implements it; PDF parsing itself happens
// upstream and only its JSON output is read here.
type DocumentSource interface {
	DocumentChars(ctx context.Context, hashID string) ([]tokenizer.Char, map[int]resolver.CropBox, error)
}

// Cache is a byte-level cache with TTL semantics, satisfied by the redis
// adapter.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// parsedDocument is the cache wire form of a parsed document.
type parsedDocument struct {
	Chars     []tokenizer.Char         `json:"chars"`
	CropBoxes map[int]resolver.CropBox `json:"crop_boxes,omitempty"`
}

type cachedSource struct {
	inner DocumentSource
	cache Cache
	ttl   time.Duration
	log   logging.Logger
}

// NewCachedSource wraps a document source with a parse cache.  Parsing large
// PDFs upstream is the slowest step of re-annotation; the cache makes
// re-annotating an unchanged file cheap.
func NewCachedSource(inner DocumentSource, cache Cache, ttl time.Duration, log logging.Logger) DocumentSource {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &cachedSource{inner: inner, cache: cache, ttl: ttl, log: log.Named("parse_cache")}
}

func (s *cachedSource) DocumentChars(ctx context.Context, hashID string) ([]tokenizer.Char, map[int]resolver.CropBox, error) {
	key := "parsed:" + hashID
	if raw, ok := s.cache.Get(ctx, key); ok {
		var doc parsedDocument
		if err := json.Unmarshal(raw, &doc); err == nil {
			return doc.Chars, doc.CropBoxes, nil
		}
		// A corrupt entry falls through to a fresh parse.
		s.log.Info("dropping unreadable parse cache entry", logging.String("file", hashID))
	}

	chars, cropBoxes, err := s.inner.DocumentChars(ctx, hashID)
	if err != nil {
		return nil, nil, err
	}

	raw, err := json.Marshal(parsedDocument{Chars: chars, CropBoxes: cropBoxes})
	if err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.log.Info("parse cache write failed", logging.Err(err))
		}
	}
	return chars, cropBoxes, nil
}
