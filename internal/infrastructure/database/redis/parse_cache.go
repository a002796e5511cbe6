package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

// ParseCache is the byte-oriented cache the annotation pipeline wraps around
// its document source.  Misses and redis errors are both reported as "not
// cached"; the pipeline re-reads from the object store either way.
type ParseCache struct {
	client *Client
	prefix string
	logger logging.Logger
}

// NewParseCache wraps a redis client for parse-output caching.
func NewParseCache(client *Client, prefix string, log logging.Logger) *ParseCache {
	if prefix == "" {
		prefix = "lifelike:"
	}
	return &ParseCache{client: client, prefix: prefix, logger: log.Named("parse_cache")}
}

// Get returns the cached bytes for key, or false on a miss or error.
func (p *ParseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := p.client.Get(ctx, p.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			p.logger.Warn("parse cache read failed", logging.String("key", key), logging.Err(err))
		}
		return nil, false
	}
	return data, true
}

// Set stores the bytes under key for ttl.
func (p *ParseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.client.Set(ctx, p.prefix+key, value, ttl).Err()
}
