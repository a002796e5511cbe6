package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

func newParseCacheWithMock() (*ParseCache, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	client := &Client{
		rdb:    db,
		config: &RedisConfig{},
		logger: logging.NewNopLogger(),
	}
	return NewParseCache(client, "lifelike:", logging.NewNopLogger()), mock
}

func TestParseCache_GetHit(t *testing.T) {
	cache, mock := newParseCacheWithMock()
	mock.ExpectGet("lifelike:parsed:abc").SetVal(`{"chars":[]}`)

	data, ok := cache.Get(context.Background(), "parsed:abc")
	require.True(t, ok)
	assert.Equal(t, `{"chars":[]}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseCache_GetMiss(t *testing.T) {
	cache, mock := newParseCacheWithMock()
	mock.ExpectGet("lifelike:parsed:abc").RedisNil()

	_, ok := cache.Get(context.Background(), "parsed:abc")
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseCache_Set(t *testing.T) {
	cache, mock := newParseCacheWithMock()
	mock.ExpectSet("lifelike:parsed:abc", []byte("payload"), time.Hour).SetVal("OK")

	err := cache.Set(context.Background(), "parsed:abc", []byte("payload"), time.Hour)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
