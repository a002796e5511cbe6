package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, DefaultDictionaryPath, cfg.Dictionary.Path)
	assert.Equal(t, DefaultDictionaryMapSizeMB, cfg.Dictionary.MapSizeMB)
	assert.Equal(t, DefaultMaxKeywordWords, cfg.Annotation.MaxKeywordWords)
	assert.Equal(t, time.Hour, cfg.Annotation.ParseCacheTTL)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Annotation.MaxKeywordWords = 4
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Annotation.MaxKeywordWords)
}
