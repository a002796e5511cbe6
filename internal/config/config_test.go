package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biosustain/lifelike-annotator/internal/config"
)

// validConfig returns a Config that passes Validate(): defaults plus the
// required fields that have none.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Database.User = "lifelike"
	cfg.Database.Password = "secret"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		errPart string
	}{
		{"missing database host", func(c *config.Config) { c.Database.Host = "" }, "database.host"},
		{"missing database user", func(c *config.Config) { c.Database.User = "" }, "database.user"},
		{"missing database name", func(c *config.Config) { c.Database.DBName = "" }, "database.db_name"},
		{"database port zero", func(c *config.Config) { c.Database.Port = 0 }, "database.port"},
		{"database max conns zero", func(c *config.Config) { c.Database.MaxConns = 0 }, "database.max_conns"},
		{"server port zero", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"server port negative", func(c *config.Config) { c.Server.Port = -1 }, "server.port"},
		{"server port too large", func(c *config.Config) { c.Server.Port = 65536 }, "server.port"},
		{"unknown server mode", func(c *config.Config) { c.Server.Mode = "production" }, "server.mode"},
		{"missing redis addr", func(c *config.Config) { c.Redis.Addr = "" }, "redis.addr"},
		{"no kafka brokers", func(c *config.Config) { c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"missing kafka group id", func(c *config.Config) { c.Kafka.GroupID = "" }, "kafka.group_id"},
		{"missing dictionary path", func(c *config.Config) { c.Dictionary.Path = "" }, "dictionary.path"},
		{"keyword length zero", func(c *config.Config) { c.Annotation.MaxKeywordWords = 0 }, "annotation.max_keyword_words"},
		{"worker concurrency zero", func(c *config.Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"unknown log level", func(c *config.Config) { c.Log.Level = "verbose" }, "log.level"},
		{"unknown log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errPart)
		})
	}
}

func TestZeroConfigHasNoDefaults(t *testing.T) {
	t.Parallel()

	var cfg config.Config
	assert.Zero(t, cfg.Server.Port)
	assert.Empty(t, cfg.Database.Host)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Dictionary.Path)
	assert.Zero(t, cfg.Worker.Concurrency)
}
