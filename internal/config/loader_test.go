package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8080
  mode: "release"
database:
  host: "localhost"
  port: 5432
  user: "lifelike"
  password: "password"
  db_name: "lifelike"
neo4j:
  uri: "bolt://localhost:7687"
  user: "neo4j"
  password: "password"
redis:
  addr: "localhost:6379"
kafka:
  brokers: ["localhost:9092"]
  group_id: "lifelike-annotator"
dictionary:
  path: "/tmp/lmdb"
minio:
  endpoint: "localhost:9000"
  access_key: "key"
  secret_key: "secret"
  bucket: "parsed-documents"
log:
  level: "info"
  format: "json"
`

func createTempConfigFile(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func setEnvVars(t *testing.T, vars map[string]string) {
	for k, v := range vars {
		os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range vars {
			os.Unsetenv(k)
		}
	})
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "/tmp/lmdb", cfg.Dictionary.Path)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load("non_existent_config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "invalid_yaml: [")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	invalidConfig := `
server:
  port: 8080
  mode: "staging"
`
	path := createTempConfigFile(t, invalidConfig)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.mode")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	setEnvVars(t, map[string]string{
		"LIFELIKE_SERVER_PORT": "9999",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_EnvOverride_NestedKey(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	setEnvVars(t, map[string]string{
		"LIFELIKE_DATABASE_HOST": "db-host",
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db-host", cfg.Database.Host)
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	// Unset fields fall back to the service defaults.
	assert.Equal(t, DefaultMaxKeywordWords, cfg.Annotation.MaxKeywordWords)
	assert.Equal(t, DefaultWorkerConcurrency, cfg.Worker.Concurrency)
	assert.Equal(t, DefaultDictionaryMapSizeMB, cfg.Dictionary.MapSizeMB)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	setEnvVars(t, map[string]string{
		"LIFELIKE_DATABASE_USER":     "lifelike",
		"LIFELIKE_DATABASE_PASSWORD": "password",
	})

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "lifelike", cfg.Database.User)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestMustLoad_Success(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	assert.NotPanics(t, func() {
		MustLoad(path)
	})
}

func TestMustLoad_Panic(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad("non_existent.yaml")
	})
}
