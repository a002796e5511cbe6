// Package minio provides object storage for the annotation pipeline: parsed
// document payloads, annotation exports, and enrichment tables live in MinIO
// buckets keyed by file hash.
package minio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

// MinIOAPI is the subset of the minio-go client the storage layer relies on.
// Tests substitute a mock implementation.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// BucketConfig names the buckets used by the pipeline. Parsed holds raw
// parser output, Enrichment holds generated enrichment tables.
type BucketConfig struct {
	Documents  string `mapstructure:"documents"`
	Parsed     string `mapstructure:"parsed"`
	Enrichment string `mapstructure:"enrichment"`
	Exports    string `mapstructure:"exports"`
	Temp       string `mapstructure:"temp"`
}

type MinIOConfig struct {
	Endpoint        string       `mapstructure:"endpoint"`
	AccessKeyID     string       `mapstructure:"access_key_id"`
	SecretAccessKey string       `mapstructure:"secret_access_key"`
	UseSSL          bool         `mapstructure:"use_ssl"`
	Region          string       `mapstructure:"region"`
	DefaultBucket   string       `mapstructure:"default_bucket"`
	Buckets         BucketConfig `mapstructure:"buckets"`
	TempFileExpiry  int          `mapstructure:"temp_file_expiry"`
}

// MinIOClient wraps the SDK client with bucket provisioning and health
// checking. Repositories obtain the raw API via GetClient.
type MinIOClient struct {
	client MinIOAPI
	config *MinIOConfig
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewMinIOClient connects to MinIO, verifies connectivity, and provisions the
// configured buckets with their lifecycle rules.
func NewMinIOClient(cfg *MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	applyDefaults(cfg)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}

	mClient := &MinIOClient{
		client: client,
		config: cfg,
		logger: log,
	}

	if err := mClient.EnsureBuckets(ctx); err != nil {
		return nil, err
	}

	if err := mClient.SetupLifecycleRules(ctx); err != nil {
		return nil, err
	}

	log.Info("MinIO client connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return mClient, nil
}

func applyDefaults(cfg *MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.TempFileExpiry == 0 {
		cfg.TempFileExpiry = 7
	}
	if cfg.DefaultBucket == "" {
		cfg.DefaultBucket = "lifelike-documents"
	}
	if cfg.Buckets.Documents == "" {
		cfg.Buckets.Documents = "lifelike-documents"
	}
	if cfg.Buckets.Parsed == "" {
		cfg.Buckets.Parsed = "lifelike-parsed"
	}
	if cfg.Buckets.Enrichment == "" {
		cfg.Buckets.Enrichment = "lifelike-enrichment"
	}
	if cfg.Buckets.Exports == "" {
		cfg.Buckets.Exports = "lifelike-exports"
	}
	if cfg.Buckets.Temp == "" {
		cfg.Buckets.Temp = "lifelike-temp"
	}
}

func (c *MinIOClient) allBuckets() []string {
	return []string{
		c.config.Buckets.Documents,
		c.config.Buckets.Parsed,
		c.config.Buckets.Enrichment,
		c.config.Buckets.Exports,
		c.config.Buckets.Temp,
	}
}

// EnsureBuckets creates any configured bucket that does not exist yet.
func (c *MinIOClient) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range c.allBuckets() {
		exists, err := c.client.BucketExists(ctx, bucket)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to check bucket existence")
		}
		if !exists {
			if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, fmt.Sprintf("failed to create bucket %s", bucket))
			}
			c.logger.Info("Created bucket", logging.String("bucket", bucket))
		}
	}
	return nil
}

// SetupLifecycleRules expires temp objects after TempFileExpiry days and
// exports after 30 days. Lifecycle failures are logged, not fatal: some
// deployments disable ILM.
func (c *MinIOClient) SetupLifecycleRules(ctx context.Context) error {
	tempConfig := lifecycle.NewConfiguration()
	tempConfig.Rules = []lifecycle.Rule{
		{
			ID:     "temp-cleanup",
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(c.config.TempFileExpiry),
			},
		},
	}
	if err := c.client.SetBucketLifecycle(ctx, c.config.Buckets.Temp, tempConfig); err != nil {
		c.logger.Warn("Failed to set lifecycle for temp bucket", logging.Err(err))
	}

	exportsConfig := lifecycle.NewConfiguration()
	exportsConfig.Rules = []lifecycle.Rule{
		{
			ID:     "exports-cleanup",
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: 30,
			},
		},
	}
	if err := c.client.SetBucketLifecycle(ctx, c.config.Buckets.Exports, exportsConfig); err != nil {
		c.logger.Warn("Failed to set lifecycle for exports bucket", logging.Err(err))
	}

	return nil
}

// GetClient exposes the raw API for the repository layer.
func (c *MinIOClient) GetClient() MinIOAPI {
	return c.client
}

// GetBucketName resolves a logical bucket type ("documents", "parsed",
// "enrichment", "exports", "temp") to its configured bucket. Unknown types
// fall back to the default bucket.
func (c *MinIOClient) GetBucketName(bucketType string) string {
	switch bucketType {
	case "documents":
		return c.config.Buckets.Documents
	case "parsed":
		return c.config.Buckets.Parsed
	case "enrichment":
		return c.config.Buckets.Enrichment
	case "exports":
		return c.config.Buckets.Exports
	case "temp":
		return c.config.Buckets.Temp
	default:
		return c.config.DefaultBucket
	}
}

// Close marks the client closed. The underlying SDK client holds no
// long-lived connections that need teardown.
func (c *MinIOClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// HealthStatus reports connectivity and per-bucket existence.
type HealthStatus struct {
	Healthy        bool
	Latency        time.Duration
	BucketStatuses map[string]bool
	Error          string
}

// HealthCheck lists buckets to verify connectivity, then confirms every
// configured bucket still exists.
func (c *MinIOClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	_, err := c.client.ListBuckets(ctx)
	latency := time.Since(start)

	status := &HealthStatus{
		Healthy:        err == nil,
		Latency:        latency,
		BucketStatuses: make(map[string]bool),
	}

	if err != nil {
		status.Error = err.Error()
		return status, err
	}

	for _, b := range c.allBuckets() {
		exists, _ := c.client.BucketExists(ctx, b)
		status.BucketStatuses[b] = exists
		if !exists {
			status.Healthy = false
			status.Error = fmt.Sprintf("bucket %s missing", b)
		}
	}

	return status, nil
}
