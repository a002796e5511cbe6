package minio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

// minio.Client is a struct, not an interface, so NewMinIOClient and the
// network paths are covered by integration tests. Configuration logic,
// bucket routing, and provisioning over a mock API are testable here.

type ClientTestSuite struct {
	suite.Suite
	api *MockMinIOAPI
	log logging.Logger
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.log = logging.NewNopLogger()
}

func (s *ClientTestSuite) newClient(cfg *MinIOConfig) *MinIOClient {
	applyDefaults(cfg)
	return &MinIOClient{client: s.api, config: cfg, logger: s.log}
}

func (s *ClientTestSuite) TestApplyDefaults() {
	cfg := &MinIOConfig{}
	applyDefaults(cfg)

	assert.Equal(s.T(), "us-east-1", cfg.Region)
	assert.Equal(s.T(), "lifelike-documents", cfg.Buckets.Documents)
	assert.Equal(s.T(), "lifelike-parsed", cfg.Buckets.Parsed)
	assert.Equal(s.T(), "lifelike-enrichment", cfg.Buckets.Enrichment)
	assert.Equal(s.T(), 7, cfg.TempFileExpiry)
}

func (s *ClientTestSuite) TestGetBucketName() {
	cfg := &MinIOConfig{
		Buckets: BucketConfig{
			Documents: "doc-bucket",
			Parsed:    "parsed-bucket",
			Temp:      "temp-bucket",
		},
		DefaultBucket: "default",
	}
	client := &MinIOClient{config: cfg}

	assert.Equal(s.T(), "doc-bucket", client.GetBucketName("documents"))
	assert.Equal(s.T(), "parsed-bucket", client.GetBucketName("parsed"))
	assert.Equal(s.T(), "temp-bucket", client.GetBucketName("temp"))
	assert.Equal(s.T(), "default", client.GetBucketName("unknown"))
}

func (s *ClientTestSuite) TestEnsureBuckets_CreatesMissing() {
	client := s.newClient(&MinIOConfig{})

	s.api.On("BucketExists", mock.Anything, "lifelike-documents").Return(true, nil)
	s.api.On("BucketExists", mock.Anything, "lifelike-parsed").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "lifelike-parsed", mock.Anything).Return(nil)
	s.api.On("BucketExists", mock.Anything, "lifelike-enrichment").Return(true, nil)
	s.api.On("BucketExists", mock.Anything, "lifelike-exports").Return(true, nil)
	s.api.On("BucketExists", mock.Anything, "lifelike-temp").Return(true, nil)

	err := client.EnsureBuckets(context.Background())
	assert.NoError(s.T(), err)
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestHealthCheck_MissingBucket() {
	client := s.newClient(&MinIOConfig{})

	s.api.On("ListBuckets", mock.Anything).Return(nil, nil)
	s.api.On("BucketExists", mock.Anything, "lifelike-parsed").Return(false, nil)
	s.api.On("BucketExists", mock.Anything, mock.Anything).Return(true, nil)

	status, err := client.HealthCheck(context.Background())
	assert.NoError(s.T(), err)
	assert.False(s.T(), status.Healthy)
	assert.Contains(s.T(), status.Error, "lifelike-parsed")
}

func (s *ClientTestSuite) TestHealthCheck_Unreachable() {
	client := s.newClient(&MinIOConfig{})

	s.api.On("ListBuckets", mock.Anything).Return(nil, assert.AnError)

	status, err := client.HealthCheck(context.Background())
	assert.Error(s.T(), err)
	assert.False(s.T(), status.Healthy)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
