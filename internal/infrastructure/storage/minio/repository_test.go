package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *MockMinIOAPI) SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error {
	args := m.Called(ctx, bucketName, config)
	return args.Error(0)
}

func (m *MockMinIOAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	// *minio.Object cannot be constructed without a live connection, so
	// download success paths are left to integration tests.
	return nil, args.Error(1)
}

func TestDownload_GetObjectError(t *testing.T) {
	api := new(MockMinIOAPI)
	repo := NewMinIORepositoryWithAPI(api, logging.NewNopLogger())

	api.On("GetObject", mock.Anything, "lifelike-parsed", "abc123.json", mock.Anything).
		Return(nil, assert.AnError)

	_, err := repo.Download(context.Background(), "lifelike-parsed", "abc123.json")
	assert.Error(t, err)
	api.AssertExpectations(t)
}
