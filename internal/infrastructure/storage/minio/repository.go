package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

var ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")

// ObjectStorageRepository is the read side of the object store. The annotator
// consumes parsed documents written by the PDF parsing service; it never
// writes objects itself.
type ObjectStorageRepository interface {
	Download(ctx context.Context, bucket, objectKey string) (*DownloadResult, error)
}

// DownloadResult carries an object's payload and metadata.
type DownloadResult struct {
	Data         []byte
	ContentType  string
	Size         int64
	ETag         string
	Metadata     map[string]string
	LastModified time.Time
}

type minioRepository struct {
	api    MinIOAPI
	logger logging.Logger
}

// NewObjectStorageRepository builds the repository over a connected client.
func NewObjectStorageRepository(client *MinIOClient, log logging.Logger) ObjectStorageRepository {
	return &minioRepository{
		api:    client.GetClient(),
		logger: log,
	}
}

// NewMinIORepositoryWithAPI builds a repository over a raw API handle; tests
// use it to substitute a mock.
func NewMinIORepositoryWithAPI(api MinIOAPI, log logging.Logger) ObjectStorageRepository {
	return &minioRepository{
		api:    api,
		logger: log,
	}
}

func (r *minioRepository) Download(ctx context.Context, bucket, objectKey string) (*DownloadResult, error) {
	obj, err := r.api.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "download failed")
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "stat failed")
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "read failed")
	}

	return &DownloadResult{
		Data:         data,
		ContentType:  stat.ContentType,
		Size:         stat.Size,
		ETag:         stat.ETag,
		Metadata:     stat.UserMetadata,
		LastModified: stat.LastModified,
	}, nil
}
