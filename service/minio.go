package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const masterContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MasterArchive keeps copies of uploaded master files.
type MasterArchive interface {
	Put(ctx context.Context, objectName string, reader io.Reader, size int64) error
	Open(ctx context.Context, objectName string) (io.ReadCloser, int64, error)
	URL(ctx context.Context, objectName string) (string, error)
}

// MasterObjectName is where a master file uploaded by owner under key is archived.
func MasterObjectName(owner, key, filename string) string {
	return fmt.Sprintf("masters/%s/%s/%s", owner, key, filename)
}

type MinioService struct {
	client *minio.Client
	bucket string
}

var _ MasterArchive = (*MinioService)(nil)

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Put stores a master file
func (s *MinioService) Put(ctx context.Context, objectName string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: masterContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to archive master file: %w", err)
	}

	return nil
}

// Open streams an archived master file back together with its size.
func (s *MinioService) Open(ctx context.Context, objectName string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open master file: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, fmt.Errorf("failed to stat master file: %w", err)
	}
	return obj, info.Size, nil
}

// URL returns a presigned download link valid for one hour.
func (s *MinioService) URL(ctx context.Context, objectName string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return u.String(), nil
}
