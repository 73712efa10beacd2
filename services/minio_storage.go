package services

import (
	"context"
	"fmt"
	"io"

	"github.com/cmsp-lab/lab-orders-api/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOFileStorage keeps case files in a MinIO bucket.
type MinIOFileStorage struct {
	client *minio.Client
	bucket string
}

func NewMinIOFileStorage(ctx context.Context, cfg *config.Config) (*MinIOFileStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
	}

	return &MinIOFileStorage{client: client, bucket: cfg.MinioBucket}, nil
}

func (s *MinIOFileStorage) Save(ctx context.Context, name string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, uploadPrefix+name, body, size, minio.PutObjectOptions{
		ContentType: ContentTypeFor(name),
	})
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	return nil
}

func (s *MinIOFileStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrFileNotFound
	}
	obj, err := s.client.GetObject(ctx, s.bucket, uploadPrefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	return obj, nil
}

func (s *MinIOFileStorage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, uploadPrefix+name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}
	return true, nil
}

func (s *MinIOFileStorage) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, uploadPrefix+name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
