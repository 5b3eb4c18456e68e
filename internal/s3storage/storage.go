package s3storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/RestorePortal/internal/blob"
	"github.com/dharsanguruparan/RestorePortal/internal/config"
)

// Storage keeps uploaded artifacts in a MinIO/S3 bucket keyed by stored name.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client: client,
		bucket: cfg.S3Bucket,
		region: cfg.S3Region,
	}, nil
}

// EnsureBucket makes sure the upload bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put uploads an artifact under its stored name.
func (s *Storage) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if !blob.ValidName(name) {
		return blob.ErrInvalidName
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, name, r, size, opts); err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return nil
}

// Open streams an artifact. A missing object surfaces as blob.ErrNotExist.
func (s *Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !blob.ValidName(name) {
		return nil, blob.ErrInvalidName
	}
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, blob.ErrNotExist
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return obj, nil
}

// Delete removes an artifact.
func (s *Storage) Delete(ctx context.Context, name string) error {
	if !blob.ValidName(name) {
		return blob.ErrInvalidName
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// PresignURL returns a signed GET URL for an artifact.
func (s *Storage) PresignURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}
