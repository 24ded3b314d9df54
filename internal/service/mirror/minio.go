package mirror

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/weiwangfds/datashare/config"
	"github.com/weiwangfds/datashare/internal/logger"
)

// MinioProvider any S3 compatible store reachable through minio-go
type MinioProvider struct {
	client     *minio.Client
	bucketName string
}

// NewMinioProvider connects to cfg.Endpoint and creates the bucket when missing
func NewMinioProvider(cfg config.MirrorConfig) (*MinioProvider, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Infof("created bucket %s", cfg.Bucket)
	}

	return &MinioProvider{client: client, bucketName: cfg.Bucket}, nil
}

// Put uploads an object
func (p *MinioProvider) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := p.client.PutObject(ctx, p.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}
	return nil
}

// Delete removes an object
func (p *MinioProvider) Delete(ctx context.Context, key string) error {
	if err := p.client.RemoveObject(ctx, p.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}

// Ping checks the bucket exists
func (p *MinioProvider) Ping(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucketName)
	if err != nil {
		return fmt.Errorf("failed to reach minio: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", p.bucketName)
	}
	return nil
}
