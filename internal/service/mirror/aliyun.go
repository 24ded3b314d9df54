package mirror

import (
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/datashare/config"
)

// AliyunProvider Alibaba Cloud OSS
type AliyunProvider struct {
	client *oss.Client
	bucket *oss.Bucket
	name   string
}

// NewAliyunProvider connects to the bucket in cfg
func NewAliyunProvider(cfg config.MirrorConfig) (*AliyunProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &AliyunProvider{client: client, bucket: bucket, name: cfg.Bucket}, nil
}

// Put uploads an object
func (p *AliyunProvider) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	options := []oss.Option{oss.WithContext(ctx), oss.ContentLength(size)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if err := p.bucket.PutObject(key, r, options...); err != nil {
		return fmt.Errorf("failed to upload to aliyun oss: %w", err)
	}
	return nil
}

// Delete removes an object
func (p *AliyunProvider) Delete(ctx context.Context, key string) error {
	if err := p.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete from aliyun oss: %w", err)
	}
	return nil
}

// Ping reads the bucket info
func (p *AliyunProvider) Ping(ctx context.Context) error {
	if _, err := p.client.GetBucketInfo(p.name, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to reach aliyun oss: %w", err)
	}
	return nil
}
