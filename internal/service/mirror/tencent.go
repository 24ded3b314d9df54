package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/datashare/config"
)

// TencentProvider Tencent Cloud COS
type TencentProvider struct {
	client *cos.Client
}

// NewTencentProvider builds a client for the bucket in cfg
func NewTencentProvider(cfg config.MirrorConfig) (*TencentProvider, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})

	return &TencentProvider{client: client}, nil
}

// Put uploads an object
func (p *TencentProvider) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	options := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: size,
		},
	}
	if _, err := p.client.Object.Put(ctx, key, r, options); err != nil {
		return fmt.Errorf("failed to upload to tencent cos: %w", err)
	}
	return nil
}

// Delete removes an object
func (p *TencentProvider) Delete(ctx context.Context, key string) error {
	if _, err := p.client.Object.Delete(ctx, key); err != nil {
		if cos.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to delete from tencent cos: %w", err)
	}
	return nil
}

// Ping heads the bucket
func (p *TencentProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to reach tencent cos: %w", err)
	}
	return nil
}
