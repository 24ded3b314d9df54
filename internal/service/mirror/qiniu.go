package mirror

import (
	"context"
	"fmt"
	"io"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/datashare/config"
)

// QiniuProvider Qiniu Kodo
type QiniuProvider struct {
	mac        *qbox.Mac
	bucketName string
	region     *storage.Region
	useHTTPS   bool
}

// NewQiniuProvider resolves the bucket region for cfg
func NewQiniuProvider(cfg config.MirrorConfig) (*QiniuProvider, error) {
	region, err := storage.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	return &QiniuProvider{
		mac:        qbox.NewMac(cfg.AccessKey, cfg.SecretKey),
		bucketName: cfg.Bucket,
		region:     region,
		useHTTPS:   cfg.UseSSL,
	}, nil
}

func (p *QiniuProvider) storageConfig() *storage.Config {
	return &storage.Config{
		Region:   p.region,
		UseHTTPS: p.useHTTPS,
	}
}

// Put uploads an object, overwriting an existing key
func (p *QiniuProvider) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	putPolicy := storage.PutPolicy{
		// bucket:key scope allows overwrite
		Scope: fmt.Sprintf("%s:%s", p.bucketName, key),
	}
	upToken := putPolicy.UploadToken(p.mac)

	putExtra := storage.PutExtra{MimeType: contentType}
	ret := storage.PutRet{}
	uploader := storage.NewFormUploader(p.storageConfig())
	if err := uploader.Put(ctx, &ret, upToken, key, r, size, &putExtra); err != nil {
		return fmt.Errorf("failed to upload to qiniu kodo: %w", err)
	}
	return nil
}

// Delete removes an object
func (p *QiniuProvider) Delete(_ context.Context, key string) error {
	manager := storage.NewBucketManager(p.mac, p.storageConfig())
	if err := manager.Delete(p.bucketName, key); err != nil {
		return fmt.Errorf("failed to delete from qiniu kodo: %w", err)
	}
	return nil
}

// Ping reads the bucket info
func (p *QiniuProvider) Ping(_ context.Context) error {
	manager := storage.NewBucketManager(p.mac, p.storageConfig())
	if _, err := manager.GetBucketInfo(p.bucketName); err != nil {
		return fmt.Errorf("failed to reach qiniu kodo: %w", err)
	}
	return nil
}
