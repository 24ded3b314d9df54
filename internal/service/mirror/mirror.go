// Package mirror copies dataset payloads to object storage.
// The copy is never read back by this service; downloads are always served from the record store.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/weiwangfds/datashare/config"
	"github.com/weiwangfds/datashare/internal/logger"
)

// Supported providers
const (
	ProviderAliyun  = "aliyun"
	ProviderTencent = "tencent"
	ProviderQiniu   = "qiniu"
	ProviderMinio   = "minio"
)

// ErrUnsupportedProvider unknown provider name
var ErrUnsupportedProvider = errors.New("unsupported object storage provider")

// Provider minimal object storage operations the mirror needs
type Provider interface {
	// Put uploads size bytes from r under key
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// Ping verifies credentials and bucket access
	Ping(ctx context.Context) error
}

// Mirror maps dataset ids to object keys on a provider
type Mirror struct {
	provider Provider
	name     string
	prefix   string
}

// New builds the mirror described by cfg. It returns nil when no provider is configured.
func New(cfg config.MirrorConfig) (*Mirror, error) {
	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(cfg.Provider) {
	case "":
		return nil, nil
	case ProviderAliyun:
		provider, err = NewAliyunProvider(cfg)
	case ProviderTencent:
		provider, err = NewTencentProvider(cfg)
	case ProviderQiniu:
		provider, err = NewQiniuProvider(cfg)
	case ProviderMinio:
		provider, err = NewMinioProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Infof("object storage mirror enabled: provider=%s bucket=%s", cfg.Provider, cfg.Bucket)
	return NewWithProvider(provider, cfg.Provider, cfg.Prefix), nil
}

// NewWithProvider wraps an existing provider
func NewWithProvider(provider Provider, name, prefix string) *Mirror {
	return &Mirror{
		provider: provider,
		name:     name,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// Name provider name
func (m *Mirror) Name() string {
	return m.name
}

// Key object key of a dataset payload
func (m *Mirror) Key(datasetID string) string {
	if m.prefix == "" {
		return datasetID
	}
	return path.Join(m.prefix, datasetID)
}

// Store uploads a dataset payload, replacing any earlier copy
func (m *Mirror) Store(ctx context.Context, datasetID, contentType string, content []byte) error {
	if err := m.provider.Put(ctx, m.Key(datasetID), bytes.NewReader(content), int64(len(content)), contentType); err != nil {
		return fmt.Errorf("mirror %s put %s: %w", m.name, datasetID, err)
	}
	return nil
}

// Remove deletes a dataset payload
func (m *Mirror) Remove(ctx context.Context, datasetID string) error {
	if err := m.provider.Delete(ctx, m.Key(datasetID)); err != nil {
		return fmt.Errorf("mirror %s delete %s: %w", m.name, datasetID, err)
	}
	return nil
}

// Ping checks the provider is reachable
func (m *Mirror) Ping(ctx context.Context) error {
	return m.provider.Ping(ctx)
}
