// Package gcs provides a Google Cloud Storage implementation of the storage adapter interfaces.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/recipient-import/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/recipient-import/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// ProviderType defines the type identifier for this provider.
const ProviderType = "gcs"

// Adapter implements storage.StorageConnection over a GCS client.
type Adapter struct {
	client *gcs.Client
	cfg    storageConfig.StorageConfig
	name   string
}

var _ storageAdapter.StorageConnection = (*Adapter)(nil)

// ClientOptions builds the client options for cfg.
// An endpoint (e.g. a local emulator) disables authentication.
func ClientOptions(cfg storageConfig.StorageConfig) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// NewAdapter creates a GCS client for cfg.
func NewAdapter(ctx context.Context, cfg storageConfig.StorageConfig, name string) (*Adapter, error) {
	client, err := gcs.NewClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to create client: %w", name, err)
	}
	return &Adapter{client: client, cfg: cfg, name: name}, nil
}

// Close closes the underlying client.
func (a *Adapter) Close() error {
	logger.Debugf("GCS storage adapter '%s' closed.", a.name)
	return a.client.Close()
}

// Type returns "gcs".
func (a *Adapter) Type() string { return ProviderType }

// Name returns the name of this connection.
func (a *Adapter) Name() string { return a.name }

func (a *Adapter) bucket(name string) (*gcs.BucketHandle, error) {
	if name == "" {
		name = a.cfg.BucketName
	}
	if name == "" {
		return nil, fmt.Errorf("gcs storage adapter '%s': no bucket given and no bucket_name configured", a.name)
	}
	return a.client.Bucket(name), nil
}

func notFound(err error, bucket, objectName string) error {
	if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
		return fmt.Errorf("gs://%s/%s: %w", bucket, objectName, errors.Join(storageAdapter.ErrObjectNotFound, err))
	}
	return err
}

// Upload writes data to bucket/objectName.
func (a *Adapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	b, err := a.bucket(bucket)
	if err != nil {
		return err
	}
	w := b.Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", bucket, objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload of gs://%s/%s: %w", bucket, objectName, err)
	}
	logger.Debugf("Uploaded gs://%s/%s (gcs adapter '%s').", bucket, objectName, a.name)
	return nil
}

// Download opens bucket/objectName for reading.
func (a *Adapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	b, err := a.bucket(bucket)
	if err != nil {
		return nil, err
	}
	r, err := b.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, notFound(err, bucket, objectName)
	}
	return r, nil
}

// Stat returns the object attributes, including its user metadata.
func (a *Adapter) Stat(ctx context.Context, bucket, objectName string) (storageAdapter.ObjectInfo, error) {
	b, err := a.bucket(bucket)
	if err != nil {
		return storageAdapter.ObjectInfo{}, err
	}
	attrs, err := b.Object(objectName).Attrs(ctx)
	if err != nil {
		return storageAdapter.ObjectInfo{}, notFound(err, bucket, objectName)
	}
	return ObjectInfoFromAttrs(attrs), nil
}

// ObjectInfoFromAttrs converts GCS object attributes.
func ObjectInfoFromAttrs(attrs *gcs.ObjectAttrs) storageAdapter.ObjectInfo {
	metadata := make(map[string]string, len(attrs.Metadata))
	for k, v := range attrs.Metadata {
		metadata[k] = v
	}
	return storageAdapter.ObjectInfo{
		Name:        attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Metadata:    metadata,
		Updated:     attrs.Updated,
	}
}

// ListObjects calls fn for every object under prefix.
func (a *Adapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	b, err := a.bucket(bucket)
	if err != nil {
		return err
	}
	it := b.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

// DeleteObject deletes an object. A missing object is not an error.
func (a *Adapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	b, err := a.bucket(bucket)
	if err != nil {
		return err
	}
	if err := b.Object(objectName).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			logger.Warnf("Attempted to delete non-existent object gs://%s/%s (gcs adapter '%s').", bucket, objectName, a.name)
			return nil
		}
		return fmt.Errorf("failed to delete gs://%s/%s: %w", bucket, objectName, err)
	}
	return nil
}

// Provider implements storage.StorageProvider for GCS connections.
type Provider struct {
	cfg         *coreConfig.Config
	connections map[string]storageAdapter.StorageConnection
	mu          sync.Mutex
}

// NewProvider creates a new GCS provider.
func NewProvider(cfg *coreConfig.Config) *Provider {
	return &Provider{
		cfg:         cfg,
		connections: make(map[string]storageAdapter.StorageConnection),
	}
}

// GetConnection returns the named connection, creating the client on first use.
func (p *Provider) GetConnection(name string) (storageAdapter.StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	return p.connect(name)
}

func (p *Provider) connect(name string) (storageAdapter.StorageConnection, error) {
	storageCfg, err := storageConfig.Decode(p.cfg.Importer.Adapter.Storage, name)
	if err != nil {
		return nil, err
	}
	if storageCfg.Type != ProviderType {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, ProviderType, storageCfg.Type)
	}
	conn, err := NewAdapter(context.Background(), storageCfg, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Debugf("Created new GCS storage connection '%s'.", name)
	return conn, nil
}

// CloseAll closes every client.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close gcs connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return errors.Join(errs...)
}

// Type returns "gcs".
func (p *Provider) Type() string { return ProviderType }

// ForceReconnect closes and re-creates the named client.
func (p *Provider) ForceReconnect(name string) (storageAdapter.StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		if err := conn.Close(); err != nil {
			logger.Warnf("Failed to close gcs connection '%s' during force reconnect: %v", name, err)
		}
		delete(p.connections, name)
	}
	return p.connect(name)
}

var _ storageAdapter.StorageProvider = (*Provider)(nil)
