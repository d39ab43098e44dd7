package local_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/recipient-import/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/recipient-import/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/recipient-import/pkg/batch/adapter/storage/local"
	coreConfig "github.com/tigerroll/recipient-import/pkg/batch/core/config"
)

func newAdapter(t *testing.T) (*local.Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	a, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: dir, BucketName: "uploads"}, "source")
	require.NoError(t, err)
	return a, dir
}

func TestAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a, dir := newAdapter(t)

	require.NoError(t, a.Upload(ctx, "", "user-1/list-1.csv", bytes.NewBufferString("email\na@b.com\n"), "text/csv"))
	require.NoError(t, a.WriteMetadata(ctx, "", "user-1/list-1.csv", map[string]string{"columnmapping": `{"Mail":"email"}`}))
	assert.FileExists(t, filepath.Join(dir, "uploads", "user-1", "list-1.csv"))

	rc, err := a.Download(ctx, "", "user-1/list-1.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "email\na@b.com\n", string(body))

	info, err := a.Stat(ctx, "uploads", "user-1/list-1.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), info.Size)
	assert.Equal(t, `{"Mail":"email"}`, info.Metadata["columnmapping"])

	var names []string
	require.NoError(t, a.ListObjects(ctx, "", "user-1/", func(name string) error {
		names = append(names, name)
		return nil
	}))
	sort.Strings(names)
	assert.Equal(t, []string{"user-1/list-1.csv"}, names, "sidecars are not listed")

	require.NoError(t, a.DeleteObject(ctx, "", "user-1/list-1.csv"))
	_, err = os.Stat(filepath.Join(dir, "uploads", "user-1", "list-1.csv"+local.MetadataSuffix))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, a.DeleteObject(ctx, "", "user-1/list-1.csv"), "deleting twice is not an error")
}

func TestAdapter_StatWithoutSidecar(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)
	require.NoError(t, a.Upload(ctx, "", "u/l.csv", bytes.NewBufferString("email\n"), "text/csv"))

	info, err := a.Stat(ctx, "", "u/l.csv")
	require.NoError(t, err)
	assert.NotNil(t, info.Metadata)
	assert.Empty(t, info.Metadata)
}

func TestAdapter_NotFound(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)

	_, err := a.Stat(ctx, "", "missing.csv")
	assert.True(t, errors.Is(err, storageAdapter.ErrObjectNotFound))

	_, err = a.Download(ctx, "", "missing.csv")
	assert.True(t, errors.Is(err, storageAdapter.ErrObjectNotFound))
}

func TestAdapter_RejectsPathEscape(t *testing.T) {
	a, _ := newAdapter(t)

	_, err := a.Download(context.Background(), "", "../../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of BaseDir")
}

func TestNewLocalAdapter_RequiresBaseDir(t *testing.T) {
	_, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local"}, "source")
	assert.Error(t, err)
}

func TestLocalProvider_GetConnection(t *testing.T) {
	cfg := coreConfig.NewConfig()
	cfg.Importer.Adapter.Storage = map[string]interface{}{
		"source":  map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
		"archive": map[string]interface{}{"type": "gcs", "bucket_name": "rejects"},
	}
	p := local.NewLocalProvider(cfg)

	conn, err := p.GetConnection("source")
	require.NoError(t, err)
	assert.Equal(t, "source", conn.Name())
	assert.Equal(t, local.ProviderType, conn.Type())

	again, err := p.GetConnection("source")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = p.GetConnection("archive")
	assert.ErrorContains(t, err, "type mismatch")

	_, err = p.GetConnection("unknown")
	assert.ErrorContains(t, err, "not found")

	reconnected, err := p.ForceReconnect("source")
	require.NoError(t, err)
	assert.NotSame(t, conn, reconnected)
	assert.NoError(t, p.CloseAll())
}
