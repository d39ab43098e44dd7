package migration_test

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/recipient-import/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/recipient-import/pkg/batch/component/tasklet/migration/filesystem"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
)

func TestMigrationsFS_HasEveryDialect(t *testing.T) {
	migrationsFS := filesystem.ProvideMigrationsFS()
	for _, dialect := range []string{"sqlite", "postgres", "mysql"} {
		for _, name := range []string{
			"000001_create_recipients.up.sql",
			"000001_create_recipients.down.sql",
			"000002_create_import_status.up.sql",
			"000002_create_import_status.down.sql",
		} {
			_, err := fs.Stat(migrationsFS, dialect+"/"+name)
			assert.NoError(t, err, "%s/%s", dialect, name)
		}
	}
}

func newSQLiteFixture(t *testing.T) (*config.Config, database.DBConnectionResolver) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Importer.Adapter.Database = map[string]interface{}{
		"recipients": map[string]interface{}{
			"type":     "sqlite",
			"database": filepath.Join(t.TempDir(), "importer.db"),
		},
	}
	provider := sqlite.NewProvider(cfg)
	t.Cleanup(func() { provider.CloseAll() })
	resolver := gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		DBProviders: []database.DBProvider{provider},
		Cfg:         cfg,
	})
	return cfg, resolver
}

func TestSchemaMigration_UpCreatesTables(t *testing.T) {
	ctx := context.Background()
	cfg, resolver := newSQLiteFixture(t)
	sm := migration.NewSchemaMigration(migration.SchemaMigrationParams{
		Config:           cfg,
		Resolver:         resolver,
		MigratorProvider: migration.NewMigratorProvider(),
		MigrationsFS:     filesystem.ProvideMigrationsFS(),
	})

	require.NoError(t, sm.Up(ctx))
	require.NoError(t, sm.Up(ctx), "a second run has nothing to apply")

	conn, err := resolver.ResolveDBConnection(ctx, "recipients")
	require.NoError(t, err)
	migrator := conn.GetGormDB().Migrator()
	assert.True(t, migrator.HasTable("recipients"))
	assert.True(t, migrator.HasTable("import_status"))
	assert.True(t, migrator.HasTable(migration.MigrationsTable))
}

func TestSchemaMigration_UnknownDialect(t *testing.T) {
	ctx := context.Background()
	cfg, resolver := newSQLiteFixture(t)
	sm := migration.NewSchemaMigration(migration.SchemaMigrationParams{
		Config:           cfg,
		Resolver:         resolver,
		MigratorProvider: migration.NewMigratorProvider(),
		MigrationsFS:     fs.FS(emptyFS{}),
	})

	assert.Error(t, sm.Up(ctx))
}

type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
