package migration

import (
	"context"
	"fmt"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

const moduleName = "migration"

// SchemaMigration brings the recipients and import_status tables of the configured database up to date.
type SchemaMigration struct {
	resolver       database.DBConnectionResolver
	provider       MigratorProvider
	migrationFS    fs.FS
	connectionName string
	sqlLogLevel    string
}

// SchemaMigrationParams collects the dependencies of SchemaMigration.
type SchemaMigrationParams struct {
	fx.In
	Config           *config.Config
	Resolver         database.DBConnectionResolver
	MigratorProvider MigratorProvider
	MigrationsFS     fs.FS `name:"migrationsFS"`
}

// NewSchemaMigration creates a SchemaMigration for the connection named by database_ref.
func NewSchemaMigration(p SchemaMigrationParams) *SchemaMigration {
	return &SchemaMigration{
		resolver:       p.Resolver,
		provider:       p.MigratorProvider,
		migrationFS:    p.MigrationsFS,
		connectionName: p.Config.Importer.Import.DatabaseRef,
		sqlLogLevel:    p.Config.Importer.System.Logging.SQLLevel,
	}
}

// Up applies pending migrations from the directory matching the database type.
// It runs on a dedicated pool because golang-migrate closes the pool it was given.
func (s *SchemaMigration) Up(ctx context.Context) error {
	conn, err := s.resolver.ResolveDBConnection(ctx, s.connectionName)
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve database connection '%s'", s.connectionName), err, false, true)
	}
	dbCfg := conn.Config()
	if _, err := fs.Stat(s.migrationFS, dbCfg.Type); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("no migrations for database type '%s'", dbCfg.Type), err, false, false)
	}

	db, err := gormadapter.Open(dbCfg, s.sqlLogLevel)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to open migration connection", err, false, true)
	}
	dedicated := gormadapter.NewGormDBAdapter(db, dbCfg, s.connectionName+"-migrations", nil)
	defer dedicated.Close()

	if err := s.provider.NewMigrator(dedicated).Up(ctx, s.migrationFS, dbCfg.Type, MigrationsTable); err != nil {
		return exception.NewBatchError(moduleName, "schema migration failed", err, false, false)
	}
	return nil
}

type startupParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	Migration *SchemaMigration
}

// registerStartupMigration runs SchemaMigration.Up on start unless import.skip_migrations is set.
func registerStartupMigration(p startupParams) {
	if p.Config.Importer.Import.SkipMigrations {
		logger.Infof("Schema migrations are disabled (import.skip_migrations).")
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.Migration.Up(ctx)
		},
	})
}
