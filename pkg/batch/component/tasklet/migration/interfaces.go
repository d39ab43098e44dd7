// Package migration applies the embedded schema migrations for recipients and import status reports
// with golang-migrate.
package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/recipient-import/pkg/batch/adapter/database"
)

// MigrationsTable is the table golang-migrate records the applied version in.
const MigrationsTable = "recipient_import_migrations"

// Migrator applies the migrations found at path within migrationFS.
type Migrator interface {
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Version returns the applied version and whether the schema is dirty.
	Version(migrationFS fs.FS, path string, tableName string) (uint, bool, error)
}

// MigratorProvider creates a Migrator for a database connection.
type MigratorProvider interface {
	NewMigrator(dbConn database.DBConnection) Migrator
}

type migratorProviderImpl struct{}

// NewMigratorProvider returns the golang-migrate backed MigratorProvider.
func NewMigratorProvider() MigratorProvider {
	return &migratorProviderImpl{}
}

func (p *migratorProviderImpl) NewMigrator(dbConn database.DBConnection) Migrator {
	return NewMigrator(dbConn)
}
