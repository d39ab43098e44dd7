// Package database defines the database adapter contracts used by the recipient writers,
// the status report repository and the migrator.
package database

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/recipient-import/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/recipient-import/pkg/batch/core/adapter"
)

// DBExecutor defines the read and write operations the importer performs.
type DBExecutor interface {
	// ExecuteUpsert inserts model (an entity pointer or a slice) and updates updateColumns on conflict.
	// With no updateColumns the conflicting rows are left untouched.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteQuery loads the first row matching query into target.
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// Count counts the records of model matching query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)
}

// DBConnection represents a named database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection // Type(), Name(), Close()
	DBExecutor

	// RefreshConnection pings the database and reopens the pool if the ping fails.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
	// GetGormDB returns the underlying *gorm.DB session.
	GetGormDB() *gorm.DB
}

// DBConnectionResolver resolves a named database connection.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveDBConnection resolves a database connection instance by name.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider manages the connections of one database type.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "postgres").
	Type() string
	// ForceReconnect forces the closure and re-establishment of the named connection.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx group name collecting DBProvider implementations.
const DBProviderGroup = "db_providers"
